package delivery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"intake/internal/config"
	"intake/internal/fileutil"
	"intake/internal/logging"
	"intake/internal/notifications"
)

// ReadyFunc receives a delivery once its drop directory has gone quiet.
type ReadyFunc func(ctx context.Context, deliveryID, root string)

// Watcher observes the delivery drop directory. Every first-level entry is a
// candidate delivery; filesystem activity anywhere inside it re-arms a
// debounce window, and when a window passes without events the delivery is
// checked for a manifest and handed to the ready handler. Vendors copy
// deliveries in file by file, so quiet-for-a-window is the readiness signal,
// not the first create event.
type Watcher struct {
	root         string
	manifestName string
	debounce     time.Duration
	handler      ReadyFunc
	notifier     notifications.Service
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	active  map[string]bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher builds a watcher over the configured delivery directory.
func NewWatcher(cfg *config.Config, handler ReadyFunc, notifier notifications.Service, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, errors.New("watcher requires configuration")
	}
	if handler == nil {
		return nil, errors.New("watcher requires a ready handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	debounce := time.Duration(cfg.Workflow.WatchDebounce) * time.Second
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{
		root:         cfg.Paths.DeliveryDir,
		manifestName: cfg.Ingest.ManifestFileName,
		debounce:     debounce,
		handler:      handler,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "delivery-watcher"),
		active:       make(map[string]bool),
	}, nil
}

// Start begins watching. Deliveries already sitting in the drop directory
// are armed immediately so drops that landed while the daemon was down still
// ingest.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("delivery watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := watchTree(fsw, w.root); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch delivery directory %s: %w", w.root, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx, fsw)
	return nil
}

// Stop terminates watching and waits for in-flight ready handlers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	pending := make(map[string]time.Time)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.armExisting(pending)
	rearmTimer(timer, pending)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.observe(fsw, event, pending)
			rearmTimer(timer, pending)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("delivery watch error", logging.Error(err))
		case <-timer.C:
			w.dispatchDue(ctx, pending)
			rearmTimer(timer, pending)
		}
	}
}

// rearmTimer points the timer at the soonest pending deadline. With nothing
// pending the timer stays stopped; the next filesystem event re-arms it.
func rearmTimer(timer *time.Timer, pending map[string]time.Time) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	var next time.Time
	for _, deadline := range pending {
		if next.IsZero() || deadline.Before(next) {
			next = deadline
		}
	}
	if next.IsZero() {
		return
	}
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
}

// observe records activity for the delivery an event belongs to and extends
// the watch into newly created directories.
func (w *Watcher) observe(fsw *fsnotify.Watcher, event fsnotify.Event, pending map[string]time.Time) {
	if event.Name == "" {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watchTree(fsw, event.Name); err != nil {
				w.logger.Warn("failed to watch new delivery directory",
					logging.String("path", event.Name),
					logging.Error(err))
			}
		}
	}

	root, _ := w.deliveryRoot(event.Name)
	if root == "" {
		return
	}
	pending[root] = time.Now().Add(w.debounce)
}

// armExisting queues the deliveries already present at startup.
func (w *Watcher) armExisting(pending map[string]time.Time) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Warn("initial delivery scan failed", logging.Error(err))
		return
	}
	deadline := time.Now().Add(w.debounce)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pending[filepath.Join(w.root, entry.Name())] = deadline
	}
}

func (w *Watcher) dispatchDue(ctx context.Context, pending map[string]time.Time) {
	now := time.Now()
	for root, deadline := range pending {
		if deadline.After(now) {
			continue
		}
		delete(pending, root)
		w.maybeDispatch(ctx, root, pending)
	}
}

// maybeDispatch hands a quiet delivery to the ready handler. Deliveries
// without a manifest stay unclaimed; the next filesystem event re-arms them.
func (w *Watcher) maybeDispatch(ctx context.Context, root string, pending map[string]time.Time) {
	deliveryID := filepath.Base(root)
	logger := w.logger.With(logging.String(logging.FieldDeliveryID, deliveryID))

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		logger.Debug("delivery root vanished before ingest", logging.String("path", root))
		return
	}

	if w.manifestName != "" {
		manifestPath, err := FindManifest(root, w.manifestName)
		if err != nil {
			logger.Warn("manifest scan failed; delivery left pending", logging.Error(err))
			return
		}
		if manifestPath == "" {
			logger.Debug("delivery has no manifest yet; waiting for more files")
			return
		}
	}

	w.mu.Lock()
	if w.active[root] {
		// An ingest of this delivery is still running; look again after
		// another quiet window so late files are picked up.
		pending[root] = time.Now().Add(w.debounce)
		w.mu.Unlock()
		return
	}
	w.active[root] = true
	w.mu.Unlock()

	logger.Info("delivery ready for ingest",
		logging.String("path", root),
		logging.String(logging.FieldEventType, "delivery_detected"))
	w.notifyDetected(ctx, deliveryID)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.active, root)
			w.mu.Unlock()
		}()
		w.handler(ctx, deliveryID, root)
	}()
}

func (w *Watcher) notifyDetected(ctx context.Context, deliveryID string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Publish(ctx, notifications.EventDeliveryDetected, notifications.Payload{
		"delivery": deliveryID,
	}); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Debug("delivery notification failed", logging.Error(err))
	}
}

// deliveryRoot maps an event path to the first-level drop entry it belongs
// to. Events on the drop directory itself report no delivery.
func (w *Watcher) deliveryRoot(path string) (root, deliveryID string) {
	rel, ok := fileutil.RelativeWithin(w.root, path)
	if !ok || rel == "." || rel == "" {
		return "", ""
	}
	first := rel
	if idx := strings.IndexRune(rel, filepath.Separator); idx >= 0 {
		first = rel[:idx]
	}
	return filepath.Join(w.root, first), first
}

// watchTree registers root and every directory below it. Subdirectory
// failures are tolerated; losing the root is fatal.
func watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := fsw.Add(path); addErr != nil && path == root {
			return addErr
		}
		return nil
	})
}
