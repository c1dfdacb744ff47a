package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"intake/internal/config"
	"intake/internal/delivery"
	"intake/internal/logging"
	"intake/internal/notifications"
	"intake/internal/queue"
	"intake/internal/workflow"
)

// Ingestor expands a delivered path into queue items. The collector is the
// production implementation; tests substitute stubs.
type Ingestor interface {
	ProcessPath(ctx context.Context, deliveryID, path string) ([]*queue.Item, error)
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	ingestor Ingestor
	notifier notifications.Service
	watcher  *delivery.Watcher
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. The delivery
// watcher is built here so its ready handler can claim and collect
// deliveries through the daemon.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, ingestor Ingestor, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || ingestor == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and ingestor")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "intaked.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		ingestor: ingestor,
		notifier: notifier,
		logPath:  filepath.Join(cfg.Paths.LogDir, "intake.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	watcher, err := delivery.NewWatcher(cfg, d.ingestDelivery, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("build delivery watcher: %w", err)
	}
	d.watcher = watcher
	return d, nil
}

// Start launches the workflow manager and the delivery watcher after
// acquiring the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another intake daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.watcher.Start(runCtx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start delivery watcher: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("intake daemon started",
		logging.String("lock", d.lockPath),
		logging.String("delivery_dir", d.cfg.Paths.DeliveryDir))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("intake daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.QueueDatabasePath(),
		LockFilePath: d.lockPath,
	}
}

// ingestDelivery is the watcher's ready handler. It claims the delivery with
// a per-delivery guard so a second daemon (or a manual CLI ingest) cannot
// collect the same drop concurrently, then expands it into queue items.
func (d *Daemon) ingestDelivery(ctx context.Context, deliveryID, root string) {
	logger := d.logger.With(logging.String(logging.FieldDeliveryID, deliveryID))

	guard, err := delivery.NewGuard(d.cfg.Paths.DataDir, deliveryID)
	if err != nil {
		logger.Error("delivery guard setup failed", logging.Error(err))
		return
	}
	locked, err := guard.TryAcquire()
	if err != nil {
		logger.Error("delivery guard acquire failed", logging.Error(err))
		return
	}
	if !locked {
		logger.Info("delivery already claimed by another ingest; skipping")
		return
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logger.Warn("delivery guard release failed", logging.Error(err))
		}
	}()

	items, err := d.ingestor.ProcessPath(ctx, deliveryID, root)
	if err != nil {
		logger.Error("delivery ingest failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ingest_failed"))
		d.notifyError(ctx, deliveryID, err)
		return
	}

	logger.Info("delivery ingested",
		logging.Int("items", len(items)),
		logging.String(logging.FieldEventType, "ingest_started"))
	d.notifyIngestStarted(ctx, len(items))
}

func (d *Daemon) notifyIngestStarted(ctx context.Context, count int) {
	if d.notifier == nil || count == 0 {
		return
	}
	if err := d.notifier.Publish(ctx, notifications.EventIngestStarted, notifications.Payload{
		"count": count,
	}); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Debug("ingest notification failed", logging.Error(err))
	}
}

func (d *Daemon) notifyError(ctx context.Context, deliveryID string, cause error) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"context": "delivery " + deliveryID,
		"error":   cause.Error(),
	}); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Debug("error notification failed", logging.Error(err))
	}
}
