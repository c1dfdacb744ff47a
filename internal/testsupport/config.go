package testsupport

import (
	"path/filepath"
	"testing"

	"intake/internal/config"
	"intake/internal/itemtype"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, wires a minimal template and item type set so
// Validate passes, and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DeliveryDir = filepath.Join(base, "deliveries")
	cfgVal.Paths.WorkRootDir = filepath.Join(base, "work")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Tracking.URL = "http://tracking.test"
	cfgVal.Tracking.APIKey = "test"
	cfgVal.Tracking.ProjectID = 42
	cfgVal.Templates = map[string]string{
		"shot_plate":  "{shot}_{element}_v{version}.{ext}",
		"vendor_note": "{name}",
	}
	cfgVal.ItemTypes = []itemtype.Definition{
		{
			Type:             "plate",
			TypeDisplay:      "Plate",
			Extensions:       []string{"exr", "dpx", "mov"},
			WorkPathTemplate: "shot_plate",
			ResolutionOrder:  1,
			DefaultFields:    map[string]string{"element": "plate"},
		},
		{
			Type:            "note",
			TypeDisplay:     "Client Note",
			ResolutionOrder: 10,
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTrackingURL overrides the production tracking endpoint on the test config.
func WithTrackingURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracking.URL = url
	}
}

// WithItemTypes replaces the seeded item type definitions.
func WithItemTypes(defs ...itemtype.Definition) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ItemTypes = defs
	}
}

// WithTemplates replaces the seeded work path templates.
func WithTemplates(templates map[string]string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Templates = templates
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DeliveryDir)
}
