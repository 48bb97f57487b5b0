package extension

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/store/memory"
)

func TestStoreForUnknownDriver(t *testing.T) {
	if _, err := storeFor("oracle", nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestEngineOptionsFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := `permissions:
  - key: reports.view
    module: reports
    label: View reports
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	e := New(WithConfig(Config{
		CatalogPath:   path,
		CacheTTL:      time.Minute,
		SweepInterval: 5 * time.Second,
		DisableAudit:  true,
	}))
	opts, err := e.engineOptions(slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	opts = append(opts, warrant.WithStore(memory.New()))

	eng, err := warrant.NewEngine(opts...)
	if err != nil {
		t.Fatal(err)
	}
	if !eng.Catalog().Has("reports.view") {
		t.Fatal("expected catalog loaded from file")
	}
	if eng.Catalog().Has("deals.view") {
		t.Fatal("expected built-in catalog replaced")
	}
	cfg := eng.Config()
	if cfg.SweepInterval != 5*time.Second || !cfg.DisableAudit {
		t.Fatalf("unexpected engine config: %+v", cfg)
	}
	if cfg.SystemActor == "" {
		t.Fatal("expected system actor default kept")
	}
}

func TestEngineOptionsMissingCatalog(t *testing.T) {
	e := New(WithConfig(Config{CatalogPath: filepath.Join(t.TempDir(), "missing.yaml")}))
	if _, err := e.engineOptions(slog.Default()); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}
