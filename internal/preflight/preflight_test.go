package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"intake/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTrackingMissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tracking.APIKey = ""
	result := CheckTracking(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure without api key")
	}
}

func TestCheckTrackingResolvesProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{{"type": "Project", "id": 7, "name": "vendor-show"}},
		})
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithTrackingURL(server.URL))
	cfg.Tracking.ProjectID = 0
	cfg.Tracking.ProjectName = "vendor-show"
	result := CheckTracking(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestRunAllReportsDeliveryDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.DeliveryDir = filepath.Join(t.TempDir(), "missing")
	cfg.Tracking.URL = ""
	results := RunAll(context.Background(), cfg)
	if !Failed(results) {
		t.Fatal("expected delivery dir check to fail")
	}
	found := false
	for _, r := range results {
		if r.Name == "Delivery directory" && !r.Passed {
			found = true
		}
	}
	if !found {
		t.Fatalf("delivery dir failure not reported: %+v", results)
	}
}
