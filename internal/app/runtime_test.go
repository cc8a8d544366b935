package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/plastinin/docconverter/internal/config"
	"go.uber.org/zap/zaptest"
)

func TestNewRuntime_LocalOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Output: config.OutputConfig{
			RootDir:       filepath.Join(dir, "out"),
			DownloadsDir:  filepath.Join(dir, "downloads"),
			ExportBackend: config.ExportLocal,
		},
		Engine: config.EngineConfig{RenderDPI: 150, JPEGQuality: 90},
	}

	rt, err := NewRuntime(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Orchestrator == nil {
		t.Fatal("Expected orchestrator")
	}
	if rt.History != nil || rt.Statuses != nil {
		t.Error("Expected optional integrations to be disabled")
	}
	if len(rt.Checks) != 0 {
		t.Errorf("Expected no health checks, got %d", len(rt.Checks))
	}
	if state := rt.Orchestrator.State(); state.Tasks != 0 || state.BatchRunning {
		t.Errorf("Expected empty idle queue, got %+v", state)
	}
}
