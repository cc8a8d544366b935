package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

// uriPath возвращает путь из file:// URI
func uriPath(t *testing.T, uri string) string {
	t.Helper()
	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("Failed to parse uri %s: %v", uri, err)
	}
	if u.Scheme != "file" {
		t.Errorf("Expected file scheme, got %s", u.Scheme)
	}
	return u.Path
}

func TestLocalExporter_Export_CopiesWithoutOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "out", "report.txt")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	downloads := filepath.Join(tmpDir, "downloads")
	exporter := NewLocalExporter(downloads, zaptest.NewLogger(t))

	first, err := exporter.Export(context.Background(), src)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	second, err := exporter.Export(context.Background(), src)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if got, want := uriPath(t, first), filepath.ToSlash(filepath.Join(downloads, "report.txt")); got != want {
		t.Errorf("Expected first path %s, got %s", want, got)
	}
	if got, want := uriPath(t, second), filepath.ToSlash(filepath.Join(downloads, "report(1).txt")); got != want {
		t.Errorf("Expected second path %s, got %s", want, got)
	}

	data, err := os.ReadFile(filepath.Join(downloads, "report(1).txt"))
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Expected copied content, got %q", data)
	}
}

func TestLocalExporter_Export_DirectoryAsIs(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	downloads := filepath.Join(tmpDir, "downloads")
	exporter := NewLocalExporter(downloads, zaptest.NewLogger(t))

	uri, err := exporter.Export(context.Background(), dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if got, want := uriPath(t, uri), filepath.ToSlash(dir); got != want {
		t.Errorf("Expected path %s, got %s", want, got)
	}
	if _, err := os.Stat(downloads); !os.IsNotExist(err) {
		t.Error("Expected directory not to be copied")
	}
}

func TestLocalExporter_Export_Canceled(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "report.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	downloads := filepath.Join(tmpDir, "downloads")
	exporter := NewLocalExporter(downloads, zaptest.NewLogger(t))
	if _, err := exporter.Export(ctx, src); err == nil {
		t.Fatal("Expected error for canceled context, got nil")
	}

	entries, _ := os.ReadDir(downloads)
	if len(entries) != 0 {
		t.Errorf("Expected no partial export, got %d entries", len(entries))
	}
}
