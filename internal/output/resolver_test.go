package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap/zaptest"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
}

func TestResolver_Resolve_FormatTable(t *testing.T) {
	root := t.TempDir()
	resolver := NewResolver(root, zaptest.NewLogger(t))

	tests := []struct {
		name         string
		convType     domain.ConversionType
		needsArchive bool
		isCSV        bool
		want         string
	}{
		{"word", domain.ConversionTypeWord, false, false, "report.docx"},
		{"excel", domain.ConversionTypeExcel, false, false, "report.xlsx"},
		{"excel csv", domain.ConversionTypeExcel, false, true, "report.csv"},
		{"excel csv archived", domain.ConversionTypeExcel, true, true, "report"},
		{"ppt", domain.ConversionTypePPT, false, false, "report.pptx"},
		{"html nested", domain.ConversionTypeHTML, false, false, filepath.Join("report", "report.html")},
		{"image dir", domain.ConversionTypeImage, true, false, "report"},
		{"markdown", domain.ConversionTypeMarkdown, true, false, "report.md"},
		{"rtf", domain.ConversionTypeRTF, false, false, "report.rtf"},
		{"txt", domain.ConversionTypeTXT, false, false, "report.txt"},
		{"json", domain.ConversionTypeJSON, false, false, "report.json"},
		{"json with images", domain.ConversionTypeJSON, true, false, "report.json"},
		{"searchable pdf", domain.ConversionTypeSearchablePDF, false, false, "report.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve("/data/in/report.pdf", tt.convType, tt.needsArchive, tt.isCSV)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			want := filepath.Join(root, tt.want)
			if got != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}
}

func TestResolver_Resolve_CollisionAddsSuffix(t *testing.T) {
	root := t.TempDir()
	resolver := NewResolver(root, zaptest.NewLogger(t))

	first, err := resolver.Resolve("/tmp/report.pdf", domain.ConversionTypeTXT, false, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	touch(t, first)

	second, err := resolver.Resolve("/tmp/report.pdf", domain.ConversionTypeTXT, false, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := filepath.Join(root, "report(1).txt"); second != want {
		t.Errorf("Expected %s, got %s", want, second)
	}

	touch(t, second)
	third, err := resolver.Resolve("/tmp/report.pdf", domain.ConversionTypeTXT, false, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := filepath.Join(root, "report(2).txt"); third != want {
		t.Errorf("Expected %s, got %s", want, third)
	}
}

func TestResolver_Resolve_ArchivedChecksZip(t *testing.T) {
	root := t.TempDir()
	resolver := NewResolver(root, zaptest.NewLogger(t))

	// Каталог без архива не считается коллизией
	if err := os.MkdirAll(filepath.Join(root, "report"), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	got, err := resolver.Resolve("/tmp/report.pdf", domain.ConversionTypeHTML, false, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := filepath.Join(root, "report", "report.html"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	touch(t, filepath.Join(root, "report.zip"))
	layout, err := resolver.ResolveLayout("/tmp/report.pdf", domain.ConversionTypeHTML, false, false)
	if err != nil {
		t.Fatalf("ResolveLayout failed: %v", err)
	}
	if want := filepath.Join(root, "report(1)", "report(1).html"); layout.OutputPath != want {
		t.Errorf("Expected %s, got %s", want, layout.OutputPath)
	}
	if want := filepath.Join(root, "report(1).zip"); layout.ArchivePath != want {
		t.Errorf("Expected archive %s, got %s", want, layout.ArchivePath)
	}
	if want := filepath.Join(root, "report(1)"); layout.BundleDir != want {
		t.Errorf("Expected bundle dir %s, got %s", want, layout.BundleDir)
	}
}

func TestResolver_Resolve_ImageCreatesDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	resolver := NewResolver(root, zaptest.NewLogger(t))

	got, err := resolver.Resolve("/tmp/scan.v2.pdf", domain.ConversionTypeImage, true, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := filepath.Join(root, "scan.v2"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("Expected output directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Expected output path to be a directory")
	}

	// Повторный вызов без архива возвращает тот же каталог
	again, err := resolver.Resolve("/tmp/scan.v2.pdf", domain.ConversionTypeImage, true, false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if again != got {
		t.Errorf("Expected %s, got %s", got, again)
	}
}

func TestResolver_Resolve_DoesNotCreateFiles(t *testing.T) {
	root := t.TempDir()
	resolver := NewResolver(root, zaptest.NewLogger(t))

	if _, err := resolver.Resolve("/tmp/report.pdf", domain.ConversionTypeWord, false, false); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty output root, got %d entries", len(entries))
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"/a/report.pdf":     "report",
		"/a/report":         "report",
		"/a/my.report.pdf":  "my.report",
		"/a/report(1).html": "report(1)",
	}
	for in, want := range tests {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q): expected %q, got %q", in, want, got)
		}
	}
}
