package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/output"
	"go.uber.org/zap/zaptest"
)

// convertFunc поведение заглушки движка для одного вызова
type convertFunc func(ctx context.Context, t domain.ConversionType, outputPath string, sink ProgressSink) domain.ErrorCode

// stubEngine движок, который вызывает convert для любого формата
type stubEngine struct {
	convert convertFunc

	mu       sync.Mutex
	sink     ProgressSink
	lang     domain.OCRLanguage
	calls    []domain.ConversionType
	canceled atomic.Int32
}

func (e *stubEngine) SetProgressSink(sink ProgressSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

func (e *stubEngine) SetOCRLanguage(lang domain.OCRLanguage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lang = lang
}

func (e *stubEngine) CancelAll() {
	e.canceled.Add(1)
}

func (e *stubEngine) Calls() []domain.ConversionType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ConversionType(nil), e.calls...)
}

func (e *stubEngine) run(ctx context.Context, t domain.ConversionType, outputPath string) domain.ErrorCode {
	e.mu.Lock()
	e.calls = append(e.calls, t)
	sink := e.sink
	e.mu.Unlock()

	if e.convert == nil {
		return domain.ErrorCodeSuccess
	}
	return e.convert(ctx, t, outputPath, sink)
}

func (e *stubEngine) ConvertToWord(ctx context.Context, _, _, out string, _ domain.WordOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeWord, out)
}

func (e *stubEngine) ConvertToExcel(ctx context.Context, _, _, out string, _ domain.ExcelOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeExcel, out)
}

func (e *stubEngine) ConvertToPpt(ctx context.Context, _, _, out string, _ domain.PptOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypePPT, out)
}

func (e *stubEngine) ConvertToHtml(ctx context.Context, _, _, out string, _ domain.HtmlOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeHTML, out)
}

func (e *stubEngine) ConvertToImage(ctx context.Context, _, _, out string, _ domain.ImageOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeImage, out)
}

func (e *stubEngine) ConvertToMarkdown(ctx context.Context, _, _, out string, _ domain.MarkdownOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeMarkdown, out)
}

func (e *stubEngine) ConvertToRtf(ctx context.Context, _, _, out string, _ domain.RtfOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeRTF, out)
}

func (e *stubEngine) ConvertToTxt(ctx context.Context, _, _, out string, _ domain.TxtOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeTXT, out)
}

func (e *stubEngine) ConvertToJson(ctx context.Context, _, _, out string, _ domain.JsonOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeJSON, out)
}

func (e *stubEngine) ConvertToSearchablePdf(ctx context.Context, _, _, out string, _ domain.SearchablePdfOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeSearchablePDF, out)
}

// mockExporter экспортёр с подменяемым поведением
type mockExporter struct {
	exportFunc func(ctx context.Context, localPath string) (string, error)

	mu    sync.Mutex
	paths []string
}

func (m *mockExporter) Export(ctx context.Context, localPath string) (string, error) {
	m.mu.Lock()
	m.paths = append(m.paths, localPath)
	m.mu.Unlock()

	if m.exportFunc != nil {
		return m.exportFunc(ctx, localPath)
	}
	return "file://" + localPath, nil
}

func (m *mockExporter) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// mockInstaller установщик модели со счётчиком вызовов
type mockInstaller struct {
	installFunc func(ctx context.Context) error
	calls       atomic.Int32
}

func (m *mockInstaller) Install(ctx context.Context) error {
	m.calls.Add(1)
	if m.installFunc != nil {
		return m.installFunc(ctx)
	}
	return nil
}

type testEnv struct {
	orchestrator *Orchestrator
	engine       *stubEngine
	root         string
	srcDir       string
}

// newTestEnv собирает очередь поверх заглушек. exporter и installer могут быть nil.
func newTestEnv(t *testing.T, engine *stubEngine, exporter Exporter, installer ModelInstaller) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	root := filepath.Join(dir, "out")
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("Failed to create source dir: %v", err)
	}

	events := NewEventBus(logger)
	conversion := NewConversionUseCase(
		engine,
		NewEnvironment(installer, logger),
		output.NewResolver(root, logger),
		output.NewArchiver(logger),
		exporter,
		events,
		logger,
	)
	orchestrator := NewOrchestrator(conversion, events, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := orchestrator.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	})

	return &testEnv{
		orchestrator: orchestrator,
		engine:       engine,
		root:         root,
		srcDir:       srcDir,
	}
}

// writeSource создаёт исходный PDF-файл
func (e *testEnv) writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.srcDir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	return path
}

// addTask создаёт задачу с параметрами по умолчанию и добавляет её в очередь
func (e *testEnv) addTask(t *testing.T, name string, convType domain.ConversionType) *domain.Task {
	t.Helper()

	opts, err := domain.DefaultOptions(convType)
	if err != nil {
		t.Fatalf("Failed to get default options: %v", err)
	}
	task, err := domain.NewTask(e.writeSource(t, name), convType, opts, domain.OCRLanguageAuto)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if err := e.orchestrator.Add(task); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	return task
}

func (e *testEnv) snapshot(t *testing.T, id uuid.UUID) domain.TaskSnapshot {
	t.Helper()
	s, err := e.orchestrator.Get(id)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	return s
}

// waitFor ждёт выполнения условия не дольше пяти секунд
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
