package usecase

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/domain"
)

func TestOrchestrator_RunSingle_TxtSuccess(t *testing.T) {
	engine := &stubEngine{
		convert: func(ctx context.Context, _ domain.ConversionType, out string, sink ProgressSink) domain.ErrorCode {
			sink.OnProgress(1, 10)
			sink.OnProgress(5, 10)
			sink.OnProgress(10, 10)
			if err := os.WriteFile(out, []byte("text"), 0o644); err != nil {
				return domain.ErrorCodeWriteError
			}
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)

	ran, err := env.orchestrator.RunSingle(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}
	if !ran {
		t.Fatal("Expected task to run")
	}

	s := env.snapshot(t, task.ID)
	if s.Status != domain.StatusSuccess {
		t.Errorf("Expected status SUCCESS, got %s", s.Status)
	}
	if s.Completed != 10 || s.Total != 10 {
		t.Errorf("Expected progress 10/10, got %d/%d", s.Completed, s.Total)
	}
	if want := filepath.Join(env.root, "report.txt"); s.OutputPath != want {
		t.Errorf("Expected output %s, got %s", want, s.OutputPath)
	}
	if s.ErrorCode != nil {
		t.Errorf("Expected no error code, got %v", *s.ErrorCode)
	}
	if calls := engine.Calls(); len(calls) != 1 || calls[0] != domain.ConversionTypeTXT {
		t.Errorf("Expected exactly one TXT engine call, got %v", calls)
	}

	state := env.orchestrator.State()
	if state.RunningTaskID != nil || state.BatchRunning {
		t.Errorf("Expected idle queue, got %+v", state)
	}
}

func TestOrchestrator_RunSingle_EngineFailure(t *testing.T) {
	engine := &stubEngine{
		convert: func(context.Context, domain.ConversionType, string, ProgressSink) domain.ErrorCode {
			return domain.ErrorCode(7)
		},
	}
	exporter := &mockExporter{}
	env := newTestEnv(t, engine, exporter, nil)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)

	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	s := env.snapshot(t, task.ID)
	if s.Status != domain.StatusFailed {
		t.Errorf("Expected status FAILED, got %s", s.Status)
	}
	if s.ErrorCode == nil || *s.ErrorCode != 7 {
		t.Errorf("Expected error code 7, got %v", s.ErrorCode)
	}
	if s.OutputPath != "" {
		t.Errorf("Expected no output path, got %s", s.OutputPath)
	}
	if len(exporter.Paths()) != 0 {
		t.Error("Expected failed task not to be exported")
	}
}

func TestOrchestrator_RunSingle_RetriesFinishedTask(t *testing.T) {
	var attempt int
	engine := &stubEngine{
		convert: func(context.Context, domain.ConversionType, string, ProgressSink) domain.ErrorCode {
			attempt++
			if attempt == 1 {
				return domain.ErrorCode(7)
			}
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeWord)

	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}
	if got := task.Status(); got != domain.StatusFailed {
		t.Fatalf("Expected status FAILED, got %s", got)
	}

	ran, err := env.orchestrator.RunSingle(context.Background(), task.ID)
	if err != nil || !ran {
		t.Fatalf("Expected retry to run, got ran=%v err=%v", ran, err)
	}

	s := env.snapshot(t, task.ID)
	if s.Status != domain.StatusSuccess {
		t.Errorf("Expected status SUCCESS, got %s", s.Status)
	}
	if s.ErrorCode != nil {
		t.Errorf("Expected error code to be reset, got %v", *s.ErrorCode)
	}
	if want := filepath.Join(env.root, "report.docx"); s.OutputPath != want {
		t.Errorf("Expected output %s, got %s", want, s.OutputPath)
	}
}

func TestOrchestrator_RunSingle_ImageArchivedAndExported(t *testing.T) {
	engine := &stubEngine{
		convert: func(_ context.Context, _ domain.ConversionType, out string, _ ProgressSink) domain.ErrorCode {
			info, err := os.Stat(out)
			if err != nil || !info.IsDir() {
				return domain.ErrorCodeWriteError
			}
			for _, name := range []string{"page_001.jpg", "page_002.jpg"} {
				if err := os.WriteFile(filepath.Join(out, name), []byte(name), 0o644); err != nil {
					return domain.ErrorCodeWriteError
				}
			}
			return domain.ErrorCodeSuccess
		},
	}
	exporter := &mockExporter{}
	env := newTestEnv(t, engine, exporter, nil)
	task := env.addTask(t, "scan.pdf", domain.ConversionTypeImage)

	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	archive := filepath.Join(env.root, "scan.zip")
	s := env.snapshot(t, task.ID)
	if s.Status != domain.StatusSuccess {
		t.Fatalf("Expected status SUCCESS, got %s", s.Status)
	}
	if s.OutputPath != archive {
		t.Errorf("Expected output %s, got %s", archive, s.OutputPath)
	}
	if s.OutputURI != "file://"+archive {
		t.Errorf("Expected uri file://%s, got %s", archive, s.OutputURI)
	}
	if paths := exporter.Paths(); len(paths) != 1 || paths[0] != archive {
		t.Errorf("Expected archive to be exported once, got %v", paths)
	}
	if _, err := os.Stat(filepath.Join(env.root, "scan")); !os.IsNotExist(err) {
		t.Error("Expected image directory to be removed after archiving")
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer r.Close()
	if len(r.File) != 2 {
		t.Errorf("Expected 2 archive entries, got %d", len(r.File))
	}
}

func TestOrchestrator_RunSingle_MarkdownBundled(t *testing.T) {
	engine := &stubEngine{
		convert: func(_ context.Context, _ domain.ConversionType, out string, _ ProgressSink) domain.ErrorCode {
			if err := os.WriteFile(out, []byte("# title"), 0o644); err != nil {
				return domain.ErrorCodeWriteError
			}
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	task := env.addTask(t, "notes.pdf", domain.ConversionTypeMarkdown)

	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	s := env.snapshot(t, task.ID)
	if want := filepath.Join(env.root, "notes.zip"); s.OutputPath != want {
		t.Fatalf("Expected output %s, got %s (status %s, %s)", want, s.OutputPath, s.Status, s.ExportError)
	}

	r, err := zip.OpenReader(s.OutputPath)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer r.Close()
	if len(r.File) != 1 || r.File[0].Name != "notes.md" {
		t.Errorf("Expected archive with notes.md, got %d entries", len(r.File))
	}
}

func TestOrchestrator_RunSingle_ExportFailure(t *testing.T) {
	engine := &stubEngine{}
	exporter := &mockExporter{
		exportFunc: func(context.Context, string) (string, error) {
			return "", errors.New("storage is full")
		},
	}
	env := newTestEnv(t, engine, exporter, nil)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)

	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	s := env.snapshot(t, task.ID)
	if s.Status != domain.StatusExportFailed {
		t.Errorf("Expected status EXPORT_FAILED, got %s", s.Status)
	}
	if s.ErrorCode != nil {
		t.Errorf("Expected no engine error code, got %v", *s.ErrorCode)
	}
	if s.ExportError == "" {
		t.Error("Expected export error message")
	}
	if s.OutputURI != "" {
		t.Errorf("Expected no uri, got %s", s.OutputURI)
	}
}

func TestOrchestrator_RunSingle_ModelInstalledOnce(t *testing.T) {
	engine := &stubEngine{}
	installer := &mockInstaller{}
	env := newTestEnv(t, engine, nil, installer)
	first := env.addTask(t, "a.pdf", domain.ConversionTypeTXT)
	second := env.addTask(t, "b.pdf", domain.ConversionTypeTXT)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		if _, err := env.orchestrator.RunSingle(context.Background(), id); err != nil {
			t.Fatalf("RunSingle failed: %v", err)
		}
	}

	if got := installer.calls.Load(); got != 1 {
		t.Errorf("Expected model to be installed once, got %d installs", got)
	}
}

func TestOrchestrator_RunSingle_ModelUnavailable(t *testing.T) {
	engine := &stubEngine{}
	installer := &mockInstaller{
		installFunc: func(context.Context) error { return errors.New("no network") },
	}
	env := newTestEnv(t, engine, nil, installer)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)

	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	s := env.snapshot(t, task.ID)
	if s.Status != domain.StatusFailed {
		t.Errorf("Expected status FAILED, got %s", s.Status)
	}
	if s.ErrorCode == nil || *s.ErrorCode != domain.ErrorCodeModelUnavailable {
		t.Errorf("Expected MODEL_UNAVAILABLE, got %v", s.ErrorCode)
	}
	if len(engine.Calls()) != 0 {
		t.Error("Expected engine not to be called")
	}
}

func TestOrchestrator_RunSingle_SourceRemovedBeforeDispatch(t *testing.T) {
	engine := &stubEngine{}
	env := newTestEnv(t, engine, nil, nil)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)

	if err := os.Remove(task.SourcePath); err != nil {
		t.Fatalf("Failed to remove source: %v", err)
	}
	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	s := env.snapshot(t, task.ID)
	if s.ErrorCode == nil || *s.ErrorCode != domain.ErrorCodeFileError {
		t.Errorf("Expected FILE_ERROR, got %v", s.ErrorCode)
	}
	if len(engine.Calls()) != 0 {
		t.Error("Expected engine not to be called")
	}
}

func TestOrchestrator_RunSingle_IgnoredWhileAnotherConverting(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	engine := &stubEngine{
		convert: func(context.Context, domain.ConversionType, string, ProgressSink) domain.ErrorCode {
			once.Do(func() { close(started) })
			<-release
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	first := env.addTask(t, "a.pdf", domain.ConversionTypeTXT)
	second := env.addTask(t, "b.pdf", domain.ConversionTypeTXT)

	ran, err := env.orchestrator.StartSingle(first.ID)
	if err != nil || !ran {
		t.Fatalf("Expected first task to start, got ran=%v err=%v", ran, err)
	}
	<-started

	ran, err = env.orchestrator.RunSingle(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}
	if ran {
		t.Error("Expected second run request to be ignored")
	}
	if got := second.Status(); got != domain.StatusReady {
		t.Errorf("Expected second task READY, got %s", got)
	}
	if got := first.Status(); got != domain.StatusConverting {
		t.Errorf("Expected first task CONVERTING, got %s", got)
	}

	state := env.orchestrator.State()
	if state.RunningTaskID == nil || *state.RunningTaskID != first.ID {
		t.Errorf("Expected running task %s, got %+v", first.ID, state)
	}

	close(release)
	waitFor(t, "first task to finish", func() bool {
		return first.Status() == domain.StatusSuccess && env.orchestrator.State().RunningTaskID == nil
	})

	if calls := engine.Calls(); len(calls) != 1 {
		t.Errorf("Expected one engine call, got %d", len(calls))
	}
}

func TestOrchestrator_StartBatch_DuringSingleRunWaitsForEngine(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	engine := &stubEngine{
		convert: func(context.Context, domain.ConversionType, string, ProgressSink) domain.ErrorCode {
			once.Do(func() { close(started) })
			<-release
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	first := env.addTask(t, "a.pdf", domain.ConversionTypeTXT)
	second := env.addTask(t, "b.pdf", domain.ConversionTypeTXT)

	ran, err := env.orchestrator.StartSingle(first.ID)
	if err != nil || !ran {
		t.Fatalf("Expected first task to start, got ran=%v err=%v", ran, err)
	}
	<-started

	if !env.orchestrator.StartBatch() {
		t.Fatal("Expected batch to start while a single run is in progress")
	}
	// даём пакету дойти до блокировки движка
	time.Sleep(50 * time.Millisecond)

	if got := second.Status(); got != domain.StatusReady {
		t.Errorf("Expected second task READY while engine is busy, got %s", got)
	}
	state := env.orchestrator.State()
	if state.ActiveTaskID == nil || *state.ActiveTaskID != first.ID {
		t.Errorf("Expected active task %s, got %v", first.ID, state.ActiveTaskID)
	}
	if state.RunningTaskID == nil || *state.RunningTaskID != first.ID {
		t.Errorf("Expected running task %s, got %v", first.ID, state.RunningTaskID)
	}
	if !state.BatchRunning {
		t.Error("Expected batch running flag to be set")
	}

	close(release)
	waitFor(t, "both tasks to finish", func() bool {
		st := env.orchestrator.State()
		return first.Status() == domain.StatusSuccess &&
			second.Status() == domain.StatusSuccess &&
			!st.BatchRunning && st.RunningTaskID == nil
	})

	if state := env.orchestrator.State(); state.ActiveTaskID != nil {
		t.Errorf("Expected no active task, got %s", state.ActiveTaskID)
	}
	if calls := engine.Calls(); len(calls) != 2 {
		t.Errorf("Expected two engine calls, got %d", len(calls))
	}
}

func TestOrchestrator_RunBatch_ConcurrentCallIsNoop(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	engine := &stubEngine{
		convert: func(context.Context, domain.ConversionType, string, ProgressSink) domain.ErrorCode {
			once.Do(func() { close(started) })
			<-release
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	tasks := []*domain.Task{
		env.addTask(t, "a.pdf", domain.ConversionTypeTXT),
		env.addTask(t, "b.pdf", domain.ConversionTypeRTF),
		env.addTask(t, "c.pdf", domain.ConversionTypePPT),
	}

	done := make(chan bool)
	go func() {
		done <- env.orchestrator.RunBatch(context.Background())
	}()
	<-started

	if env.orchestrator.RunBatch(context.Background()) {
		t.Error("Expected concurrent RunBatch to be a no-op")
	}
	if env.orchestrator.StartBatch() {
		t.Error("Expected concurrent StartBatch to be a no-op")
	}
	if !env.orchestrator.State().BatchRunning {
		t.Error("Expected batch running flag to be set")
	}

	close(release)
	if !<-done {
		t.Fatal("Expected first RunBatch to run")
	}

	calls := engine.Calls()
	want := []domain.ConversionType{domain.ConversionTypeTXT, domain.ConversionTypeRTF, domain.ConversionTypePPT}
	if len(calls) != len(want) {
		t.Fatalf("Expected %d engine calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Expected call %d to be %s, got %s", i, want[i], calls[i])
		}
	}
	for _, task := range tasks {
		if got := task.Status(); got != domain.StatusSuccess {
			t.Errorf("Expected task %s SUCCESS, got %s", task.ID, got)
		}
	}
	if env.orchestrator.State().BatchRunning {
		t.Error("Expected batch flag to be cleared")
	}
}

func TestOrchestrator_RunBatch_SkipsNonReadyTasks(t *testing.T) {
	fail := true
	engine := &stubEngine{
		convert: func(context.Context, domain.ConversionType, string, ProgressSink) domain.ErrorCode {
			if fail {
				return domain.ErrorCode(7)
			}
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)
	failed := env.addTask(t, "a.pdf", domain.ConversionTypeTXT)
	if _, err := env.orchestrator.RunSingle(context.Background(), failed.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	fail = false
	ready := env.addTask(t, "b.pdf", domain.ConversionTypeTXT)

	if !env.orchestrator.RunBatch(context.Background()) {
		t.Fatal("Expected batch to run")
	}

	if got := failed.Status(); got != domain.StatusFailed {
		t.Errorf("Expected failed task to be skipped, got %s", got)
	}
	if got := ready.Status(); got != domain.StatusSuccess {
		t.Errorf("Expected ready task SUCCESS, got %s", got)
	}
	if calls := engine.Calls(); len(calls) != 2 {
		t.Errorf("Expected 2 engine calls in total, got %d", len(calls))
	}
}

func TestOrchestrator_ClearAll_IgnoresLateWrites(t *testing.T) {
	started := make(chan struct{})
	returned := make(chan struct{})

	engine := &stubEngine{
		convert: func(ctx context.Context, _ domain.ConversionType, _ string, sink ProgressSink) domain.ErrorCode {
			defer close(returned)
			close(started)
			<-ctx.Done()
			// движок дописывает прогресс уже после очистки
			sink.OnProgress(5, 10)
			return domain.ErrorCodeSuccess
		},
	}
	exporter := &mockExporter{}
	env := newTestEnv(t, engine, exporter, nil)
	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)

	var mu sync.Mutex
	var progressEvents int
	env.orchestrator.Subscribe(func(event TaskEvent) {
		if event.Type == EventTaskProgress {
			mu.Lock()
			progressEvents++
			mu.Unlock()
		}
	})

	if ran, err := env.orchestrator.StartSingle(task.ID); err != nil || !ran {
		t.Fatalf("Expected task to start, got ran=%v err=%v", ran, err)
	}
	<-started

	env.orchestrator.ClearAll()
	<-returned

	waitFor(t, "running slot to be released", func() bool {
		return env.orchestrator.State().RunningTaskID == nil
	})

	if got := len(env.orchestrator.List()); got != 0 {
		t.Errorf("Expected empty queue, got %d tasks", got)
	}
	if got := engine.canceled.Load(); got != 1 {
		t.Errorf("Expected engine cancel once, got %d", got)
	}
	if completed, total := task.Progress(); completed != 0 || total != 0 {
		t.Errorf("Expected late progress to be dropped, got %d/%d", completed, total)
	}
	if got := task.Status(); got != domain.StatusConverting {
		t.Errorf("Expected discarded task to keep its last status, got %s", got)
	}
	mu.Lock()
	if progressEvents != 0 {
		t.Errorf("Expected no progress events after clear, got %d", progressEvents)
	}
	mu.Unlock()
	if len(exporter.Paths()) != 0 {
		t.Error("Expected cleared task not to be exported")
	}
	if _, err := env.orchestrator.Get(task.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestOrchestrator_Add_Validation(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, nil, nil)

	opts, _ := domain.DefaultOptions(domain.ConversionTypeTXT)
	missing, err := domain.NewTask(filepath.Join(env.srcDir, "missing.pdf"), domain.ConversionTypeTXT, opts, domain.OCRLanguageAuto)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if err := env.orchestrator.Add(missing); !errors.Is(err, domain.ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound, got %v", err)
	}

	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)
	if err := env.orchestrator.Add(task); !errors.Is(err, domain.ErrDuplicateTask) {
		t.Errorf("Expected ErrDuplicateTask, got %v", err)
	}
	if got := len(env.orchestrator.List()); got != 1 {
		t.Errorf("Expected 1 task, got %d", got)
	}
}

func TestOrchestrator_Remove(t *testing.T) {
	env := newTestEnv(t, &stubEngine{}, nil, nil)
	first := env.addTask(t, "a.pdf", domain.ConversionTypeTXT)
	second := env.addTask(t, "b.pdf", domain.ConversionTypeTXT)

	if err := env.orchestrator.Remove(first.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := env.orchestrator.Remove(first.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}

	list := env.orchestrator.List()
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("Expected only second task left, got %v", list)
	}

	if _, err := first.MarkConverting(); !errors.Is(err, domain.ErrTaskDiscarded) {
		t.Errorf("Expected removed task to be discarded, got %v", err)
	}
}

func TestOrchestrator_EventsOrder(t *testing.T) {
	engine := &stubEngine{
		convert: func(_ context.Context, _ domain.ConversionType, _ string, sink ProgressSink) domain.ErrorCode {
			sink.OnProgress(1, 2)
			sink.OnProgress(2, 2)
			return domain.ErrorCodeSuccess
		},
	}
	env := newTestEnv(t, engine, nil, nil)

	var got []EventType
	var statuses []domain.ConversionStatus
	env.orchestrator.Subscribe(func(event TaskEvent) {
		got = append(got, event.Type)
		if event.Type == EventTaskStatus {
			statuses = append(statuses, event.Task.Status)
		}
	})

	task := env.addTask(t, "report.pdf", domain.ConversionTypeTXT)
	if _, err := env.orchestrator.RunSingle(context.Background(), task.ID); err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}

	want := []EventType{
		EventTaskAdded,
		EventTaskStatus,
		EventTaskProgress,
		EventTaskProgress,
		EventTaskStatus,
		EventTaskStatus,
	}
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected event %d to be %s, got %s", i, want[i], got[i])
		}
	}
	if len(statuses) != 3 || statuses[0] != domain.StatusConverting || statuses[1] != domain.StatusSuccess {
		t.Errorf("Unexpected status sequence: %v", statuses)
	}
}
