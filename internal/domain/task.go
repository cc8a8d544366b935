package domain

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ошибки домена
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrEmptySourcePath   = errors.New("source path cannot be empty")
	ErrRelativeSource    = errors.New("source path must be absolute")
	ErrTaskDiscarded     = errors.New("task was discarded")
	ErrEmptyTaskID       = errors.New("task id cannot be empty")
	ErrDuplicateTask     = errors.New("task already exists")
)

// Task задача на конвертацию одного документа.
// Идентичность и параметры неизменны; статус, прогресс и результат
// меняются только через методы ниже.
type Task struct {
	ID          uuid.UUID
	SourcePath  string
	Type        ConversionType
	Options     Options
	OCRLanguage OCRLanguage
	CreatedAt   time.Time

	mu         sync.RWMutex
	status     ConversionStatus
	completed  int
	total      int
	outputPath string
	outputURI  string
	errorCode  *ErrorCode
	exportErr  string
	updatedAt  time.Time

	// epoch меняется при каждом запуске, сбросе и удалении задачи;
	// записи с устаревшим epoch игнорируются
	epoch     uint64
	discarded bool
}

// TaskSnapshot согласованная копия состояния задачи для чтения
type TaskSnapshot struct {
	ID          uuid.UUID        `json:"id"`
	SourcePath  string           `json:"source_path"`
	Type        ConversionType   `json:"type"`
	Options     Options          `json:"options"`
	OCRLanguage OCRLanguage      `json:"ocr_language"`
	Status      ConversionStatus `json:"status"`
	Completed   int              `json:"completed"`
	Total       int              `json:"total"`
	OutputPath  string           `json:"output_path,omitempty"`
	OutputURI   string           `json:"output_uri,omitempty"`
	ErrorCode   *ErrorCode       `json:"error_code,omitempty"`
	ExportError string           `json:"export_error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewTask создаёт новую задачу в статусе READY
func NewTask(sourcePath string, t ConversionType, opts Options, lang OCRLanguage) (*Task, error) {
	return NewTaskWithID(uuid.New(), sourcePath, t, opts, lang)
}

// NewTaskWithID создаёт задачу с заданным идентификатором (задачи из удалённой очереди)
func NewTaskWithID(id uuid.UUID, sourcePath string, t ConversionType, opts Options, lang OCRLanguage) (*Task, error) {
	if id == uuid.Nil {
		return nil, ErrEmptyTaskID
	}
	if sourcePath == "" {
		return nil, ErrEmptySourcePath
	}
	if !filepath.IsAbs(sourcePath) {
		return nil, ErrRelativeSource
	}
	if !t.IsValid() {
		return nil, ErrUnknownConversionType
	}
	if err := ValidateOptions(t, opts); err != nil {
		return nil, err
	}
	if lang == "" {
		lang = OCRLanguageAuto
	}
	if !lang.IsValid() {
		return nil, ErrInvalidOption
	}

	now := time.Now()

	return &Task{
		ID:          id,
		SourcePath:  filepath.Clean(sourcePath),
		Type:        t,
		Options:     opts,
		OCRLanguage: lang,
		CreatedAt:   now,
		status:      StatusReady,
		updatedAt:   now,
	}, nil
}

// MarkConverting переводит задачу в CONVERTING и возвращает epoch запуска
func (t *Task) MarkConverting() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.discarded {
		return 0, ErrTaskDiscarded
	}
	if t.status != StatusReady {
		return 0, ErrInvalidTaskStatus
	}

	t.epoch++
	t.status = StatusConverting
	t.completed = 0
	t.total = 0
	t.outputPath = ""
	t.outputURI = ""
	t.errorCode = nil
	t.exportErr = ""
	t.updatedAt = time.Now()
	return t.epoch, nil
}

// SetProgress обновляет прогресс текущего запуска (последняя запись побеждает)
func (t *Task) SetProgress(epoch uint64, completed, total int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(epoch) || t.status != StatusConverting {
		return false
	}
	t.completed = completed
	t.total = total
	t.updatedAt = time.Now()
	return true
}

// Complete фиксирует код движка: SUCCESS или FAILED с сохранением кода
func (t *Task) Complete(epoch uint64, code ErrorCode, outputPath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(epoch) || t.status != StatusConverting {
		return false
	}
	if code.IsSuccess() {
		t.status = StatusSuccess
		t.outputPath = outputPath
	} else {
		t.status = StatusFailed
		t.errorCode = &code
	}
	t.updatedAt = time.Now()
	return true
}

// MarkExported записывает ссылку на опубликованный результат
func (t *Task) MarkExported(epoch uint64, outputPath, uri string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(epoch) || t.status != StatusSuccess {
		return false
	}
	t.outputPath = outputPath
	t.outputURI = uri
	t.updatedAt = time.Now()
	return true
}

// MarkExportFailed фиксирует, что конвертация прошла, а экспорт нет
func (t *Task) MarkExportFailed(epoch uint64, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(epoch) || t.status != StatusSuccess {
		return false
	}
	t.status = StatusExportFailed
	t.exportErr = errMsg
	t.updatedAt = time.Now()
	return true
}

// Rearm возвращает завершённую задачу в READY для повторного запуска
func (t *Task) Rearm() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.discarded {
		return ErrTaskDiscarded
	}
	switch {
	case t.status == StatusReady:
		return nil
	case !t.status.IsFinal():
		return ErrInvalidTaskStatus
	}

	t.epoch++
	t.status = StatusReady
	t.completed = 0
	t.total = 0
	t.outputPath = ""
	t.outputURI = ""
	t.errorCode = nil
	t.exportErr = ""
	t.updatedAt = time.Now()
	return nil
}

// Discard отвязывает задачу от очереди: поздние записи движка отбрасываются
func (t *Task) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.discarded = true
	t.epoch++
}

// IsCurrent проверяет, что запуск с данным epoch всё ещё актуален
func (t *Task) IsCurrent(epoch uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLocked(epoch)
}

func (t *Task) currentLocked(epoch uint64) bool {
	return !t.discarded && t.epoch == epoch
}

// Status возвращает текущий статус
func (t *Task) Status() ConversionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Progress возвращает пару (выполнено, всего)
func (t *Task) Progress() (completed, total int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed, t.total
}

// Snapshot возвращает копию состояния задачи
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := TaskSnapshot{
		ID:          t.ID,
		SourcePath:  t.SourcePath,
		Type:        t.Type,
		Options:     t.Options,
		OCRLanguage: t.OCRLanguage,
		Status:      t.status,
		Completed:   t.completed,
		Total:       t.total,
		OutputPath:  t.outputPath,
		OutputURI:   t.outputURI,
		ExportError: t.exportErr,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.updatedAt,
	}
	if t.errorCode != nil {
		code := *t.errorCode
		s.ErrorCode = &code
	}
	return s
}

// CanRetry проверяет, можно ли повторить задачу
func (t *Task) CanRetry() bool {
	return t.Status().IsFinal()
}
