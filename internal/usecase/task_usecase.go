package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrQueueDisabled    = errors.New("remote queue is not configured")
	ErrHistoryDisabled  = errors.New("history journal is not configured")
	ErrQueueBusy        = errors.New("conversion queue is busy")
	ErrConversionFailed = errors.New("conversion failed")
	ErrExportFailed     = errors.New("output export failed")
)

// TaskUseCase бизнес-логика работы с задачами
type TaskUseCase struct {
	orchestrator *Orchestrator
	history      HistoryRepository
	statuses     StatusStore
	taskQueue    TaskQueue
	logger       *zap.Logger
}

// NewTaskUseCase создаёт новый экземпляр TaskUseCase.
// history, statuses и taskQueue необязательны.
func NewTaskUseCase(
	orchestrator *Orchestrator,
	history HistoryRepository,
	statuses StatusStore,
	taskQueue TaskQueue,
	logger *zap.Logger,
) *TaskUseCase {
	return &TaskUseCase{
		orchestrator: orchestrator,
		history:      history,
		statuses:     statuses,
		taskQueue:    taskQueue,
		logger:       logger,
	}
}

// BuildTask собирает задачу из входных данных: тип, параметры поверх
// значений по умолчанию и язык OCR
func BuildTask(id uuid.UUID, input CreateTaskInput) (*domain.Task, error) {
	convType, err := domain.ParseConversionType(input.Type)
	if err != nil {
		return nil, err
	}

	opts, err := domain.DecodeOptions(convType, input.Options)
	if err != nil {
		return nil, err
	}

	lang, err := domain.ParseOCRLanguage(input.OCRLanguage)
	if err != nil {
		return nil, err
	}

	return domain.NewTaskWithID(id, input.SourcePath, convType, opts, lang)
}

// Create создаёт задачу и добавляет её в очередь
func (uc *TaskUseCase) Create(ctx context.Context, input CreateTaskInput) (domain.TaskSnapshot, error) {
	task, err := BuildTask(uuid.New(), input)
	if err != nil {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := uc.orchestrator.Add(task); err != nil {
		return domain.TaskSnapshot{}, err
	}

	return task.Snapshot(), nil
}

// Submit отправляет задачу в удалённую очередь воркеру
func (uc *TaskUseCase) Submit(ctx context.Context, input CreateTaskInput) (uuid.UUID, error) {
	if uc.taskQueue == nil {
		return uuid.Nil, ErrQueueDisabled
	}

	jobID := uuid.New()

	// Файл проверяется на стороне воркера, здесь только параметры
	if _, err := BuildTask(jobID, input); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := uc.taskQueue.Enqueue(ctx, Submission{JobID: jobID, Input: input}); err != nil {
		uc.logger.Error("Failed to enqueue task",
			zap.String("task_id", jobID.String()),
			zap.Error(err),
		)
		return uuid.Nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	uc.logger.Info("Task submitted",
		zap.String("task_id", jobID.String()),
		zap.String("type", input.Type),
	)

	return jobID, nil
}

// GetByID ищет задачу в очереди, затем в кэше статусов, затем в журнале
func (uc *TaskUseCase) GetByID(ctx context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
	snapshot, err := uc.orchestrator.Get(id)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		return domain.TaskSnapshot{}, err
	}

	if uc.statuses != nil {
		cached, err := uc.statuses.Get(ctx, id)
		if err == nil {
			return *cached, nil
		}
		if !errors.Is(err, domain.ErrTaskNotFound) {
			uc.logger.Warn("Failed to read status cache",
				zap.String("task_id", id.String()),
				zap.Error(err),
			)
		}
	}

	if uc.history == nil {
		return domain.TaskSnapshot{}, domain.ErrTaskNotFound
	}

	record, err := uc.history.GetByID(ctx, id.String())
	if err != nil {
		return domain.TaskSnapshot{}, err
	}
	return *record, nil
}

// History возвращает записи журнала
func (uc *TaskUseCase) History(
	ctx context.Context,
	filter domain.HistoryFilter,
	pagination domain.Pagination,
) (*domain.HistoryListResult, error) {
	if uc.history == nil {
		return nil, ErrHistoryDisabled
	}
	return uc.history.List(ctx, filter, pagination)
}

// ProcessSubmission выполняет задачу из удалённой очереди.
// Повторная доставка той же задачи перезапускает её.
// Ошибка означает, что задачу стоит повторить.
func (uc *TaskUseCase) ProcessSubmission(ctx context.Context, sub Submission) (domain.TaskSnapshot, error) {
	log := uc.logger.With(zap.String("task_id", sub.JobID.String()))

	if _, err := uc.orchestrator.Get(sub.JobID); errors.Is(err, domain.ErrTaskNotFound) {
		task, err := BuildTask(sub.JobID, sub.Input)
		if err != nil {
			return domain.TaskSnapshot{}, fmt.Errorf("invalid submission: %w", err)
		}
		if err := uc.orchestrator.Add(task); err != nil {
			return domain.TaskSnapshot{}, fmt.Errorf("failed to add task: %w", err)
		}
	}

	ran, err := uc.orchestrator.RunSingle(ctx, sub.JobID)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}
	if !ran {
		return domain.TaskSnapshot{}, ErrQueueBusy
	}

	snapshot, err := uc.orchestrator.Get(sub.JobID)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}

	switch snapshot.Status {
	case domain.StatusSuccess:
		log.Info("Submission processed", zap.String("output", snapshot.OutputPath))
		return snapshot, nil
	case domain.StatusExportFailed:
		return snapshot, fmt.Errorf("%w: %s", ErrExportFailed, snapshot.ExportError)
	default:
		code := domain.ErrorCodeUnknown
		if snapshot.ErrorCode != nil {
			code = *snapshot.ErrorCode
		}
		return snapshot, fmt.Errorf("%w: %s", ErrConversionFailed, code)
	}
}

// Forget удаляет обработанную задачу из очереди воркера
func (uc *TaskUseCase) Forget(id uuid.UUID) {
	if err := uc.orchestrator.Remove(id); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		uc.logger.Warn("Failed to remove task",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
	}
}

// Orchestrator возвращает очередь задач
func (uc *TaskUseCase) Orchestrator() *Orchestrator {
	return uc.orchestrator
}
