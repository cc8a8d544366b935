package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap"
)

// Orchestrator владеет упорядоченной очередью задач и запускает их
// по одной или всей очередью. Одновременно выполняется не более одной
// конвертации; повторные запросы на запуск молча игнорируются.
type Orchestrator struct {
	conversion *ConversionUseCase
	events     *EventBus
	logger     *zap.Logger

	mu           sync.RWMutex
	tasks        []*domain.Task
	index        map[uuid.UUID]*domain.Task
	runningID    uuid.UUID
	batchRunning bool

	// generation растёт при каждой очистке очереди;
	// clearCtx отменяется при очистке и отменяет текущий запуск
	generation  uint64
	clearCtx    context.Context
	clearCancel context.CancelFunc

	// rootCtx родитель фоновых запусков, отменяется в Shutdown
	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewOrchestrator создаёт новый экземпляр Orchestrator
func NewOrchestrator(conversion *ConversionUseCase, events *EventBus, logger *zap.Logger) *Orchestrator {
	clearCtx, clearCancel := context.WithCancel(context.Background())
	rootCtx, rootCancel := context.WithCancel(context.Background())

	return &Orchestrator{
		conversion:  conversion,
		events:      events,
		logger:      logger,
		index:       make(map[uuid.UUID]*domain.Task),
		clearCtx:    clearCtx,
		clearCancel: clearCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
	}
}

// Add добавляет задачу в конец очереди
func (o *Orchestrator) Add(task *domain.Task) error {
	if err := domain.ValidateSource(task.SourcePath); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	o.mu.Lock()
	if _, ok := o.index[task.ID]; ok {
		o.mu.Unlock()
		return domain.ErrDuplicateTask
	}
	o.tasks = append(o.tasks, task)
	o.index[task.ID] = task
	o.mu.Unlock()

	o.events.PublishTask(EventTaskAdded, task)

	o.logger.Info("Task added",
		zap.String("task_id", task.ID.String()),
		zap.String("type", task.Type.String()),
		zap.String("source", task.SourcePath),
	)

	return nil
}

// Get возвращает состояние задачи
func (o *Orchestrator) Get(id uuid.UUID) (domain.TaskSnapshot, error) {
	o.mu.RLock()
	task, ok := o.index[id]
	o.mu.RUnlock()

	if !ok {
		return domain.TaskSnapshot{}, domain.ErrTaskNotFound
	}
	return task.Snapshot(), nil
}

// List возвращает состояния задач в порядке добавления
func (o *Orchestrator) List() []domain.TaskSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]domain.TaskSnapshot, 0, len(o.tasks))
	for _, task := range o.tasks {
		result = append(result, task.Snapshot())
	}
	return result
}

// Remove удаляет задачу из очереди. Выполняющуюся задачу удалить нельзя.
func (o *Orchestrator) Remove(id uuid.UUID) error {
	o.mu.Lock()
	task, ok := o.index[id]
	if !ok {
		o.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if task.Status() == domain.StatusConverting {
		o.mu.Unlock()
		return domain.ErrInvalidTaskStatus
	}

	task.Discard()
	delete(o.index, id)
	o.tasks = slices.DeleteFunc(o.tasks, func(t *domain.Task) bool { return t.ID == id })
	o.mu.Unlock()

	o.events.PublishTask(EventTaskRemoved, task)
	o.logger.Info("Task removed", zap.String("task_id", id.String()))

	return nil
}

// Rearm возвращает завершённую задачу в READY
func (o *Orchestrator) Rearm(id uuid.UUID) error {
	o.mu.RLock()
	task, ok := o.index[id]
	o.mu.RUnlock()

	if !ok {
		return domain.ErrTaskNotFound
	}
	if err := task.Rearm(); err != nil {
		return fmt.Errorf("failed to rearm task: %w", err)
	}
	o.events.PublishTask(EventTaskStatus, task)

	return nil
}

// RunSingle запускает одну задачу и ждёт её завершения.
// Возвращает false без ошибки, если уже выполняется задача или очередь;
// завершённая задача перед запуском возвращается в READY.
func (o *Orchestrator) RunSingle(ctx context.Context, id uuid.UUID) (bool, error) {
	task, runCtx, release, err := o.acquireSingle(ctx, id)
	if err != nil || task == nil {
		return false, err
	}
	defer release()

	o.dispatch(runCtx, task)
	return true, nil
}

// StartSingle как RunSingle, но конвертация выполняется в фоне
func (o *Orchestrator) StartSingle(id uuid.UUID) (bool, error) {
	task, runCtx, release, err := o.acquireSingle(o.rootCtx, id)
	if err != nil || task == nil {
		return false, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		o.dispatch(runCtx, task)
	}()

	return true, nil
}

// RunBatch последовательно запускает все задачи в статусе READY
// в порядке добавления и ждёт завершения. Возвращает false, если
// очередь уже выполняется.
func (o *Orchestrator) RunBatch(ctx context.Context) bool {
	tasks, gen, runCtx, release, ok := o.acquireBatch(ctx)
	if !ok {
		return false
	}
	defer release()

	o.runBatch(runCtx, tasks, gen)
	return true
}

// StartBatch как RunBatch, но очередь выполняется в фоне
func (o *Orchestrator) StartBatch() bool {
	tasks, gen, runCtx, release, ok := o.acquireBatch(o.rootCtx)
	if !ok {
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		o.runBatch(runCtx, tasks, gen)
	}()

	return true
}

// ClearAll прерывает текущую конвертацию и очищает очередь.
// Уже записанные результаты не затрагиваются.
func (o *Orchestrator) ClearAll() {
	o.mu.Lock()
	o.generation++
	o.clearCancel()
	o.clearCtx, o.clearCancel = context.WithCancel(context.Background())

	removed := len(o.tasks)
	for _, task := range o.tasks {
		task.Discard()
	}
	o.tasks = nil
	o.index = make(map[uuid.UUID]*domain.Task)
	o.mu.Unlock()

	o.conversion.CancelAll()
	o.events.PublishCleared()

	o.logger.Info("Queue cleared", zap.Int("removed", removed))
}

// State возвращает агрегированное состояние очереди
func (o *Orchestrator) State() QueueState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state := QueueState{
		BatchRunning: o.batchRunning,
		Tasks:        len(o.tasks),
	}
	if o.runningID != uuid.Nil {
		id := o.runningID
		state.RunningTaskID = &id
	}
	// Активной считается задача, которая уже получила движок.
	// Задача пакета может ждать блокировку движка в статусе READY.
	for _, task := range o.tasks {
		if task.Status() == domain.StatusConverting {
			id := task.ID
			state.ActiveTaskID = &id
			break
		}
	}
	return state
}

// Subscribe подписывает обработчик на события очереди
func (o *Orchestrator) Subscribe(handler EventHandler) func() {
	return o.events.Subscribe(handler)
}

// Shutdown прерывает фоновые запуски и ждёт их завершения
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.rootCancel()
	o.conversion.CancelAll()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for running tasks: %w", ctx.Err())
	}
}

// acquireSingle проверяет ограничители и занимает слот одиночного запуска.
// Если запуск не нужен, task == nil.
func (o *Orchestrator) acquireSingle(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Task, context.Context, func(), error) {
	o.mu.Lock()

	task, ok := o.index[id]
	if !ok {
		o.mu.Unlock()
		return nil, nil, nil, domain.ErrTaskNotFound
	}

	if o.runningID != uuid.Nil || o.batchRunning {
		batch := o.batchRunning
		o.mu.Unlock()
		o.logger.Debug("Run request ignored, queue is busy",
			zap.String("task_id", id.String()),
			zap.Bool("batch_running", batch),
		)
		return nil, nil, nil, nil
	}

	rearmed := false
	if task.Status().IsFinal() {
		if err := task.Rearm(); err != nil {
			o.mu.Unlock()
			return nil, nil, nil, fmt.Errorf("failed to rearm task: %w", err)
		}
		rearmed = true
	}
	if task.Status() != domain.StatusReady {
		o.mu.Unlock()
		return nil, nil, nil, nil
	}

	o.runningID = id
	runCtx, cancel := o.runContextLocked(ctx)
	o.mu.Unlock()

	if rearmed {
		o.events.PublishTask(EventTaskStatus, task)
	}

	release := func() {
		cancel()
		o.mu.Lock()
		if o.runningID == id {
			o.runningID = uuid.Nil
		}
		o.mu.Unlock()
	}

	return task, runCtx, release, nil
}

// acquireBatch занимает флаг пакетного запуска и снимает копию очереди
func (o *Orchestrator) acquireBatch(
	ctx context.Context,
) ([]*domain.Task, uint64, context.Context, func(), bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.batchRunning {
		o.logger.Debug("Batch request ignored, batch is already running")
		return nil, 0, nil, nil, false
	}

	o.batchRunning = true
	tasks := slices.Clone(o.tasks)
	runCtx, cancel := o.runContextLocked(ctx)

	release := func() {
		cancel()
		o.mu.Lock()
		o.batchRunning = false
		o.mu.Unlock()
	}

	return tasks, o.generation, runCtx, release, true
}

func (o *Orchestrator) runBatch(ctx context.Context, tasks []*domain.Task, gen uint64) {
	o.logger.Info("Batch started", zap.Int("tasks", len(tasks)))

	dispatched := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if !o.eligible(task, gen) {
			continue
		}
		o.dispatch(ctx, task)
		dispatched++
	}

	o.logger.Info("Batch finished",
		zap.Int("dispatched", dispatched),
		zap.Bool("canceled", ctx.Err() != nil),
	)
}

// eligible проверяет, что задача всё ещё в очереди и готова к запуску
func (o *Orchestrator) eligible(task *domain.Task, gen uint64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.generation != gen {
		return false
	}
	if _, ok := o.index[task.ID]; !ok {
		return false
	}
	return task.Status() == domain.StatusReady
}

func (o *Orchestrator) dispatch(ctx context.Context, task *domain.Task) {
	if _, err := o.conversion.Dispatch(ctx, task); err != nil {
		// задачу успели запустить из другого контекста или удалить
		level := zap.DebugLevel
		if !errors.Is(err, domain.ErrInvalidTaskStatus) && !errors.Is(err, domain.ErrTaskDiscarded) {
			level = zap.WarnLevel
		}
		o.logger.Log(level, "Task not dispatched",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
	}
}

// runContextLocked связывает контекст запуска с очисткой очереди.
// Вызывается под o.mu.
func (o *Orchestrator) runContextLocked(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.clearCtx, cancel)

	return runCtx, func() {
		stop()
		cancel()
	}
}
