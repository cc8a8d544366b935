package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const asyncBufferSize = 256

// EventSink внешний получатель событий: журнал, кэш статусов, брокер
type EventSink func(ctx context.Context, event TaskEvent) error

// AsyncHandler доставляет события во внешний получатель из отдельной
// горутины, сохраняя порядок. При переполнении буфера событие
// отбрасывается с предупреждением.
type AsyncHandler struct {
	name    string
	accept  func(EventType) bool
	sink    EventSink
	timeout time.Duration
	logger  *zap.Logger

	events chan TaskEvent
	done   chan struct{}
	once   sync.Once
}

// NewAsyncHandler создаёт AsyncHandler и запускает доставку.
// accept отбирает нужные типы событий, nil означает все.
func NewAsyncHandler(
	name string,
	accept func(EventType) bool,
	sink EventSink,
	timeout time.Duration,
	logger *zap.Logger,
) *AsyncHandler {
	h := &AsyncHandler{
		name:    name,
		accept:  accept,
		sink:    sink,
		timeout: timeout,
		logger:  logger.With(zap.String("sink", name)),
		events:  make(chan TaskEvent, asyncBufferSize),
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

// NewHistoryRecorder записывает в журнал появление задач и смену статусов
func NewHistoryRecorder(repo HistoryRepository, timeout time.Duration, logger *zap.Logger) *AsyncHandler {
	return NewAsyncHandler("history", StatusEvents, func(ctx context.Context, event TaskEvent) error {
		return repo.Save(ctx, event.Task)
	}, timeout, logger)
}

// StatusEvents отбирает появление задач и смену статусов
func StatusEvents(t EventType) bool {
	return t == EventTaskAdded || t == EventTaskStatus
}

// Handle подписчик EventBus
func (h *AsyncHandler) Handle(event TaskEvent) {
	if h.accept != nil && !h.accept(event.Type) {
		return
	}

	select {
	case h.events <- event:
	default:
		h.logger.Warn("Event buffer is full, event dropped",
			zap.String("event", string(event.Type)),
			zap.String("task_id", event.Task.ID.String()),
		)
	}
}

// Close дожидается доставки накопленных событий.
// После Close вызывать Handle нельзя.
func (h *AsyncHandler) Close() {
	h.once.Do(func() {
		close(h.events)
	})
	<-h.done
}

func (h *AsyncHandler) run() {
	defer close(h.done)

	for event := range h.events {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		err := h.sink(ctx, event)
		cancel()

		if err != nil {
			h.logger.Error("Failed to deliver event",
				zap.String("event", string(event.Type)),
				zap.String("task_id", event.Task.ID.String()),
				zap.Error(err),
			)
		}
	}
}
