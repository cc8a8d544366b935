package usecase

import (
	"sync"
	"time"

	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap"
)

// EventType тип события очереди
type EventType string

const (
	EventTaskAdded    EventType = "task.added"
	EventTaskStatus   EventType = "task.status"
	EventTaskProgress EventType = "task.progress"
	EventTaskRemoved  EventType = "task.removed"
	EventQueueCleared EventType = "queue.cleared"
)

// TaskEvent событие изменения задачи или очереди.
// Для EventQueueCleared поле Task пустое.
type TaskEvent struct {
	Type EventType           `json:"type"`
	Task domain.TaskSnapshot `json:"task"`
	At   time.Time           `json:"at"`
}

// EventHandler подписчик событий. Вызывается синхронно в горутине,
// изменившей задачу, поэтому не должен блокироваться надолго.
type EventHandler func(event TaskEvent)

type subscription struct {
	id      int
	handler EventHandler
}

// EventBus рассылает события очереди подписчикам
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
	logger *zap.Logger
}

// NewEventBus создаёт новый EventBus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{logger: logger}
}

// Subscribe добавляет подписчика и возвращает функцию отписки
func (b *EventBus) Subscribe(handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// PublishTask рассылает событие с текущим состоянием задачи
func (b *EventBus) PublishTask(eventType EventType, task *domain.Task) {
	b.publish(TaskEvent{Type: eventType, Task: task.Snapshot(), At: time.Now()})
}

// PublishCleared рассылает событие очистки очереди
func (b *EventBus) PublishCleared() {
	b.publish(TaskEvent{Type: EventQueueCleared, At: time.Now()})
}

func (b *EventBus) publish(event TaskEvent) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.handler, event)
	}
}

func (b *EventBus) deliver(handler EventHandler, event TaskEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	handler(event)
}
