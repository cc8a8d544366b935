package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/plastinin/docconverter/internal/usecase"
	"go.uber.org/zap"
)

const (
	eventBufferSize   = 64
	keepAliveInterval = 15 * time.Second
)

// EventSource источник событий очереди
type EventSource interface {
	Subscribe(handler usecase.EventHandler) func()
}

// EventsHandler транслирует события очереди клиенту через Server-Sent Events
type EventsHandler struct {
	responder
	source EventSource
}

// NewEventsHandler создаёт новый EventsHandler
func NewEventsHandler(source EventSource, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		responder: responder{logger: logger},
		source:    source,
	}
}

// Stream отправляет события, пока клиент не отключится.
// Медленный клиент теряет события, а не тормозит очередь.
// GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Поток живёт дольше WriteTimeout сервера
	_ = rc.SetWriteDeadline(time.Time{})

	events := make(chan usecase.TaskEvent, eventBufferSize)
	unsubscribe := h.source.Subscribe(func(event usecase.TaskEvent) {
		select {
		case events <- event:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("Streaming is not supported", zap.Error(err))
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
