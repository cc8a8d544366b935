package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/adapter/http/dto"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
	"go.uber.org/zap"
)

// QueueService управление локальной очередью
type QueueService interface {
	List() []domain.TaskSnapshot
	State() usecase.QueueState
	StartSingle(id uuid.UUID) (bool, error)
	StartBatch() bool
	Rearm(id uuid.UUID) error
	Remove(id uuid.UUID) error
	ClearAll()
}

// QueueHandler обработчик HTTP запросов для очереди
type QueueHandler struct {
	responder
	queue QueueService
}

// NewQueueHandler создаёт новый QueueHandler
func NewQueueHandler(queue QueueService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		responder: responder{logger: logger},
		queue:     queue,
	}
}

// List возвращает задачи очереди и её состояние
// GET /api/v1/tasks
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, dto.QueueFromDomain(h.queue.List(), h.queue.State()))
}

// Run запускает одну задачу. Если очередь занята, запрос игнорируется.
// POST /api/v1/tasks/{id}/run
func (h *QueueHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	started, err := h.queue.StartSingle(id)
	if err != nil {
		h.respondDomainError(w, r, err, "run task")
		return
	}

	h.respondJSON(w, http.StatusAccepted, dto.RunResponse{Started: started})
}

// RunAll запускает все задачи в статусе READY
// POST /api/v1/tasks/run
func (h *QueueHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusAccepted, dto.RunResponse{Started: h.queue.StartBatch()})
}

// Rearm возвращает завершённую задачу в READY
// POST /api/v1/tasks/{id}/rearm
func (h *QueueHandler) Rearm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.queue.Rearm(id); err != nil {
		h.respondDomainError(w, r, err, "rearm task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete удаляет задачу из очереди
// DELETE /api/v1/tasks/{id}
func (h *QueueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.queue.Remove(id); err != nil {
		h.respondDomainError(w, r, err, "delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear прерывает конвертацию и очищает очередь
// DELETE /api/v1/tasks
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.queue.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}
