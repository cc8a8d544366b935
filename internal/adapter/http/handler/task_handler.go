package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/adapter/http/dto"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
	"go.uber.org/zap"
)

const (
	maxRequestSize = 1 << 20 // 1 MB
)

// TaskService операции над задачами
type TaskService interface {
	Create(ctx context.Context, input usecase.CreateTaskInput) (domain.TaskSnapshot, error)
	Submit(ctx context.Context, input usecase.CreateTaskInput) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.TaskSnapshot, error)
	History(ctx context.Context, filter domain.HistoryFilter, pagination domain.Pagination) (*domain.HistoryListResult, error)
}

// TaskHandler обработчик HTTP запросов для задач
type TaskHandler struct {
	responder
	taskUC TaskService
}

// NewTaskHandler создаёт новый TaskHandler
func NewTaskHandler(taskUC TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		responder: responder{logger: logger},
		taskUC:    taskUC,
	}
}

// Create добавляет задачу в очередь
// POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskUC.Create(r.Context(), req.ToInput())
	if err != nil {
		h.respondDomainError(w, r, err, "create task")
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.TaskFromDomain(task))
}

// Submit отправляет задачу воркеру через удалённую очередь
// POST /api/v1/jobs
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	jobID, err := h.taskUC.Submit(r.Context(), req.ToInput())
	if err != nil {
		h.respondDomainError(w, r, err, "submit task")
		return
	}

	h.respondJSON(w, http.StatusAccepted, dto.SubmitResponse{JobID: jobID.String()})
}

// GetByID возвращает задачу по ID
// GET /api/v1/tasks/{id}
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	task, err := h.taskUC.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err, "get task")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.TaskFromDomain(task))
}

// History возвращает журнал задач
// GET /api/v1/history?page=1&page_size=20&status=FAILED&type=TXT
func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// Парсим параметры пагинации
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	pagination := domain.NewPagination(page, pageSize)

	// Парсим фильтры
	filter := domain.HistoryFilter{}
	if statusStr := query.Get("status"); statusStr != "" {
		status := domain.ConversionStatus(statusStr)
		if !status.IsValid() {
			h.respondError(w, r, http.StatusBadRequest, "invalid_status", "Unknown task status")
			return
		}
		filter.Status = &status
	}
	if typeStr := query.Get("type"); typeStr != "" {
		convType, err := domain.ParseConversionType(typeStr)
		if err != nil {
			h.respondError(w, r, http.StatusBadRequest, "invalid_type", "Unknown conversion type")
			return
		}
		filter.Type = &convType
	}

	result, err := h.taskUC.History(r.Context(), filter, pagination)
	if err != nil {
		h.respondDomainError(w, r, err, "list history")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.HistoryListFromDomain(result))
}

func (h *TaskHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (dto.CreateTaskRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode request", zap.Error(err))
		h.respondError(w, r, http.StatusBadRequest, dto.ErrCodeInvalidRequest, "Request body must be a JSON object")
		return req, false
	}
	if req.SourcePath == "" {
		h.respondError(w, r, http.StatusBadRequest, "source_required", "source_path is required")
		return req, false
	}
	if req.Type == "" {
		h.respondError(w, r, http.StatusBadRequest, "type_required", "type is required")
		return req, false
	}
	return req, true
}
