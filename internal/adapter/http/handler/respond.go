package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/adapter/http/dto"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
	"go.uber.org/zap"
)

// responder общие методы ответа для обработчиков
type responder struct {
	logger *zap.Logger
}

// respondJSON отправляет JSON ответ
func (h responder) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError отправляет ответ с ошибкой
func (h responder) respondError(w http.ResponseWriter, r *http.Request, status int, errCode string, message string) {
	h.respondJSON(w, status, dto.NewErrorResponse(errCode, message, middleware.GetReqID(r.Context())))
}

// respondDomainError отображает ошибки use case на HTTP статусы
func (h responder) respondDomainError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrTaskDiscarded):
		h.respondError(w, r, http.StatusNotFound, dto.ErrCodeNotFound, "Task not found")
	case errors.Is(err, usecase.ErrValidation):
		h.respondError(w, r, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
	case errors.Is(err, domain.ErrDuplicateTask):
		h.respondError(w, r, http.StatusConflict, dto.ErrCodeDuplicate, err.Error())
	case errors.Is(err, domain.ErrInvalidTaskStatus):
		h.respondError(w, r, http.StatusConflict, dto.ErrCodeConverting, "Task is converting")
	case errors.Is(err, usecase.ErrQueueDisabled), errors.Is(err, usecase.ErrHistoryDisabled):
		h.respondError(w, r, http.StatusServiceUnavailable, dto.ErrCodeNotConfigured, err.Error())
	default:
		h.logger.Error("Failed to "+action, zap.Error(err))
		h.respondError(w, r, http.StatusInternalServerError, dto.ErrCodeInternal, "Failed to "+action)
	}
}

// parseID разбирает идентификатор задачи из URL
func (h responder) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, dto.ErrCodeInvalidID, "Invalid task ID format")
		return uuid.Nil, false
	}
	return id, true
}
