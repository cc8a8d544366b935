package dto

import (
	"encoding/json"
	"time"

	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
)

// CreateTaskRequest запрос на создание задачи
type CreateTaskRequest struct {
	SourcePath  string          `json:"source_path"`            // Абсолютный путь к документу
	Type        string          `json:"type"`                   // Целевой формат
	Options     json.RawMessage `json:"options,omitempty"`      // Параметры поверх значений по умолчанию
	OCRLanguage string          `json:"ocr_language,omitempty"` // AUTO, ENGLISH, CYRILLIC, ...
}

// ToInput конвертирует запрос во входные данные use case
func (r CreateTaskRequest) ToInput() usecase.CreateTaskInput {
	return usecase.CreateTaskInput{
		SourcePath:  r.SourcePath,
		Type:        r.Type,
		Options:     r.Options,
		OCRLanguage: r.OCRLanguage,
	}
}

// TaskResponse ответ с информацией о задаче
type TaskResponse struct {
	ID          string         `json:"id"`
	SourcePath  string         `json:"source_path"`
	Type        string         `json:"type"`
	Options     domain.Options `json:"options"`
	OCRLanguage string         `json:"ocr_language"`
	Status      string         `json:"status"`
	Completed   int            `json:"completed"`
	Total       int            `json:"total"`
	OutputPath  string         `json:"output_path,omitempty"`
	OutputURI   string         `json:"output_uri,omitempty"`
	ErrorCode   *int           `json:"error_code,omitempty"`
	Error       string         `json:"error,omitempty"`
	ExportError string         `json:"export_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TaskFromDomain конвертирует снимок задачи в DTO
func TaskFromDomain(s domain.TaskSnapshot) *TaskResponse {
	resp := &TaskResponse{
		ID:          s.ID.String(),
		SourcePath:  s.SourcePath,
		Type:        s.Type.String(),
		Options:     s.Options,
		OCRLanguage: s.OCRLanguage.String(),
		Status:      s.Status.String(),
		Completed:   s.Completed,
		Total:       s.Total,
		OutputPath:  s.OutputPath,
		OutputURI:   s.OutputURI,
		ExportError: s.ExportError,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}

	if s.ErrorCode != nil {
		code := int(*s.ErrorCode)
		resp.ErrorCode = &code
		resp.Error = s.ErrorCode.String()
	}

	return resp
}

// QueueStateResponse состояние очереди
type QueueStateResponse struct {
	BatchRunning  bool   `json:"batch_running"`
	RunningTaskID string `json:"running_task_id,omitempty"`
	ActiveTaskID  string `json:"active_task_id,omitempty"`
	Tasks         int    `json:"tasks"`
}

// QueueStateFromDomain конвертирует состояние очереди в DTO
func QueueStateFromDomain(state usecase.QueueState) QueueStateResponse {
	resp := QueueStateResponse{
		BatchRunning: state.BatchRunning,
		Tasks:        state.Tasks,
	}
	if state.RunningTaskID != nil {
		resp.RunningTaskID = state.RunningTaskID.String()
	}
	if state.ActiveTaskID != nil {
		resp.ActiveTaskID = state.ActiveTaskID.String()
	}
	return resp
}

// QueueResponse задачи очереди в порядке добавления
type QueueResponse struct {
	Tasks []*TaskResponse    `json:"tasks"`
	State QueueStateResponse `json:"state"`
}

// QueueFromDomain конвертирует очередь в DTO
func QueueFromDomain(tasks []domain.TaskSnapshot, state usecase.QueueState) *QueueResponse {
	resp := &QueueResponse{
		Tasks: make([]*TaskResponse, len(tasks)),
		State: QueueStateFromDomain(state),
	}
	for i, task := range tasks {
		resp.Tasks[i] = TaskFromDomain(task)
	}
	return resp
}

// RunResponse результат запроса на запуск
type RunResponse struct {
	Started bool `json:"started"`
}

// SubmitResponse ответ на отправку задачи воркеру
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// HistoryListResponse ответ со страницей журнала
type HistoryListResponse struct {
	Tasks      []*TaskResponse `json:"tasks"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// HistoryListFromDomain конвертирует результат журнала в DTO
func HistoryListFromDomain(result *domain.HistoryListResult) *HistoryListResponse {
	tasks := make([]*TaskResponse, len(result.Records))
	for i, record := range result.Records {
		tasks[i] = TaskFromDomain(record)
	}

	return &HistoryListResponse{
		Tasks:      tasks,
		Total:      result.Total,
		Page:       result.Pagination.Page,
		PageSize:   result.Pagination.PageSize,
		TotalPages: result.Pagination.TotalPages(result.Total),
	}
}
