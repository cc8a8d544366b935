package usecase

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CreateTaskInput входные данные для создания задачи
type CreateTaskInput struct {
	SourcePath  string          `json:"source_path"`            // Абсолютный путь к документу
	Type        string          `json:"type"`                   // Целевой формат
	Options     json.RawMessage `json:"options,omitempty"`      // Параметры поверх значений по умолчанию
	OCRLanguage string          `json:"ocr_language,omitempty"` // Язык OCR, по умолчанию AUTO
}

// Submission задача, отправленная в удалённую очередь воркеру
type Submission struct {
	JobID uuid.UUID       `json:"job_id"`
	Input CreateTaskInput `json:"input"`
}

// QueueState агрегированное состояние очереди
type QueueState struct {
	BatchRunning  bool       `json:"batch_running"`
	RunningTaskID *uuid.UUID `json:"running_task_id,omitempty"`
	ActiveTaskID  *uuid.UUID `json:"active_task_id,omitempty"`
	Tasks         int        `json:"tasks"`
}
