package dto

// Коды ошибок API
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeValidation     = "validation_error"
	ErrCodeDuplicate      = "duplicate_task"
	ErrCodeConverting     = "invalid_status"
	ErrCodeNotConfigured  = "not_configured"
	ErrCodeInternal       = "internal_error"
	ErrCodeInvalidID      = "invalid_id"
	ErrCodeInvalidRequest = "invalid_request"
)

// ErrorResponse ответ с ошибкой. RequestID совпадает с request_id в логах сервера.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewErrorResponse(code, message, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID,
	}
}
