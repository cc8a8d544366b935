package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination параметры пагинации
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination создаёт параметры пагинации с валидацией
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset возвращает смещение для SQL запроса
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit возвращает лимит для SQL запроса
func (p Pagination) Limit() int {
	return p.PageSize
}

// TotalPages число страниц для total записей
func (p Pagination) TotalPages(total int) int {
	if p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// HistoryFilter фильтры журнала задач
type HistoryFilter struct {
	Status *ConversionStatus `json:"status,omitempty"`
	Type   *ConversionType   `json:"type,omitempty"`
}

// HistoryListResult результат запроса журнала
type HistoryListResult struct {
	Records    []TaskSnapshot `json:"records"`
	Total      int            `json:"total"`
	Pagination Pagination     `json:"pagination"`
}
