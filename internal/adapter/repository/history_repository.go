package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
)

const historyColumns = `id, source_path, type, options, ocr_language, status, completed, total,
	output_path, output_uri, error_code, export_error, created_at, updated_at`

// HistoryRepository журнал задач конвертации в PostgreSQL.
// Хранит последнее известное состояние каждой задачи.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository создаёт новый экземпляр HistoryRepository
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Save добавляет или обновляет запись о задаче
func (r *HistoryRepository) Save(ctx context.Context, s domain.TaskSnapshot) error {
	options, err := json.Marshal(s.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	var errorCode *int
	if s.ErrorCode != nil {
		code := int(*s.ErrorCode)
		errorCode = &code
	}

	query := `
		INSERT INTO task_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed = EXCLUDED.completed,
			total = EXCLUDED.total,
			output_path = EXCLUDED.output_path,
			output_uri = EXCLUDED.output_uri,
			error_code = EXCLUDED.error_code,
			export_error = EXCLUDED.export_error,
			updated_at = EXCLUDED.updated_at
		WHERE task_history.updated_at <= EXCLUDED.updated_at
	`

	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.SourcePath,
		s.Type,
		options,
		s.OCRLanguage,
		s.Status,
		s.Completed,
		s.Total,
		nullString(s.OutputPath),
		nullString(s.OutputURI),
		errorCode,
		nullString(s.ExportError),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task history: %w", err)
	}

	return nil
}

// GetByID возвращает запись журнала по ID
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*domain.TaskSnapshot, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrTaskNotFound
	}

	query := `SELECT ` + historyColumns + ` FROM task_history WHERE id = $1`

	snapshot, err := scanSnapshot(r.pool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task history: %w", err)
	}

	return snapshot, nil
}

// List возвращает записи журнала с пагинацией и фильтрацией
func (r *HistoryRepository) List(
	ctx context.Context,
	filter domain.HistoryFilter,
	pagination domain.Pagination,
) (*domain.HistoryListResult, error) {
	where, args := buildHistoryFilter(filter)

	// Запрос на подсчёт общего количества
	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM task_history"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count task history: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM task_history%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, historyColumns, where, len(args)+1, len(args)+2)

	args = append(args, pagination.Limit(), pagination.Offset())

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TaskSnapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task history: %w", err)
		}
		records = append(records, *snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &domain.HistoryListResult{
		Records:    records,
		Total:      total,
		Pagination: pagination,
	}, nil
}

// buildHistoryFilter собирает условие WHERE и его аргументы
func buildHistoryFilter(filter domain.HistoryFilter) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}

	return where, args
}

func scanSnapshot(row pgx.Row) (*domain.TaskSnapshot, error) {
	var (
		s           domain.TaskSnapshot
		options     []byte
		outputPath  *string // Указатели для NULL
		outputURI   *string
		errorCode   *int
		exportError *string
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(
		&s.ID,
		&s.SourcePath,
		&s.Type,
		&options,
		&s.OCRLanguage,
		&s.Status,
		&s.Completed,
		&s.Total,
		&outputPath,
		&outputURI,
		&errorCode,
		&exportError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Options, err = domain.DecodeOptions(s.Type, options)
	if err != nil {
		return nil, err
	}

	if outputPath != nil {
		s.OutputPath = *outputPath
	}
	if outputURI != nil {
		s.OutputURI = *outputURI
	}
	if errorCode != nil {
		code := domain.ErrorCode(*errorCode)
		s.ErrorCode = &code
	}
	if exportError != nil {
		s.ExportError = *exportError
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt

	return &s, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ usecase.HistoryRepository = (*HistoryRepository)(nil)
