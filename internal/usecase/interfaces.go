package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/plastinin/docconverter/internal/domain"
)

// ProgressSink получатель прогресса от движка. Может вызываться из любых горутин.
type ProgressSink interface {
	OnProgress(completed, total int)
}

// Engine внешний движок конвертации. Одна точка входа на каждый формат.
// Не реентерабелен: одновременно выполняется не более одной конвертации.
type Engine interface {
	SetProgressSink(sink ProgressSink)
	SetOCRLanguage(lang domain.OCRLanguage)

	ConvertToWord(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.WordOptions) domain.ErrorCode
	ConvertToExcel(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.ExcelOptions) domain.ErrorCode
	ConvertToPpt(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.PptOptions) domain.ErrorCode
	ConvertToHtml(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.HtmlOptions) domain.ErrorCode
	ConvertToImage(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.ImageOptions) domain.ErrorCode
	ConvertToMarkdown(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.MarkdownOptions) domain.ErrorCode
	ConvertToRtf(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.RtfOptions) domain.ErrorCode
	ConvertToTxt(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.TxtOptions) domain.ErrorCode
	ConvertToJson(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.JsonOptions) domain.ErrorCode
	ConvertToSearchablePdf(ctx context.Context, sourcePath, auxPath, outputPath string, opts domain.SearchablePdfOptions) domain.ErrorCode

	// CancelAll просит движок прервать текущую работу; best-effort
	CancelAll()
}

// ModelInstaller устанавливает AI-модель движка. Повторный вызов безопасен.
type ModelInstaller interface {
	Install(ctx context.Context) error
}

// Exporter публикует готовый файл или каталог в пользовательское хранилище
// и возвращает ссылку на результат
type Exporter interface {
	Export(ctx context.Context, localPath string) (uri string, err error)
}

// HistoryRepository журнал состояний задач
type HistoryRepository interface {
	Save(ctx context.Context, snapshot domain.TaskSnapshot) error
	GetByID(ctx context.Context, id string) (*domain.TaskSnapshot, error)
	List(ctx context.Context, filter domain.HistoryFilter, pagination domain.Pagination) (*domain.HistoryListResult, error)
}

// TaskQueue удалённая очередь задач на конвертацию
type TaskQueue interface {
	Enqueue(ctx context.Context, submission Submission) error
}

// StatusStore общий кэш последних состояний задач.
// Через него API видит задачи, выполняемые воркером.
type StatusStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.TaskSnapshot, error)
}
