package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/output"
	"go.uber.org/zap"
)

// ConversionUseCase выполняет одну задачу на движке: установка модели,
// раскладка результата, вызов движка, упаковка и экспорт.
type ConversionUseCase struct {
	engine   Engine
	env      *Environment
	resolver *output.Resolver
	archiver *output.Archiver
	exporter Exporter
	events   *EventBus
	logger   *zap.Logger

	// движок не реентерабелен
	engineMu sync.Mutex
}

// NewConversionUseCase создаёт новый экземпляр ConversionUseCase.
// exporter может быть nil: тогда ссылкой на результат служит локальный путь.
func NewConversionUseCase(
	engine Engine,
	env *Environment,
	resolver *output.Resolver,
	archiver *output.Archiver,
	exporter Exporter,
	events *EventBus,
	logger *zap.Logger,
) *ConversionUseCase {
	return &ConversionUseCase{
		engine:   engine,
		env:      env,
		resolver: resolver,
		archiver: archiver,
		exporter: exporter,
		events:   events,
		logger:   logger,
	}
}

// Dispatch запускает задачу в статусе READY и возвращает код движка.
// Ошибка возвращается только если задачу нельзя запустить.
func (uc *ConversionUseCase) Dispatch(ctx context.Context, task *domain.Task) (domain.ErrorCode, error) {
	uc.engineMu.Lock()
	defer uc.engineMu.Unlock()

	epoch, err := task.MarkConverting()
	if err != nil {
		return domain.ErrorCodeUnknown, fmt.Errorf("failed to start task: %w", err)
	}
	uc.events.PublishTask(EventTaskStatus, task)

	log := uc.logger.With(
		zap.String("task_id", task.ID.String()),
		zap.String("type", task.Type.String()),
	)
	log.Info("Starting conversion", zap.String("source", task.SourcePath))

	if err := uc.env.EnsureModel(ctx); err != nil {
		log.Error("AI model unavailable", zap.Error(err))
		return uc.complete(task, epoch, domain.ErrorCodeModelUnavailable, output.Layout{}, log), nil
	}

	// Файл мог исчезнуть после создания задачи
	if err := domain.ValidateSource(task.SourcePath); err != nil {
		log.Error("Source file is not readable", zap.Error(err))
		return uc.complete(task, epoch, domain.ErrorCodeFileError, output.Layout{}, log), nil
	}

	uc.engine.SetProgressSink(&taskProgress{task: task, epoch: epoch, events: uc.events})
	defer uc.engine.SetProgressSink(nil)
	uc.engine.SetOCRLanguage(task.OCRLanguage)

	layout, err := uc.resolver.ResolveLayout(
		task.SourcePath,
		task.Type,
		domain.NeedsArchive(task.Options),
		domain.IsCSV(task.Options),
	)
	if err != nil {
		log.Error("Failed to resolve output path", zap.Error(err))
		return uc.complete(task, epoch, domain.ErrorCodeOutputUnavailable, output.Layout{}, log), nil
	}

	if ctx.Err() != nil {
		return uc.complete(task, epoch, domain.ErrorCodeCanceled, output.Layout{}, log), nil
	}

	code := uc.invoke(ctx, task, layout.OutputPath)
	code = uc.complete(task, epoch, code, layout, log)

	if code.IsSuccess() && task.IsCurrent(epoch) {
		uc.finalize(ctx, task, epoch, layout, log)
	}

	return code, nil
}

// CancelAll просит движок прервать текущую конвертацию
func (uc *ConversionUseCase) CancelAll() {
	uc.engine.CancelAll()
}

// invoke вызывает ровно одну точку входа движка по варианту параметров
func (uc *ConversionUseCase) invoke(ctx context.Context, task *domain.Task, outputPath string) domain.ErrorCode {
	src := task.SourcePath

	switch opts := task.Options.(type) {
	case domain.WordOptions:
		return uc.engine.ConvertToWord(ctx, src, "", outputPath, opts)
	case domain.ExcelOptions:
		return uc.engine.ConvertToExcel(ctx, src, "", outputPath, opts)
	case domain.PptOptions:
		return uc.engine.ConvertToPpt(ctx, src, "", outputPath, opts)
	case domain.HtmlOptions:
		return uc.engine.ConvertToHtml(ctx, src, "", outputPath, opts)
	case domain.ImageOptions:
		return uc.engine.ConvertToImage(ctx, src, "", outputPath, opts)
	case domain.MarkdownOptions:
		return uc.engine.ConvertToMarkdown(ctx, src, "", outputPath, opts)
	case domain.RtfOptions:
		return uc.engine.ConvertToRtf(ctx, src, "", outputPath, opts)
	case domain.TxtOptions:
		return uc.engine.ConvertToTxt(ctx, src, "", outputPath, opts)
	case domain.JsonOptions:
		return uc.engine.ConvertToJson(ctx, src, "", outputPath, opts)
	case domain.SearchablePdfOptions:
		return uc.engine.ConvertToSearchablePdf(ctx, src, "", outputPath, opts)
	default:
		// NewTask не пропускает nil и чужие варианты
		uc.logger.Error("Unexpected options variant",
			zap.String("task_id", task.ID.String()),
			zap.String("type", fmt.Sprintf("%T", task.Options)),
		)
		return domain.ErrorCodeUnsupported
	}
}

// complete фиксирует результат запуска, если задача всё ещё актуальна
func (uc *ConversionUseCase) complete(
	task *domain.Task,
	epoch uint64,
	code domain.ErrorCode,
	layout output.Layout,
	log *zap.Logger,
) domain.ErrorCode {
	if !task.Complete(epoch, code, layout.OutputPath) {
		log.Debug("Task was cleared or re-armed, result dropped",
			zap.Int("error_code", int(code)),
		)
		return code
	}
	uc.events.PublishTask(EventTaskStatus, task)

	if code.IsSuccess() {
		log.Info("Conversion completed", zap.String("output", layout.OutputPath))
	} else {
		log.Warn("Conversion failed",
			zap.Int("error_code", int(code)),
			zap.String("error", code.String()),
		)
	}
	return code
}

// finalize упаковывает многофайловый результат и публикует его.
// Ошибки здесь переводят задачу в EXPORT_FAILED, а не в FAILED.
func (uc *ConversionUseCase) finalize(
	ctx context.Context,
	task *domain.Task,
	epoch uint64,
	layout output.Layout,
	log *zap.Logger,
) {
	target := layout.OutputPath

	if layout.Archived {
		if err := bundle(layout); err != nil {
			uc.exportFailed(task, epoch, err, log)
			return
		}
		archive, err := uc.archiver.Archive(layout.BundleDir)
		if err != nil {
			uc.exportFailed(task, epoch, err, log)
			return
		}
		target = archive
	}

	uri := target
	if uc.exporter != nil {
		var err error
		uri, err = uc.exporter.Export(ctx, target)
		if err != nil {
			uc.exportFailed(task, epoch, fmt.Errorf("failed to export output: %w", err), log)
			return
		}
	}

	if task.MarkExported(epoch, target, uri) {
		uc.events.PublishTask(EventTaskStatus, task)
		log.Info("Output exported",
			zap.String("output", target),
			zap.String("uri", uri),
		)
	}
}

func (uc *ConversionUseCase) exportFailed(task *domain.Task, epoch uint64, err error, log *zap.Logger) {
	log.Error("Failed to finalize output", zap.Error(err))
	if task.MarkExportFailed(epoch, err.Error()) {
		uc.events.PublishTask(EventTaskStatus, task)
	}
}

// bundle переносит одиночный файл результата в упаковываемый каталог.
// Для IMAGE, HTML и CSV-каталогов движок уже пишет внутрь каталога.
func bundle(layout output.Layout) error {
	if filepath.Dir(layout.OutputPath) == layout.BundleDir || layout.OutputPath == layout.BundleDir {
		return nil
	}

	info, err := os.Stat(layout.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("engine produced no output at %s", layout.OutputPath)
		}
		return fmt.Errorf("failed to stat output: %w", err)
	}
	if info.IsDir() {
		return nil
	}

	if err := os.MkdirAll(layout.BundleDir, 0o755); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}
	dst := filepath.Join(layout.BundleDir, filepath.Base(layout.OutputPath))
	if err := os.Rename(layout.OutputPath, dst); err != nil {
		return fmt.Errorf("failed to move output into bundle: %w", err)
	}
	return nil
}

// taskProgress привязывает прогресс движка к конкретному запуску задачи
type taskProgress struct {
	task   *domain.Task
	epoch  uint64
	events *EventBus
}

func (p *taskProgress) OnProgress(completed, total int) {
	if p.task.SetProgress(p.epoch, completed, total) {
		p.events.PublishTask(EventTaskProgress, p.task)
	}
}
