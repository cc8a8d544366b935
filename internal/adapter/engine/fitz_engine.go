// Package engine локальный движок конвертации поверх MuPDF (go-fitz).
// Поддерживает текстовые и растровые форматы; офисные форматы и
// PDF с текстовым слоем возвращают ErrorCodeUnsupported.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/domain"
	"github.com/plastinin/docconverter/internal/usecase"
	"go.uber.org/zap"
)

// PageRecognizer распознаёт текст страницы без текстового слоя
type PageRecognizer interface {
	RecognizeText(ctx context.Context, pngData []byte, lang domain.OCRLanguage) (string, error)
}

// FitzEngine реализует usecase.Engine
type FitzEngine struct {
	dpi         float64
	jpegQuality int
	ocr         PageRecognizer
	logger      *zap.Logger

	mu      sync.Mutex
	sink    usecase.ProgressSink
	lang    domain.OCRLanguage
	cancels map[uint64]context.CancelFunc
	nextID  uint64
}

// NewFitzEngine создаёт движок. ocr может быть nil, тогда страницы
// без текстового слоя остаются пустыми.
func NewFitzEngine(cfg config.EngineConfig, ocr PageRecognizer, logger *zap.Logger) *FitzEngine {
	return &FitzEngine{
		dpi:         cfg.RenderDPI,
		jpegQuality: cfg.JPEGQuality,
		ocr:         ocr,
		logger:      logger,
		lang:        domain.OCRLanguageAuto,
		cancels:     make(map[uint64]context.CancelFunc),
	}
}

func (e *FitzEngine) SetProgressSink(sink usecase.ProgressSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

func (e *FitzEngine) SetOCRLanguage(lang domain.OCRLanguage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lang = lang
}

// CancelAll прерывает все выполняющиеся конвертации
func (e *FitzEngine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, cancel := range e.cancels {
		cancel()
		delete(e.cancels, id)
	}
}

func (e *FitzEngine) ConvertToWord(ctx context.Context, src, _, out string, _ domain.WordOptions) domain.ErrorCode {
	return e.unsupported(domain.ConversionTypeWord, src)
}

func (e *FitzEngine) ConvertToExcel(ctx context.Context, src, _, out string, _ domain.ExcelOptions) domain.ErrorCode {
	return e.unsupported(domain.ConversionTypeExcel, src)
}

func (e *FitzEngine) ConvertToPpt(ctx context.Context, src, _, out string, _ domain.PptOptions) domain.ErrorCode {
	return e.unsupported(domain.ConversionTypePPT, src)
}

func (e *FitzEngine) ConvertToSearchablePdf(ctx context.Context, src, _, out string, _ domain.SearchablePdfOptions) domain.ErrorCode {
	return e.unsupported(domain.ConversionTypeSearchablePDF, src)
}

func (e *FitzEngine) unsupported(t domain.ConversionType, src string) domain.ErrorCode {
	e.logger.Warn("Conversion type is not supported by fitz engine",
		zap.String("type", t.String()),
		zap.String("source", src),
	)
	return domain.ErrorCodeUnsupported
}

// job состояние одной конвертации
type job struct {
	ctx   context.Context
	doc   *fitz.Document
	pages []int
	lang  domain.OCRLanguage
	sink  usecase.ProgressSink
}

func (j *job) progress(done int) {
	if j.sink != nil {
		j.sink.OnProgress(done, len(j.pages))
	}
}

// errCode ошибка с кодом движка
type errCode struct {
	code domain.ErrorCode
	err  error
}

func (e *errCode) Error() string { return e.err.Error() }
func (e *errCode) Unwrap() error { return e.err }

func codeErr(code domain.ErrorCode, err error) error {
	return &errCode{code: code, err: err}
}

// run открывает документ, разбирает диапазон страниц и выполняет fn.
// Отмена ctx или CancelAll приводит к ErrorCodeCanceled.
func (e *FitzEngine) run(
	ctx context.Context,
	t domain.ConversionType,
	src, pageRanges string,
	fn func(j *job) error,
) domain.ErrorCode {
	ctx, id := e.register(ctx)
	defer e.unregister(id)

	e.mu.Lock()
	sink, lang := e.sink, e.lang
	e.mu.Unlock()

	log := e.logger.With(zap.String("type", t.String()), zap.String("source", src))

	doc, err := fitz.New(src)
	if err != nil {
		log.Error("Failed to open document", zap.Error(err))
		return domain.ErrorCodeFileError
	}
	defer doc.Close()

	pages, err := domain.ParsePageRange(pageRanges, doc.NumPage())
	if err != nil {
		log.Warn("Invalid page range",
			zap.String("page_ranges", pageRanges),
			zap.Int("page_count", doc.NumPage()),
		)
		return domain.ErrorCodeInvalidPageRange
	}

	j := &job{ctx: ctx, doc: doc, pages: pages, lang: lang, sink: sink}
	j.progress(0)

	if err := fn(j); err != nil {
		if ctx.Err() != nil {
			log.Info("Conversion canceled")
			return domain.ErrorCodeCanceled
		}
		var ce *errCode
		if errors.As(err, &ce) {
			log.Error("Conversion failed", zap.Error(err), zap.Int("error_code", int(ce.code)))
			return ce.code
		}
		log.Error("Conversion failed", zap.Error(err))
		return domain.ErrorCodeUnknown
	}

	log.Debug("Conversion finished", zap.Int("pages", len(pages)))
	return domain.ErrorCodeSuccess
}

func (e *FitzEngine) register(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.cancels[e.nextID] = cancel
	return ctx, e.nextID
}

func (e *FitzEngine) unregister(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
}

// eachPage вызывает fn для каждой выбранной страницы и сообщает прогресс
func (j *job) eachPage(fn func(n, page int) error) error {
	for n, page := range j.pages {
		if err := j.ctx.Err(); err != nil {
			return err
		}
		if err := fn(n, page); err != nil {
			return err
		}
		j.progress(n + 1)
	}
	return nil
}

// pageText возвращает текст страницы; при пустом текстовом слое
// и включённом OCR страница распознаётся по растру
func (e *FitzEngine) pageText(j *job, page int, ocr bool) (string, error) {
	text, err := j.doc.Text(page)
	if err != nil {
		return "", fmt.Errorf("failed to extract text of page %d: %w", page+1, err)
	}
	if strings.TrimSpace(text) != "" || !ocr || e.ocr == nil {
		return text, nil
	}

	img, err := j.doc.ImageDPI(page, e.dpi)
	if err != nil {
		return "", fmt.Errorf("failed to render page %d: %w", page+1, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode page %d: %w", page+1, err)
	}

	text, err = e.ocr.RecognizeText(j.ctx, buf.Bytes(), j.lang)
	if err != nil {
		return "", codeErr(domain.ErrorCodeModelUnavailable, fmt.Errorf("failed to recognize page %d: %w", page+1, err))
	}
	return text, nil
}

// assetsDir каталог для изображений рядом с одиночным файлом результата
func assetsDir(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return codeErr(domain.ErrorCodeWriteError, fmt.Errorf("failed to create directory: %w", err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return codeErr(domain.ErrorCodeWriteError, fmt.Errorf("failed to write %s: %w", path, err))
	}
	return nil
}

var _ usecase.Engine = (*FitzEngine)(nil)
