package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalExporter публикует результаты в каталог загрузок пользователя.
// Файлы копируются потоком, каталоги публикуются как есть.
type LocalExporter struct {
	dir    string
	logger *zap.Logger
}

// NewLocalExporter создаёт экспортёр в каталог dir
func NewLocalExporter(dir string, logger *zap.Logger) *LocalExporter {
	return &LocalExporter{
		dir:    dir,
		logger: logger,
	}
}

// Export копирует файл в каталог загрузок без перезаписи существующих
// и возвращает file:// URI копии
func (e *LocalExporter) Export(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat output: %w", err)
	}
	if info.IsDir() {
		return fileURI(localPath)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create downloads directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open output: %w", err)
	}
	defer src.Close()

	dst, dstPath, err := createUnique(e.dir, filepath.Base(localPath))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, readerWithContext(ctx, src)); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("failed to copy output: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("failed to close exported file: %w", err)
	}

	e.logger.Info("Output exported to downloads",
		zap.String("source", localPath),
		zap.String("destination", dstPath),
	)

	return fileURI(dstPath)
}

// createUnique создаёт файл name в dir, при занятом имени добавляет (1), (2), ...
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for index := 1; ; index++ {
		p := filepath.Join(dir, candidate)
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, p, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create exported file: %w", err)
		}
		candidate = fmt.Sprintf("%s(%d)%s", base, index, ext)
	}
}

func fileURI(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// readerWithContext прерывает копирование при отмене ctx
func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}
