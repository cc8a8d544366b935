package output

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Archiver упаковывает каталог результата в zip-архив рядом с ним
type Archiver struct {
	logger *zap.Logger

	// openFile открывает файл для записи в архив
	openFile func(path string) (io.ReadCloser, error)
}

// NewArchiver создаёт новый Archiver
func NewArchiver(logger *zap.Logger) *Archiver {
	return &Archiver{
		logger: logger,
		openFile: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Archive упаковывает sourceDir в <sourceDir>.zip и удаляет sourceDir.
// Если архив уже существует, он возвращается без повторной упаковки.
// Архив пишется во временный файл и публикуется переименованием.
func (a *Archiver) Archive(sourceDir string) (string, error) {
	sourceDir = filepath.Clean(sourceDir)
	archivePath := sourceDir + archiveExt

	exists, err := pathExists(archivePath)
	if err != nil {
		return "", err
	}
	if exists {
		a.logger.Debug("Archive already exists", zap.String("archive", archivePath))
		return archivePath, nil
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return "", fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source %s is not a directory", sourceDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), filepath.Base(archivePath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	files, err := a.writeArchive(tmp, sourceDir)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temp archive: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to publish archive: %w", err)
	}

	if err := os.RemoveAll(sourceDir); err != nil {
		a.logger.Warn("Failed to remove archived directory",
			zap.String("dir", sourceDir),
			zap.Error(err),
		)
	}

	a.logger.Info("Directory archived",
		zap.String("archive", archivePath),
		zap.Int("files", files),
	)

	return archivePath, nil
}

func (a *Archiver) writeArchive(w io.Writer, sourceDir string) (int, error) {
	zw := zip.NewWriter(w)
	files := 0

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("failed to create zip entry %s: %w", rel, err)
		}

		f, err := a.openFile(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rel, err)
		}
		defer f.Close()

		if _, err := io.Copy(entry, f); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
		files++
		return nil
	})
	if err != nil {
		zw.Close()
		return 0, err
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return files, nil
}
