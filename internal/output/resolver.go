// Package output отвечает за раскладку результатов конвертации на диске:
// уникальные пути результатов и упаковку многофайловых результатов в архив.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap"
)

const archiveExt = ".zip"

// Resolver вычисляет пути результатов без коллизий с уже существующими файлами.
// Не рассчитан на одновременные вызовы из нескольких горутин.
type Resolver struct {
	root   string
	logger *zap.Logger
}

// NewResolver создаёт Resolver с корневым каталогом результатов
func NewResolver(root string, logger *zap.Logger) *Resolver {
	return &Resolver{
		root:   root,
		logger: logger,
	}
}

// Root возвращает корневой каталог результатов
func (r *Resolver) Root() string {
	return r.root
}

// Layout раскладка результата одной конвертации
type Layout struct {
	// OutputPath путь, который получает движок
	OutputPath string
	// BundleDir каталог, упаковываемый в архив (только при Archived)
	BundleDir string
	// ArchivePath итоговый архив (только при Archived)
	ArchivePath string
	Archived    bool
}

// Resolve возвращает путь, по которому движок запишет результат.
func (r *Resolver) Resolve(sourcePath string, t domain.ConversionType, needsArchive, isCSV bool) (string, error) {
	layout, err := r.ResolveLayout(sourcePath, t, needsArchive, isCSV)
	if err != nil {
		return "", err
	}
	return layout.OutputPath, nil
}

// ResolveLayout вычисляет раскладку результата.
//
// HTML всегда вложен на один уровень: <root>/<name>/<name>.html.
// Для результатов, которые будут упакованы в архив (needsArchive или HTML),
// коллизия проверяется по <root>/<name>.zip, иначе по самому пути результата.
// При коллизии к имени добавляется суффикс (1), (2), ...
func (r *Resolver) ResolveLayout(sourcePath string, t domain.ConversionType, needsArchive, isCSV bool) (Layout, error) {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return Layout{}, fmt.Errorf("failed to create output root: %w", err)
	}

	ext := t.Extension()
	if isCSV {
		if needsArchive {
			ext = ""
		} else {
			ext = ".csv"
		}
	}

	base := Stem(sourcePath)
	archived := needsArchive || t == domain.ConversionTypeHTML

	name := base
	for index := 1; ; index++ {
		layout := Layout{
			OutputPath: r.outputPath(name, ext, t),
			Archived:   archived,
		}
		target := layout.OutputPath
		if archived {
			layout.BundleDir = filepath.Join(r.root, name)
			layout.ArchivePath = layout.BundleDir + archiveExt
			target = layout.ArchivePath
		}

		exists, err := pathExists(target)
		if err != nil {
			return Layout{}, err
		}
		if !exists {
			if needsArchive && ext == "" {
				if err := os.MkdirAll(layout.OutputPath, 0o755); err != nil {
					return Layout{}, fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			return layout, nil
		}

		r.logger.Debug("Output target exists, trying next name",
			zap.String("target", target),
			zap.Int("index", index),
		)
		name = fmt.Sprintf("%s(%d)", base, index)
	}
}

func (r *Resolver) outputPath(name, ext string, t domain.ConversionType) string {
	if t == domain.ConversionTypeHTML {
		return filepath.Join(r.root, name, name+ext)
	}
	return filepath.Join(r.root, name+ext)
}

// Stem возвращает имя файла без последнего расширения
func Stem(path string) string {
	name := filepath.Base(path)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
