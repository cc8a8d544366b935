package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/plastinin/docconverter/internal/domain"
)

// binaryThreshold порог яркости для чёрно-белого режима
const binaryThreshold = 128

// ConvertToImage пишет каждую страницу отдельным файлом в каталог out
func (e *FitzEngine) ConvertToImage(ctx context.Context, src, _, out string, opts domain.ImageOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeImage, src, opts.PageRanges, func(j *job) error {
		return j.eachPage(func(_, page int) error {
			rendered, err := j.doc.ImageDPI(page, e.dpi)
			if err != nil {
				return fmt.Errorf("failed to render page %d: %w", page+1, err)
			}

			img := processImage(rendered, opts)

			path := filepath.Join(out, fmt.Sprintf("page_%03d%s", page+1, opts.ImageType.Extension()))
			if err := imaging.Save(img, path, imaging.JPEGQuality(e.jpegQuality)); err != nil {
				return codeErr(domain.ErrorCodeWriteError, fmt.Errorf("failed to save page %d: %w", page+1, err))
			}
			return nil
		})
	})
}

// processImage применяет масштаб, улучшение контуров и цветовой режим
func processImage(src image.Image, opts domain.ImageOptions) image.Image {
	img := imaging.Clone(src)

	if opts.Scaling > 0 && opts.Scaling != 1 {
		width := int(float32(img.Bounds().Dx()) * opts.Scaling)
		if width < 1 {
			width = 1
		}
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	if opts.PathEnhance {
		img = imaging.Sharpen(img, 0.5)
	}

	switch opts.ColorMode {
	case domain.ImageColorGray:
		img = imaging.Grayscale(img)
	case domain.ImageColorBinary:
		img = imaging.AdjustFunc(imaging.Grayscale(img), func(c color.NRGBA) color.NRGBA {
			if c.R >= binaryThreshold {
				return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
			}
			return color.NRGBA{A: c.A}
		})
	case domain.ImageColorColor:
	}

	return img
}

// writePagePreview сохраняет растр страницы в dir/images и возвращает
// путь относительно dir
func (e *FitzEngine) writePagePreview(j *job, page int, dir string) (string, error) {
	rendered, err := j.doc.ImageDPI(page, e.dpi)
	if err != nil {
		return "", fmt.Errorf("failed to render page %d: %w", page+1, err)
	}

	rel := fmt.Sprintf("images/page_%03d.png", page+1)
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", codeErr(domain.ErrorCodeWriteError, fmt.Errorf("failed to create images directory: %w", err))
	}
	if err := imaging.Save(rendered, path); err != nil {
		return "", codeErr(domain.ErrorCodeWriteError, fmt.Errorf("failed to save page image: %w", err))
	}
	return rel, nil
}
