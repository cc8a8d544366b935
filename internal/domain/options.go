package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrOptionsMismatch = errors.New("options do not match conversion type")
	ErrInvalidOption   = errors.New("invalid option value")
)

// Options параметры конвертации, вариант определяется форматом.
// Реализации перечислены в этом файле, внешние пакеты новых вариантов не добавляют.
type Options interface {
	ConversionType() ConversionType
	PageSelection() string
	isOptions()
}

// PageLayoutMode режим раскладки страницы (WORD, HTML)
type PageLayoutMode string

const (
	PageLayoutFlow PageLayoutMode = "FLOW"
	PageLayoutBox  PageLayoutMode = "BOX"
)

// ExcelWorksheetOption разбиение результата Excel по листам
type ExcelWorksheetOption string

const (
	WorksheetForTable    ExcelWorksheetOption = "FOR_TABLE"
	WorksheetForPage     ExcelWorksheetOption = "FOR_PAGE"
	WorksheetForDocument ExcelWorksheetOption = "FOR_DOCUMENT"
)

// HtmlPageOption один файл или файл на страницу
type HtmlPageOption string

const (
	HtmlSinglePage   HtmlPageOption = "SINGLE_PAGE"
	HtmlMultiplePage HtmlPageOption = "MULTIPLE_PAGE"
)

// ImageColorMode цветовой режим изображений
type ImageColorMode string

const (
	ImageColorColor  ImageColorMode = "COLOR"
	ImageColorGray   ImageColorMode = "GRAY"
	ImageColorBinary ImageColorMode = "BINARY"
)

// ImageType формат файлов изображений
type ImageType string

const (
	ImageTypeJPG ImageType = "JPG"
	ImageTypePNG ImageType = "PNG"
)

// Extension возвращает расширение файла страницы
func (t ImageType) Extension() string {
	if t == ImageTypePNG {
		return ".png"
	}
	return ".jpg"
}

const (
	MinImageScaling = 0.5
	MaxImageScaling = 2.0
)

// CommonOptions поля, общие для большинства форматов
type CommonOptions struct {
	ContainImage      bool   `json:"contain_image"`
	ContainAnnotation bool   `json:"contain_annotation"`
	EnableAILayout    bool   `json:"enable_ai_layout"`
	FormulaToImage    bool   `json:"formula_to_image"`
	EnableOCR         bool   `json:"enable_ocr"`
	PageRanges        string `json:"page_ranges"`
}

func (o CommonOptions) PageSelection() string { return o.PageRanges }

type WordOptions struct {
	CommonOptions
	PageLayoutMode PageLayoutMode `json:"page_layout_mode"`
}

type ExcelOptions struct {
	CommonOptions
	AllContent      bool                 `json:"all_content"`
	CSVFormat       bool                 `json:"csv_format"`
	WorksheetOption ExcelWorksheetOption `json:"worksheet_option"`
}

type PptOptions struct {
	CommonOptions
}

type HtmlOptions struct {
	CommonOptions
	PageLayoutMode PageLayoutMode `json:"page_layout_mode"`
	HtmlPageOption HtmlPageOption `json:"html_page_option"`
}

type RtfOptions struct {
	CommonOptions
}

type ImageOptions struct {
	ImageType   ImageType      `json:"image_type"`
	ColorMode   ImageColorMode `json:"color_mode"`
	Scaling     float32        `json:"scaling"`
	PathEnhance bool           `json:"path_enhance"`
	PageRanges  string         `json:"page_ranges"`
}

func (o ImageOptions) PageSelection() string { return o.PageRanges }

type MarkdownOptions struct {
	ContainImage      bool   `json:"contain_image"`
	ContainAnnotation bool   `json:"contain_annotation"`
	EnableAILayout    bool   `json:"enable_ai_layout"`
	EnableOCR         bool   `json:"enable_ocr"`
	PageRanges        string `json:"page_ranges"`
}

func (o MarkdownOptions) PageSelection() string { return o.PageRanges }

type TxtOptions struct {
	EnableAILayout bool   `json:"enable_ai_layout"`
	EnableOCR      bool   `json:"enable_ocr"`
	PageRanges     string `json:"page_ranges"`
	TableFormat    bool   `json:"table_format"`
}

func (o TxtOptions) PageSelection() string { return o.PageRanges }

type JsonOptions struct {
	ContainImage      bool   `json:"contain_image"`
	ContainAnnotation bool   `json:"contain_annotation"`
	EnableAILayout    bool   `json:"enable_ai_layout"`
	EnableOCR         bool   `json:"enable_ocr"`
	PageRanges        string `json:"page_ranges"`
	ContainTable      bool   `json:"contain_table"`
}

func (o JsonOptions) PageSelection() string { return o.PageRanges }

type SearchablePdfOptions struct {
	ContainImage   bool   `json:"contain_image"`
	EnableOCR      bool   `json:"enable_ocr"`
	FormulaToImage bool   `json:"formula_to_image"`
	PageRanges     string `json:"page_ranges"`
}

func (o SearchablePdfOptions) PageSelection() string { return o.PageRanges }

func (WordOptions) ConversionType() ConversionType          { return ConversionTypeWord }
func (ExcelOptions) ConversionType() ConversionType         { return ConversionTypeExcel }
func (PptOptions) ConversionType() ConversionType           { return ConversionTypePPT }
func (HtmlOptions) ConversionType() ConversionType          { return ConversionTypeHTML }
func (ImageOptions) ConversionType() ConversionType         { return ConversionTypeImage }
func (MarkdownOptions) ConversionType() ConversionType      { return ConversionTypeMarkdown }
func (RtfOptions) ConversionType() ConversionType           { return ConversionTypeRTF }
func (TxtOptions) ConversionType() ConversionType           { return ConversionTypeTXT }
func (JsonOptions) ConversionType() ConversionType          { return ConversionTypeJSON }
func (SearchablePdfOptions) ConversionType() ConversionType { return ConversionTypeSearchablePDF }

func (WordOptions) isOptions()          {}
func (ExcelOptions) isOptions()         {}
func (PptOptions) isOptions()           {}
func (HtmlOptions) isOptions()          {}
func (ImageOptions) isOptions()         {}
func (MarkdownOptions) isOptions()      {}
func (RtfOptions) isOptions()           {}
func (TxtOptions) isOptions()           {}
func (JsonOptions) isOptions()          {}
func (SearchablePdfOptions) isOptions() {}

func defaultCommon() CommonOptions {
	return CommonOptions{
		ContainImage:      true,
		ContainAnnotation: true,
		EnableAILayout:    true,
	}
}

// DefaultOptions возвращает параметры по умолчанию для формата
func DefaultOptions(t ConversionType) (Options, error) {
	switch t {
	case ConversionTypeWord:
		return WordOptions{CommonOptions: defaultCommon(), PageLayoutMode: PageLayoutFlow}, nil
	case ConversionTypeExcel:
		return ExcelOptions{CommonOptions: defaultCommon(), WorksheetOption: WorksheetForTable}, nil
	case ConversionTypePPT:
		return PptOptions{CommonOptions: defaultCommon()}, nil
	case ConversionTypeHTML:
		return HtmlOptions{
			CommonOptions:  defaultCommon(),
			PageLayoutMode: PageLayoutFlow,
			HtmlPageOption: HtmlSinglePage,
		}, nil
	case ConversionTypeImage:
		return ImageOptions{
			ImageType:   ImageTypeJPG,
			ColorMode:   ImageColorColor,
			Scaling:     1.0,
			PathEnhance: true,
		}, nil
	case ConversionTypeMarkdown:
		return MarkdownOptions{ContainImage: true, ContainAnnotation: true, EnableAILayout: true}, nil
	case ConversionTypeRTF:
		return RtfOptions{CommonOptions: defaultCommon()}, nil
	case ConversionTypeTXT:
		return TxtOptions{EnableAILayout: true, TableFormat: true}, nil
	case ConversionTypeJSON:
		return JsonOptions{ContainImage: true, ContainAnnotation: true, EnableAILayout: true, ContainTable: true}, nil
	case ConversionTypeSearchablePDF:
		return SearchablePdfOptions{ContainImage: true, EnableOCR: true}, nil
	}
	return nil, ErrUnknownConversionType
}

// DecodeOptions накладывает JSON поверх параметров по умолчанию для формата
func DecodeOptions(t ConversionType, raw json.RawMessage) (Options, error) {
	opts, err := DefaultOptions(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}

	switch o := opts.(type) {
	case WordOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case ExcelOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case PptOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case HtmlOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case ImageOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case MarkdownOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case RtfOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case TxtOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case JsonOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	case SearchablePdfOptions:
		err = json.Unmarshal(raw, &o)
		opts = o
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s options: %w", t, err)
	}
	return opts, nil
}

// ValidateOptions проверяет соответствие варианта формату и значения полей
func ValidateOptions(t ConversionType, opts Options) error {
	if opts == nil || opts.ConversionType() != t {
		return ErrOptionsMismatch
	}
	if err := CheckPageRange(opts.PageSelection()); err != nil {
		return err
	}

	switch o := opts.(type) {
	case WordOptions:
		return validateLayout(o.PageLayoutMode)
	case HtmlOptions:
		if err := validateLayout(o.PageLayoutMode); err != nil {
			return err
		}
		if o.HtmlPageOption != HtmlSinglePage && o.HtmlPageOption != HtmlMultiplePage {
			return fmt.Errorf("%w: html page option %q", ErrInvalidOption, o.HtmlPageOption)
		}
	case ExcelOptions:
		switch o.WorksheetOption {
		case WorksheetForTable, WorksheetForPage, WorksheetForDocument:
		default:
			return fmt.Errorf("%w: worksheet option %q", ErrInvalidOption, o.WorksheetOption)
		}
	case ImageOptions:
		if o.ImageType != ImageTypeJPG && o.ImageType != ImageTypePNG {
			return fmt.Errorf("%w: image type %q", ErrInvalidOption, o.ImageType)
		}
		switch o.ColorMode {
		case ImageColorColor, ImageColorGray, ImageColorBinary:
		default:
			return fmt.Errorf("%w: color mode %q", ErrInvalidOption, o.ColorMode)
		}
		if o.Scaling < MinImageScaling || o.Scaling > MaxImageScaling {
			return fmt.Errorf("%w: scaling %.2f", ErrInvalidOption, o.Scaling)
		}
	}
	return nil
}

func validateLayout(m PageLayoutMode) error {
	if m != PageLayoutFlow && m != PageLayoutBox {
		return fmt.Errorf("%w: page layout mode %q", ErrInvalidOption, m)
	}
	return nil
}

// NeedsArchive сообщает, что результат состоит из нескольких файлов
// и перед экспортом должен быть упакован в архив
func NeedsArchive(opts Options) bool {
	switch o := opts.(type) {
	case ImageOptions, MarkdownOptions:
		return true
	case JsonOptions:
		return o.ContainImage
	case ExcelOptions:
		return o.CSVFormat && o.WorksheetOption != WorksheetForDocument
	case WordOptions, PptOptions, HtmlOptions, RtfOptions, TxtOptions, SearchablePdfOptions:
		return false
	}
	return false
}

// IsCSV сообщает, что Excel выгружается в CSV
func IsCSV(opts Options) bool {
	o, ok := opts.(ExcelOptions)
	return ok && o.CSVFormat
}
