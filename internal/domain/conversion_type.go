package domain

import (
	"errors"
	"strings"
)

var ErrUnknownConversionType = errors.New("unknown conversion type")

// ConversionType целевой формат конвертации
type ConversionType string

const (
	ConversionTypeWord          ConversionType = "WORD"
	ConversionTypeExcel         ConversionType = "EXCEL"
	ConversionTypePPT           ConversionType = "PPT"
	ConversionTypeHTML          ConversionType = "HTML"
	ConversionTypeImage         ConversionType = "IMAGE"
	ConversionTypeMarkdown      ConversionType = "MARKDOWN"
	ConversionTypeRTF           ConversionType = "RTF"
	ConversionTypeTXT           ConversionType = "TXT"
	ConversionTypeJSON          ConversionType = "JSON"
	ConversionTypeSearchablePDF ConversionType = "SEARCHABLE_PDF"
)

// ConversionTypes все поддерживаемые форматы в порядке отображения
var ConversionTypes = []ConversionType{
	ConversionTypeWord,
	ConversionTypeExcel,
	ConversionTypePPT,
	ConversionTypeHTML,
	ConversionTypeImage,
	ConversionTypeMarkdown,
	ConversionTypeRTF,
	ConversionTypeTXT,
	ConversionTypeJSON,
	ConversionTypeSearchablePDF,
}

// ParseConversionType разбирает формат без учёта регистра
func ParseConversionType(s string) (ConversionType, error) {
	t := ConversionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrUnknownConversionType
	}
	return t, nil
}

// IsValid проверяет валидность формата
func (t ConversionType) IsValid() bool {
	switch t {
	case ConversionTypeWord, ConversionTypeExcel, ConversionTypePPT, ConversionTypeHTML,
		ConversionTypeImage, ConversionTypeMarkdown, ConversionTypeRTF, ConversionTypeTXT,
		ConversionTypeJSON, ConversionTypeSearchablePDF:
		return true
	}
	return false
}

// Extension возвращает расширение результата по умолчанию.
// Для IMAGE расширения нет: результатом является каталог со страницами.
func (t ConversionType) Extension() string {
	switch t {
	case ConversionTypeWord:
		return ".docx"
	case ConversionTypeExcel:
		return ".xlsx"
	case ConversionTypePPT:
		return ".pptx"
	case ConversionTypeHTML:
		return ".html"
	case ConversionTypeImage:
		return ""
	case ConversionTypeMarkdown:
		return ".md"
	case ConversionTypeRTF:
		return ".rtf"
	case ConversionTypeTXT:
		return ".txt"
	case ConversionTypeJSON:
		return ".json"
	case ConversionTypeSearchablePDF:
		return ".pdf"
	}
	return ""
}

func (t ConversionType) String() string {
	return string(t)
}
