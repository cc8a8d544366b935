package domain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrSourceNotFound      = errors.New("source file not found")
)

// Поддерживаемые исходные документы: PDF и изображения
var supportedSourceExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".webp": true,
}

// Маппинг расширений результатов на MIME типы
var extToContentType = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".html": "text/html",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".json": "application/json",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// ValidateSource проверяет, что исходный файл существует и доступен для чтения
func ValidateSource(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedSourceExts[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrSourceNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	return f.Close()
}

// ContentTypeFromFileName определяет MIME тип по имени файла
func ContentTypeFromFileName(fileName string) string {
	ct, ok := extToContentType[strings.ToLower(filepath.Ext(fileName))]
	if !ok {
		return "application/octet-stream"
	}
	return ct
}

// IsPDF проверяет, является ли файл PDF
func IsPDF(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}
