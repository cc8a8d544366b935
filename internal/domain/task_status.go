package domain

// ConversionStatus представляет статус задачи конвертации
type ConversionStatus string

const (
	StatusReady        ConversionStatus = "READY"         // Задача создана, ожидает запуска
	StatusConverting   ConversionStatus = "CONVERTING"    // Движок выполняет конвертацию
	StatusSuccess      ConversionStatus = "SUCCESS"       // Конвертация и экспорт завершены
	StatusFailed       ConversionStatus = "FAILED"        // Движок вернул код ошибки
	StatusExportFailed ConversionStatus = "EXPORT_FAILED" // Конвертация прошла, экспорт результата нет
)

// IsValid проверяет валидность статуса
func (s ConversionStatus) IsValid() bool {
	switch s {
	case StatusReady, StatusConverting, StatusSuccess, StatusFailed, StatusExportFailed:
		return true
	}
	return false
}

// IsFinal проверяет, завершён ли текущий запуск задачи.
// Финальный статус не окончательный: задачу можно вернуть в READY.
func (s ConversionStatus) IsFinal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusExportFailed
}

func (s ConversionStatus) String() string {
	return string(s)
}
