package domain

import "fmt"

// ErrorCode код результата движка конвертации.
// Набор кодов открытый: неизвестные коды показываются пользователю как есть.
type ErrorCode int

const (
	ErrorCodeSuccess           ErrorCode = 0
	ErrorCodeCanceled          ErrorCode = 1
	ErrorCodeFileError         ErrorCode = 2
	ErrorCodeInvalidPageRange  ErrorCode = 3
	ErrorCodeUnsupported       ErrorCode = 4
	ErrorCodeWriteError        ErrorCode = 5
	ErrorCodeModelUnavailable  ErrorCode = 6
	ErrorCodeOutputUnavailable ErrorCode = 8
	ErrorCodeUnknown           ErrorCode = 99
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeSuccess:           "SUCCESS",
	ErrorCodeCanceled:          "CANCELED",
	ErrorCodeFileError:         "FILE_ERROR",
	ErrorCodeInvalidPageRange:  "INVALID_PAGE_RANGE",
	ErrorCodeUnsupported:       "UNSUPPORTED",
	ErrorCodeWriteError:        "WRITE_ERROR",
	ErrorCodeModelUnavailable:  "MODEL_UNAVAILABLE",
	ErrorCodeOutputUnavailable: "OUTPUT_UNAVAILABLE",
	ErrorCodeUnknown:           "UNKNOWN",
}

// IsSuccess проверяет успешность результата
func (c ErrorCode) IsSuccess() bool {
	return c == ErrorCodeSuccess
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_CODE_%d", int(c))
}
