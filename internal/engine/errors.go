package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable - без каталога отчёт построить нельзя. Запрос можно повторить.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrMaterialNotFound   = errors.New("material not found")
	ErrNotConfigured      = errors.New("source not configured")
	// ErrSourceUnavailable - отказал источник, без которого ответ не имеет смысла.
	ErrSourceUnavailable  = errors.New("source unavailable")

	errNoResult = errors.New("no result before deadline")
)

// SourceError - отказ одного источника. Наружу не возвращается: поля источника
// деградируют до нулей, ошибка пишется в лог и в метрики.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source %s: %v", e.Source, e.Err) }

func (e *SourceError) Unwrap() error { return e.Err }
