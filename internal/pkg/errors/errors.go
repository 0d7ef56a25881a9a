package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden используется, когда запрос не прошел проверку подлинности
	// (например, невалидный attestation-токен).
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited используется, когда превышен лимит запросов.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrConflict используется для конфликтов состояния.
	ErrConflict = errors.New("resource state conflict")
)
