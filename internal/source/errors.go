package source

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload: источник ответил, но тело не является JSON.
var ErrInvalidPayload = errors.New("invalid json payload")

// StatusError: ответ сервера вне диапазона 2xx.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Retryable: имеет ли смысл повторять запрос (5xx, 408, 429).
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == 408 || e.Code == 429
}

// ThrottleError: сервер попросил подождать (Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}

// isRetryable: клиентские ошибки (404, 401...) и битый JSON повторять бесполезно.
func isRetryable(err error) bool {
	if errors.Is(err, ErrInvalidPayload) {
		return false
	}
	var tErr *ThrottleError
	if errors.As(err, &tErr) {
		return true
	}
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.Retryable()
	}
	return true
}
