package actions

import (
	"context"
	"errors"
	"fmt"
)

// APIError описывает ответ API с кодом ошибки.
type APIError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: %d - %s", e.Operation, e.StatusCode, e.Detail)
}

// TransportError описывает ошибку соединения с API.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v (check that the backend API is running and reachable)", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsCanceled сообщает, что запрос был отменён вызывающей стороной.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
