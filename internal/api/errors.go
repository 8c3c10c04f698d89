package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthorization сигнализирует об ошибке авторизации (401).
// Клиент ее специально не обрабатывает, реагировать должна внешняя сессия.
var ErrAuthorization = errors.New("ошибка авторизации")

// ServerError - сервер ответил статусом не из 2xx.
type ServerError struct {
	StatusCode int
	Detail     string // Пусто, если сервер не прислал detail
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ошибка сервера (статус %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.StatusCode)
}

// Unwrap позволяет проверять 401 через errors.Is(err, ErrAuthorization).
func (e *ServerError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrAuthorization
	}
	return nil
}

// TransportError - ответ от сервера не получен (сеть, DNS, отмена контекста).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "ошибка выполнения запроса: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DetailOf возвращает detail из ответа сервера, если ошибка его содержит.
func DetailOf(err error) (string, bool) {
	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Detail != "" {
		return serverErr.Detail, true
	}
	return "", false
}

// Message возвращает текст для пользователя: detail сервера или fallback.
func Message(err error, fallback string) string {
	if detail, ok := DetailOf(err); ok {
		return detail
	}
	return fallback
}
