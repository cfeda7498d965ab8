package ai

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingAPIKey      = errors.New("ai api key is missing")
	ErrRateLimited        = errors.New("ai provider rate limit exceeded")
	ErrUnauthorized       = errors.New("ai provider rejected credentials")
	ErrUnavailable        = errors.New("ai provider unavailable")
	ErrContentBlocked     = errors.New("ai provider blocked the content")
	ErrEmptyResponse      = errors.New("ai response is empty")
	ErrMalformedResponse  = errors.New("ai response is malformed")
	ErrUnsupportedContent = errors.New("content type is not supported by provider")
)

// APIError описывает неуспешный HTTP-ответ провайдера.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap сопоставляет код ответа с ошибкой-сигналом.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return nil
	}
}
