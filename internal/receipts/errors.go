package receipts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"example.com/receipt-tracker/backend/internal/ai"
)

// ErrorKind classifies a per-file ingestion failure.
type ErrorKind string

const (
	ErrorKindOversize           ErrorKind = "oversize"
	ErrorKindRead               ErrorKind = "read_error"
	ErrorKindEmptyResponse      ErrorKind = "empty_response"
	ErrorKindMalformedResponse  ErrorKind = "malformed_response"
	ErrorKindRateLimit          ErrorKind = "rate_limit"
	ErrorKindAuth               ErrorKind = "auth"
	ErrorKindServiceUnavailable ErrorKind = "service_unavailable"
	ErrorKindNetwork            ErrorKind = "network"
	ErrorKindContentBlocked     ErrorKind = "content_blocked"
	ErrorKindUnknown            ErrorKind = "unknown"
)

var kindMessages = map[ErrorKind]string{
	ErrorKindOversize:           "File is too large",
	ErrorKindRead:               "File could not be read",
	ErrorKindEmptyResponse:      "No data could be extracted from the receipt",
	ErrorKindMalformedResponse:  "Receipt data was incomplete (date and amount are required)",
	ErrorKindRateLimit:          "Extraction quota exceeded, try again later",
	ErrorKindAuth:               "Extraction service rejected the API key",
	ErrorKindServiceUnavailable: "Extraction service is unavailable, try again later",
	ErrorKindNetwork:            "Network error while contacting the extraction service",
	ErrorKindContentBlocked:     "Receipt was blocked by the content policy",
	ErrorKindUnknown:            "Receipt could not be processed",
}

// IngestError is a classified per-file failure. It never escapes a batch.
type IngestError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func newIngestError(kind ErrorKind, err error) *IngestError {
	return &IngestError{Kind: kind, Message: kindMessages[kind], Err: err}
}

func oversizeError(size, limit int64) *IngestError {
	return &IngestError{
		Kind:    ErrorKindOversize,
		Message: fmt.Sprintf("File is too large (%.1f MB, limit %d MB)", float64(size)/(1024*1024), limit/(1024*1024)),
		Err:     fmt.Errorf("file size %d exceeds limit %d", size, limit),
	}
}

// ClassifyError сопоставляет ошибку извлечения с видом ошибки загрузки.
func ClassifyError(err error) *IngestError {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr
	}

	switch {
	case errors.Is(err, ai.ErrEmptyResponse):
		return newIngestError(ErrorKindEmptyResponse, err)
	case errors.Is(err, ai.ErrUnsupportedContent):
		return &IngestError{Kind: ErrorKindRead, Message: "Unsupported file type for the extraction provider", Err: err}
	case errors.Is(err, ai.ErrMalformedResponse):
		return newIngestError(ErrorKindMalformedResponse, err)
	case errors.Is(err, ai.ErrRateLimited):
		return newIngestError(ErrorKindRateLimit, err)
	case errors.Is(err, ai.ErrUnauthorized), errors.Is(err, ai.ErrMissingAPIKey):
		return newIngestError(ErrorKindAuth, err)
	case errors.Is(err, ai.ErrUnavailable):
		return newIngestError(ErrorKindServiceUnavailable, err)
	case errors.Is(err, ai.ErrContentBlocked):
		return newIngestError(ErrorKindContentBlocked, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newIngestError(ErrorKindNetwork, err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return newIngestError(ErrorKindNetwork, err)
	}

	return newIngestError(ErrorKindUnknown, err)
}
