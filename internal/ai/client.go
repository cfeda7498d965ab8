package ai

import "context"

// Document is a single receipt file sent to the model.
type Document struct {
	FileName string
	MimeType string
	Data     []byte
}

type Client interface {
	Extract(ctx context.Context, systemPrompt, userPrompt string, doc Document) (string, []byte, error)
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}
