package receipts

import (
	"fmt"
	"strings"

	"example.com/receipt-tracker/backend/internal/models"
)

type Duplicate struct {
	FileName string         `json:"file_name"`
	Data     models.Receipt `json:"data"`
}

type FileError struct {
	FileName string    `json:"file_name"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// BatchResult partitions one upload batch by outcome.
type BatchResult struct {
	Added      []models.Receipt `json:"added"`
	Duplicates []Duplicate      `json:"duplicates"`
	Errors     []FileError      `json:"errors"`
}

func newBatchResult(capacity int) BatchResult {
	return BatchResult{
		Added:      make([]models.Receipt, 0, capacity),
		Duplicates: make([]Duplicate, 0),
		Errors:     make([]FileError, 0),
	}
}

// Summary возвращает краткое описание результата загрузки для пользователя.
func (r BatchResult) Summary() string {
	parts := make([]string, 0, 3)
	if len(r.Added) > 0 {
		parts = append(parts, fmt.Sprintf("%d %s added", len(r.Added), plural(len(r.Added), "receipt", "receipts")))
	}

	if len(r.Duplicates) > 0 {
		names := make([]string, 0, len(r.Duplicates))
		for _, duplicate := range r.Duplicates {
			names = append(names, duplicate.FileName)
		}
		parts = append(parts, fmt.Sprintf("%d %s skipped (%s)", len(r.Duplicates), plural(len(r.Duplicates), "duplicate", "duplicates"), strings.Join(names, ", ")))
	}

	if len(r.Errors) > 0 {
		names := make([]string, 0, len(r.Errors))
		for _, fileErr := range r.Errors {
			names = append(names, fileErr.FileName)
		}
		parts = append(parts, fmt.Sprintf("%d %s failed (%s)", len(r.Errors), plural(len(r.Errors), "file", "files"), strings.Join(names, ", ")))
	}

	if len(parts) == 0 {
		return "No receipts processed"
	}

	return strings.Join(parts, "; ")
}

func plural(count int, one, many string) string {
	if count == 1 {
		return one
	}
	return many
}
