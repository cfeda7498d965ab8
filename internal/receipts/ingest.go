package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"example.com/receipt-tracker/backend/internal/ai"
	"example.com/receipt-tracker/backend/internal/models"
)

// File is one uploaded receipt. Open is not called for oversized files.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// BytesFile оборачивает содержимое в памяти в File.
func BytesFile(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type Extractor interface {
	ExtractReceipt(ctx context.Context, doc ai.Document) (ai.Extraction, error)
}

type Pipeline struct {
	extractor    Extractor
	classifier   *TripClassifier
	maxFileBytes int64
	concurrency  int
	newID        func() string
}

type PipelineConfig struct {
	MaxFileBytes int64
	// Concurrency limits parallel extraction calls; 0 means one goroutine per file.
	Concurrency int
}

type outcome struct {
	receipt models.Receipt
	err     *IngestError
}

// NewPipeline создает конвейер загрузки чеков.
func NewPipeline(extractor Extractor, classifier *TripClassifier, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		extractor:    extractor,
		classifier:   classifier,
		maxFileBytes: cfg.MaxFileBytes,
		concurrency:  cfg.Concurrency,
		newID: func() string {
			return uuid.NewString()
		},
	}
}

// Ingest извлекает данные из всех файлов параллельно и дожидается каждого результата.
// Ошибка одного файла не прерывает обработку остальных.
func (p *Pipeline) Ingest(ctx context.Context, files []File, existing []models.Receipt) BatchResult {
	outcomes := make([]outcome, len(files))

	var group errgroup.Group
	if p.concurrency > 0 {
		group.SetLimit(p.concurrency)
	}

	for i, file := range files {
		group.Go(func() error {
			outcomes[i] = p.process(ctx, file)
			return nil
		})
	}
	_ = group.Wait()

	result := newBatchResult(len(files))
	seen := indexTrips(existing)

	for i, item := range outcomes {
		name := files[i].Name
		if item.err != nil {
			result.Errors = append(result.Errors, FileError{
				FileName: name,
				Kind:     item.err.Kind,
				Message:  item.err.Message,
			})
			continue
		}

		key := keyOf(item.receipt)
		if _, exists := seen[key]; exists {
			result.Duplicates = append(result.Duplicates, Duplicate{FileName: name, Data: item.receipt})
			continue
		}

		seen[key] = struct{}{}
		result.Added = append(result.Added, item.receipt)
	}

	return result
}

func (p *Pipeline) process(ctx context.Context, file File) (out outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			out = outcome{err: newIngestError(ErrorKindUnknown, fmt.Errorf("panic: %v", recovered))}
		}
	}()

	if p.maxFileBytes > 0 && file.Size > p.maxFileBytes {
		return outcome{err: oversizeError(file.Size, p.maxFileBytes)}
	}

	data, err := p.read(file)
	if err != nil {
		return outcome{err: ClassifyError(err)}
	}

	mimeType := mimetype.Detect(data).String()
	if !isSupportedType(mimeType) {
		return outcome{err: &IngestError{
			Kind:    ErrorKindRead,
			Message: fmt.Sprintf("Unsupported file type %s (images and PDF only)", baseType(mimeType)),
			Err:     fmt.Errorf("unsupported mime type %s", mimeType),
		}}
	}

	extraction, err := p.extractor.ExtractReceipt(ctx, ai.Document{
		FileName: file.Name,
		MimeType: baseType(mimeType),
		Data:     data,
	})
	if err != nil {
		return outcome{err: ClassifyError(err)}
	}

	return outcome{receipt: models.Receipt{
		ID:              p.newID(),
		Date:            extraction.Date,
		Time:            extraction.Time,
		Amount:          fromCents(toCents(extraction.Amount)),
		Currency:        extraction.Currency,
		PickupLocation:  extraction.PickupLocation,
		DropoffLocation: extraction.DropoffLocation,
		TripType:        p.classifier.Classify(extraction.PickupLocation, extraction.DropoffLocation, extraction.TripType),
		FileName:        file.Name,
	}}
}

func (p *Pipeline) read(file File) ([]byte, error) {
	if file.Open == nil {
		return nil, newIngestError(ErrorKindRead, errors.New("file has no content"))
	}

	reader, err := file.Open()
	if err != nil {
		return nil, newIngestError(ErrorKindRead, err)
	}
	defer reader.Close()

	limited := io.Reader(reader)
	if p.maxFileBytes > 0 {
		limited = io.LimitReader(reader, p.maxFileBytes+1)
	}

	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, newIngestError(ErrorKindRead, err)
	}

	if p.maxFileBytes > 0 && int64(len(data)) > p.maxFileBytes {
		return nil, oversizeError(int64(len(data)), p.maxFileBytes)
	}

	if len(data) == 0 {
		return nil, newIngestError(ErrorKindRead, errors.New("file is empty"))
	}

	return data, nil
}

func isSupportedType(mimeType string) bool {
	base := baseType(mimeType)
	return strings.HasPrefix(base, "image/") || base == "application/pdf"
}

func baseType(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		return strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
