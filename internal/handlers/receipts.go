package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/metrics"
	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/receipts"
	"example.com/receipt-tracker/backend/internal/repository"
)

const uploadField = "files"

type Ingester interface {
	Ingest(ctx context.Context, files []receipts.File, existing []models.Receipt) receipts.BatchResult
}

type IngestObserver interface {
	ObserveBatch(files int, seconds float64)
	ObserveFile(outcome, kind string)
}

type ExtractionLogger interface {
	LogBatch(ctx context.Context, logs []repository.ExtractionLog) error
}

type ReceiptHandler struct {
	Stores   StoreResolver
	Pipeline Ingester
	MaxFiles int
	Metrics  IngestObserver
	Logs     ExtractionLogger
	Provider string
	Model    string
	Logger   *slog.Logger

	writes profileLocks
}

// NewReceiptHandler создает обработчик загрузки и истории чеков.
func NewReceiptHandler(stores StoreResolver, pipeline Ingester, maxFiles int, observer IngestObserver, logs ExtractionLogger, provider, model string, logger *slog.Logger) *ReceiptHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReceiptHandler{
		Stores:   stores,
		Pipeline: pipeline,
		MaxFiles: maxFiles,
		Metrics:  observer,
		Logs:     logs,
		Provider: provider,
		Model:    model,
		Logger:   logger,
	}
}

type UploadResponse struct {
	receipts.BatchResult
	Summary   string `json:"summary"`
	Persisted bool   `json:"persisted"`
}

type ReceiptListResponse struct {
	Receipts []models.Receipt    `json:"receipts"`
	Sort     receipts.SortConfig `json:"sort"`
}

// Upload извлекает данные из загруженных файлов и сохраняет новые чеки.
func (h *ReceiptHandler) Upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}

	headers := form.File[uploadField]
	if len(headers) == 0 {
		return badRequest(c, "no files uploaded")
	}
	if h.MaxFiles > 0 && len(headers) > h.MaxFiles {
		return badRequest(c, "too many files in one upload (limit "+strconv.Itoa(h.MaxFiles)+")")
	}

	ctx := c.Request().Context()
	store, profileID := storeFor(c, h.Stores)

	existing, err := store.List(ctx)
	if err != nil {
		h.Logger.ErrorContext(ctx, "list receipts before upload", slog.String("error", err.Error()))
		return unavailable(c, "receipt store is unavailable")
	}

	started := time.Now()
	result := h.Pipeline.Ingest(ctx, uploadedFiles(headers), existing)
	persisted := h.persist(ctx, store, profileID, &result)
	h.observe(ctx, result, len(headers), time.Since(started))

	h.logExtractions(ctx, profileID, result)

	return c.JSON(http.StatusOK, UploadResponse{
		BatchResult: result,
		Summary:     result.Summary(),
		Persisted:   persisted,
	})
}

// List возвращает отсортированную историю чеков, при необходимости за один месяц.
func (h *ReceiptHandler) List(c echo.Context) error {
	config, err := receipts.ParseSortConfig(c.QueryParam("sort"), c.QueryParam("direction"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	month := c.QueryParam("month")
	if month != "" && !receipts.IsMonthKey(month) {
		return badRequest(c, "invalid month")
	}

	store, _ := storeFor(c, h.Stores)
	stored, err := store.List(c.Request().Context())
	if err != nil {
		h.Logger.ErrorContext(c.Request().Context(), "list receipts", slog.String("error", err.Error()))
		return serverError(c)
	}

	if month != "" {
		stored = receipts.ReceiptsForMonth(stored, month)
	}

	return c.JSON(http.StatusOK, ReceiptListResponse{
		Receipts: receipts.Sort(stored, config),
		Sort:     config,
	})
}

// Delete удаляет чек по идентификатору.
func (h *ReceiptHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return badRequest(c, "invalid receipt id")
	}

	store, _ := storeFor(c, h.Stores)
	if err := store.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "receipt not found")
		}
		h.Logger.ErrorContext(c.Request().Context(), "delete receipt",
			slog.String("receipt_id", id),
			slog.String("error", err.Error()),
		)
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// ExportCSV выгружает историю чеков в CSV с текущей сортировкой.
func (h *ReceiptHandler) ExportCSV(c echo.Context) error {
	config, err := receipts.ParseSortConfig(c.QueryParam("sort"), c.QueryParam("direction"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	store, _ := storeFor(c, h.Stores)
	stored, err := store.List(c.Request().Context())
	if err != nil {
		h.Logger.ErrorContext(c.Request().Context(), "list receipts for export", slog.String("error", err.Error()))
		return serverError(c)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writeReceiptsCSV(writer, receipts.Sort(stored, config)); err != nil {
		return serverError(c)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\"receipts.csv\"")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func writeReceiptsCSV(writer *csv.Writer, list []models.Receipt) error {
	header := []string{"id", "date", "time", "amount", "currency", "pickup_location", "dropoff_location", "trip_type", "file_name"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, receipt := range list {
		record := []string{
			receipt.ID,
			receipt.Date,
			receipt.Time,
			strconv.FormatFloat(receipt.Amount, 'f', 2, 64),
			receipt.Currency,
			receipt.PickupLocation,
			receipt.DropoffLocation,
			receipt.TripType,
			receipt.FileName,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func uploadedFiles(headers []*multipart.FileHeader) []receipts.File {
	files := make([]receipts.File, 0, len(headers))
	for _, header := range headers {
		files = append(files, receipts.File{
			Name: header.Filename,
			Size: header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		})
	}
	return files
}

// persist записывает новые чеки, предварительно сверяя их с актуальным содержимым хранилища.
// Параллельная загрузка той же поездки успевает сохраниться раньше и попадает в дубликаты.
func (h *ReceiptHandler) persist(ctx context.Context, store repository.ReceiptStore, profileID uuid.UUID, result *receipts.BatchResult) bool {
	if len(result.Added) == 0 {
		return true
	}

	unlock := h.writes.lock(profileID)
	defer unlock()

	current, err := store.List(ctx)
	if err != nil {
		h.Logger.ErrorContext(ctx, "recheck receipts before persist", slog.String("error", err.Error()))
		return false
	}

	result.ExcludeStored(current)
	if len(result.Added) == 0 {
		return true
	}

	if err := store.Upsert(ctx, result.Added...); err != nil {
		h.Logger.ErrorContext(ctx, "persist uploaded receipts",
			slog.Int("receipts", len(result.Added)),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}

func (h *ReceiptHandler) observe(ctx context.Context, result receipts.BatchResult, files int, elapsed time.Duration) {
	h.Logger.InfoContext(ctx, "receipt batch processed",
		slog.Int("files", files),
		slog.Int("added", len(result.Added)),
		slog.Int("duplicates", len(result.Duplicates)),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("elapsed", elapsed),
	)

	for _, fileErr := range result.Errors {
		h.Logger.WarnContext(ctx, "receipt file failed",
			slog.String("file", fileErr.FileName),
			slog.String("kind", string(fileErr.Kind)),
		)
	}

	if h.Metrics == nil {
		return
	}

	h.Metrics.ObserveBatch(files, elapsed.Seconds())
	for range result.Added {
		h.Metrics.ObserveFile(metrics.OutcomeAdded, "")
	}
	for range result.Duplicates {
		h.Metrics.ObserveFile(metrics.OutcomeDuplicate, "")
	}
	for _, fileErr := range result.Errors {
		h.Metrics.ObserveFile(metrics.OutcomeError, string(fileErr.Kind))
	}
}

func (h *ReceiptHandler) logExtractions(ctx context.Context, profileID uuid.UUID, result receipts.BatchResult) {
	if h.Logs == nil || profileID == models.GuestProfileID {
		return
	}

	logs := make([]repository.ExtractionLog, 0, len(result.Added)+len(result.Duplicates)+len(result.Errors))
	newLog := func(fileName string, kind *string) repository.ExtractionLog {
		return repository.ExtractionLog{
			UserID:    profileID,
			Provider:  h.Provider,
			Model:     h.Model,
			FileName:  fileName,
			Success:   kind == nil,
			ErrorKind: kind,
		}
	}

	for _, receipt := range result.Added {
		logs = append(logs, newLog(receipt.FileName, nil))
	}
	for _, duplicate := range result.Duplicates {
		logs = append(logs, newLog(duplicate.FileName, nil))
	}
	for _, fileErr := range result.Errors {
		kind := string(fileErr.Kind)
		logs = append(logs, newLog(fileErr.FileName, &kind))
	}

	if err := h.Logs.LogBatch(ctx, logs); err != nil {
		h.Logger.ErrorContext(ctx, "log extraction requests", slog.String("error", err.Error()))
	}
}
