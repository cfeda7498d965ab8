package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
	"example.com/receipt-tracker/backend/internal/receipts"
	"example.com/receipt-tracker/backend/internal/repository"
)

const eventSnapshot = "snapshot"

// Subscriber is implemented by notifications.Hub.
type Subscriber interface {
	Subscribe(profileID uuid.UUID) (<-chan notifications.Event, func())
}

type StreamHandler struct {
	Stores          StoreResolver
	Hub             Subscriber
	WarningFraction float64
	Logger          *slog.Logger
}

// NewStreamHandler создает SSE-обработчик живой подписки на чеки.
func NewStreamHandler(stores StoreResolver, hub Subscriber, warningFraction float64, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamHandler{Stores: stores, Hub: hub, WarningFraction: warningFraction, Logger: logger}
}

// Snapshot is the full state pushed to a live subscriber after every change.
type Snapshot struct {
	Receipts  []models.Receipt     `json:"receipts"`
	Months    []models.MonthlyStat `json:"months"`
	Allowance float64              `json:"allowance"`
}

// Stream открывает SSE-поток: снимок при подключении и после каждого изменения.
func (h *StreamHandler) Stream(c echo.Context) error {
	store, profileID := storeFor(c, h.Stores)

	// Subscribe before the first snapshot so no write between the two is lost.
	ch, unsubscribe := h.Hub.Subscribe(profileID)
	defer unsubscribe()

	// The server write timeout is sized for uploads; a stream lives until the client leaves.
	if err := http.NewResponseController(c.Response().Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.Logger.WarnContext(c.Request().Context(), "clear stream write deadline", slog.String("error", err.Error()))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return nil
	}

	ctx := c.Request().Context()
	if err := h.pushSnapshot(ctx, c, store); err != nil {
		return nil
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeSSE(c, event.Type, event); err != nil {
				return nil
			}
			if event.Type == notifications.EventReceiptsChanged || event.Type == notifications.EventBudgetChanged {
				if err := h.pushSnapshot(ctx, c, store); err != nil {
					return nil
				}
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) pushSnapshot(ctx context.Context, c echo.Context, store repository.ReceiptStore) error {
	snapshot, err := h.snapshot(ctx, store)
	if err != nil {
		// The stream stays open; the next change retries the read.
		h.Logger.ErrorContext(ctx, "build stream snapshot", slog.String("error", err.Error()))
		return nil
	}

	return writeSSE(c, eventSnapshot, snapshot)
}

func (h *StreamHandler) snapshot(ctx context.Context, store repository.ReceiptStore) (Snapshot, error) {
	stored, err := store.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	allowance, err := store.GetAllowance(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	budget := receipts.Budget{Allowance: allowance, WarningFraction: h.WarningFraction}
	return Snapshot{
		Receipts:  receipts.Sort(stored, receipts.DefaultSortConfig()),
		Months:    budget.Aggregate(stored),
		Allowance: allowance,
	}, nil
}

func writeSSE(c echo.Context, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := c.Response().Write([]byte("event: " + eventType + "\n")); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return err
	}

	return nil
}
