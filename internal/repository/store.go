package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
)

// ReceiptStore is the persistence contract shared by the guest and the
// authenticated backends. Aggregation never needs to know which one is active.
type ReceiptStore interface {
	List(ctx context.Context) ([]models.Receipt, error)
	Upsert(ctx context.Context, receipts ...models.Receipt) error
	Delete(ctx context.Context, id string) error
	GetAllowance(ctx context.Context) (float64, error)
	SetAllowance(ctx context.Context, allowance float64) error
	GetTheme(ctx context.Context) (models.Theme, error)
	SetTheme(ctx context.Context, theme models.Theme) error
}

// Resolver выбирает хранилище для профиля запроса.
type Resolver struct {
	local  ReceiptStore
	remote *RemoteStores
}

// NewResolver создает резолвер; remote может быть nil, если удаленное хранилище не настроено.
func NewResolver(local ReceiptStore, remote *RemoteStores) *Resolver {
	return &Resolver{local: local, remote: remote}
}

// Resolve возвращает удаленное хранилище пользователя или локальное гостевое.
func (r *Resolver) Resolve(profileID uuid.UUID) ReceiptStore {
	if profileID == models.GuestProfileID || r.remote == nil {
		return r.local
	}
	return r.remote.ForUser(profileID)
}

func validateAllowance(allowance float64) error {
	if math.IsNaN(allowance) || math.IsInf(allowance, 0) || allowance <= 0 {
		return fmt.Errorf("%w: allowance must be a positive number", ErrInvalid)
	}
	return nil
}

func validateReceipt(receipt models.Receipt) error {
	if receipt.ID == "" {
		return fmt.Errorf("%w: receipt id is required", ErrInvalid)
	}
	if math.IsNaN(receipt.Amount) || receipt.Amount < 0 {
		return fmt.Errorf("%w: receipt %s has invalid amount", ErrInvalid, receipt.ID)
	}
	return nil
}

func receiptIDs(receipts []models.Receipt) []string {
	ids := make([]string, 0, len(receipts))
	for _, receipt := range receipts {
		ids = append(ids, receipt.ID)
	}
	return ids
}

func publish(publisher notifications.Publisher, profileID uuid.UUID, eventType string, data interface{}) {
	if publisher == nil {
		return
	}
	publisher.Publish(profileID, notifications.Event{Type: eventType, Data: data})
}
