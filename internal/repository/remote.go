package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
)

type receiptBackend interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Receipt, error)
	Upsert(ctx context.Context, userID uuid.UUID, receipts []models.Receipt) error
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

type budgetBackend interface {
	GetAllowance(ctx context.Context, userID uuid.UUID) (float64, error)
	SetAllowance(ctx context.Context, userID uuid.UUID, allowance float64) error
	GetTheme(ctx context.Context, userID uuid.UUID) (models.Theme, error)
	SetTheme(ctx context.Context, userID uuid.UUID, theme models.Theme) error
}

// RemoteStores hands out per-user views over the shared Postgres repositories.
// Every successful write is published to the user's live subscriptions.
type RemoteStores struct {
	receipts         receiptBackend
	budgets          budgetBackend
	defaultAllowance float64
	publisher        notifications.Publisher
}

// NewRemoteStores создает фабрику хранилищ авторизованных пользователей.
func NewRemoteStores(receipts *ReceiptRepository, budgets *BudgetRepository, defaultAllowance float64, publisher notifications.Publisher) *RemoteStores {
	return newRemoteStores(receipts, budgets, defaultAllowance, publisher)
}

func newRemoteStores(receipts receiptBackend, budgets budgetBackend, defaultAllowance float64, publisher notifications.Publisher) *RemoteStores {
	return &RemoteStores{
		receipts:         receipts,
		budgets:          budgets,
		defaultAllowance: defaultAllowance,
		publisher:        publisher,
	}
}

// ForUser возвращает хранилище конкретного пользователя.
func (s *RemoteStores) ForUser(userID uuid.UUID) ReceiptStore {
	return &userStore{stores: s, userID: userID}
}

type userStore struct {
	stores *RemoteStores
	userID uuid.UUID
}

func (s *userStore) List(ctx context.Context) ([]models.Receipt, error) {
	return s.stores.receipts.ListByUser(ctx, s.userID)
}

func (s *userStore) Upsert(ctx context.Context, receipts ...models.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	for _, receipt := range receipts {
		if err := validateReceipt(receipt); err != nil {
			return err
		}
	}

	if err := s.stores.receipts.Upsert(ctx, s.userID, receipts); err != nil {
		return fmt.Errorf("upsert receipts: %w", err)
	}

	publish(s.stores.publisher, s.userID, notifications.EventReceiptsChanged, notifications.ReceiptsChanged{Upserted: receiptIDs(receipts)})
	return nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	if err := s.stores.receipts.Delete(ctx, s.userID, id); err != nil {
		return err
	}

	publish(s.stores.publisher, s.userID, notifications.EventReceiptsChanged, notifications.ReceiptsChanged{Deleted: []string{id}})
	return nil
}

func (s *userStore) GetAllowance(ctx context.Context) (float64, error) {
	allowance, err := s.stores.budgets.GetAllowance(ctx, s.userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.stores.defaultAllowance, nil
		}
		return 0, err
	}

	return allowance, nil
}

func (s *userStore) SetAllowance(ctx context.Context, allowance float64) error {
	if err := validateAllowance(allowance); err != nil {
		return err
	}

	if err := s.stores.budgets.SetAllowance(ctx, s.userID, allowance); err != nil {
		return err
	}

	publish(s.stores.publisher, s.userID, notifications.EventBudgetChanged, allowance)
	return nil
}

func (s *userStore) GetTheme(ctx context.Context) (models.Theme, error) {
	theme, err := s.stores.budgets.GetTheme(ctx, s.userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.ThemeSystem, nil
		}
		return "", err
	}

	if !models.IsValidTheme(theme) {
		return models.ThemeSystem, nil
	}

	return theme, nil
}

func (s *userStore) SetTheme(ctx context.Context, theme models.Theme) error {
	if !models.IsValidTheme(theme) {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, theme)
	}

	if err := s.stores.budgets.SetTheme(ctx, s.userID, theme); err != nil {
		return err
	}

	publish(s.stores.publisher, s.userID, notifications.EventThemeChanged, theme)
	return nil
}
