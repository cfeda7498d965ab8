package handlers

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/repository"
)

type testValidator struct {
	validate *validator.Validate
}

func (v testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = testValidator{validate: validator.New()}
	return e
}

type memoryStore struct {
	mu        sync.Mutex
	receipts  []models.Receipt
	allowance float64
	theme     models.Theme
	listErr   error
	upsertErr error
}

func newMemoryStore(receipts ...models.Receipt) *memoryStore {
	return &memoryStore{receipts: receipts, allowance: 6500, theme: models.ThemeSystem}
}

func (s *memoryStore) List(context.Context) ([]models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Receipt(nil), s.receipts...), nil
}

func (s *memoryStore) Upsert(_ context.Context, receipts ...models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.receipts = append(s.receipts, receipts...)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, receipt := range s.receipts {
		if receipt.ID == id {
			s.receipts = append(s.receipts[:i], s.receipts[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memoryStore) GetAllowance(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowance, nil
}

func (s *memoryStore) SetAllowance(_ context.Context, allowance float64) error {
	if allowance <= 0 {
		return repository.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowance = allowance
	return nil
}

func (s *memoryStore) GetTheme(context.Context) (models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme, nil
}

func (s *memoryStore) SetTheme(_ context.Context, theme models.Theme) error {
	if !models.IsValidTheme(theme) {
		return repository.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	return nil
}

type singleResolver struct {
	store repository.ReceiptStore
}

func (r singleResolver) Resolve(uuid.UUID) repository.ReceiptStore {
	return r.store
}

func testReceipt(id, date string, amount float64, pickup string) models.Receipt {
	return models.Receipt{
		ID:              id,
		Date:            date,
		Time:            "09:00",
		Amount:          amount,
		Currency:        "INR",
		PickupLocation:  pickup,
		DropoffLocation: "Office",
	}
}
