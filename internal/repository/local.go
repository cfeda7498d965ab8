package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"example.com/receipt-tracker/backend/internal/config"
	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
)

// LocalStore keeps the guest profile in a SQLite key-value table. Receipts are
// one JSON array under a single key; the legacy key is only ever read.
type LocalStore struct {
	db               *sql.DB
	keys             config.LocalConfig
	defaultAllowance float64
	publisher        notifications.Publisher

	// mu serializes read-modify-write cycles on the receipts blob.
	mu sync.Mutex
}

// NewLocalStore создает гостевое хранилище поверх таблицы kv.
func NewLocalStore(db *sql.DB, keys config.LocalConfig, defaultAllowance float64, publisher notifications.Publisher) *LocalStore {
	return &LocalStore{
		db:               db,
		keys:             keys,
		defaultAllowance: defaultAllowance,
		publisher:        publisher,
	}
}

// List возвращает все чеки гостевого профиля.
func (s *LocalStore) List(ctx context.Context) ([]models.Receipt, error) {
	return s.load(ctx)
}

// Upsert добавляет чеки или заменяет существующие с тем же id.
func (s *LocalStore) Upsert(ctx context.Context, receipts ...models.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	for _, receipt := range receipts {
		if err := validateReceipt(receipt); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load(ctx)
	if err != nil {
		return err
	}

	positions := make(map[string]int, len(stored))
	for i, receipt := range stored {
		positions[receipt.ID] = i
	}

	for _, receipt := range receipts {
		if i, ok := positions[receipt.ID]; ok {
			stored[i] = receipt
			continue
		}
		positions[receipt.ID] = len(stored)
		stored = append(stored, receipt)
	}

	if err := s.save(ctx, stored); err != nil {
		return err
	}

	publish(s.publisher, models.GuestProfileID, notifications.EventReceiptsChanged, notifications.ReceiptsChanged{Upserted: receiptIDs(receipts)})
	return nil
}

// Delete удаляет чек по идентификатору.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]models.Receipt, 0, len(stored))
	for _, receipt := range stored {
		if receipt.ID != id {
			kept = append(kept, receipt)
		}
	}

	if len(kept) == len(stored) {
		return ErrNotFound
	}

	if err := s.save(ctx, kept); err != nil {
		return err
	}

	publish(s.publisher, models.GuestProfileID, notifications.EventReceiptsChanged, notifications.ReceiptsChanged{Deleted: []string{id}})
	return nil
}

// GetAllowance возвращает месячный бюджет или значение по умолчанию.
func (s *LocalStore) GetAllowance(ctx context.Context) (float64, error) {
	value, err := s.get(ctx, s.keys.AllowanceKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.defaultAllowance, nil
		}
		return 0, err
	}

	allowance, parseErr := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if parseErr != nil || validateAllowance(allowance) != nil {
		slog.WarnContext(ctx, "stored allowance is invalid, using default", "value", value)
		return s.defaultAllowance, nil
	}

	return allowance, nil
}

// SetAllowance сохраняет месячный бюджет.
func (s *LocalStore) SetAllowance(ctx context.Context, allowance float64) error {
	if err := validateAllowance(allowance); err != nil {
		return err
	}

	if err := s.put(ctx, s.keys.AllowanceKey, strconv.FormatFloat(allowance, 'f', -1, 64)); err != nil {
		return err
	}

	publish(s.publisher, models.GuestProfileID, notifications.EventBudgetChanged, allowance)
	return nil
}

// GetTheme возвращает сохраненную тему или system.
func (s *LocalStore) GetTheme(ctx context.Context) (models.Theme, error) {
	value, err := s.get(ctx, s.keys.ThemeKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.ThemeSystem, nil
		}
		return "", err
	}

	theme := models.Theme(value)
	if !models.IsValidTheme(theme) {
		return models.ThemeSystem, nil
	}

	return theme, nil
}

// SetTheme сохраняет тему оформления.
func (s *LocalStore) SetTheme(ctx context.Context, theme models.Theme) error {
	if !models.IsValidTheme(theme) {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, theme)
	}

	if err := s.put(ctx, s.keys.ThemeKey, string(theme)); err != nil {
		return err
	}

	publish(s.publisher, models.GuestProfileID, notifications.EventThemeChanged, theme)
	return nil
}

func (s *LocalStore) load(ctx context.Context) ([]models.Receipt, error) {
	value, err := s.get(ctx, s.keys.ReceiptsKey)
	if errors.Is(err, ErrNotFound) && s.keys.LegacyKey != "" {
		value, err = s.get(ctx, s.keys.LegacyKey)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return make([]models.Receipt, 0), nil
		}
		return nil, err
	}

	receipts := make([]models.Receipt, 0)
	if err := json.Unmarshal([]byte(value), &receipts); err != nil {
		return nil, fmt.Errorf("%w: decode receipts: %v", ErrCorrupt, err)
	}

	return receipts, nil
}

func (s *LocalStore) save(ctx context.Context, receipts []models.Receipt) error {
	payload, err := json.Marshal(receipts)
	if err != nil {
		return fmt.Errorf("encode receipts: %w", err)
	}

	return s.put(ctx, s.keys.ReceiptsKey, string(payload))
}

func (s *LocalStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}

	return value, nil
}

func (s *LocalStore) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at)
		 VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}
