package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"example.com/receipt-tracker/backend/internal/config"
	"example.com/receipt-tracker/backend/internal/database"
	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
)

type recordedEvent struct {
	profileID uuid.UUID
	event     notifications.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(profileID uuid.UUID, event notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{profileID: profileID, event: event})
}

func (p *fakePublisher) last() recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

var testKeys = config.LocalConfig{
	ReceiptsKey:  "receipts_v2",
	LegacyKey:    "receipts",
	AllowanceKey: "monthly_allowance",
	ThemeKey:     "theme_preference",
}

func newTestLocalStore(t *testing.T) (*LocalStore, *fakePublisher) {
	t.Helper()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "guest.db"))
	if err != nil {
		t.Fatalf("expected sqlite to open, got %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	publisher := &fakePublisher{}
	return NewLocalStore(db, testKeys, 6500, publisher), publisher
}

func sampleReceipt(id string, amount float64) models.Receipt {
	return models.Receipt{
		ID:              id,
		Date:            "2024-02-01",
		Time:            "09:15",
		Amount:          amount,
		Currency:        "INR",
		PickupLocation:  "HSR Layout",
		DropoffLocation: "Manyata Tech Park",
		TripType:        models.TripTypeHomeToOffice,
		FileName:        id + ".png",
	}
}

// TestLocalStoreUpsertAndList проверяет добавление и замену чеков по id.
func TestLocalStoreUpsertAndList(t *testing.T) {
	store, publisher := newTestLocalStore(t)
	ctx := context.Background()

	receipts, err := store.List(ctx)
	if err != nil || len(receipts) != 0 {
		t.Fatalf("expected empty store, got %v (err=%v)", receipts, err)
	}

	if err := store.Upsert(ctx, sampleReceipt("a", 100), sampleReceipt("b", 200)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.Upsert(ctx, sampleReceipt("a", 150)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	receipts, err = store.List(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(receipts) != 2 || receipts[0].ID != "a" || receipts[0].Amount != 150 || receipts[1].ID != "b" {
		t.Fatalf("unexpected receipts %+v", receipts)
	}

	last := publisher.last()
	if last.profileID != models.GuestProfileID || last.event.Type != notifications.EventReceiptsChanged {
		t.Fatalf("unexpected event %+v", last)
	}
}

// TestLocalStoreDelete проверяет удаление и ошибку для неизвестного id.
func TestLocalStoreDelete(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, sampleReceipt("a", 100), sampleReceipt("b", 200)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	receipts, _ := store.List(ctx)
	if len(receipts) != 1 || receipts[0].ID != "b" {
		t.Fatalf("unexpected receipts %+v", receipts)
	}
}

// TestLocalStoreLegacyFallback проверяет чтение устаревшего ключа без его изменения.
func TestLocalStoreLegacyFallback(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	legacy := `[{"id":"old","date":"2023-11-02","time":"08:00","amount":320,"currency":"INR","pickup_location":"Home","dropoff_location":"Office"}]`
	if err := store.put(ctx, testKeys.LegacyKey, legacy); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	receipts, err := store.List(ctx)
	if err != nil || len(receipts) != 1 || receipts[0].ID != "old" {
		t.Fatalf("expected legacy receipt, got %+v (err=%v)", receipts, err)
	}

	if err := store.Upsert(ctx, sampleReceipt("new", 90)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	receipts, _ = store.List(ctx)
	if len(receipts) != 2 {
		t.Fatalf("expected migrated receipts, got %+v", receipts)
	}

	value, err := store.get(ctx, testKeys.LegacyKey)
	if err != nil || value != legacy {
		t.Fatalf("expected legacy key to stay untouched, got %q (err=%v)", value, err)
	}
}

// TestLocalStoreCorruptBlob проверяет ошибку на поврежденном JSON.
func TestLocalStoreCorruptBlob(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	if err := store.put(ctx, testKeys.ReceiptsKey, "{not json"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := store.List(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
}

// TestLocalStoreAllowance проверяет бюджет по умолчанию и его обновление.
func TestLocalStoreAllowance(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	allowance, err := store.GetAllowance(ctx)
	if err != nil || allowance != 6500 {
		t.Fatalf("expected default allowance, got %v (err=%v)", allowance, err)
	}

	if err := store.SetAllowance(ctx, 8000.5); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	allowance, _ = store.GetAllowance(ctx)
	if allowance != 8000.5 {
		t.Fatalf("expected 8000.5, got %v", allowance)
	}

	if err := store.SetAllowance(ctx, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}

	if err := store.put(ctx, testKeys.AllowanceKey, "abc"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	allowance, _ = store.GetAllowance(ctx)
	if allowance != 6500 {
		t.Fatalf("expected default for corrupt value, got %v", allowance)
	}
}

// TestLocalStoreTheme проверяет хранение темы оформления.
func TestLocalStoreTheme(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	theme, err := store.GetTheme(ctx)
	if err != nil || theme != models.ThemeSystem {
		t.Fatalf("expected system theme, got %v (err=%v)", theme, err)
	}

	if err := store.SetTheme(ctx, models.ThemeDark); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	theme, _ = store.GetTheme(ctx)
	if theme != models.ThemeDark {
		t.Fatalf("expected dark theme, got %v", theme)
	}

	if err := store.SetTheme(ctx, models.Theme("sepia")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

// TestLocalStoreConcurrentUpserts проверяет, что параллельные записи не теряются.
func TestLocalStoreConcurrentUpserts(t *testing.T) {
	store, _ := newTestLocalStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Upsert(ctx, sampleReceipt(uuid.NewString(), float64(i))); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}(i)
	}
	wg.Wait()

	receipts, err := store.List(ctx)
	if err != nil || len(receipts) != 10 {
		t.Fatalf("expected 10 receipts, got %d (err=%v)", len(receipts), err)
	}
}
