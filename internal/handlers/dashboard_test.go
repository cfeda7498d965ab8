package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/receipt-tracker/backend/internal/models"
)

func newTestDashboard(store *memoryStore) *DashboardHandler {
	handler := NewDashboardHandler(singleResolver{store: store}, 0.8, nil)
	handler.Now = func() time.Time {
		return time.Date(2024, time.December, 20, 10, 0, 0, 0, time.UTC)
	}
	return handler
}

func getDashboard(t *testing.T, handler *DashboardHandler, query string) (int, DashboardResponse) {
	t.Helper()

	e := newTestEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard"+query, nil), rec)
	if err := handler.Get(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var response DashboardResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
			t.Fatalf("expected valid json, got %v", err)
		}
	}
	return rec.Code, response
}

// TestDashboardDefaultsToCurrentMonth проверяет выбор текущего месяца и сводку.
func TestDashboardDefaultsToCurrentMonth(t *testing.T) {
	store := newMemoryStore(
		testReceipt("a", "2024-12-01", 3000, "Home"),
		testReceipt("b", "2024-12-05", 2300, "Home"),
		testReceipt("c", "2024-11-05", 100, "Home"),
	)

	code, response := getDashboard(t, newTestDashboard(store), "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	if response.View.SelectedMonth != "2024-12" || response.PreviousMonth != "2024-11" || response.NextMonth != "2025-01" {
		t.Fatalf("unexpected months %+v", response)
	}
	if response.Selected.TotalSpent != 5300 || response.Selected.Status != models.BudgetStatusWarning {
		t.Fatalf("unexpected selected stat %+v", response.Selected)
	}
	if len(response.Months) != 2 || response.Months[0].Month != "2024-12" {
		t.Fatalf("unexpected months %+v", response.Months)
	}
	if len(response.Receipts) != 2 || response.Receipts[0].ID != "b" {
		t.Fatalf("unexpected receipts %+v", response.Receipts)
	}
	if response.View.Theme != models.ThemeSystem {
		t.Fatalf("expected system theme, got %s", response.View.Theme)
	}
}

// TestDashboardNavigate проверяет переход на следующий месяц без данных.
func TestDashboardNavigate(t *testing.T) {
	code, response := getDashboard(t, newTestDashboard(newMemoryStore()), "?month=2024-12&navigate=1")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	if response.View.SelectedMonth != "2025-01" {
		t.Fatalf("expected 2025-01, got %s", response.View.SelectedMonth)
	}
	if response.Selected.TripCount != 0 || response.Selected.RemainingBudget != 6500 || response.Selected.Status != models.BudgetStatusSafe {
		t.Fatalf("expected empty month stat, got %+v", response.Selected)
	}
	if response.Receipts == nil || response.Months == nil {
		t.Fatal("expected empty lists instead of null")
	}
}

// TestDashboardToggleSort проверяет переключение направления по повторному выбору колонки.
func TestDashboardToggleSort(t *testing.T) {
	store := newMemoryStore(
		testReceipt("cheap", "2024-12-01", 100, "Home"),
		testReceipt("pricey", "2024-12-02", 900, "Home"),
	)
	handler := newTestDashboard(store)

	code, response := getDashboard(t, handler, "?sort=amount&direction=desc&toggle=amount")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if response.View.Sort.Direction != "asc" || response.Receipts[0].ID != "cheap" {
		t.Fatalf("expected ascending amount order, got %+v %+v", response.View.Sort, response.Receipts)
	}

	_, response = getDashboard(t, handler, "?sort=amount&direction=asc&toggle=date")
	if response.View.Sort.Key != "date" || response.View.Sort.Direction != "desc" || response.Receipts[0].ID != "pricey" {
		t.Fatalf("expected new column to reset to descending date, got %+v %+v", response.View.Sort, response.Receipts)
	}

	if code, _ := getDashboard(t, handler, "?toggle=color"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown column, got %d", code)
	}
}

// TestDashboardRejectsInvalidInput проверяет ошибки параметров.
func TestDashboardRejectsInvalidInput(t *testing.T) {
	handler := newTestDashboard(newMemoryStore())

	for _, query := range []string{"?month=2024-13", "?navigate=2", "?navigate=up", "?sort=currency"} {
		if code, _ := getDashboard(t, handler, query); code != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", query, code)
		}
	}
}
