package receipts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"example.com/receipt-tracker/backend/internal/models"
)

var ErrInvalidDirection = errors.New("direction must be -1 or 1")

// ViewState is the per-session dashboard state. It is never persisted server-side.
type ViewState struct {
	SelectedMonth string       `json:"selected_month"`
	Theme         models.Theme `json:"theme"`
	Sort          SortConfig   `json:"sort"`
}

// NewViewState создает состояние просмотра на текущий месяц.
func NewViewState(now time.Time) ViewState {
	return ViewState{
		SelectedMonth: now.Format(monthLayout),
		Theme:         models.ThemeSystem,
		Sort:          DefaultSortConfig(),
	}
}

// SelectMonth переключает курсор на месяц без проверки наличия данных.
func (v *ViewState) SelectMonth(key string) {
	v.SelectedMonth = key
}

// Navigate сдвигает курсор ровно на один календарный месяц.
func (v *ViewState) Navigate(direction int) error {
	if direction != -1 && direction != 1 {
		return ErrInvalidDirection
	}

	next, err := ShiftMonth(v.SelectedMonth, direction)
	if err != nil {
		return err
	}

	v.SelectedMonth = next
	return nil
}

// ToggleSort применяет выбор колонки сортировки.
func (v *ViewState) ToggleSort(key SortKey) {
	v.Sort = v.Sort.Toggle(key)
}

// Receipts возвращает чеки выбранного месяца, новые сначала.
func (v ViewState) Receipts(receipts []models.Receipt) []models.Receipt {
	return ReceiptsForMonth(receipts, v.SelectedMonth)
}

// Stats возвращает статистику выбранного месяца или нулевую, если чеков нет.
func (v ViewState) Stats(stats []models.MonthlyStat, budget Budget) models.MonthlyStat {
	return StatsForMonth(stats, v.SelectedMonth, budget)
}

// ShiftMonth moves a YYYY-MM key by delta months. The date is anchored at day 15
// so that month lengths never cause a rollover into the following month.
func ShiftMonth(key string, delta int) (string, error) {
	current, err := time.Parse(monthLayout, key)
	if err != nil {
		return "", fmt.Errorf("invalid month %q: %w", key, err)
	}

	anchored := time.Date(current.Year(), current.Month()+time.Month(delta), 15, 0, 0, 0, 0, time.UTC)
	return anchored.Format(monthLayout), nil
}

// IsMonthKey проверяет формат YYYY-MM.
func IsMonthKey(key string) bool {
	if len(key) != len(monthLayout) {
		return false
	}
	_, err := time.Parse(monthLayout, key)
	return err == nil
}

// ReceiptsForMonth фильтрует чеки по месяцу и сортирует по дате по убыванию.
func ReceiptsForMonth(receipts []models.Receipt, month string) []models.Receipt {
	filtered := make([]models.Receipt, 0)
	for _, receipt := range receipts {
		if strings.HasPrefix(receipt.Date, month) {
			filtered = append(filtered, receipt)
		}
	}

	slices.SortStableFunc(filtered, func(a, b models.Receipt) int {
		return strings.Compare(b.Date, a.Date)
	})

	return filtered
}

// StatsForMonth находит статистику месяца; для пустого месяца возвращает нулевую.
func StatsForMonth(stats []models.MonthlyStat, month string, budget Budget) models.MonthlyStat {
	for _, stat := range stats {
		if stat.Month == month {
			return stat
		}
	}

	return budget.EmptyStat(month)
}
