package receipts

import (
	"math"
	"slices"
	"strings"
	"time"

	"example.com/receipt-tracker/backend/internal/models"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"

	DefaultAllowance       = 6500
	DefaultWarningFraction = 0.8
)

// Budget is the allowance a month is measured against.
type Budget struct {
	Allowance       float64
	WarningFraction float64
}

// Aggregate группирует чеки по месяцам с порогом предупреждения по умолчанию.
func Aggregate(receipts []models.Receipt, allowance float64) []models.MonthlyStat {
	return Budget{Allowance: allowance, WarningFraction: DefaultWarningFraction}.Aggregate(receipts)
}

// Aggregate returns one stat per month that has receipts, newest month first.
// Amounts are summed in integer cents so the totals do not depend on input order.
func (b Budget) Aggregate(receipts []models.Receipt) []models.MonthlyStat {
	type bucket struct {
		cents int64
		count int
	}

	buckets := make(map[string]*bucket)
	for _, receipt := range receipts {
		month, ok := MonthKeyOf(receipt.Date)
		if !ok {
			continue
		}

		current, exists := buckets[month]
		if !exists {
			current = &bucket{}
			buckets[month] = current
		}
		current.cents += toCents(receipt.Amount)
		current.count++
	}

	stats := make([]models.MonthlyStat, 0, len(buckets))
	for month, current := range buckets {
		stats = append(stats, b.stat(month, current.cents, current.count))
	}

	slices.SortFunc(stats, func(left, right models.MonthlyStat) int {
		return strings.Compare(right.Month, left.Month)
	})

	return stats
}

// EmptyStat возвращает нулевую статистику для месяца без чеков.
func (b Budget) EmptyStat(month string) models.MonthlyStat {
	return b.stat(month, 0, 0)
}

// Status классифицирует траты относительно бюджета.
func (b Budget) Status(spent float64) models.BudgetStatus {
	return b.status(toCents(spent))
}

func (b Budget) stat(month string, spentCents int64, count int) models.MonthlyStat {
	allowanceCents := toCents(b.Allowance)
	remaining := allowanceCents - spentCents
	if remaining < 0 {
		remaining = 0
	}

	return models.MonthlyStat{
		Month:           month,
		TotalSpent:      fromCents(spentCents),
		TripCount:       count,
		RemainingBudget: fromCents(remaining),
		Status:          b.status(spentCents),
	}
}

func (b Budget) status(spentCents int64) models.BudgetStatus {
	allowanceCents := toCents(b.Allowance)
	if allowanceCents <= 0 {
		if spentCents > 0 {
			return models.BudgetStatusOverBudget
		}
		return models.BudgetStatusSafe
	}

	if spentCents > allowanceCents {
		return models.BudgetStatusOverBudget
	}

	fraction := b.WarningFraction
	if fraction <= 0 {
		fraction = DefaultWarningFraction
	}

	threshold := int64(math.Round(float64(allowanceCents) * fraction))
	if spentCents >= threshold {
		return models.BudgetStatusWarning
	}

	return models.BudgetStatusSafe
}

// MonthKeyOf возвращает ключ YYYY-MM для даты YYYY-MM-DD.
func MonthKeyOf(date string) (string, bool) {
	if len(date) < len(monthLayout) {
		return "", false
	}

	key := date[:len(monthLayout)]
	if _, err := time.Parse(monthLayout, key); err != nil {
		return "", false
	}

	return key, true
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}
