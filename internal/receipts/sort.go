package receipts

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"example.com/receipt-tracker/backend/internal/models"
)

type SortKey string

type SortDirection string

const (
	SortByDate   SortKey = "date"
	SortByAmount SortKey = "amount"
	SortByPickup SortKey = "pickup_location"

	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"

	defaultTime = "00:00"
)

type SortConfig struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// DefaultSortConfig возвращает сортировку истории по умолчанию.
func DefaultSortConfig() SortConfig {
	return SortConfig{Key: SortByDate, Direction: SortDesc}
}

// Toggle flips the direction when the same key is chosen again; a new key
// starts descending.
func (c SortConfig) Toggle(key SortKey) SortConfig {
	if c.Key == key {
		if c.Direction == SortDesc {
			return SortConfig{Key: key, Direction: SortAsc}
		}
		return SortConfig{Key: key, Direction: SortDesc}
	}

	return SortConfig{Key: key, Direction: SortDesc}
}

// ParseSortConfig разбирает параметры сортировки из запроса.
func ParseSortConfig(key, direction string) (SortConfig, error) {
	config := DefaultSortConfig()

	switch SortKey(strings.ToLower(strings.TrimSpace(key))) {
	case "":
	case SortByDate:
		config.Key = SortByDate
	case SortByAmount:
		config.Key = SortByAmount
	case SortByPickup:
		config.Key = SortByPickup
	default:
		return config, fmt.Errorf("invalid sort key %q", key)
	}

	switch SortDirection(strings.ToLower(strings.TrimSpace(direction))) {
	case "":
	case SortAsc:
		config.Direction = SortAsc
	case SortDesc:
		config.Direction = SortDesc
	default:
		return config, fmt.Errorf("invalid sort direction %q", direction)
	}

	return config, nil
}

// Sort returns a stably sorted copy; the input slice is not modified.
func Sort(receipts []models.Receipt, config SortConfig) []models.Receipt {
	sorted := slices.Clone(receipts)
	if sorted == nil {
		sorted = make([]models.Receipt, 0)
	}

	compare := comparator(config.Key)
	slices.SortStableFunc(sorted, func(a, b models.Receipt) int {
		if config.Direction == SortAsc {
			return compare(a, b)
		}
		return compare(b, a)
	})

	return sorted
}

func comparator(key SortKey) func(a, b models.Receipt) int {
	switch key {
	case SortByAmount:
		return func(a, b models.Receipt) int {
			return cmp.Compare(a.Amount, b.Amount)
		}
	case SortByPickup:
		return func(a, b models.Receipt) int {
			return strings.Compare(strings.ToLower(a.PickupLocation), strings.ToLower(b.PickupLocation))
		}
	default:
		return func(a, b models.Receipt) int {
			return receiptInstant(a).Compare(receiptInstant(b))
		}
	}
}

// receiptInstant combines date and time; unparseable dates become the zero time.
func receiptInstant(receipt models.Receipt) time.Time {
	clock := strings.TrimSpace(receipt.Time)
	if clock == "" {
		clock = defaultTime
	}

	instant, err := time.Parse(dateLayout+" 15:04", strings.TrimSpace(receipt.Date)+" "+clock)
	if err == nil {
		return instant
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(receipt.Date))
	if err != nil {
		return time.Time{}
	}

	return date
}
