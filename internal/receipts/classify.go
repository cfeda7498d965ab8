package receipts

import (
	"strings"

	"example.com/receipt-tracker/backend/internal/models"
)

// TripClassifier derives a trip type from location text using a keyword list
// of known office and business-park names.
type TripClassifier struct {
	keywords []string
}

// NewTripClassifier создает классификатор поездок по списку ключевых слов.
func NewTripClassifier(keywords []string) *TripClassifier {
	normalized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		trimmed := strings.ToLower(strings.TrimSpace(keyword))
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}

	return &TripClassifier{keywords: normalized}
}

// Classify возвращает тип поездки; proposed используется, если правило офиса не сработало.
func (c *TripClassifier) Classify(pickup, dropoff, proposed string) string {
	pickupIsOffice := c.isOffice(pickup)
	dropoffIsOffice := c.isOffice(dropoff)

	switch {
	case dropoffIsOffice && !pickupIsOffice:
		return models.TripTypeHomeToOffice
	case pickupIsOffice && !dropoffIsOffice:
		return models.TripTypeOfficeToHome
	}

	if strings.TrimSpace(proposed) == "" {
		return models.TripTypeCommute
	}

	return strings.TrimSpace(proposed)
}

func (c *TripClassifier) isOffice(location string) bool {
	text := strings.ToLower(strings.TrimSpace(location))
	if text == "" || text == "n/a" {
		return false
	}

	for _, keyword := range c.keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}
