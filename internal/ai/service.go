package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04"
	defaultCurrency = "INR"
	emptyLocation   = "N/A"
)

const systemPrompt = "You extract structured data from ride and travel receipts. Respond with JSON only, without extra text."

const extractPrompt = `Extract the trip from this receipt as JSON.

Requirements:
- Output JSON only, no code fences, no extra text.
- Schema:
{
  "date": "YYYY-MM-DD",
  "time": "HH:MM",
  "amount": number,
  "currency": string,
  "pickup_location": string,
  "dropoff_location": string,
  "trip_type": "Home to Office" | "Office to Home" | "Commute" | "Personal" | "Business"
}
- date and time are the trip start in 24h format.
- amount is the total paid, a plain number without currency symbols.
- currency is a short code such as "INR".
- Use "N/A" when a location is not printed on the receipt.`

// amountPattern выделяет первое число: "Rs. 250" → 250, "INR 1,250.50" → 1250.50.
var amountPattern = regexp.MustCompile(`-?\d[\d,]*(\.\d+)?`)

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM", "3:04 pm", "3:04pm"}

type Service struct {
	client Client
}

// NewService создает сервис извлечения данных из чеков.
func NewService(client Client) *Service {
	return &Service{client: client}
}

// ExtractReceipt запрашивает у модели поля чека и валидирует ответ.
func (s *Service) ExtractReceipt(ctx context.Context, doc Document) (Extraction, error) {
	content, _, err := s.client.Extract(ctx, systemPrompt, extractPrompt, doc)
	if err != nil {
		return Extraction{}, err
	}

	if strings.TrimSpace(content) == "" {
		return Extraction{}, ErrEmptyResponse
	}

	var payload extractionPayload
	if err := parseJSON(content, &payload); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	extraction, err := normalizeExtraction(payload)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return extraction, nil
}

func normalizeExtraction(payload extractionPayload) (Extraction, error) {
	date := strings.TrimSpace(deref(payload.Date))
	if date == "" {
		return Extraction{}, errors.New("date is required")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Extraction{}, fmt.Errorf("date %q is not YYYY-MM-DD", date)
	}

	amount, err := parseAmount(payload.Amount)
	if err != nil {
		return Extraction{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(deref(payload.Currency)))
	if currency == "" {
		currency = defaultCurrency
	}

	return Extraction{
		Date:            date,
		Time:            normalizeTime(deref(payload.Time)),
		Amount:          amount,
		Currency:        currency,
		PickupLocation:  normalizeLocation(deref(payload.PickupLocation)),
		DropoffLocation: normalizeLocation(deref(payload.DropoffLocation)),
		TripType:        strings.TrimSpace(deref(payload.TripType)),
	}, nil
}

func parseAmount(raw json.RawMessage) (float64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, errors.New("amount is required")
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("amount %s is not a number", trimmed)
		}

		parsed, parseErr := parseAmountText(text)
		if parseErr != nil {
			return 0, parseErr
		}
		value = parsed
	}

	if value < 0 {
		return 0, errors.New("amount must not be negative")
	}

	return value, nil
}

func parseAmountText(text string) (float64, error) {
	match := amountPattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("amount %q is not a number", text)
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", text)
	}

	return value, nil
}

func normalizeTime(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format(timeLayout)
		}
	}

	return ""
}

func normalizeLocation(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return emptyLocation
	}

	return trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}

	return *value
}

func parseJSON(input string, target interface{}) error {
	payload := extractJSON(input)
	if payload == "" {
		return errors.New("ai response does not contain json")
	}

	return json.Unmarshal([]byte(payload), target)
}

func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}
