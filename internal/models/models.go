package models

import (
	"time"

	"github.com/google/uuid"
)

type BudgetStatus string

type Theme string

const (
	BudgetStatusSafe       BudgetStatus = "safe"
	BudgetStatusWarning    BudgetStatus = "warning"
	BudgetStatusOverBudget BudgetStatus = "over_budget"

	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

const (
	TripTypeHomeToOffice = "Home to Office"
	TripTypeOfficeToHome = "Office to Home"
	TripTypeCommute      = "Commute"
	TripTypePersonal     = "Personal"
	TripTypeBusiness     = "Business"
)

// GuestProfileID идентифицирует анонимный локальный профиль.
var GuestProfileID = uuid.Nil

// Receipt is immutable once created; ID is assigned at ingestion.
type Receipt struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	PickupLocation  string  `json:"pickup_location"`
	DropoffLocation string  `json:"dropoff_location"`
	TripType        string  `json:"trip_type,omitempty"`
	FileName        string  `json:"file_name,omitempty"`
}

type MonthlyStat struct {
	Month           string       `json:"month"`
	TotalSpent      float64      `json:"total_spent"`
	TripCount       int          `json:"trip_count"`
	RemainingBudget float64      `json:"remaining_budget"`
	Status          BudgetStatus `json:"status"`
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         *string   `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *uuid.UUID `json:"replaced_by,omitempty"`
}

// IsValidTheme проверяет значение темы оформления.
func IsValidTheme(value Theme) bool {
	switch value {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	default:
		return false
	}
}
