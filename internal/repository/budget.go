package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/receipt-tracker/backend/internal/models"
)

type BudgetRepository struct {
	db *pgxpool.Pool
}

// NewBudgetRepository создает репозиторий бюджета и предпочтений пользователя.
func NewBudgetRepository(db *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// GetAllowance возвращает бюджет пользователя; ErrNotFound, если он не задан.
func (r *BudgetRepository) GetAllowance(ctx context.Context, userID uuid.UUID) (float64, error) {
	var allowance *float64
	err := r.db.QueryRow(ctx,
		`SELECT allowance::float8 FROM budgets WHERE user_id = $1`,
		userID,
	).Scan(&allowance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if allowance == nil {
		return 0, ErrNotFound
	}

	return *allowance, nil
}

// SetAllowance сохраняет бюджет пользователя.
func (r *BudgetRepository) SetAllowance(ctx context.Context, userID uuid.UUID, allowance float64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO budgets (user_id, allowance, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET allowance = EXCLUDED.allowance, updated_at = NOW()`,
		userID, allowance,
	)
	return err
}

// GetTheme возвращает тему пользователя; ErrNotFound, если запись отсутствует.
func (r *BudgetRepository) GetTheme(ctx context.Context, userID uuid.UUID) (models.Theme, error) {
	var theme string
	err := r.db.QueryRow(ctx,
		`SELECT theme FROM budgets WHERE user_id = $1`,
		userID,
	).Scan(&theme)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	return models.Theme(theme), nil
}

// SetTheme сохраняет тему пользователя.
func (r *BudgetRepository) SetTheme(ctx context.Context, userID uuid.UUID, theme models.Theme) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO budgets (user_id, theme, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET theme = EXCLUDED.theme, updated_at = NOW()`,
		userID, string(theme),
	)
	return err
}
