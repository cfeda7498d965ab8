package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/receipt-tracker/backend/internal/models"
)

type ReceiptRepository struct {
	db *pgxpool.Pool
}

// NewReceiptRepository создает репозиторий чеков пользователей.
func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// ListByUser возвращает чеки пользователя в порядке добавления.
func (r *ReceiptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Receipt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, date, time, amount::float8, currency, pickup_location, dropoff_location, trip_type, file_name
		 FROM receipts
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]models.Receipt, 0)
	for rows.Next() {
		var receipt models.Receipt
		if err := rows.Scan(
			&receipt.ID,
			&receipt.Date,
			&receipt.Time,
			&receipt.Amount,
			&receipt.Currency,
			&receipt.PickupLocation,
			&receipt.DropoffLocation,
			&receipt.TripType,
			&receipt.FileName,
		); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	return receipts, rows.Err()
}

// Upsert сохраняет чеки пользователя одним батчем.
func (r *ReceiptRepository) Upsert(ctx context.Context, userID uuid.UUID, receipts []models.Receipt) error {
	batch := &pgx.Batch{}
	for _, receipt := range receipts {
		batch.Queue(
			`INSERT INTO receipts
			 (user_id, id, date, time, amount, currency, pickup_location, dropoff_location, trip_type, file_name)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (user_id, id) DO UPDATE SET
			   date = EXCLUDED.date,
			   time = EXCLUDED.time,
			   amount = EXCLUDED.amount,
			   currency = EXCLUDED.currency,
			   pickup_location = EXCLUDED.pickup_location,
			   dropoff_location = EXCLUDED.dropoff_location,
			   trip_type = EXCLUDED.trip_type,
			   file_name = EXCLUDED.file_name`,
			userID,
			receipt.ID,
			receipt.Date,
			receipt.Time,
			receipt.Amount,
			receipt.Currency,
			receipt.PickupLocation,
			receipt.DropoffLocation,
			receipt.TripType,
			receipt.FileName,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, receipt := range receipts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert receipt %s: %w", receipt.ID, err)
		}
	}

	return nil
}

// Delete удаляет чек пользователя.
func (r *ReceiptRepository) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM receipts WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
