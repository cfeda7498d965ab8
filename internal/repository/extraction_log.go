package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExtractionLogRepository struct {
	db *pgxpool.Pool
}

// ExtractionLog is one per-file extraction attempt of an authenticated user.
type ExtractionLog struct {
	UserID    uuid.UUID
	Provider  string
	Model     string
	FileName  string
	Success   bool
	ErrorKind *string
}

// NewExtractionLogRepository создает репозиторий журнала извлечения.
func NewExtractionLogRepository(db *pgxpool.Pool) *ExtractionLogRepository {
	return &ExtractionLogRepository{db: db}
}

// LogBatch сохраняет записи журнала одной загрузки.
func (r *ExtractionLogRepository) LogBatch(ctx context.Context, logs []ExtractionLog) error {
	if len(logs) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(logs))
	for _, log := range logs {
		rows = append(rows, []any{uuid.New(), log.UserID, log.Provider, log.Model, log.FileName, log.Success, log.ErrorKind})
	}

	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"extraction_requests"},
		[]string{"id", "user_id", "provider", "model", "file_name", "success", "error_kind"},
		pgx.CopyFromRows(rows),
	)
	return err
}
