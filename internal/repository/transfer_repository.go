package repository

import (
	"context"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// TransferRepository persists reassignment history.
type TransferRepository interface {
	Create(ctx context.Context, record *domain.TransferRecord) error
	ListByProblem(ctx context.Context, problemID string) ([]domain.TransferRecord, error)
}

type transferRepository struct {
	db DBTX
}

// NewTransferRepository instantiates repository.
func NewTransferRepository(db DBTX) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) Create(ctx context.Context, record *domain.TransferRecord) error {
	const query = `
        INSERT INTO transfers (problem_id, from_id, from_name, to_id, to_name, by_id, by_name, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		record.ProblemID,
		record.FromID,
		record.FromName,
		record.ToID,
		record.ToName,
		record.ByID,
		record.ByName,
		record.Reason,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *transferRepository) ListByProblem(ctx context.Context, problemID string) ([]domain.TransferRecord, error) {
	const query = `
        SELECT id, problem_id, from_id, from_name, to_id, to_name, by_id, by_name, reason, created_at
        FROM transfers WHERE problem_id=$1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TransferRecord
	for rows.Next() {
		var t domain.TransferRecord
		if err := rows.Scan(&t.ID, &t.ProblemID, &t.FromID, &t.FromName, &t.ToID, &t.ToName, &t.ByID, &t.ByName, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
