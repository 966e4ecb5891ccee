package repository

import (
	"context"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// ActionRepository persists the free-form audit log.
type ActionRepository interface {
	Create(ctx context.Context, record *domain.ActionRecord) error
	ListByProblem(ctx context.Context, problemID string, limit, offset int) ([]domain.ActionRecord, error)
}

type actionRepository struct {
	db DBTX
}

// NewActionRepository instantiates repository.
func NewActionRepository(db DBTX) ActionRepository {
	return &actionRepository{db: db}
}

func (r *actionRepository) Create(ctx context.Context, record *domain.ActionRecord) error {
	const query = `
        INSERT INTO actions (problem_id, actor_id, actor_name, type, detail)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		record.ProblemID,
		record.ActorID,
		record.ActorName,
		record.Type,
		record.Detail,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *actionRepository) ListByProblem(ctx context.Context, problemID string, limit, offset int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, problem_id, actor_id, actor_name, type, detail, created_at
        FROM actions WHERE problem_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, problemID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActionRecord
	for rows.Next() {
		var a domain.ActionRecord
		if err := rows.Scan(&a.ID, &a.ProblemID, &a.ActorID, &a.ActorName, &a.Type, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
