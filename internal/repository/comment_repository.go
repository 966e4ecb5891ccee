package repository

import (
	"context"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// CommentRepository persists the discussion/solution thread on problems.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByProblem(ctx context.Context, problemID string) ([]domain.Comment, error)
}

type commentRepository struct {
	db DBTX
}

// NewCommentRepository instantiates repository.
func NewCommentRepository(db DBTX) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (problem_id, author_id, author_name, author_role, type, text)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.ProblemID,
		comment.AuthorID,
		comment.AuthorName,
		comment.AuthorRole,
		comment.Type,
		comment.Text,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByProblem(ctx context.Context, problemID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, problem_id, author_id, author_name, author_role, type, text, created_at
        FROM comments WHERE problem_id=$1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ProblemID, &c.AuthorID, &c.AuthorName, &c.AuthorRole, &c.Type, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
