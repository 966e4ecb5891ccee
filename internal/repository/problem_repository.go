package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// ProblemFilter captures listing parameters.
type ProblemFilter struct {
	Department  *string
	AssigneeID  *string
	CreatedByID *string
	Statuses    []domain.ProblemStatus
	Priorities  []domain.ProblemPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// VisibleToID restricts to problems the user created or is assigned,
	// matching assignment by id or legacy name.
	VisibleToID   *string
	VisibleToName *string
	Limit         int
	Offset        int
}

// ProblemRepository encapsulates problem persistence.
type ProblemRepository interface {
	Create(ctx context.Context, problem *domain.Problem) error
	Update(ctx context.Context, problem *domain.Problem) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Problem, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Problem, error)
	ListWithFilter(ctx context.Context, filter ProblemFilter) ([]domain.Problem, error)
}

type problemRepository struct {
	db DBTX
}

// NewProblemRepository instantiates repository.
func NewProblemRepository(db DBTX) ProblemRepository {
	return &problemRepository{db: db}
}

const problemColumns = `id, external_key, department, service, priority, statement, client, images,
    created_by_id, created_by_name, assignee_id, assignee_name, assignment_type, status,
    submitted_for_approval_by, submitted_for_approval_at, approved_by, approved_at,
    rejection_reason, rejected_by, rejected_at, resolved_at, created_at, updated_at`

func (r *problemRepository) Create(ctx context.Context, problem *domain.Problem) error {
	const query = `
        INSERT INTO problems (external_key, department, service, priority, statement, client, images,
            created_by_id, created_by_name, assignee_id, assignee_name, assignment_type, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		problem.ExternalKey,
		problem.Department,
		problem.Service,
		problem.Priority,
		problem.Statement,
		problem.Client,
		problem.Images,
		problem.CreatedByID,
		problem.CreatedByName,
		problem.AssigneeID,
		problem.AssigneeName,
		problem.AssignmentType,
		problem.Status,
	).Scan(&problem.ID, &problem.CreatedAt, &problem.UpdatedAt)
}

func (r *problemRepository) Update(ctx context.Context, problem *domain.Problem) error {
	const query = `
        UPDATE problems SET department=$1, service=$2, priority=$3, statement=$4, client=$5, images=$6,
            assignee_id=$7, assignee_name=$8, assignment_type=$9, status=$10,
            submitted_for_approval_by=$11, submitted_for_approval_at=$12,
            approved_by=$13, approved_at=$14,
            rejection_reason=$15, rejected_by=$16, rejected_at=$17,
            resolved_at=$18, updated_at=NOW()
        WHERE id=$19`
	cmd, err := r.db.Exec(ctx, query,
		problem.Department,
		problem.Service,
		problem.Priority,
		problem.Statement,
		problem.Client,
		problem.Images,
		problem.AssigneeID,
		problem.AssigneeName,
		problem.AssignmentType,
		problem.Status,
		problem.SubmittedForApprovalBy,
		problem.SubmittedForApprovalAt,
		problem.ApprovedBy,
		problem.ApprovedAt,
		problem.RejectionReason,
		problem.RejectedBy,
		problem.RejectedAt,
		problem.ResolvedAt,
		problem.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *problemRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM problems WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *problemRepository) GetByID(ctx context.Context, id string) (*domain.Problem, error) {
	return r.fetchSingle(ctx, `SELECT `+problemColumns+` FROM problems WHERE id=$1`, id)
}

func (r *problemRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Problem, error) {
	return r.fetchSingle(ctx, `SELECT `+problemColumns+` FROM problems WHERE external_key=$1`, key)
}

func (r *problemRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Problem, error) {
	var problem domain.Problem
	if err := scanProblem(r.db.QueryRow(ctx, query, arg), &problem); err != nil {
		return nil, err
	}
	return &problem, nil
}

func (r *problemRepository) ListWithFilter(ctx context.Context, filter ProblemFilter) ([]domain.Problem, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by_id=$%d", len(args)))
	}
	if filter.VisibleToID != nil {
		args = append(args, *filter.VisibleToID)
		idPlaceholder := fmt.Sprintf("$%d", len(args))
		name := ""
		if filter.VisibleToName != nil {
			name = *filter.VisibleToName
		}
		args = append(args, name)
		namePlaceholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(created_by_id=%s OR assignee_id=%s OR assignee_name=%s)",
			idPlaceholder, idPlaceholder, namePlaceholder))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(statement) LIKE %s OR LOWER(service) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM problems WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		problemColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProblems(rows)
}

func scanProblem(row pgx.Row, problem *domain.Problem) error {
	return row.Scan(
		&problem.ID,
		&problem.ExternalKey,
		&problem.Department,
		&problem.Service,
		&problem.Priority,
		&problem.Statement,
		&problem.Client,
		&problem.Images,
		&problem.CreatedByID,
		&problem.CreatedByName,
		&problem.AssigneeID,
		&problem.AssigneeName,
		&problem.AssignmentType,
		&problem.Status,
		&problem.SubmittedForApprovalBy,
		&problem.SubmittedForApprovalAt,
		&problem.ApprovedBy,
		&problem.ApprovedAt,
		&problem.RejectionReason,
		&problem.RejectedBy,
		&problem.RejectedAt,
		&problem.ResolvedAt,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	)
}

func collectProblems(rows pgx.Rows) ([]domain.Problem, error) {
	var result []domain.Problem
	for rows.Next() {
		var problem domain.Problem
		if err := scanProblem(rows, &problem); err != nil {
			return nil, err
		}
		result = append(result, problem)
	}
	return result, rows.Err()
}
