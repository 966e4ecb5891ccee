package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/problem-desk/internal/domain"
)

// AssignmentRuleRepository persists first-face and pre-assignment rules plus
// the append-only assignment history.
//
// Rules are keyed by department: writes replace any existing rule for the same
// department value rather than accumulating duplicates.
type AssignmentRuleRepository interface {
	UpsertFirstFace(ctx context.Context, rule *domain.FirstFaceRule) error
	GetFirstFace(ctx context.Context, department string) (*domain.FirstFaceRule, error)
	ListFirstFace(ctx context.Context) ([]domain.FirstFaceRule, error)
	DeleteFirstFace(ctx context.Context, department string) error

	UpsertPreAssignment(ctx context.Context, rule *domain.PreAssignmentRule) error
	GetPreAssignment(ctx context.Context, department string) (*domain.PreAssignmentRule, error)
	ListPreAssignments(ctx context.Context) ([]domain.PreAssignmentRule, error)
	DeletePreAssignment(ctx context.Context, department string) error

	AppendAssignmentEntry(ctx context.Context, entry *domain.AssignmentEntry) error
	ListAssignmentEntries(ctx context.Context, problemID string) ([]domain.AssignmentEntry, error)
}

// ErrNoRule signals the absence of a rule for a department, distinct from a
// query failure.
var ErrNoRule = errors.New("no assignment rule for department")

type assignmentRuleRepository struct {
	db DBTX
}

// NewAssignmentRuleRepository instantiates repository.
func NewAssignmentRuleRepository(db DBTX) AssignmentRuleRepository {
	return &assignmentRuleRepository{db: db}
}

func (r *assignmentRuleRepository) UpsertFirstFace(ctx context.Context, rule *domain.FirstFaceRule) error {
	const query = `
        INSERT INTO first_face_rules (department, user_id, user_name, scope, assigned_by)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (department) DO UPDATE SET
            user_id=EXCLUDED.user_id, user_name=EXCLUDED.user_name,
            scope=EXCLUDED.scope, assigned_by=EXCLUDED.assigned_by, assigned_at=NOW()
        RETURNING id, assigned_at`
	return r.db.QueryRow(ctx, query,
		rule.Department,
		rule.UserID,
		rule.UserName,
		rule.Scope,
		rule.AssignedBy,
	).Scan(&rule.ID, &rule.AssignedAt)
}

func (r *assignmentRuleRepository) GetFirstFace(ctx context.Context, department string) (*domain.FirstFaceRule, error) {
	const query = `
        SELECT id, department, user_id, user_name, scope, assigned_by, assigned_at
        FROM first_face_rules WHERE department=$1`
	var rule domain.FirstFaceRule
	err := r.db.QueryRow(ctx, query, department).Scan(
		&rule.ID, &rule.Department, &rule.UserID, &rule.UserName, &rule.Scope, &rule.AssignedBy, &rule.AssignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRule
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *assignmentRuleRepository) ListFirstFace(ctx context.Context) ([]domain.FirstFaceRule, error) {
	const query = `
        SELECT id, department, user_id, user_name, scope, assigned_by, assigned_at
        FROM first_face_rules ORDER BY department`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FirstFaceRule
	for rows.Next() {
		var rule domain.FirstFaceRule
		if err := rows.Scan(&rule.ID, &rule.Department, &rule.UserID, &rule.UserName, &rule.Scope, &rule.AssignedBy, &rule.AssignedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *assignmentRuleRepository) DeleteFirstFace(ctx context.Context, department string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM first_face_rules WHERE department=$1`, department)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRuleRepository) UpsertPreAssignment(ctx context.Context, rule *domain.PreAssignmentRule) error {
	const query = `
        INSERT INTO pre_assignment_rules (department, user_id, user_name, assigned_by)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (department) DO UPDATE SET
            user_id=EXCLUDED.user_id, user_name=EXCLUDED.user_name,
            assigned_by=EXCLUDED.assigned_by, assigned_at=NOW()
        RETURNING id, assigned_at`
	return r.db.QueryRow(ctx, query,
		rule.Department,
		rule.UserID,
		rule.UserName,
		rule.AssignedBy,
	).Scan(&rule.ID, &rule.AssignedAt)
}

func (r *assignmentRuleRepository) GetPreAssignment(ctx context.Context, department string) (*domain.PreAssignmentRule, error) {
	const query = `
        SELECT id, department, user_id, user_name, assigned_by, assigned_at
        FROM pre_assignment_rules WHERE department=$1`
	var rule domain.PreAssignmentRule
	err := r.db.QueryRow(ctx, query, department).Scan(
		&rule.ID, &rule.Department, &rule.UserID, &rule.UserName, &rule.AssignedBy, &rule.AssignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRule
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *assignmentRuleRepository) ListPreAssignments(ctx context.Context) ([]domain.PreAssignmentRule, error) {
	const query = `
        SELECT id, department, user_id, user_name, assigned_by, assigned_at
        FROM pre_assignment_rules ORDER BY department`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PreAssignmentRule
	for rows.Next() {
		var rule domain.PreAssignmentRule
		if err := rows.Scan(&rule.ID, &rule.Department, &rule.UserID, &rule.UserName, &rule.AssignedBy, &rule.AssignedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *assignmentRuleRepository) DeletePreAssignment(ctx context.Context, department string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM pre_assignment_rules WHERE department=$1`, department)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRuleRepository) AppendAssignmentEntry(ctx context.Context, entry *domain.AssignmentEntry) error {
	const query = `
        INSERT INTO assignment_entries (problem_id, assignee_id, assignee_name, assigned_by)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.ProblemID,
		entry.AssigneeID,
		entry.AssigneeName,
		entry.AssignedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *assignmentRuleRepository) ListAssignmentEntries(ctx context.Context, problemID string) ([]domain.AssignmentEntry, error) {
	const query = `
        SELECT id, problem_id, assignee_id, assignee_name, assigned_by, created_at
        FROM assignment_entries WHERE problem_id=$1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentEntry
	for rows.Next() {
		var entry domain.AssignmentEntry
		if err := rows.Scan(&entry.ID, &entry.ProblemID, &entry.AssigneeID, &entry.AssigneeName, &entry.AssignedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
