package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the querying surface shared by pgxpool.Pool and pgx.Tx, letting one
// repository implementation serve both pooled and transactional access.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the repositories and the transaction wrapper the lifecycle
// and transfer engines rely on: every read-modify-write of a problem plus its
// history rows either fully commits or fully rolls back.
type Store interface {
	Users() UserRepository
	Problems() ProblemRepository
	Comments() CommentRepository
	Transfers() TransferRepository
	Actions() ActionRepository
	Notifications() NotificationRepository
	Rules() AssignmentRuleRepository

	// InTx runs fn against a store whose repositories share one transaction.
	// A store already bound to a transaction reuses it.
	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	db            DBTX
	pool          *pgxpool.Pool
	users         UserRepository
	problems      ProblemRepository
	comments      CommentRepository
	transfers     TransferRepository
	actions       ActionRepository
	notifications NotificationRepository
	rules         AssignmentRuleRepository
}

// NewStore builds a Postgres-backed store over the given pool.
func NewStore(pool *pgxpool.Pool) Store {
	return newSQLStore(pool, pool)
}

func newSQLStore(db DBTX, pool *pgxpool.Pool) *sqlStore {
	return &sqlStore{
		db:            db,
		pool:          pool,
		users:         NewUserRepository(db),
		problems:      NewProblemRepository(db),
		comments:      NewCommentRepository(db),
		transfers:     NewTransferRepository(db),
		actions:       NewActionRepository(db),
		notifications: NewNotificationRepository(db),
		rules:         NewAssignmentRuleRepository(db),
	}
}

func (s *sqlStore) Users() UserRepository                 { return s.users }
func (s *sqlStore) Problems() ProblemRepository           { return s.problems }
func (s *sqlStore) Comments() CommentRepository           { return s.comments }
func (s *sqlStore) Transfers() TransferRepository         { return s.transfers }
func (s *sqlStore) Actions() ActionRepository             { return s.actions }
func (s *sqlStore) Notifications() NotificationRepository { return s.notifications }
func (s *sqlStore) Rules() AssignmentRuleRepository       { return s.rules }

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newSQLStore(tx, nil))
	})
}
