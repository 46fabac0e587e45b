package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"CrudAPI/internal/logger"
	"CrudAPI/internal/model"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store runs model queries against Postgres. A Store made by New owns the
// pool; the one passed to an InTx callback is bound to the transaction.
type Store struct {
	q    Querier
	pool *pgxpool.Pool
}

// New returns a store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{q: pool, pool: pool}
}

// NewWithQuerier returns a store over an arbitrary querier, e.g. an open pgx.Tx.
func NewWithQuerier(q Querier) *Store {
	return &Store{q: q}
}

// InTx runs fn inside a transaction, rolled back when fn fails. A store that is
// already transactional runs fn directly.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()
	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, sb sq.SelectBuilder) (pgx.Rows, error) {
	sqlStr, args, err := sb.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	logSQL(ctx, sqlStr, args)
	return s.q.Query(ctx, sqlStr, args...)
}

func (s *Store) exec(ctx context.Context, sqlStr string, args []any) (pgconn.CommandTag, error) {
	logSQL(ctx, sqlStr, args)
	return s.q.Exec(ctx, sqlStr, args...)
}

func logSQL(ctx context.Context, sqlStr string, args []any) {
	logger.FromContext(ctx).Debug("sql", map[string]any{"sql": sqlStr, "args": args})
}

// List runs a select of m and hydrates the rows.
func (s *Store) List(ctx context.Context, m *model.Model, sb sq.SelectBuilder) ([]*model.Entity, error) {
	rows, err := s.query(ctx, sb)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", m.Name, err)
	}
	defer rows.Close()
	items, err := scanEntities(rows, m)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", m.Name, err)
	}
	return items, nil
}

// Count runs a single-value COUNT query.
func (s *Store) Count(ctx context.Context, sb sq.SelectBuilder) (int64, error) {
	sqlStr, args, err := sb.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, err
	}
	logSQL(ctx, sqlStr, args)
	var n int64
	if err := s.q.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// First returns the first row of sb, nil when there is none.
func (s *Store) First(ctx context.Context, m *model.Model, sb sq.SelectBuilder) (*model.Entity, error) {
	items, err := s.List(ctx, m, sb.Limit(1))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// Get returns the entity of m with primary key pk, nil when absent.
func (s *Store) Get(ctx context.Context, m *model.Model, pk any) (*model.Entity, error) {
	return s.First(ctx, m, ByKey(SelectQuery(m), m, pk))
}

// FindByPK makes Store a serializer.Finder.
func (s *Store) FindByPK(ctx context.Context, m *model.Model, pk any) (*model.Entity, error) {
	return s.Get(ctx, m, pk)
}

// Delete removes the row with primary key pk and reports whether it existed.
func (s *Store) Delete(ctx context.Context, m *model.Model, pk any) (bool, error) {
	sqlStr, args, err := deleteQuery(m, pk)
	if err != nil {
		return false, err
	}
	tag, err := s.exec(ctx, sqlStr, args)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", m.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEntities(rows pgx.Rows, m *model.Model) ([]*model.Entity, error) {
	fields := rows.FieldDescriptions()
	items := make([]*model.Entity, 0)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = vals[i]
		}
		items = append(items, model.Hydrate(m, row))
	}
	return items, rows.Err()
}

// Postgres error codes mapped to conflicts.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsConflict reports a unique or foreign key violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation || pgErr.Code == codeForeignKeyViolation
	}
	return false
}
