package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/paulexconde/surveydesk/pkg/fault"
)

type dataStore[T any] struct {
	db        *sqlx.DB
	tx        *sqlx.Tx
	tablename string
	hooks     *hookSet
}

type hookSet struct {
	mu    sync.RWMutex
	hooks Hooks
}

func (h *hookSet) snapshot() Hooks {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Hooks{
		PreSave:  append([]func(context.Context, *sqlx.Tx, DTO, bool) error(nil), h.hooks.PreSave...),
		PostSave: append([]func(context.Context, *sqlx.Tx, DTO, any, bool) error(nil), h.hooks.PostSave...),
	}
}

func NewDataStore[T any](db *sqlx.DB, tablename string) Datastorer[T] {
	return &dataStore[T]{
		db:        db,
		tablename: tablename,
		hooks:     &hookSet{},
	}
}

func (s *dataStore[T]) Bind(tx *sqlx.Tx) Datastorer[T] {
	return &dataStore[T]{
		db:        s.db,
		tx:        tx,
		tablename: s.tablename,
		hooks:     s.hooks,
	}
}

func (s *dataStore[T]) SetHooks(hooks Hooks) {
	s.hooks.mu.Lock()
	defer s.hooks.mu.Unlock()

	s.hooks.hooks.PreSave = append(s.hooks.hooks.PreSave, hooks.PreSave...)
	s.hooks.hooks.PostSave = append(s.hooks.hooks.PostSave, hooks.PostSave...)
}

// conn is the transaction when bound, the pool otherwise.
func (s *dataStore[T]) conn() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *dataStore[T]) QueryRow(ctx context.Context, query string, args ...any) (any, error) {
	row := s.conn().QueryRowxContext(ctx, s.db.Rebind(query), args...)

	var result any

	if err := row.Scan(&result); err != nil {
		return nil, translate(err)
	}

	return result, nil
}

func (s *dataStore[T]) Get(ctx context.Context, query string, args ...any) (*T, error) {
	var result T

	if err := sqlx.GetContext(ctx, s.conn(), &result, s.db.Rebind(query), args...); err != nil {
		return nil, translate(err)
	}

	return &result, nil
}

func (s *dataStore[T]) Select(ctx context.Context, query string, args ...any) ([]T, error) {
	results := []T{}

	if err := sqlx.SelectContext(ctx, s.conn(), &results, s.db.Rebind(query), args...); err != nil {
		err = translate(err)
		if errors.Is(err, fault.ErrNotFound) {
			return []T{}, nil
		}
		return nil, err
	}

	return results, nil
}

func (s *dataStore[T]) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.conn().ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, translate(err)
	}

	return res.RowsAffected()
}

func (s *dataStore[T]) Create(ctx context.Context, data DTO) (any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if s.tx != nil {
		return s.create(ctx, s.tx, data)
	}

	var model any
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		m, err := s.create(ctx, tx, data)
		model = m
		return err
	})
	if err != nil {
		return nil, err
	}

	return model, nil
}

func (s *dataStore[T]) create(ctx context.Context, tx *sqlx.Tx, data DTO) (any, error) {
	hooks := s.hooks.snapshot()

	for _, hook := range hooks.PreSave {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := hook(ctx, tx, data, true); err != nil {
			return nil, err
		}
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertStatement(s.tablename, data, true))
	if err != nil {
		return nil, err
	}

	defer stmt.Close()

	var id int64
	if err := stmt.QueryRowContext(ctx, data).Scan(&id); err != nil {
		return nil, translate(err)
	}

	model := data.ToModel(id)

	for _, hook := range hooks.PostSave {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := hook(ctx, tx, data, model, true); err != nil {
			return nil, err
		}
	}

	return model, nil
}

func (s *dataStore[T]) InsertMany(ctx context.Context, rows any) error {
	query := insertStatement(s.tablename, rows, false)

	if _, err := sqlx.NamedExecContext(ctx, s.conn(), query, rows); err != nil {
		return translate(err)
	}

	return nil
}

func (s *dataStore[T]) DeleteWhere(ctx context.Context, column string, value any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.tablename, column)

	if _, err := s.conn().ExecContext(ctx, s.db.Rebind(query), value); err != nil {
		return translate(err)
	}

	return nil
}
