package trm

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

type Transaction interface {
	Commit() error
	Rollback() error
}

type txKey struct{}

func withTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// ExtractTx returns the transaction carried by ctx, or nil when the call is
// not running inside a unit of work. Repositories use it to participate in
// the caller's transaction instead of hitting the pool directly.
func ExtractTx(ctx context.Context) *sqlx.Tx {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return nil
	}
	return tx
}

type Manager interface {
	BeginTx(ctx context.Context) (context.Context, Transaction, error)

	// Do runs callback as one unit of work: commits when it returns nil,
	// rolls back otherwise. A rollback failure is logged, never returned in
	// place of the callback's error.
	Do(ctx context.Context, callback func(ctx context.Context) error) error
}

type txManager struct {
	db     *sqlx.DB
	logger *slog.Logger
	opts   *sql.TxOptions
}

func NewManager(db *sqlx.DB, logger *slog.Logger) Manager {
	return &txManager{
		db:     db,
		logger: logger.With(slog.String("component", "trm")),
	}
}

// NewManagerWithOptions builds a manager that opens every transaction with
// the given options (e.g. a stricter isolation level).
func NewManagerWithOptions(db *sqlx.DB, logger *slog.Logger, opts *sql.TxOptions) Manager {
	return &txManager{
		db:     db,
		logger: logger.With(slog.String("component", "trm")),
		opts:   opts,
	}
}

func (t *txManager) BeginTx(ctx context.Context) (context.Context, Transaction, error) {
	tx, err := t.db.BeginTxx(ctx, t.opts)
	if err != nil {
		return nil, nil, err
	}
	return withTx(ctx, tx), tx, nil
}

func (t *txManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	ctx, tx, err := t.BeginTx(ctx)
	if err != nil {
		return err
	}
	// Rollback after a successful commit returns sql.ErrTxDone; anything else
	// means the connection is in a bad state and deserves a log line.
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.logger.Error("failed to rollback transaction", slog.Any("error", err))
		}
	}()

	if err := callback(ctx); err != nil {
		return err
	}
	return tx.Commit()
}
