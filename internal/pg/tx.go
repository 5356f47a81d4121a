package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:generate mockgen -source=tx.go -destination=mocks.go -package=pg

type txKey struct{}

// TransactionalFn runs inside a transaction. Queries issued through DB with
// the given ctx join it.
type TransactionalFn func(ctx context.Context) error

type TXManager interface {
	Begin(ctx context.Context, fn TransactionalFn) error
}

// Beginner starts transactions. *pgxpool.Pool implements it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type TxManager struct {
	pool Beginner
}

func NewTXManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// NewTXManagerFrom builds a manager over any Beginner.
func NewTXManagerFrom(b Beginner) *TxManager {
	return &TxManager{pool: b}
}

// Begin runs fn in a transaction, committing when fn returns nil. A Begin
// nested inside another joins the outer transaction.
func (m *TxManager) Begin(ctx context.Context, fn TransactionalFn) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		zap.L().Error("failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			zap.L().Error("failed to rollback transaction", zap.Error(rbErr))
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		zap.L().Error("failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InTx reports whether ctx carries a transaction opened by Begin.
func InTx(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}
