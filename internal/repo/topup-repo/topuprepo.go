package topuprepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
)

const topUpColumns = `id, user_id, amount, currency, gateway_order_id, status, payment_id, created_at, credited_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, t *domain.TopUp) (*domain.TopUp, error) {
	query := `
		INSERT INTO wallet_topups (user_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, t.UserID, t.Amount, t.Currency, t.Status, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		zap.L().Error("can't save top-up", zap.Int("userID", t.UserID), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// FindByGatewayOrderIDForUpdate locks the top-up opened under gatewayOrderID
// until the surrounding transaction ends.
func (r *Repository) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*domain.TopUp, error) {
	query := `SELECT ` + topUpColumns + ` FROM wallet_topups WHERE gateway_order_id = $1 FOR UPDATE`
	var t domain.TopUp
	err := r.db.QueryRow(ctx, query, gatewayOrderID).Scan(
		&t.ID, &t.UserID, &t.Amount, &t.Currency, &t.GatewayOrderID, &t.Status, &t.PaymentID, &t.CreatedAt, &t.CreditedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't lock top-up", zap.String("gatewayOrderID", gatewayOrderID), zap.Error(err))
		return nil, err
	}
	return &t, nil
}

func (r *Repository) Update(ctx context.Context, t *domain.TopUp) error {
	query := `
		UPDATE wallet_topups
		SET gateway_order_id = $1, status = $2, payment_id = $3, credited_at = $4
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query, t.GatewayOrderID, t.Status, t.PaymentID, t.CreditedAt, t.ID)
	if err != nil {
		zap.L().Error("can't update top-up", zap.Int("topUpID", t.ID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
