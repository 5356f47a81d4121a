package walletrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
)

const walletColumns = `id, user_id, currency, balance, total_deposited, total_spent, points, lifetime_points, tier, updated_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByUserID(ctx context.Context, userID int) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	wallet, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		zap.L().Error("failed to get wallet", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return wallet, nil
}

// GetForUpdate locks the wallet row until the surrounding transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, userID int) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	wallet, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		zap.L().Error("failed to lock wallet", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return wallet, nil
}

func (r *Repository) Create(ctx context.Context, userID int, currency string) (*domain.Wallet, error) {
	query := `
        INSERT INTO wallets (user_id, currency, tier)
        VALUES ($1, $2, $3)
        RETURNING ` + walletColumns
	wallet, err := scanWallet(r.db.QueryRow(ctx, query, userID, currency, domain.TierBronze))
	if err == nil && wallet == nil {
		err = pgx.ErrNoRows
	}
	if err != nil {
		zap.L().Error("failed to create wallet", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return wallet, nil
}

func (r *Repository) Update(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, total_deposited = $2, total_spent = $3,
			points = $4, lifetime_points = $5, tier = $6, updated_at = $7
		WHERE user_id = $8
	`
	tag, err := r.db.Exec(ctx, query,
		wallet.Balance, wallet.TotalDeposited, wallet.TotalSpent,
		wallet.Points, wallet.LifetimePoints, wallet.Tier, wallet.UpdatedAt, wallet.UserID,
	)
	if err != nil {
		zap.L().Error("failed to update wallet", zap.Int("userID", wallet.UserID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.TotalDeposited, &w.TotalSpent,
		&w.Points, &w.LifetimePoints, &w.Tier, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
