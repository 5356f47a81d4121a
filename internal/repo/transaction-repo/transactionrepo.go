package transactionrepo

import (
	"context"

	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, tx *domain.WalletTransaction) (*domain.WalletTransaction, error) {
	query := `
		INSERT INTO wallet_transactions (user_id, kind, amount, points, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, tx.UserID, tx.Kind, tx.Amount, tx.Points, tx.Reference, tx.CreatedAt).Scan(&tx.ID)
	if err != nil {
		zap.L().Error("can't save wallet transaction", zap.Error(err))
		return nil, err
	}
	return tx, nil
}

func (r *Repository) ListByUserID(ctx context.Context, userID int, limit int) ([]domain.WalletTransaction, error) {
	query := `
        SELECT id, user_id, kind, amount, points, reference, created_at
        FROM wallet_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		zap.L().Error("failed to fetch wallet transactions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var history []domain.WalletTransaction
	for rows.Next() {
		var tx domain.WalletTransaction
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Kind, &tx.Amount, &tx.Points, &tx.Reference, &tx.CreatedAt)
		if err != nil {
			zap.L().Error("failed to scan wallet transaction row", zap.Error(err))
			return nil, err
		}
		history = append(history, tx)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("failed to iterate wallet transactions", zap.Error(err))
		return nil, err
	}

	return history, nil
}
