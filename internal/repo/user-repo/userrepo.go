package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
)

const userColumns = `id, login, password_hash, role, commission_rate, created_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (repo *Repository) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	user, err := scanUser(repo.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE login = $1", login))
	if err != nil {
		zap.L().Error("can't find user by login", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (repo *Repository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	user, err := scanUser(repo.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		zap.L().Error("can't find user by id", zap.Int("userID", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (repo *Repository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (login, password_hash, role, commission_rate)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := repo.db.QueryRow(ctx, query, user.Login, user.PasswordHash, user.Role, user.CommissionRate).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		zap.L().Error("can't save user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// scanUser returns nil, nil when the row does not exist.
func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Login, &user.PasswordHash, &user.Role, &user.CommissionRate, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
