//go:generate mockgen -source=authservice.go -destination=mocks.go -package=authservice
package authservice

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/pkg/auth"
)

type Repo interface {
	FindByLogin(ctx context.Context, login string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}

type WalletRepo interface {
	Create(ctx context.Context, userID int, currency string) (*domain.Wallet, error)
}

type Service struct {
	userRepo    Repo
	walletRepo  WalletRepo
	txManager   pg.TXManager
	hashService auth.HashServiceInterface
	jwtService  auth.JWTServiceInterface
	tokenTTL    time.Duration
	currency    string
}

func New(repo Repo, walletRepo WalletRepo, txManager pg.TXManager, hashService auth.HashServiceInterface, jwtService auth.JWTServiceInterface, tokenTTL time.Duration, currency string) *Service {
	return &Service{
		userRepo:    repo,
		walletRepo:  walletRepo,
		txManager:   txManager,
		hashService: hashService,
		jwtService:  jwtService,
		tokenTTL:    tokenTTL,
		currency:    currency,
	}
}

// Register creates the user together with an empty wallet. Only customers
// and vendors can sign up themselves.
func (s *Service) Register(ctx context.Context, login, password string, role domain.Role) (*domain.User, error) {
	if role == "" {
		role = domain.RoleCustomer
	}
	if role != domain.RoleCustomer && role != domain.RoleVendor {
		return nil, domain.NewValidationError("role", "must be customer or vendor")
	}

	existingUser, err := s.userRepo.FindByLogin(ctx, login)
	if err != nil {
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	if existingUser != nil {
		zap.L().Info("user already exists", zap.String("login", login))
		return nil, domain.ErrLoginTaken
	}

	hashedPassword, err := s.hashService.HashPassword(password)
	if err != nil {
		zap.L().Error("can't hash password", zap.Error(err))
		return nil, err
	}

	user := &domain.User{
		Login:        login,
		PasswordHash: hashedPassword,
		Role:         role,
	}
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		newUser, err := s.userRepo.Create(ctx, user)
		if err != nil {
			zap.L().Error("can't create user", zap.Error(err))
			return err
		}
		if _, err := s.walletRepo.Create(ctx, newUser.ID, s.currency); err != nil {
			zap.L().Error("can't create wallet", zap.Int("userID", newUser.ID), zap.Error(err))
			return err
		}
		user = newUser
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("user successfully registered", zap.String("login", login), zap.String("role", string(role)))
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	user, err := s.userRepo.FindByLogin(ctx, login)
	if err != nil {
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	if user == nil || !s.hashService.ComparePassword(user.PasswordHash, password) {
		zap.L().Info("invalid credentials", zap.String("login", login))
		return nil, domain.ErrInvalidCredentials
	}
	zap.L().Info("user successfully authenticated", zap.String("login", login))
	return user, nil
}

func (s *Service) GenerateToken(user *domain.User) (string, error) {
	token, err := s.jwtService.GenerateJWT(user.ID, string(user.Role), time.Now().Add(s.tokenTTL))
	if err != nil {
		zap.L().Error("can't generate token", zap.Error(err))
		return "", err
	}
	return token, nil
}
