//go:generate mockgen -source=walletservice.go -destination=mocks.go -package=walletservice
package walletservice

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/gateway"
	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/settlement"
	"github.com/GlebRadaev/tourmart/pkg/keylock"
)

const (
	// ReceiptPrefix marks gateway receipts that belong to wallet top-ups.
	ReceiptPrefix = "top_"

	defaultHistoryLimit = 50
)

type Repo interface {
	GetByUserID(ctx context.Context, userID int) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, userID int) (*domain.Wallet, error)
	Update(ctx context.Context, wallet *domain.Wallet) error
}

type TransactionRepo interface {
	Create(ctx context.Context, tx *domain.WalletTransaction) (*domain.WalletTransaction, error)
	ListByUserID(ctx context.Context, userID int, limit int) ([]domain.WalletTransaction, error)
}

type TopUpRepo interface {
	Create(ctx context.Context, t *domain.TopUp) (*domain.TopUp, error)
	FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*domain.TopUp, error)
	Update(ctx context.Context, t *domain.TopUp) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Service struct {
	repo      Repo
	txRepo    TransactionRepo
	topUps    TopUpRepo
	txManager pg.TXManager
	gateway   Gateway
	policy    settlement.Policy
	events    analytics.Emitter
	locks     *keylock.Locker[int]
	now       func() time.Time
}

func New(repo Repo, txRepo TransactionRepo, topUps TopUpRepo, txManager pg.TXManager, gateway Gateway, policy settlement.Policy, events analytics.Emitter) *Service {
	return &Service{
		repo:      repo,
		txRepo:    txRepo,
		topUps:    topUps,
		txManager: txManager,
		gateway:   gateway,
		policy:    policy,
		events:    events,
		locks:     keylock.New[int](),
		now:       time.Now,
	}
}

func Receipt(id int) string {
	return ReceiptPrefix + strconv.Itoa(id)
}

func (s *Service) Get(ctx context.Context, userID int) (*domain.Wallet, error) {
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get wallet", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrNotFound
	}
	return wallet, nil
}

// StartTopUp opens a gateway order for amount. The wallet is credited with
// exactly this amount once the payment for that order is verified.
func (s *Service) StartTopUp(ctx context.Context, userID int, amount decimal.Decimal) (*domain.TopUp, error) {
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	amount = settlement.Round(amount)

	wallet, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	preview := *wallet
	if err := s.policy.AddBalance(&preview, amount); err != nil {
		return nil, err
	}

	topUp := &domain.TopUp{
		UserID:    userID,
		Amount:    amount,
		Currency:  wallet.Currency,
		Status:    domain.TopUpPending,
		CreatedAt: s.now(),
	}
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.topUps.Create(ctx, topUp); err != nil {
			return err
		}
		order, err := s.gateway.CreateOrder(ctx, amount, topUp.Currency, Receipt(topUp.ID), map[string]string{
			"receipt": Receipt(topUp.ID),
		})
		if err != nil {
			return err
		}
		topUp.GatewayOrderID = order.ID
		return s.topUps.Update(ctx, topUp)
	})
	if err != nil {
		zap.L().Error("top-up initiation failed", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("top-up opened", zap.Int("topUpID", topUp.ID), zap.String("gatewayOrderID", topUp.GatewayOrderID))
	return topUp, nil
}

// TopUp handles the checkout callback of a top-up the caller opened. The
// signature proves the payment for the gateway order; the credited amount is
// the one stored when the order was opened. Replaying the same payment
// returns the wallet unchanged.
func (s *Service) TopUp(ctx context.Context, userID int, gatewayOrderID, paymentID, signature string) (*domain.Wallet, error) {
	if !s.gateway.VerifySignature(gatewayOrderID, paymentID, signature) {
		zap.L().Warn("top-up signature mismatch", zap.Int("userID", userID), zap.String("paymentID", paymentID))
		return nil, domain.ErrInvalidSignature
	}
	return s.credit(ctx, gatewayOrderID, paymentID, func(t *domain.TopUp) error {
		if t.UserID != userID {
			return domain.ErrForbidden
		}
		return nil
	})
}

// ConfirmTopUp credits top-up id once the gateway reports it captured. The
// capture must belong to that top-up and pay the stored amount in full.
func (s *Service) ConfirmTopUp(ctx context.Context, id int, c domain.Capture) (*domain.Wallet, error) {
	return s.credit(ctx, c.GatewayOrderID, c.PaymentID, func(t *domain.TopUp) error {
		if t.ID != id {
			return domain.ErrPaymentMismatch
		}
		return settlement.CheckCapture(t.GatewayOrderID, t.Amount, c)
	})
}

// credit settles the top-up opened under gatewayOrderID once. The balance cap
// is checked when the top-up is opened; a captured payment is always credited.
func (s *Service) credit(ctx context.Context, gatewayOrderID, paymentID string, check func(t *domain.TopUp) error) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	var topUp *domain.TopUp
	var credited bool
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		topUp, err = s.topUps.FindByGatewayOrderIDForUpdate(ctx, gatewayOrderID)
		if err != nil {
			return err
		}
		if topUp == nil {
			return domain.ErrNotFound
		}
		if err := check(topUp); err != nil {
			return err
		}

		wallet, err = s.mutate(ctx, topUp.UserID, func(ctx context.Context, w *domain.Wallet) (*domain.WalletTransaction, error) {
			if topUp.Status == domain.TopUpCredited {
				if topUp.PaymentID != paymentID {
					return nil, domain.ErrPaymentMismatch
				}
				return nil, nil
			}
			if err := settlement.AddBalance(w, topUp.Amount, decimal.Zero); err != nil {
				return nil, err
			}
			now := s.now()
			topUp.Status = domain.TopUpCredited
			topUp.PaymentID = paymentID
			topUp.CreditedAt = &now
			if err := s.topUps.Update(ctx, topUp); err != nil {
				return nil, err
			}
			credited = true
			return &domain.WalletTransaction{Kind: domain.TransactionDeposit, Amount: topUp.Amount, Reference: paymentID}, nil
		})
		return err
	})
	if err != nil {
		zap.L().Error("top-up credit failed", zap.String("gatewayOrderID", gatewayOrderID), zap.Error(err))
		return nil, err
	}

	if credited {
		metrics.PaymentsTotal.WithLabelValues("wallet", "confirmed").Inc()
		s.events.Emit(ctx, analytics.Event{Type: analytics.WalletTopUp, UserID: topUp.UserID, EntityID: wallet.ID, Amount: topUp.Amount})
	}
	return wallet, nil
}

func (s *Service) Spend(ctx context.Context, userID int, amount decimal.Decimal, reference string) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, func(_ context.Context, w *domain.Wallet) (*domain.WalletTransaction, error) {
		if err := settlement.DeductBalance(w, amount); err != nil {
			return nil, err
		}
		return &domain.WalletTransaction{Kind: domain.TransactionSpend, Amount: settlement.Round(amount).Neg(), Reference: reference}, nil
	})
}

// Refund returns money spent from the wallet. It joins the caller's
// transaction when there is one and is not limited by the balance cap.
func (s *Service) Refund(ctx context.Context, userID int, amount decimal.Decimal, reference string) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, func(_ context.Context, w *domain.Wallet) (*domain.WalletTransaction, error) {
		if err := settlement.AddBalance(w, amount, decimal.Zero); err != nil {
			return nil, err
		}
		return &domain.WalletTransaction{Kind: domain.TransactionRefund, Amount: settlement.Round(amount), Reference: reference}, nil
	})
}

// Redeem converts points into wallet balance and returns the credited amount.
func (s *Service) Redeem(ctx context.Context, userID int, points int64) (decimal.Decimal, *domain.Wallet, error) {
	var credited decimal.Decimal
	wallet, err := s.mutate(ctx, userID, func(_ context.Context, w *domain.Wallet) (*domain.WalletTransaction, error) {
		var err error
		credited, err = s.policy.RedeemPoints(w, points)
		if err != nil {
			return nil, err
		}
		return &domain.WalletTransaction{Kind: domain.TransactionRedeem, Amount: credited, Points: -points, Reference: "redeem"}, nil
	})
	if err != nil {
		return decimal.Zero, nil, err
	}

	metrics.PointsRedeemed.Add(float64(points))
	s.events.Emit(ctx, analytics.Event{Type: analytics.PointsRedeemed, UserID: userID, EntityID: wallet.ID, Amount: credited})
	return credited, wallet, nil
}

// AddPoints credits earned reward points. It joins the caller's transaction
// when there is one.
func (s *Service) AddPoints(ctx context.Context, userID int, points int64, reference string) (*domain.Wallet, error) {
	wallet, err := s.mutate(ctx, userID, func(_ context.Context, w *domain.Wallet) (*domain.WalletTransaction, error) {
		if err := settlement.AddPoints(w, points); err != nil {
			return nil, err
		}
		return &domain.WalletTransaction{Kind: domain.TransactionPoints, Points: points, Reference: reference}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.PointsAwarded.Add(float64(points))
	return wallet, nil
}

func (s *Service) History(ctx context.Context, userID int, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	history, err := s.txRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		zap.L().Error("failed to fetch wallet history", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return history, nil
}

type mutation func(ctx context.Context, w *domain.Wallet) (*domain.WalletTransaction, error)

// mutate applies fn to the locked wallet of userID and records the returned
// history entry in the same transaction. A nil entry leaves the wallet
// untouched. Calls joining a caller's transaction rely on the row lock only;
// the key lock is taken by calls that own theirs.
func (s *Service) mutate(ctx context.Context, userID int, fn mutation) (*domain.Wallet, error) {
	if !pg.InTx(ctx) {
		unlock := s.locks.Lock(userID)
		defer unlock()
	}

	var wallet *domain.Wallet
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if w == nil {
			return domain.ErrNotFound
		}

		record, err := fn(ctx, w)
		if err != nil {
			return err
		}
		if record == nil {
			wallet = w
			return nil
		}

		now := s.now()
		w.UpdatedAt = now
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}
		record.UserID = userID
		record.CreatedAt = now
		if _, err := s.txRepo.Create(ctx, record); err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		zap.L().Error("wallet update failed", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return wallet, nil
}
