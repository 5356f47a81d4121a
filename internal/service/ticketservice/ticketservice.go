//go:generate mockgen -source=ticketservice.go -destination=mocks.go -package=ticketservice
package ticketservice

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/gateway"
	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/settlement"
	"github.com/GlebRadaev/tourmart/pkg/validate"
)

const (
	// ReceiptPrefix marks gateway receipts that belong to tickets.
	ReceiptPrefix = "tkt_"
	// WalletPaymentPrefix marks payment ids of tickets paid from a wallet.
	WalletPaymentPrefix = "wallet_"

	numberPrefix = "7"
	numberLength = 16
	qrSize       = 256
	// expiryGrace keeps the sweeper query clear of tickets whose event day
	// is still running in any timezone.
	expiryGrace = 24 * time.Hour
)

type Repo interface {
	Create(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error)
	FindByID(ctx context.Context, id int) (*domain.Ticket, error)
	FindByIDForUpdate(ctx context.Context, id int) (*domain.Ticket, error)
	FindByNumberForUpdate(ctx context.Context, number string) (*domain.Ticket, error)
	ListByUserID(ctx context.Context, userID int) ([]domain.Ticket, error)
	FindExpirable(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error)
	Update(ctx context.Context, t *domain.Ticket) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*gateway.Refund, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Wallets interface {
	AddPoints(ctx context.Context, userID int, points int64, reference string) (*domain.Wallet, error)
	Spend(ctx context.Context, userID int, amount decimal.Decimal, reference string) (*domain.Wallet, error)
	Refund(ctx context.Context, userID int, amount decimal.Decimal, reference string) (*domain.Wallet, error)
}

type PurchaseRequest struct {
	Destination string
	EventDate   time.Time
	BasePrice   decimal.Decimal
	Quantity    int
	Discount    decimal.Decimal
}

type Service struct {
	repo      Repo
	gateway   Gateway
	wallets   Wallets
	txManager pg.TXManager
	policy    settlement.Policy
	events    analytics.Emitter
	now       func() time.Time
}

func New(repo Repo, gateway Gateway, wallets Wallets, txManager pg.TXManager, policy settlement.Policy, events analytics.Emitter) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		wallets:   wallets,
		txManager: txManager,
		policy:    policy,
		events:    events,
		now:       time.Now,
	}
}

func Receipt(id int) string {
	return ReceiptPrefix + strconv.Itoa(id)
}

// Purchase prices and stores a pending ticket and opens a gateway order for
// its total. Nothing is stored when the gateway call fails.
func (s *Service) Purchase(ctx context.Context, userID int, req PurchaseRequest) (*domain.Ticket, error) {
	now := s.now()
	if !req.EventDate.After(now) {
		return nil, domain.NewValidationError("eventDate", "must be in the future")
	}

	pricing, err := s.policy.PriceTicket(req.BasePrice, req.Quantity, req.Discount)
	if err != nil {
		return nil, err
	}
	number, err := validate.LuhnNumber(numberPrefix, numberLength)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		TicketNumber:       number,
		UserID:             userID,
		Destination:        req.Destination,
		EventDate:          req.EventDate,
		Pricing:            pricing,
		Payment:            domain.TicketPayment{Method: "razorpay", Status: domain.PaymentPending},
		Status:             domain.TicketPending,
		CancellationPolicy: s.policy.CancellationPolicy(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.repo.Create(ctx, ticket); err != nil {
			return err
		}
		order, err := s.gateway.CreateOrder(ctx, pricing.TotalAmount, pricing.Currency, Receipt(ticket.ID), map[string]string{
			"receipt":       Receipt(ticket.ID),
			"ticket_number": ticket.TicketNumber,
		})
		if err != nil {
			return err
		}
		ticket.Payment.GatewayOrderID = order.ID
		return s.repo.Update(ctx, ticket)
	})
	if err != nil {
		zap.L().Error("ticket purchase failed", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("ticket reserved", zap.Int("ticketID", ticket.ID), zap.String("number", ticket.TicketNumber))
	s.events.Emit(ctx, analytics.Event{Type: analytics.TicketPurchased, UserID: userID, EntityID: ticket.ID, Amount: pricing.TotalAmount})
	return ticket, nil
}

// Get returns a ticket visible to the caller. Admins see every ticket.
func (s *Service) Get(ctx context.Context, userID int, role domain.Role, id int) (*domain.Ticket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	if ticket.UserID != userID && role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return ticket, nil
}

func (s *Service) List(ctx context.Context, userID int) ([]domain.Ticket, error) {
	tickets, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to list tickets", zap.Int("userID", userID), zap.Error(err))
		return nil, err
	}
	return tickets, nil
}

// Confirm handles the checkout callback of the ticket owner. The gateway
// signature must match the ticket's gateway order.
func (s *Service) Confirm(ctx context.Context, userID, id int, paymentID, signature string) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, userID, domain.RoleCustomer, id)
	if err != nil {
		return nil, err
	}
	if !s.gateway.VerifySignature(ticket.Payment.GatewayOrderID, paymentID, signature) {
		zap.L().Warn("ticket payment signature mismatch", zap.Int("ticketID", id))
		return nil, domain.ErrInvalidSignature
	}
	return s.ConfirmPayment(ctx, id, paymentID)
}

// ConfirmPayment marks the ticket paid and credits reward points. Repeated
// confirmations of the same payment return the ticket unchanged.
func (s *Service) ConfirmPayment(ctx context.Context, id int, paymentID string) (*domain.Ticket, error) {
	return s.confirm(ctx, id, paymentID, nil)
}

// ConfirmCapture confirms the ticket from a gateway capture. The capture must
// be for the ticket's gateway order and pay its total.
func (s *Service) ConfirmCapture(ctx context.Context, id int, c domain.Capture) (*domain.Ticket, error) {
	return s.confirm(ctx, id, c.PaymentID, func(t *domain.Ticket) error {
		return settlement.CheckCapture(t.Payment.GatewayOrderID, t.Pricing.TotalAmount, c)
	})
}

func (s *Service) confirm(ctx context.Context, id int, paymentID string, check func(t *domain.Ticket) error) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	var changed bool
	var points int64
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lock(ctx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(ticket); err != nil {
				return err
			}
		}
		changed, err = settlement.ConfirmTicketPayment(ticket, paymentID, s.now())
		if err != nil || !changed {
			return err
		}
		if err := s.repo.Update(ctx, ticket); err != nil {
			return err
		}
		points = s.policy.PointsFor(ticket.Pricing.TotalAmount)
		if points > 0 {
			_, err = s.wallets.AddPoints(ctx, ticket.UserID, points, "ticket:"+strconv.Itoa(ticket.ID))
		}
		return err
	})
	if err != nil {
		zap.L().Error("ticket payment confirmation failed", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}

	if changed {
		metrics.PaymentsTotal.WithLabelValues("ticket", "confirmed").Inc()
		zap.L().Info("ticket confirmed", zap.Int("ticketID", id), zap.Int64("points", points))
		s.events.Emit(ctx, analytics.Event{Type: analytics.TicketConfirmed, UserID: ticket.UserID, EntityID: id, Amount: ticket.Pricing.TotalAmount})
	}
	return ticket, nil
}

// PayWithWallet settles a pending ticket from the owner's wallet balance.
func (s *Service) PayWithWallet(ctx context.Context, userID, id int) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		locked, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if locked.UserID != userID {
			return domain.ErrForbidden
		}
		if locked.Status != domain.TicketPending {
			return domain.ErrInvalidTransition
		}
		if locked.Payment.Status != domain.PaymentPending && locked.Payment.Status != domain.PaymentFailed {
			return domain.ErrInvalidTransition
		}
		if _, err := s.wallets.Spend(ctx, userID, locked.Pricing.TotalAmount, Receipt(id)); err != nil {
			return err
		}
		ticket, err = s.ConfirmPayment(ctx, id, WalletPaymentPrefix+locked.TicketNumber)
		return err
	})
	if err != nil {
		zap.L().Error("wallet ticket payment failed", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}
	return ticket, nil
}

func (s *Service) MarkPaymentFailed(ctx context.Context, id int) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	var changed bool
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lock(ctx, id)
		if err != nil {
			return err
		}
		changed, err = settlement.MarkTicketPaymentFailed(ticket, s.now())
		if err != nil || !changed {
			return err
		}
		return s.repo.Update(ctx, ticket)
	})
	if err != nil {
		zap.L().Error("failed to mark ticket payment failed", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}

	if changed {
		metrics.PaymentsTotal.WithLabelValues("ticket", "failed").Inc()
		s.events.Emit(ctx, analytics.Event{Type: analytics.PaymentFailed, UserID: ticket.UserID, EntityID: id})
	}
	return ticket, nil
}

type RefundQuote struct {
	Eligible bool
	Amount   decimal.Decimal
	Deadline time.Time
}

func (s *Service) QuoteRefund(ctx context.Context, userID, id int) (*RefundQuote, error) {
	ticket, err := s.Get(ctx, userID, domain.RoleCustomer, id)
	if err != nil {
		return nil, err
	}
	amount := settlement.CalculateRefund(ticket, s.now())
	deadline := ticket.EventDate.Add(-time.Duration(ticket.CancellationPolicy.DeadlineHours) * time.Hour)
	return &RefundQuote{Eligible: amount.IsPositive(), Amount: amount, Deadline: deadline}, nil
}

// Refund cancels the ticket and returns the refundable amount the way it was
// paid: to the wallet for wallet payments, through the gateway otherwise.
func (s *Service) Refund(ctx context.Context, userID, id int) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	var amount decimal.Decimal
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lock(ctx, id)
		if err != nil {
			return err
		}
		if ticket.UserID != userID {
			return domain.ErrForbidden
		}

		now := s.now()
		if !settlement.CanRefund(ticket, now) {
			return domain.ErrRefundNotAllowed
		}
		refundID, err := s.returnFunds(ctx, ticket, settlement.CalculateRefund(ticket, now))
		if err != nil {
			return err
		}
		if amount, err = settlement.ProcessRefund(ticket, refundID, now); err != nil {
			return err
		}
		return s.repo.Update(ctx, ticket)
	})
	if err != nil {
		zap.L().Error("ticket refund failed", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}

	metrics.RefundsTotal.WithLabelValues("ticket").Inc()
	metrics.RefundAmount.WithLabelValues("ticket").Add(amount.InexactFloat64())
	zap.L().Info("ticket refunded", zap.Int("ticketID", id), zap.Stringer("amount", amount))
	s.events.Emit(ctx, analytics.Event{Type: analytics.TicketRefunded, UserID: userID, EntityID: id, Amount: amount})
	return ticket, nil
}

func (s *Service) returnFunds(ctx context.Context, t *domain.Ticket, amount decimal.Decimal) (string, error) {
	if strings.HasPrefix(t.Payment.PaymentID, WalletPaymentPrefix) {
		if _, err := s.wallets.Refund(ctx, t.UserID, amount, Receipt(t.ID)); err != nil {
			return "", err
		}
		return WalletPaymentPrefix + Receipt(t.ID), nil
	}
	refund, err := s.gateway.Refund(ctx, t.Payment.PaymentID, amount)
	if err != nil {
		return "", err
	}
	return refund.ID, nil
}

// Validate redeems a scanned ticket number at the venue.
func (s *Service) Validate(ctx context.Context, number string) (*domain.Ticket, error) {
	if !validate.IsLuna(number) {
		return nil, domain.NewValidationError("ticketNumber", "checksum mismatch")
	}

	var ticket *domain.Ticket
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.repo.FindByNumberForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if ticket == nil {
			return domain.ErrNotFound
		}
		if err := settlement.UseTicket(ticket, s.now()); err != nil {
			return err
		}
		return s.repo.Update(ctx, ticket)
	})
	if err != nil {
		zap.L().Info("ticket validation rejected", zap.String("number", number), zap.Error(err))
		return nil, err
	}

	s.events.Emit(ctx, analytics.Event{Type: analytics.TicketUsed, UserID: ticket.UserID, EntityID: ticket.ID})
	return ticket, nil
}

// QRCode renders the ticket number as a PNG for confirmed tickets.
func (s *Service) QRCode(ctx context.Context, userID, id int) ([]byte, error) {
	ticket, err := s.Get(ctx, userID, domain.RoleCustomer, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketConfirmed {
		return nil, domain.ErrTicketNotUsable
	}
	png, err := qrcode.Encode(ticket.TicketNumber, qrcode.Medium, qrSize)
	if err != nil {
		zap.L().Error("failed to render ticket QR code", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}
	return png, nil
}

// Expirable lists up to limit tickets the sweeper should look at.
func (s *Service) Expirable(ctx context.Context, limit int) ([]domain.Ticket, error) {
	return s.repo.FindExpirable(ctx, s.now().Add(-expiryGrace), limit)
}

// Expire moves the ticket to expired if its event day is over. It reports
// whether the ticket changed.
func (s *Service) Expire(ctx context.Context, id int) (bool, error) {
	var ticket *domain.Ticket
	var changed bool
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lock(ctx, id)
		if err != nil {
			return err
		}
		if changed = settlement.ExpireTicket(ticket, s.now()); !changed {
			return nil
		}
		return s.repo.Update(ctx, ticket)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		zap.L().Error("failed to expire ticket", zap.Int("ticketID", id), zap.Error(err))
		return false, err
	}

	if changed {
		metrics.TicketsExpired.Inc()
		s.events.Emit(ctx, analytics.Event{Type: analytics.TicketExpired, UserID: ticket.UserID, EntityID: id})
	}
	return changed, nil
}

func (s *Service) lock(ctx context.Context, id int) (*domain.Ticket, error) {
	ticket, err := s.repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	return ticket, nil
}
