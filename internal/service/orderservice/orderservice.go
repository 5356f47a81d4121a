//go:generate mockgen -source=orderservice.go -destination=mocks.go -package=orderservice
package orderservice

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/gateway"
	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/settlement"
)

// ReceiptPrefix marks gateway receipts that belong to marketplace orders.
const ReceiptPrefix = "ord_"

type Repo interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByID(ctx context.Context, id int) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, id int) (*domain.Order, error)
	ListByCustomerID(ctx context.Context, customerID int) ([]domain.Order, error)
	ListByVendorID(ctx context.Context, vendorID int) ([]domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
}

type UserRepo interface {
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*gateway.Refund, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Wallets interface {
	AddPoints(ctx context.Context, userID int, points int64, reference string) (*domain.Wallet, error)
}

type CreateRequest struct {
	VendorID     int
	Items        []domain.OrderItem
	ShippingCost decimal.Decimal
	Discount     decimal.Decimal
}

// Actor identifies the caller of an order operation.
type Actor struct {
	UserID int
	Role   domain.Role
}

func (a Actor) owns(o *domain.Order) bool {
	switch a.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleVendor:
		return o.VendorID == a.UserID
	default:
		return o.CustomerID == a.UserID
	}
}

type Service struct {
	repo      Repo
	users     UserRepo
	gateway   Gateway
	wallets   Wallets
	txManager pg.TXManager
	policy    settlement.Policy
	events    analytics.Emitter
	now       func() time.Time
}

func New(repo Repo, users UserRepo, gateway Gateway, wallets Wallets, txManager pg.TXManager, policy settlement.Policy, events analytics.Emitter) *Service {
	return &Service{
		repo:      repo,
		users:     users,
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

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// Create prices a marketplace order with the vendor's commission and opens a
// gateway order for its total.
func (s *Service) Create(ctx context.Context, customerID int, req CreateRequest) (*domain.Order, error) {
	vendor, err := s.users.FindByID(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}
	if vendor == nil || vendor.Role != domain.RoleVendor {
		return nil, domain.NewValidationError("vendorId", "unknown vendor")
	}
	if vendor.ID == customerID {
		return nil, domain.NewValidationError("vendorId", "cannot order from yourself")
	}

	items, pricing, err := s.policy.PriceOrder(req.Items, vendor.CommissionRate, req.ShippingCost, req.Discount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		OrderNumber:  newOrderNumber(),
		CustomerID:   customerID,
		VendorID:     vendor.ID,
		Items:        items,
		Pricing:      pricing,
		Payment:      domain.OrderPayment{Method: "razorpay", Status: domain.PaymentPending},
		Payout:       domain.VendorPayout{Amount: pricing.VendorPayout, Status: domain.PayoutPending},
		Status:       domain.OrderPending,
		ReturnPolicy: s.policy.ReturnPolicy(),
		Tracking:     []domain.TrackingEvent{{Status: domain.OrderPending, Note: "order placed", At: now}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.repo.Create(ctx, order); err != nil {
			return err
		}
		gwOrder, err := s.gateway.CreateOrder(ctx, pricing.TotalAmount, pricing.Currency, Receipt(order.ID), map[string]string{
			"receipt":      Receipt(order.ID),
			"order_number": order.OrderNumber,
		})
		if err != nil {
			return err
		}
		order.Payment.GatewayOrderID = gwOrder.ID
		return s.repo.Update(ctx, order)
	})
	if err != nil {
		zap.L().Error("order creation failed", zap.Int("customerID", customerID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("order placed", zap.Int("orderID", order.ID), zap.String("number", order.OrderNumber))
	s.events.Emit(ctx, analytics.Event{Type: analytics.OrderCreated, UserID: customerID, EntityID: order.ID, Amount: pricing.TotalAmount})
	return order, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id int) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if !actor.owns(order) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// List returns the vendor's sales for vendors and the purchases of everyone else.
func (s *Service) List(ctx context.Context, actor Actor) ([]domain.Order, error) {
	var orders []domain.Order
	var err error
	if actor.Role == domain.RoleVendor {
		orders, err = s.repo.ListByVendorID(ctx, actor.UserID)
	} else {
		orders, err = s.repo.ListByCustomerID(ctx, actor.UserID)
	}
	if err != nil {
		zap.L().Error("failed to list orders", zap.Int("userID", actor.UserID), zap.Error(err))
		return nil, err
	}
	return orders, nil
}

// Confirm handles the customer's checkout callback.
func (s *Service) Confirm(ctx context.Context, customerID, id int, paymentID, signature string) (*domain.Order, error) {
	order, err := s.Get(ctx, Actor{UserID: customerID, Role: domain.RoleCustomer}, id)
	if err != nil {
		return nil, err
	}
	if !s.gateway.VerifySignature(order.Payment.GatewayOrderID, paymentID, signature) {
		zap.L().Warn("order payment signature mismatch", zap.Int("orderID", id))
		return nil, domain.ErrInvalidSignature
	}
	return s.ConfirmPayment(ctx, id, paymentID)
}

// ConfirmPayment places the payment in escrow and credits the customer's
// reward points once.
func (s *Service) ConfirmPayment(ctx context.Context, id int, paymentID string) (*domain.Order, error) {
	return s.confirm(ctx, id, paymentID, nil)
}

// ConfirmCapture confirms the order from a gateway capture. The capture must
// be for the order's gateway order and pay its total.
func (s *Service) ConfirmCapture(ctx context.Context, id int, c domain.Capture) (*domain.Order, error) {
	return s.confirm(ctx, id, c.PaymentID, func(o *domain.Order) error {
		return settlement.CheckCapture(o.Payment.GatewayOrderID, o.Pricing.TotalAmount, c)
	})
}

func (s *Service) confirm(ctx context.Context, id int, paymentID string, check func(o *domain.Order) error) (*domain.Order, error) {
	var changed bool
	var points int64
	order, err := s.mutate(ctx, id, func(ctx context.Context, o *domain.Order) (bool, error) {
		if check != nil {
			if err := check(o); err != nil {
				return false, err
			}
		}
		var err error
		changed, err = settlement.ConfirmOrderPayment(o, paymentID, s.now())
		if err != nil || !changed {
			return false, err
		}
		points = s.policy.PointsFor(o.Pricing.TotalAmount)
		if points > 0 {
			if _, err := s.wallets.AddPoints(ctx, o.CustomerID, points, "order:"+strconv.Itoa(o.ID)); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.PaymentsTotal.WithLabelValues("order", "confirmed").Inc()
		zap.L().Info("order payment held in escrow", zap.Int("orderID", id), zap.Int64("points", points))
		s.events.Emit(ctx, analytics.Event{Type: analytics.OrderConfirmed, UserID: order.CustomerID, EntityID: id, Amount: order.Pricing.TotalAmount})
	}
	return order, nil
}

func (s *Service) MarkPaymentFailed(ctx context.Context, id int) (*domain.Order, error) {
	var changed bool
	order, err := s.mutate(ctx, id, func(_ context.Context, o *domain.Order) (bool, error) {
		var err error
		changed, err = settlement.MarkOrderPaymentFailed(o, s.now())
		return changed, err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.PaymentsTotal.WithLabelValues("order", "failed").Inc()
		s.events.Emit(ctx, analytics.Event{Type: analytics.PaymentFailed, UserID: order.CustomerID, EntityID: id})
	}
	return order, nil
}

// Advance moves the order along fulfilment on behalf of its vendor.
func (s *Service) Advance(ctx context.Context, actor Actor, id int, to domain.OrderStatus, note string) (*domain.Order, error) {
	order, err := s.mutate(ctx, id, func(_ context.Context, o *domain.Order) (bool, error) {
		if actor.Role == domain.RoleCustomer || !actor.owns(o) {
			return false, domain.ErrForbidden
		}
		return true, settlement.AdvanceOrder(o, to, note, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, analytics.Event{Type: analytics.OrderStatusChanged, UserID: actor.UserID, EntityID: id})
	return order, nil
}

// Cancel cancels a live order and refunds any escrowed payment. Customers
// can cancel only until the order ships; after that they request a return.
func (s *Service) Cancel(ctx context.Context, actor Actor, id int, reason string) (*domain.Order, error) {
	var refunded decimal.Decimal
	order, err := s.mutate(ctx, id, func(ctx context.Context, o *domain.Order) (bool, error) {
		if !actor.owns(o) {
			return false, domain.ErrForbidden
		}
		if settlement.IsTerminalOrder(o) {
			return false, domain.ErrInvalidTransition
		}
		if actor.Role == domain.RoleCustomer && !settlement.CustomerCanCancel(o) {
			return false, domain.ErrCancelNotAllowed
		}
		refundID, err := s.refundEscrow(ctx, o)
		if err != nil {
			return false, err
		}
		refunded = settlement.EscrowRefundAmount(o)
		return true, settlement.CancelOrder(o, reason, refundID, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.recordRefund(refunded)
	s.events.Emit(ctx, analytics.Event{Type: analytics.OrderCancelled, UserID: order.CustomerID, EntityID: id, Amount: refunded})
	return order, nil
}

func (s *Service) RequestReturn(ctx context.Context, customerID, id int, reason string) (*domain.Order, error) {
	return s.mutate(ctx, id, func(_ context.Context, o *domain.Order) (bool, error) {
		if o.CustomerID != customerID {
			return false, domain.ErrForbidden
		}
		return true, settlement.RequestReturn(o, reason, s.now())
	})
}

// CompleteReturn closes a requested return once the vendor has the goods back.
func (s *Service) CompleteReturn(ctx context.Context, actor Actor, id int) (*domain.Order, error) {
	var refunded decimal.Decimal
	order, err := s.mutate(ctx, id, func(ctx context.Context, o *domain.Order) (bool, error) {
		if actor.Role == domain.RoleCustomer || !actor.owns(o) {
			return false, domain.ErrForbidden
		}
		if o.Return == nil || settlement.IsTerminalOrder(o) {
			return false, domain.ErrReturnNotAllowed
		}
		refundID, err := s.refundEscrow(ctx, o)
		if err != nil {
			return false, err
		}
		refunded = settlement.EscrowRefundAmount(o)
		return true, settlement.CompleteReturn(o, refundID, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.recordRefund(refunded)
	s.events.Emit(ctx, analytics.Event{Type: analytics.OrderReturned, UserID: order.CustomerID, EntityID: id, Amount: refunded})
	return order, nil
}

// ReleaseEscrow pays a delivered order out to its vendor.
func (s *Service) ReleaseEscrow(ctx context.Context, id int) (*domain.Order, error) {
	order, err := s.mutate(ctx, id, func(_ context.Context, o *domain.Order) (bool, error) {
		return true, settlement.ReleaseEscrow(o, s.now())
	})
	if err != nil {
		return nil, err
	}

	metrics.EscrowReleasedTotal.Inc()
	zap.L().Info("escrow released", zap.Int("orderID", id), zap.Stringer("payout", order.Payout.Amount))
	s.events.Emit(ctx, analytics.Event{Type: analytics.EscrowReleased, UserID: order.VendorID, EntityID: id, Amount: order.Payout.Amount})
	return order, nil
}

func (s *Service) refundEscrow(ctx context.Context, o *domain.Order) (string, error) {
	amount := settlement.EscrowRefundAmount(o)
	if !amount.IsPositive() {
		return "", nil
	}
	refund, err := s.gateway.Refund(ctx, o.Payment.PaymentID, amount)
	if err != nil {
		return "", err
	}
	return refund.ID, nil
}

func (s *Service) recordRefund(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	metrics.RefundsTotal.WithLabelValues("order").Inc()
	metrics.RefundAmount.WithLabelValues("order").Add(amount.InexactFloat64())
}

// mutate locks the order, applies fn and persists the result when fn reports
// a change.
func (s *Service) mutate(ctx context.Context, id int, fn func(ctx context.Context, o *domain.Order) (bool, error)) (*domain.Order, error) {
	var order *domain.Order
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		o, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrNotFound
		}
		changed, err := fn(ctx, o)
		if err != nil {
			return err
		}
		if changed {
			if err := s.repo.Update(ctx, o); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		zap.L().Error("order update failed", zap.Int("orderID", id), zap.Error(err))
		return nil, err
	}
	return order, nil
}
