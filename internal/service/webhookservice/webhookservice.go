//go:generate mockgen -source=webhookservice.go -destination=mocks.go -package=webhookservice
package webhookservice

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/gateway"
	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/internal/service/orderservice"
	"github.com/GlebRadaev/tourmart/internal/service/ticketservice"
	"github.com/GlebRadaev/tourmart/internal/service/walletservice"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"

	keyPrefix = "webhook:"
)

type Verifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

type Tickets interface {
	ConfirmCapture(ctx context.Context, id int, c domain.Capture) (*domain.Ticket, error)
	MarkPaymentFailed(ctx context.Context, id int) (*domain.Ticket, error)
}

type Orders interface {
	ConfirmCapture(ctx context.Context, id int, c domain.Capture) (*domain.Order, error)
	MarkPaymentFailed(ctx context.Context, id int) (*domain.Order, error)
}

type Wallets interface {
	ConfirmTopUp(ctx context.Context, id int, c domain.Capture) (*domain.Wallet, error)
}

// Cache is the subset of the redis client used for delivery dedupe.
type Cache interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Payload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type Payment struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Amount  int64             `json:"amount"`
	Status  string            `json:"status"`
	Notes   map[string]string `json:"notes"`
}

type Service struct {
	verifier Verifier
	tickets  Tickets
	orders   Orders
	wallets  Wallets
	cache    Cache
	ttl      time.Duration
}

func New(verifier Verifier, tickets Tickets, orders Orders, wallets Wallets, cache Cache, ttl time.Duration) *Service {
	return &Service{
		verifier: verifier,
		tickets:  tickets,
		orders:   orders,
		wallets:  wallets,
		cache:    cache,
		ttl:      ttl,
	}
}

// Handle authenticates and applies one gateway delivery. Deliveries already
// handled under the same event id are acknowledged without side effects.
func (s *Service) Handle(ctx context.Context, eventID string, body []byte, signature string) error {
	if !s.verifier.VerifyWebhook(body, signature) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return domain.ErrInvalidSignature
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.NewValidationError("body", "malformed webhook payload")
	}
	if eventID == "" {
		eventID = p.Event + ":" + p.paymentID()
	}

	key := keyPrefix + eventID
	fresh, err := s.cache.SetNX(ctx, key, p.Event, s.ttl).Result()
	if err != nil {
		zap.L().Error("webhook dedupe unavailable", zap.String("eventID", eventID), zap.Error(err))
		return &domain.ExternalError{Op: "webhook_dedupe", Err: err}
	}
	if !fresh {
		zap.L().Info("duplicate webhook ignored", zap.String("eventID", eventID))
		metrics.WebhookEventsTotal.WithLabelValues(p.Event, "duplicate").Inc()
		return nil
	}

	outcome, err := s.dispatch(ctx, &p)
	if err != nil {
		if delErr := s.cache.Del(ctx, key).Err(); delErr != nil {
			zap.L().Error("can't release webhook dedupe key", zap.String("key", key), zap.Error(delErr))
		}
		zap.L().Error("webhook handling failed", zap.String("eventID", eventID), zap.String("event", p.Event), zap.Error(err))
		metrics.WebhookEventsTotal.WithLabelValues(p.Event, "failed").Inc()
		return err
	}

	metrics.WebhookEventsTotal.WithLabelValues(p.Event, outcome).Inc()
	return nil
}

func (s *Service) dispatch(ctx context.Context, p *Payload) (string, error) {
	switch p.Event {
	case EventPaymentCaptured, EventPaymentFailed:
	case EventRefundCreated:
		if r := p.Payload.Refund; r != nil {
			zap.L().Info("gateway refund created", zap.String("refundID", r.Entity.ID), zap.String("paymentID", r.Entity.PaymentID))
		}
		return "logged", nil
	default:
		return "ignored", nil
	}

	if p.Payload.Payment == nil {
		return "", domain.NewValidationError("payload.payment", "missing payment entity")
	}
	payment := p.Payload.Payment.Entity
	receipt := payment.Notes["receipt"]
	captured := p.Event == EventPaymentCaptured
	capture := domain.Capture{
		PaymentID:      payment.ID,
		GatewayOrderID: payment.OrderID,
		Amount:         gateway.FromMinor(payment.Amount),
	}

	switch {
	case strings.HasPrefix(receipt, ticketservice.ReceiptPrefix):
		id, err := parseID(receipt, ticketservice.ReceiptPrefix)
		if err != nil {
			return "", err
		}
		if captured {
			_, err = s.tickets.ConfirmCapture(ctx, id, capture)
		} else {
			_, err = s.tickets.MarkPaymentFailed(ctx, id)
		}
		return "applied", err
	case strings.HasPrefix(receipt, orderservice.ReceiptPrefix):
		id, err := parseID(receipt, orderservice.ReceiptPrefix)
		if err != nil {
			return "", err
		}
		if captured {
			_, err = s.orders.ConfirmCapture(ctx, id, capture)
		} else {
			_, err = s.orders.MarkPaymentFailed(ctx, id)
		}
		return "applied", err
	case strings.HasPrefix(receipt, walletservice.ReceiptPrefix):
		id, err := parseID(receipt, walletservice.ReceiptPrefix)
		if err != nil {
			return "", err
		}
		if !captured {
			zap.L().Info("wallet top-up payment failed", zap.Int("topUpID", id), zap.String("paymentID", payment.ID))
			return "logged", nil
		}
		_, err = s.wallets.ConfirmTopUp(ctx, id, capture)
		return "applied", err
	default:
		zap.L().Warn("webhook for unknown receipt", zap.String("receipt", receipt), zap.String("paymentID", payment.ID))
		return "ignored", nil
	}
}

func (p *Payload) paymentID() string {
	if p.Payload.Payment != nil {
		return p.Payload.Payment.Entity.ID
	}
	if p.Payload.Refund != nil {
		return p.Payload.Refund.Entity.ID
	}
	return ""
}

func parseID(receipt, prefix string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(receipt, prefix))
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("notes.receipt", "malformed receipt "+receipt)
	}
	return id, nil
}
