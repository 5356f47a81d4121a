//go:generate mockgen -source=dispatcher.go -destination=mocks.go -package=analytics
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/internal/worker"
)

type Type string

const (
	TicketPurchased    Type = "ticket.purchased"
	TicketConfirmed    Type = "ticket.confirmed"
	TicketRefunded     Type = "ticket.refunded"
	TicketUsed         Type = "ticket.used"
	TicketExpired      Type = "ticket.expired"
	OrderCreated       Type = "order.created"
	OrderConfirmed     Type = "order.confirmed"
	OrderStatusChanged Type = "order.status_changed"
	OrderCancelled     Type = "order.cancelled"
	OrderReturned      Type = "order.returned"
	EscrowReleased     Type = "escrow.released"
	PaymentFailed      Type = "payment.failed"
	WalletTopUp        Type = "wallet.topup"
	PointsRedeemed     Type = "wallet.points_redeemed"
)

const (
	streamMaxLen   = 100000
	publishTimeout = 2 * time.Second
)

type Event struct {
	ID       string
	Type     Type
	UserID   int
	EntityID int
	Amount   decimal.Decimal
	At       time.Time
}

// Emitter publishes domain events without blocking the caller.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Streamer is the subset of the redis client used to publish events.
type Streamer interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Dispatcher struct {
	stream string
	client Streamer
	pool   worker.PoolI
}

func NewDispatcher(client Streamer, stream string, pool worker.PoolI) *Dispatcher {
	return &Dispatcher{stream: stream, client: client, pool: pool}
}

// Emit queues e for publishing and never blocks the caller. Events are
// dropped when the pool is saturated.
func (d *Dispatcher) Emit(_ context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	if !d.pool.TryAddTask(func() error { return d.publish(e) }) {
		metrics.AnalyticsEventsTotal.WithLabelValues(string(e.Type), "dropped").Inc()
		zap.L().Warn("Analytics event dropped", zap.String("type", string(e.Type)), zap.String("id", e.ID))
	}
}

func (d *Dispatcher) publish(e Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := d.client.XAdd(ctx, d.args(e)).Err(); err != nil {
		metrics.AnalyticsEventsTotal.WithLabelValues(string(e.Type), "failed").Inc()
		return fmt.Errorf("publish %s event %s: %w", e.Type, e.ID, err)
	}
	metrics.AnalyticsEventsTotal.WithLabelValues(string(e.Type), "published").Inc()
	return nil
}

func (d *Dispatcher) args(e Event) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []interface{}{
			"id", e.ID,
			"type", string(e.Type),
			"user_id", e.UserID,
			"entity_id", e.EntityID,
			"amount", e.Amount.StringFixed(2),
			"at", e.At.UTC().Format(time.RFC3339),
		},
	}
}
