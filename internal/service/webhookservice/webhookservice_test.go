package webhookservice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/service/ticketservice"
	"github.com/GlebRadaev/tourmart/internal/settlement"
)

const ttl = time.Hour

type mocks struct {
	verifier *MockVerifier
	tickets  *MockTickets
	orders   *MockOrders
	wallets  *MockWallets
	redis    redismock.ClientMock
}

func NewMock(t *testing.T) (*Service, mocks) {
	ctrl := gomock.NewController(t)
	db, redisMock := redismock.NewClientMock()
	m := mocks{
		verifier: NewMockVerifier(ctrl),
		tickets:  NewMockTickets(ctrl),
		orders:   NewMockOrders(ctrl),
		wallets:  NewMockWallets(ctrl),
		redis:    redisMock,
	}
	return New(m.verifier, m.tickets, m.orders, m.wallets, db, ttl), m
}

func body(event, receipt string) []byte {
	return paymentBody(event, receipt, "order_1", 123900)
}

func paymentBody(event, receipt, orderID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":"pay_1","order_id":%q,"amount":%d,"status":"captured","notes":{"receipt":%q}}}}}`,
		event, orderID, amount, receipt))
}

// capture is what body reports for a captured payment.
var capture = domain.Capture{PaymentID: "pay_1", GatewayOrderID: "order_1", Amount: decimal.New(123900, -2)}

type captureMatcher domain.Capture

func (c captureMatcher) Matches(x any) bool {
	got, ok := x.(domain.Capture)
	return ok && got.PaymentID == c.PaymentID && got.GatewayOrderID == c.GatewayOrderID && got.Amount.Equal(c.Amount)
}

func (c captureMatcher) String() string {
	return fmt.Sprintf("capture %s of %s on %s", c.PaymentID, c.Amount, c.GatewayOrderID)
}

func captureEq(c domain.Capture) gomock.Matcher {
	return captureMatcher(c)
}

func TestService_Handle(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("database error")

	tests := []struct {
		name        string
		eventID     string
		body        []byte
		prepareMock func(m mocks)
		expectedErr error
	}{
		{
			name:    "captured ticket payment",
			eventID: "evt_1",
			body:    body(EventPaymentCaptured, "tkt_5"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_1", EventPaymentCaptured, ttl).SetVal(true)
				m.tickets.EXPECT().ConfirmCapture(ctx, 5, captureEq(capture)).Return(&domain.Ticket{}, nil)
			},
		},
		{
			name:    "failed order payment",
			eventID: "evt_2",
			body:    body(EventPaymentFailed, "ord_8"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_2", EventPaymentFailed, ttl).SetVal(true)
				m.orders.EXPECT().MarkPaymentFailed(ctx, 8).Return(&domain.Order{}, nil)
			},
		},
		{
			name: "captured order payment without event id",
			body: body(EventPaymentCaptured, "ord_8"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:payment.captured:pay_1", EventPaymentCaptured, ttl).SetVal(true)
				m.orders.EXPECT().ConfirmCapture(ctx, 8, captureEq(capture)).Return(&domain.Order{}, nil)
			},
		},
		{
			name:    "duplicate delivery",
			eventID: "evt_1",
			body:    body(EventPaymentCaptured, "tkt_5"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_1", EventPaymentCaptured, ttl).SetVal(false)
			},
		},
		{
			name:    "handler failure releases dedupe key",
			eventID: "evt_3",
			body:    body(EventPaymentCaptured, "tkt_5"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_3", EventPaymentCaptured, ttl).SetVal(true)
				m.tickets.EXPECT().ConfirmCapture(ctx, 5, captureEq(capture)).Return(nil, dbErr)
				m.redis.ExpectDel("webhook:evt_3").SetVal(1)
			},
			expectedErr: dbErr,
		},
		{
			name:    "capture reports gateway order and amount",
			eventID: "evt_9",
			body:    paymentBody(EventPaymentCaptured, "ord_8", "order_8", 5050),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_9", EventPaymentCaptured, ttl).SetVal(true)
				m.orders.EXPECT().ConfirmCapture(ctx, 8, captureEq(domain.Capture{PaymentID: "pay_1", GatewayOrderID: "order_8", Amount: decimal.RequireFromString("50.50")})).
					Return(nil, domain.ErrPaymentMismatch)
				m.redis.ExpectDel("webhook:evt_9").SetVal(1)
			},
			expectedErr: domain.ErrPaymentMismatch,
		},
		{
			name:    "captured top-up",
			eventID: "evt_10",
			body:    body(EventPaymentCaptured, "top_3"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_10", EventPaymentCaptured, ttl).SetVal(true)
				m.wallets.EXPECT().ConfirmTopUp(ctx, 3, captureEq(capture)).Return(&domain.Wallet{}, nil)
			},
		},
		{
			name:    "failed top-up is logged only",
			eventID: "evt_11",
			body:    body(EventPaymentFailed, "top_3"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_11", EventPaymentFailed, ttl).SetVal(true)
			},
		},
		{
			name:    "unknown receipt is acknowledged",
			eventID: "evt_4",
			body:    body(EventPaymentCaptured, "gift_1"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_4", EventPaymentCaptured, ttl).SetVal(true)
			},
		},
		{
			name:    "malformed receipt",
			eventID: "evt_5",
			body:    body(EventPaymentCaptured, "tkt_abc"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_5", EventPaymentCaptured, ttl).SetVal(true)
				m.redis.ExpectDel("webhook:evt_5").SetVal(1)
			},
			expectedErr: domain.NewValidationError("notes.receipt", "malformed receipt tkt_abc"),
		},
		{
			name:    "refund events are logged only",
			eventID: "evt_6",
			body:    []byte(`{"event":"refund.created","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_1","amount":100}}}}`),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_6", EventRefundCreated, ttl).SetVal(true)
			},
		},
		{
			name:    "redis unavailable",
			eventID: "evt_7",
			body:    body(EventPaymentCaptured, "tkt_5"),
			prepareMock: func(m mocks) {
				m.redis.ExpectSetNX("webhook:evt_7", EventPaymentCaptured, ttl).SetErr(dbErr)
			},
			expectedErr: &domain.ExternalError{Op: "webhook_dedupe", Err: dbErr},
		},
		{
			name:        "malformed json",
			eventID:     "evt_8",
			body:        []byte(`{`),
			prepareMock: func(mocks) {},
			expectedErr: domain.NewValidationError("body", "malformed webhook payload"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := NewMock(t)
			m.verifier.EXPECT().VerifyWebhook(tt.body, "sig").Return(true)
			tt.prepareMock(m)

			err := s.Handle(ctx, tt.eventID, tt.body, "sig")

			assert.Equal(t, tt.expectedErr, err)
			assert.NoError(t, m.redis.ExpectationsWereMet())
		})
	}
}

func TestService_Handle_BadSignature(t *testing.T) {
	s, m := NewMock(t)
	b := body(EventPaymentCaptured, "tkt_5")
	m.verifier.EXPECT().VerifyWebhook(b, "forged").Return(false)

	err := s.Handle(context.Background(), "evt_1", b, "forged")

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.NoError(t, m.redis.ExpectationsWereMet())
}

// ticketStore backs a real ticket service so deliveries run through the
// capture checks end to end.
type ticketStore struct {
	ticket *domain.Ticket
}

func newTicketWebhooks(t *testing.T, ticket *domain.Ticket) (*Service, redismock.ClientMock, *ticketStore) {
	ctrl := gomock.NewController(t)
	store := &ticketStore{ticket: ticket}

	repo := ticketservice.NewMockRepo(ctrl)
	repo.EXPECT().FindByIDForUpdate(gomock.Any(), ticket.ID).DoAndReturn(
		func(context.Context, int) (*domain.Ticket, error) {
			cp := *store.ticket
			return &cp, nil
		}).AnyTimes()
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tk *domain.Ticket) error {
			store.ticket = tk
			return nil
		}).AnyTimes()

	txManager := pg.NewMockTXManager(ctrl)
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn pg.TransactionalFn) error { return fn(ctx) },
	).AnyTimes()

	wallets := ticketservice.NewMockWallets(ctrl)
	wallets.EXPECT().AddPoints(gomock.Any(), ticket.UserID, gomock.Any(), gomock.Any()).Return(&domain.Wallet{}, nil).AnyTimes()
	events := analytics.NewMockEmitter(ctrl)
	events.EXPECT().Emit(gomock.Any(), gomock.Any()).AnyTimes()

	tickets := ticketservice.New(repo, ticketservice.NewMockGateway(ctrl), wallets, txManager, settlement.DefaultPolicy(), events)

	verifier := NewMockVerifier(ctrl)
	verifier.EXPECT().VerifyWebhook(gomock.Any(), "sig").Return(true).AnyTimes()
	db, redisMock := redismock.NewClientMock()
	return New(verifier, tickets, NewMockOrders(ctrl), NewMockWallets(ctrl), db, ttl), redisMock, store
}

func pendingTicket() *domain.Ticket {
	pricing, _ := settlement.DefaultPolicy().PriceTicket(decimal.NewFromInt(500), 2, decimal.Zero)
	return &domain.Ticket{
		ID:      5,
		UserID:  1,
		Pricing: pricing,
		Payment: domain.TicketPayment{Status: domain.PaymentPending, GatewayOrderID: "order_5"},
		Status:  domain.TicketPending,
	}
}

func TestService_Handle_TicketCapture(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		body        []byte
		expectedErr error
		status      domain.PaymentStatus
	}{
		{
			name:   "capture of the full total",
			body:   paymentBody(EventPaymentCaptured, "tkt_5", "order_5", 123900),
			status: domain.PaymentCompleted,
		},
		{
			name:        "capture on another gateway order",
			body:        paymentBody(EventPaymentCaptured, "tkt_5", "order_6", 123900),
			expectedErr: domain.ErrPaymentMismatch,
			status:      domain.PaymentPending,
		},
		{
			name:        "capture of a smaller amount",
			body:        paymentBody(EventPaymentCaptured, "tkt_5", "order_5", 100),
			expectedErr: domain.ErrPaymentMismatch,
			status:      domain.PaymentPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, redisMock, store := newTicketWebhooks(t, pendingTicket())
			redisMock.ExpectSetNX("webhook:evt_1", EventPaymentCaptured, ttl).SetVal(true)
			if tt.expectedErr != nil {
				redisMock.ExpectDel("webhook:evt_1").SetVal(1)
			}

			err := s.Handle(ctx, "evt_1", tt.body, "sig")

			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.status, store.ticket.Payment.Status)
			assert.NoError(t, redisMock.ExpectationsWereMet())
		})
	}
}

func TestService_Handle_CaptureAfterFailure(t *testing.T) {
	ctx := context.Background()
	s, redisMock, store := newTicketWebhooks(t, pendingTicket())

	redisMock.ExpectSetNX("webhook:evt_1", EventPaymentFailed, ttl).SetVal(true)
	require.NoError(t, s.Handle(ctx, "evt_1", paymentBody(EventPaymentFailed, "tkt_5", "order_5", 123900), "sig"))
	assert.Equal(t, domain.PaymentFailed, store.ticket.Payment.Status)

	redisMock.ExpectSetNX("webhook:evt_2", EventPaymentCaptured, ttl).SetVal(true)
	require.NoError(t, s.Handle(ctx, "evt_2", paymentBody(EventPaymentCaptured, "tkt_5", "order_5", 123900), "sig"))

	assert.Equal(t, domain.PaymentCompleted, store.ticket.Payment.Status)
	assert.Equal(t, domain.TicketConfirmed, store.ticket.Status)
	assert.Equal(t, "pay_1", store.ticket.Payment.PaymentID)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
