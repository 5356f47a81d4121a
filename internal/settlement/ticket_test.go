package settlement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

func TestPriceTicket(t *testing.T) {
	tests := []struct {
		name        string
		basePrice   string
		quantity    int
		fee         string
		tax         string
		discount    string
		expectErr   bool
		subtotal    string
		platformFee string
		taxAmount   string
		totalAmount string
	}{
		{
			name:        "Default rates",
			basePrice:   "100",
			quantity:    2,
			fee:         "5",
			tax:         "18",
			discount:    "0",
			subtotal:    "200",
			platformFee: "10",
			taxAmount:   "37.8",
			totalAmount: "247.8",
		},
		{
			name:        "With discount",
			basePrice:   "999.99",
			quantity:    3,
			fee:         "5",
			tax:         "18",
			discount:    "100",
			subtotal:    "2999.97",
			platformFee: "150",
			taxAmount:   "566.99",
			totalAmount: "3616.96",
		},
		{
			name:        "Zero rates",
			basePrice:   "50",
			quantity:    1,
			fee:         "0",
			tax:         "0",
			discount:    "0",
			subtotal:    "50",
			platformFee: "0",
			taxAmount:   "0",
			totalAmount: "50",
		},
		{name: "Zero price", basePrice: "0", quantity: 1, fee: "5", tax: "18", discount: "0", expectErr: true},
		{name: "Negative price", basePrice: "-10", quantity: 1, fee: "5", tax: "18", discount: "0", expectErr: true},
		{name: "Zero quantity", basePrice: "10", quantity: 0, fee: "5", tax: "18", discount: "0", expectErr: true},
		{name: "Discount above total", basePrice: "10", quantity: 1, fee: "5", tax: "18", discount: "100", expectErr: true},
		{name: "Fee above 100 percent", basePrice: "10", quantity: 1, fee: "101", tax: "18", discount: "0", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pricing, err := PriceTicket(dec(tt.basePrice), tt.quantity, dec(tt.fee), dec(tt.tax), dec(tt.discount))
			if tt.expectErr {
				var verr *domain.ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.subtotal, pricing.Subtotal)
			assertDecimal(t, tt.platformFee, pricing.PlatformFee)
			assertDecimal(t, tt.taxAmount, pricing.Tax)
			assertDecimal(t, tt.totalAmount, pricing.TotalAmount)

			sum := pricing.Subtotal.Add(pricing.PlatformFee).Add(pricing.Tax).Sub(pricing.Discount)
			assert.True(t, sum.Equal(pricing.TotalAmount), "total must equal subtotal + fee + tax - discount")
		})
	}
}

func TestPriceTicket_TotalNotBelowSubtotal(t *testing.T) {
	for base := 1; base <= 500; base += 7 {
		for qty := 1; qty <= 5; qty++ {
			pricing, err := PriceTicket(decimal.NewFromInt(int64(base)).Div(decimal.NewFromInt(3)), qty, dec("5"), dec("18"), decimal.Zero)
			require.NoError(t, err)
			assert.True(t, pricing.TotalAmount.GreaterThanOrEqual(pricing.Subtotal))
			assert.True(t, pricing.Subtotal.Add(pricing.PlatformFee).Add(pricing.Tax).Equal(pricing.TotalAmount))
		}
	}
}

func TestPriceTicket_Idempotent(t *testing.T) {
	first, err := PriceTicket(dec("149.5"), 3, dec("5"), dec("18"), dec("12.25"))
	require.NoError(t, err)
	second, err := PriceTicket(dec("149.5"), 3, dec("5"), dec("18"), dec("12.25"))
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPolicy_PriceTicket(t *testing.T) {
	p := DefaultPolicy()
	p.Currency = "EUR"
	pricing, err := p.PriceTicket(dec("100"), 2, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "EUR", pricing.Currency)
	assertDecimal(t, "247.8", pricing.TotalAmount)
}

func TestRepriceTicket(t *testing.T) {
	ticket := &domain.Ticket{Pricing: domain.TicketPricing{
		Currency:        "INR",
		BasePrice:       dec("100"),
		Quantity:        2,
		PlatformFeeRate: dec("5"),
		TaxRate:         dec("18"),
		Discount:        decimal.Zero,
	}}
	require.NoError(t, RepriceTicket(ticket))
	assertDecimal(t, "247.8", ticket.Pricing.TotalAmount)

	ticket.Pricing.Quantity = 3
	require.NoError(t, RepriceTicket(ticket))
	assertDecimal(t, "300", ticket.Pricing.Subtotal)
	assertDecimal(t, "371.7", ticket.Pricing.TotalAmount)
}

func paidTicket(now time.Time, hoursBeforeEvent int) *domain.Ticket {
	return &domain.Ticket{
		ID:        1,
		EventDate: now.Add(time.Duration(hoursBeforeEvent) * time.Hour),
		Pricing:   domain.TicketPricing{TotalAmount: dec("247.8")},
		Payment:   domain.TicketPayment{Status: domain.PaymentCompleted, PaymentID: "pay_1"},
		Status:    domain.TicketConfirmed,
		CancellationPolicy: domain.CancellationPolicy{
			Allowed:       true,
			RefundPercent: dec("100"),
			DeadlineHours: 24,
		},
	}
}

func TestCalculateRefund(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		mutate   func(t *domain.Ticket)
		hours    int
		expected string
	}{
		{name: "Full refund before deadline", hours: 48, expected: "247.8"},
		{name: "Exactly at deadline", hours: 24, expected: "247.8"},
		{name: "Inside deadline", hours: 23, expected: "0"},
		{
			name:     "Partial refund percent",
			hours:    72,
			mutate:   func(t *domain.Ticket) { t.CancellationPolicy.RefundPercent = dec("50") },
			expected: "123.9",
		},
		{
			name:     "Refunds not allowed",
			hours:    72,
			mutate:   func(t *domain.Ticket) { t.CancellationPolicy.Allowed = false },
			expected: "0",
		},
		{
			name:     "Used ticket",
			hours:    72,
			mutate:   func(t *domain.Ticket) { t.Status = domain.TicketUsed },
			expected: "0",
		},
		{
			name:     "Already refunded",
			hours:    72,
			mutate:   func(t *domain.Ticket) { t.Payment.Status = domain.PaymentRefunded },
			expected: "0",
		},
		{
			// Nothing was paid, so nothing is refundable even with a 100%
			// policy 48h ahead of the event.
			name:     "Payment still pending",
			hours:    48,
			mutate:   func(t *domain.Ticket) { t.Payment.Status = domain.PaymentPending; t.Status = domain.TicketPending },
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := paidTicket(now, tt.hours)
			if tt.mutate != nil {
				tt.mutate(ticket)
			}
			amount := CalculateRefund(ticket, now)
			assertDecimal(t, tt.expected, amount)
			assert.Equal(t, amount.IsPositive(), CanRefund(ticket, now))
		})
	}
}

func TestProcessRefund(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := paidTicket(now, 48)

	amount, err := ProcessRefund(ticket, "rfnd_1", now)
	require.NoError(t, err)
	assertDecimal(t, "247.8", amount)
	assert.Equal(t, domain.PaymentRefunded, ticket.Payment.Status)
	assert.Equal(t, domain.TicketCancelled, ticket.Status)
	assert.Equal(t, "rfnd_1", ticket.Payment.RefundID)
	require.NotNil(t, ticket.Payment.RefundedAt)
	assert.True(t, ticket.Payment.RefundedAt.Equal(now))

	_, err = ProcessRefund(ticket, "rfnd_2", now)
	assert.ErrorIs(t, err, domain.ErrRefundNotAllowed)
	assert.Equal(t, "rfnd_1", ticket.Payment.RefundID)
}

func TestProcessRefund_NotAllowed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := paidTicket(now, 2)

	_, err := ProcessRefund(ticket, "rfnd_1", now)
	assert.ErrorIs(t, err, domain.ErrRefundNotAllowed)
	assert.Equal(t, domain.PaymentCompleted, ticket.Payment.Status)
	assert.Equal(t, domain.TicketConfirmed, ticket.Status)
}

func TestConfirmTicketPayment(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Pending payment is confirmed once", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.TicketPending, Payment: domain.TicketPayment{Status: domain.PaymentPending}}

		changed, err := ConfirmTicketPayment(ticket, "pay_1", now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.TicketConfirmed, ticket.Status)
		assert.Equal(t, domain.PaymentCompleted, ticket.Payment.Status)

		changed, err = ConfirmTicketPayment(ticket, "pay_1", now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, ticket.Payment.PaidAt.Equal(now))
	})

	t.Run("Different payment id is rejected", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.TicketConfirmed, Payment: domain.TicketPayment{Status: domain.PaymentCompleted, PaymentID: "pay_1"}}
		_, err := ConfirmTicketPayment(ticket, "pay_2", now)
		assert.ErrorIs(t, err, domain.ErrPaymentMismatch)
	})

	t.Run("Retry after failed attempt is confirmed", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.TicketPending, Payment: domain.TicketPayment{Status: domain.PaymentPending}}
		_, err := MarkTicketPaymentFailed(ticket, now)
		require.NoError(t, err)

		changed, err := ConfirmTicketPayment(ticket, "pay_retry", now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.TicketConfirmed, ticket.Status)
		assert.Equal(t, domain.PaymentCompleted, ticket.Payment.Status)
		assert.Equal(t, "pay_retry", ticket.Payment.PaymentID)
	})

	t.Run("Expired ticket cannot be confirmed", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.TicketExpired, Payment: domain.TicketPayment{Status: domain.PaymentFailed}}
		_, err := ConfirmTicketPayment(ticket, "pay_1", now)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("Refunded payment cannot be confirmed", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.TicketCancelled, Payment: domain.TicketPayment{Status: domain.PaymentRefunded}}
		_, err := ConfirmTicketPayment(ticket, "pay_1", now)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestMarkTicketPaymentFailed(t *testing.T) {
	now := time.Now()
	ticket := &domain.Ticket{Status: domain.TicketPending, Payment: domain.TicketPayment{Status: domain.PaymentPending}}

	changed, err := MarkTicketPaymentFailed(ticket, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PaymentFailed, ticket.Payment.Status)

	changed, err = MarkTicketPaymentFailed(ticket, now)
	require.NoError(t, err)
	assert.False(t, changed)

	ticket.Payment.Status = domain.PaymentCompleted
	_, err = MarkTicketPaymentFailed(ticket, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUseTicket(t *testing.T) {
	event := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    domain.TicketStatus
		payment   domain.PaymentStatus
		now       time.Time
		expectErr bool
	}{
		{name: "Confirmed ticket on event day", status: domain.TicketConfirmed, payment: domain.PaymentCompleted, now: event.Add(-2 * time.Hour)},
		{name: "Confirmed ticket after event start same day", status: domain.TicketConfirmed, payment: domain.PaymentCompleted, now: event.Add(3 * time.Hour)},
		{name: "Next day", status: domain.TicketConfirmed, payment: domain.PaymentCompleted, now: event.Add(7 * time.Hour), expectErr: true},
		{name: "Already used", status: domain.TicketUsed, payment: domain.PaymentCompleted, now: event, expectErr: true},
		{name: "Unpaid", status: domain.TicketPending, payment: domain.PaymentPending, now: event, expectErr: true},
		{name: "Cancelled", status: domain.TicketCancelled, payment: domain.PaymentRefunded, now: event, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := &domain.Ticket{EventDate: event, Status: tt.status, Payment: domain.TicketPayment{Status: tt.payment}}
			err := UseTicket(ticket, tt.now)
			if tt.expectErr {
				assert.ErrorIs(t, err, domain.ErrTicketNotUsable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.TicketUsed, ticket.Status)
			require.NotNil(t, ticket.UsedAt)
		})
	}
}

func TestExpireTicket(t *testing.T) {
	event := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	confirmed := &domain.Ticket{EventDate: event, Status: domain.TicketConfirmed}
	assert.False(t, ExpireTicket(confirmed, event.Add(time.Hour)))
	assert.True(t, ExpireTicket(confirmed, event.Add(24*time.Hour)))
	assert.Equal(t, domain.TicketExpired, confirmed.Status)

	used := &domain.Ticket{EventDate: event, Status: domain.TicketUsed}
	assert.False(t, ExpireTicket(used, event.Add(48*time.Hour)))
	assert.Equal(t, domain.TicketUsed, used.Status)
}
