package settlement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

func TestPriceOrder(t *testing.T) {
	items := []domain.OrderItem{{ProductID: "p1", Name: "Pashmina shawl", UnitPrice: dec("500"), Quantity: 2}}

	priced, pricing, err := PriceOrder(items, dec("0.15"), dec("50"), dec("18"), decimal.Zero)
	require.NoError(t, err)

	assertDecimal(t, "1000", pricing.ItemsTotal)
	assertDecimal(t, "150", pricing.PlatformCommission)
	assertDecimal(t, "189", pricing.Tax)
	assertDecimal(t, "1239", pricing.TotalAmount)
	assertDecimal(t, "850", pricing.VendorPayout)

	require.Len(t, priced, 1)
	assertDecimal(t, "1000", priced[0].Subtotal)
	assert.True(t, items[0].Subtotal.IsZero(), "input items must not be modified")
}

func TestPriceOrder_MultipleItems(t *testing.T) {
	items := []domain.OrderItem{
		{ProductID: "p1", UnitPrice: dec("199.99"), Quantity: 3},
		{ProductID: "p2", UnitPrice: dec("45.5"), Quantity: 1},
	}

	priced, pricing, err := PriceOrder(items, dec("0.1"), dec("0"), dec("18"), dec("20"))
	require.NoError(t, err)

	assertDecimal(t, "599.97", priced[0].Subtotal)
	assertDecimal(t, "45.5", priced[1].Subtotal)
	assertDecimal(t, "645.47", pricing.ItemsTotal)
	assertDecimal(t, "64.55", pricing.PlatformCommission)
	assertDecimal(t, "116.18", pricing.Tax)
	assertDecimal(t, "741.65", pricing.TotalAmount)
	assertDecimal(t, "580.92", pricing.VendorPayout)

	assert.True(t, pricing.PlatformCommission.Add(pricing.VendorPayout).Equal(pricing.ItemsTotal))
}

func TestPriceOrder_Validation(t *testing.T) {
	valid := []domain.OrderItem{{UnitPrice: dec("10"), Quantity: 1}}

	tests := []struct {
		name       string
		items      []domain.OrderItem
		commission string
		shipping   string
		discount   string
	}{
		{name: "No items", items: nil, commission: "0.15", shipping: "0", discount: "0"},
		{name: "Zero unit price", items: []domain.OrderItem{{UnitPrice: decimal.Zero, Quantity: 1}}, commission: "0.15", shipping: "0", discount: "0"},
		{name: "Zero quantity", items: []domain.OrderItem{{UnitPrice: dec("10"), Quantity: 0}}, commission: "0.15", shipping: "0", discount: "0"},
		{name: "Commission above one", items: valid, commission: "1.5", shipping: "0", discount: "0"},
		{name: "Negative shipping", items: valid, commission: "0.15", shipping: "-1", discount: "0"},
		{name: "Discount above total", items: valid, commission: "0.15", shipping: "0", discount: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := PriceOrder(tt.items, dec(tt.commission), dec(tt.shipping), dec("18"), dec(tt.discount))
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestPolicy_PriceOrder_VendorOverride(t *testing.T) {
	p := DefaultPolicy()
	items := []domain.OrderItem{{UnitPrice: dec("500"), Quantity: 2}}

	_, pricing, err := p.PriceOrder(items, decimal.NullDecimal{}, dec("50"), decimal.Zero)
	require.NoError(t, err)
	assertDecimal(t, "150", pricing.PlatformCommission)

	_, pricing, err = p.PriceOrder(items, decimal.NewNullDecimal(dec("0.08")), dec("50"), decimal.Zero)
	require.NoError(t, err)
	assertDecimal(t, "80", pricing.PlatformCommission)
	assertDecimal(t, "920", pricing.VendorPayout)
	assertDecimal(t, "1239", pricing.TotalAmount)
}

func deliveredOrder(deliveredAt time.Time) *domain.Order {
	return &domain.Order{
		ID:           1,
		Status:       domain.OrderDelivered,
		ReturnPolicy: domain.ReturnPolicy{Allowed: true, DeadlineDays: 7},
		Pricing:      domain.OrderPricing{TotalAmount: dec("1239"), VendorPayout: dec("850")},
		Payment:      domain.OrderPayment{Status: domain.PaymentHeldInEscrow, PaymentID: "pay_1"},
		Tracking: []domain.TrackingEvent{
			{Status: domain.OrderConfirmed, At: deliveredAt.Add(-72 * time.Hour)},
			{Status: domain.OrderShipped, At: deliveredAt.Add(-48 * time.Hour)},
			{Status: domain.OrderDelivered, At: deliveredAt},
		},
	}
}

func TestCanReturn(t *testing.T) {
	delivered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		mutate   func(o *domain.Order)
		now      time.Time
		expected bool
	}{
		{name: "Within window", now: delivered.Add(3 * 24 * time.Hour), expected: true},
		{name: "Last day of window", now: delivered.Add(7 * 24 * time.Hour), expected: true},
		{name: "Window passed", now: delivered.Add(7*24*time.Hour + time.Minute), expected: false},
		{
			name:     "Returns not allowed",
			now:      delivered.Add(time.Hour),
			mutate:   func(o *domain.Order) { o.ReturnPolicy.Allowed = false },
			expected: false,
		},
		{
			name:     "Not delivered",
			now:      delivered.Add(time.Hour),
			mutate:   func(o *domain.Order) { o.Status = domain.OrderShipped },
			expected: false,
		},
		{
			name:     "Already requested",
			now:      delivered.Add(time.Hour),
			mutate:   func(o *domain.Order) { o.Return = &domain.ReturnRequest{Reason: "damaged"} },
			expected: false,
		},
		{
			name:     "No delivered tracking entry",
			now:      delivered.Add(time.Hour),
			mutate:   func(o *domain.Order) { o.Tracking = o.Tracking[:2] },
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := deliveredOrder(delivered)
			if tt.mutate != nil {
				tt.mutate(order)
			}
			assert.Equal(t, tt.expected, CanReturn(order, tt.now))
		})
	}
}

func TestRequestReturn(t *testing.T) {
	delivered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	order := deliveredOrder(delivered)

	require.NoError(t, RequestReturn(order, "wrong size", delivered.Add(time.Hour)))
	require.NotNil(t, order.Return)
	assert.Equal(t, "wrong size", order.Return.Reason)

	err := RequestReturn(order, "again", delivered.Add(2*time.Hour))
	assert.ErrorIs(t, err, domain.ErrReturnNotAllowed)
}
