package settlement

import (
	"testing"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"37.8", "37.8"},
		{"0.125", "0.13"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assertDecimal(t, tt.expected, Round(dec(tt.in)))
		})
	}
}

func TestComputeFeeAndTax(t *testing.T) {
	fee, tax := ComputeFeeAndTax(dec("200"), dec("0.05"), dec("0.18"))
	assertDecimal(t, "10", fee)
	assertDecimal(t, "37.8", tax, "tax must be charged on subtotal plus fee")
}

func TestTotal(t *testing.T) {
	total, err := Total(dec("200"), dec("10"), dec("37.8"), dec("7.8"))
	require.NoError(t, err)
	assertDecimal(t, "240", total)

	_, err = Total(dec("10"), dec("0"), dec("0"), dec("10.01"))
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFromPercent(t *testing.T) {
	rate, err := FromPercent(dec("18"))
	require.NoError(t, err)
	assertDecimal(t, "0.18", rate)

	_, err = FromPercent(dec("120"))
	assert.Error(t, err)
	_, err = FromPercent(dec("-1"))
	assert.Error(t, err)
}

func TestCheckCapture(t *testing.T) {
	tests := []struct {
		name      string
		orderID   string
		capture   domain.Capture
		expectErr bool
	}{
		{name: "Matching order and amount", orderID: "order_1", capture: domain.Capture{GatewayOrderID: "order_1", Amount: dec("247.80")}},
		{name: "Other gateway order", orderID: "order_1", capture: domain.Capture{GatewayOrderID: "order_2", Amount: dec("247.8")}, expectErr: true},
		{name: "Short amount", orderID: "order_1", capture: domain.Capture{GatewayOrderID: "order_1", Amount: dec("1")}, expectErr: true},
		{name: "Entity without gateway order", capture: domain.Capture{Amount: dec("247.8")}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCapture(tt.orderID, dec("247.8"), tt.capture)
			if tt.expectErr {
				assert.ErrorIs(t, err, domain.ErrPaymentMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}
