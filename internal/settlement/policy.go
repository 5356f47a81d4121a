package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

// Policy carries the default rates and limits used by the rules in this
// package. It is built once from configuration and passed in explicitly.
type Policy struct {
	Currency string

	TicketFeePercent decimal.Decimal
	TicketTaxPercent decimal.Decimal

	OrderCommissionRate decimal.Decimal
	OrderTaxPercent     decimal.Decimal

	RefundPercent       decimal.Decimal
	RefundDeadlineHours int
	ReturnDeadlineDays  int

	RedemptionRatio decimal.Decimal
	MinRedeemPoints int64
	// RewardRate is the number of points earned per currency unit paid.
	RewardRate decimal.Decimal
	// MaxWalletBalance caps AddBalance. Zero disables the cap.
	MaxWalletBalance decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		Currency:            domain.DefaultCurrency,
		TicketFeePercent:    decimal.NewFromInt(5),
		TicketTaxPercent:    decimal.NewFromInt(18),
		OrderCommissionRate: decimal.RequireFromString("0.15"),
		OrderTaxPercent:     decimal.NewFromInt(18),
		RefundPercent:       decimal.NewFromInt(100),
		RefundDeadlineHours: 24,
		ReturnDeadlineDays:  7,
		RedemptionRatio:     decimal.RequireFromString("0.5"),
		MinRedeemPoints:     100,
		RewardRate:          decimal.RequireFromString("0.1"),
		MaxWalletBalance:    decimal.Zero,
	}
}

func (p Policy) CancellationPolicy() domain.CancellationPolicy {
	return domain.CancellationPolicy{
		Allowed:       true,
		RefundPercent: p.RefundPercent,
		DeadlineHours: p.RefundDeadlineHours,
	}
}

func (p Policy) ReturnPolicy() domain.ReturnPolicy {
	return domain.ReturnPolicy{
		Allowed:      true,
		DeadlineDays: p.ReturnDeadlineDays,
	}
}

// PointsFor returns the reward points earned for a payment of amount.
func (p Policy) PointsFor(amount decimal.Decimal) int64 {
	if !amount.IsPositive() {
		return 0
	}
	return amount.Mul(p.RewardRate).Floor().IntPart()
}

func (p Policy) currency() string {
	if p.Currency == "" {
		return domain.DefaultCurrency
	}
	return p.Currency
}
