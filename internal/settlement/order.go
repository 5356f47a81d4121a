package settlement

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

// PriceOrder prices a marketplace order. commissionRate is a fraction of the
// items total; taxPercent applies to items total plus shipping. The vendor
// payout excludes shipping, tax and commission. The returned items carry their
// line subtotals; the input slice is not modified.
func PriceOrder(items []domain.OrderItem, commissionRate, shippingCost, taxPercent, discount decimal.Decimal) ([]domain.OrderItem, domain.OrderPricing, error) {
	if len(items) == 0 {
		return nil, domain.OrderPricing{}, domain.NewValidationError("items", "order must contain at least one item")
	}
	if err := checkRate("commissionRate", commissionRate); err != nil {
		return nil, domain.OrderPricing{}, err
	}
	if err := checkNonNegative("shippingCost", shippingCost); err != nil {
		return nil, domain.OrderPricing{}, err
	}
	if err := checkNonNegative("discount", discount); err != nil {
		return nil, domain.OrderPricing{}, err
	}
	taxRate, err := FromPercent(taxPercent)
	if err != nil {
		return nil, domain.OrderPricing{}, domain.NewValidationError("taxRate", "must be within [0, 100]")
	}

	priced := make([]domain.OrderItem, len(items))
	itemsTotal := decimal.Zero
	for i, item := range items {
		field := "items[" + strconv.Itoa(i) + "]"
		if !item.UnitPrice.IsPositive() {
			return nil, domain.OrderPricing{}, domain.NewValidationError(field+".unitPrice", "must be greater than zero")
		}
		if item.Quantity < 1 {
			return nil, domain.OrderPricing{}, domain.NewValidationError(field+".quantity", "must be at least 1")
		}
		item.Subtotal = Round(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		itemsTotal = itemsTotal.Add(item.Subtotal)
		priced[i] = item
	}

	commission := Round(itemsTotal.Mul(commissionRate))
	shippingCost = Round(shippingCost)
	tax := Round(itemsTotal.Add(shippingCost).Mul(taxRate))
	total, err := Total(itemsTotal, shippingCost, tax, discount)
	if err != nil {
		return nil, domain.OrderPricing{}, err
	}

	return priced, domain.OrderPricing{
		Currency:           domain.DefaultCurrency,
		ItemsTotal:         itemsTotal,
		CommissionRate:     commissionRate,
		PlatformCommission: commission,
		ShippingCost:       shippingCost,
		TaxRate:            taxPercent,
		Tax:                tax,
		Discount:           discount,
		TotalAmount:        total,
		VendorPayout:       itemsTotal.Sub(commission),
	}, nil
}

// PriceOrder prices with policy defaults. A valid vendorRate overrides the
// default commission rate.
func (p Policy) PriceOrder(items []domain.OrderItem, vendorRate decimal.NullDecimal, shippingCost, discount decimal.Decimal) ([]domain.OrderItem, domain.OrderPricing, error) {
	rate := p.OrderCommissionRate
	if vendorRate.Valid {
		rate = vendorRate.Decimal
	}
	priced, pricing, err := PriceOrder(items, rate, shippingCost, p.OrderTaxPercent, discount)
	if err != nil {
		return nil, pricing, err
	}
	pricing.Currency = p.currency()
	return priced, pricing, nil
}

// CanReturn reports whether a return may be requested for o at now.
func CanReturn(o *domain.Order, now time.Time) bool {
	if !o.ReturnPolicy.Allowed || o.Status != domain.OrderDelivered || o.Return != nil {
		return false
	}
	deliveredAt, ok := o.DeliveredAt()
	if !ok {
		return false
	}
	return WithinReturnWindow(deliveredAt, o.ReturnPolicy.DeadlineDays, now)
}

// RequestReturn records a customer's return request.
func RequestReturn(o *domain.Order, reason string, now time.Time) error {
	if !CanReturn(o, now) {
		return domain.ErrReturnNotAllowed
	}
	o.Return = &domain.ReturnRequest{Reason: reason, RequestedAt: now}
	o.UpdatedAt = now
	return nil
}
