package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

// PriceTicket computes the derived pricing of a ticket purchase. Fee and tax
// are percents; tax is charged on subtotal plus platform fee.
func PriceTicket(basePrice decimal.Decimal, quantity int, feePercent, taxPercent, discount decimal.Decimal) (domain.TicketPricing, error) {
	if !basePrice.IsPositive() {
		return domain.TicketPricing{}, domain.NewValidationError("basePrice", "must be greater than zero")
	}
	if quantity < 1 {
		return domain.TicketPricing{}, domain.NewValidationError("quantity", "must be at least 1")
	}
	if err := checkNonNegative("discount", discount); err != nil {
		return domain.TicketPricing{}, err
	}
	feeRate, err := FromPercent(feePercent)
	if err != nil {
		return domain.TicketPricing{}, domain.NewValidationError("platformFeeRate", "must be within [0, 100]")
	}
	taxRate, err := FromPercent(taxPercent)
	if err != nil {
		return domain.TicketPricing{}, domain.NewValidationError("taxRate", "must be within [0, 100]")
	}

	subtotal := Round(basePrice.Mul(decimal.NewFromInt(int64(quantity))))
	fee, tax := ComputeFeeAndTax(subtotal, feeRate, taxRate)
	total, err := Total(subtotal, fee, tax, discount)
	if err != nil {
		return domain.TicketPricing{}, err
	}

	return domain.TicketPricing{
		Currency:        domain.DefaultCurrency,
		BasePrice:       basePrice,
		Quantity:        quantity,
		PlatformFeeRate: feePercent,
		TaxRate:         taxPercent,
		Discount:        discount,
		Subtotal:        subtotal,
		PlatformFee:     fee,
		Tax:             tax,
		TotalAmount:     total,
	}, nil
}

// PriceTicket prices a ticket with the policy's fee and tax rates.
func (p Policy) PriceTicket(basePrice decimal.Decimal, quantity int, discount decimal.Decimal) (domain.TicketPricing, error) {
	pricing, err := PriceTicket(basePrice, quantity, p.TicketFeePercent, p.TicketTaxPercent, discount)
	if err != nil {
		return pricing, err
	}
	pricing.Currency = p.currency()
	return pricing, nil
}

// RepriceTicket recomputes the derived fields from the ticket's own inputs.
func RepriceTicket(t *domain.Ticket) error {
	in := t.Pricing
	pricing, err := PriceTicket(in.BasePrice, in.Quantity, in.PlatformFeeRate, in.TaxRate, in.Discount)
	if err != nil {
		return err
	}
	if in.Currency != "" {
		pricing.Currency = in.Currency
	}
	t.Pricing = pricing
	return nil
}

// CalculateRefund returns the amount refundable for t at now, or zero when the
// ticket is not eligible.
func CalculateRefund(t *domain.Ticket, now time.Time) decimal.Decimal {
	policy := t.CancellationPolicy
	if !policy.Allowed {
		return decimal.Zero
	}
	switch t.Status {
	case domain.TicketUsed, domain.TicketCancelled, domain.TicketExpired:
		return decimal.Zero
	}
	if t.Payment.Status != domain.PaymentCompleted {
		return decimal.Zero
	}
	if !WithinDeadline(t.EventDate, now, policy.DeadlineHours) {
		return decimal.Zero
	}
	return RefundAmount(t.Pricing.TotalAmount, policy.RefundPercent)
}

func CanRefund(t *domain.Ticket, now time.Time) bool {
	return CalculateRefund(t, now).IsPositive()
}

// ProcessRefund moves t into its terminal refunded state. It is not idempotent:
// a second call fails with ErrRefundNotAllowed.
func ProcessRefund(t *domain.Ticket, refundID string, now time.Time) (decimal.Decimal, error) {
	amount := CalculateRefund(t, now)
	if !amount.IsPositive() {
		return decimal.Zero, domain.ErrRefundNotAllowed
	}
	t.Payment.Status = domain.PaymentRefunded
	t.Payment.RefundID = refundID
	t.Payment.RefundAmount = amount
	t.Payment.RefundedAt = &now
	t.Status = domain.TicketCancelled
	t.UpdatedAt = now
	return amount, nil
}

// ConfirmTicketPayment marks a pending payment completed and confirms the
// ticket. A failed payment may still be confirmed by a later attempt on the
// same gateway order. Confirming an already completed payment is a no-op and
// reports changed=false so webhook redeliveries do not repeat side effects.
func ConfirmTicketPayment(t *domain.Ticket, paymentID string, now time.Time) (bool, error) {
	switch t.Payment.Status {
	case domain.PaymentCompleted:
		if paymentID != "" && t.Payment.PaymentID != "" && paymentID != t.Payment.PaymentID {
			return false, domain.ErrPaymentMismatch
		}
		return false, nil
	case domain.PaymentPending, domain.PaymentFailed:
	default:
		return false, domain.ErrInvalidTransition
	}
	if t.Status != domain.TicketPending {
		return false, domain.ErrInvalidTransition
	}
	t.Payment.Status = domain.PaymentCompleted
	t.Payment.PaymentID = paymentID
	t.Payment.PaidAt = &now
	t.Status = domain.TicketConfirmed
	t.UpdatedAt = now
	return true, nil
}

// MarkTicketPaymentFailed records a failed payment attempt.
func MarkTicketPaymentFailed(t *domain.Ticket, now time.Time) (bool, error) {
	switch t.Payment.Status {
	case domain.PaymentFailed:
		return false, nil
	case domain.PaymentPending:
		t.Payment.Status = domain.PaymentFailed
		t.UpdatedAt = now
		return true, nil
	default:
		return false, domain.ErrInvalidTransition
	}
}

// UseTicket records a successful validation scan.
func UseTicket(t *domain.Ticket, now time.Time) error {
	if t.Status != domain.TicketConfirmed || t.Payment.Status != domain.PaymentCompleted {
		return domain.ErrTicketNotUsable
	}
	if pastEventDay(t.EventDate, now) {
		return domain.ErrTicketNotUsable
	}
	t.Status = domain.TicketUsed
	t.UsedAt = &now
	t.UpdatedAt = now
	return nil
}

// ExpireTicket expires a pending or confirmed ticket whose event day has passed.
// It reports whether the ticket changed.
func ExpireTicket(t *domain.Ticket, now time.Time) bool {
	if t.Status != domain.TicketPending && t.Status != domain.TicketConfirmed {
		return false
	}
	if !pastEventDay(t.EventDate, now) {
		return false
	}
	t.Status = domain.TicketExpired
	t.UpdatedAt = now
	return true
}

// pastEventDay reports whether now is after the calendar day of event, in the
// event's location. Tickets stay valid for the whole event day.
func pastEventDay(event, now time.Time) bool {
	y, m, d := event.Date()
	nextDay := time.Date(y, m, d+1, 0, 0, 0, 0, event.Location())
	return !now.Before(nextDay)
}
