package settlement

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

// forward transitions of an order. Cancellation and return are handled
// separately because they are reachable from every non-terminal state.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderPending:    {domain.OrderConfirmed},
	domain.OrderConfirmed:  {domain.OrderProcessing, domain.OrderShipped},
	domain.OrderProcessing: {domain.OrderShipped},
	domain.OrderShipped:    {domain.OrderDelivered},
}

// IsTerminalOrder reports whether no further transition is possible: the order
// was cancelled or returned, or its escrow has been paid out.
func IsTerminalOrder(o *domain.Order) bool {
	if o.Payment.EscrowReleased {
		return true
	}
	return o.Status == domain.OrderCancelled || o.Status == domain.OrderReturned
}

func CanTransition(from, to domain.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// ConfirmOrderPayment places a verified payment in escrow and confirms the
// order, also after a failed attempt on the same gateway order. A redelivered
// confirmation is a no-op reporting changed=false.
func ConfirmOrderPayment(o *domain.Order, paymentID string, now time.Time) (bool, error) {
	switch o.Payment.Status {
	case domain.PaymentHeldInEscrow, domain.PaymentCompleted:
		if paymentID != "" && o.Payment.PaymentID != "" && paymentID != o.Payment.PaymentID {
			return false, domain.ErrPaymentMismatch
		}
		return false, nil
	case domain.PaymentPending, domain.PaymentFailed:
	default:
		return false, domain.ErrInvalidTransition
	}
	if o.Status != domain.OrderPending {
		return false, domain.ErrInvalidTransition
	}

	o.Payment.Status = domain.PaymentHeldInEscrow
	o.Payment.PaymentID = paymentID
	o.Payment.PaidAt = &now
	o.Payout = domain.VendorPayout{Amount: o.Pricing.VendorPayout, Status: domain.PayoutPending}
	track(o, domain.OrderConfirmed, "payment held in escrow", now)
	return true, nil
}

func MarkOrderPaymentFailed(o *domain.Order, now time.Time) (bool, error) {
	switch o.Payment.Status {
	case domain.PaymentFailed:
		return false, nil
	case domain.PaymentPending:
		o.Payment.Status = domain.PaymentFailed
		o.UpdatedAt = now
		return true, nil
	default:
		return false, domain.ErrInvalidTransition
	}
}

// AdvanceOrder moves o along the fulfilment path (processing, shipped,
// delivered). Confirmation only happens through ConfirmOrderPayment.
func AdvanceOrder(o *domain.Order, to domain.OrderStatus, note string, now time.Time) error {
	if IsTerminalOrder(o) || to == domain.OrderConfirmed || !CanTransition(o.Status, to) {
		return domain.ErrInvalidTransition
	}
	track(o, to, note, now)
	return nil
}

// EscrowRefundAmount is the amount to hand back to the customer when an order
// is cancelled or returned.
func EscrowRefundAmount(o *domain.Order) decimal.Decimal {
	if o.Payment.Status != domain.PaymentHeldInEscrow {
		return decimal.Zero
	}
	return o.Pricing.TotalAmount
}

// CustomerCanCancel reports whether the customer may still cancel o. Once the
// order has shipped the return flow applies instead.
func CustomerCanCancel(o *domain.Order) bool {
	if IsTerminalOrder(o) {
		return false
	}
	switch o.Status {
	case domain.OrderPending, domain.OrderConfirmed, domain.OrderProcessing:
		return true
	default:
		return false
	}
}

// CancelOrder cancels a non-terminal order. Escrowed funds are marked refunded
// under refundID.
func CancelOrder(o *domain.Order, reason, refundID string, now time.Time) error {
	if IsTerminalOrder(o) {
		return domain.ErrInvalidTransition
	}
	refundEscrow(o, refundID)
	track(o, domain.OrderCancelled, reason, now)
	return nil
}

// CompleteReturn closes a non-terminal order as returned and refunds escrow.
func CompleteReturn(o *domain.Order, refundID string, now time.Time) error {
	if IsTerminalOrder(o) {
		return domain.ErrInvalidTransition
	}
	refundEscrow(o, refundID)
	track(o, domain.OrderReturned, "return received", now)
	return nil
}

// ReleaseEscrow pays out a delivered order to its vendor. It is deliberately
// not idempotent; the second call fails with ErrAlreadyReleased. Nothing is
// paid out while a return request is open.
func ReleaseEscrow(o *domain.Order, now time.Time) error {
	if o.Payment.EscrowReleased {
		return domain.ErrAlreadyReleased
	}
	if o.Status != domain.OrderDelivered {
		return domain.ErrDeliveryRequired
	}
	if o.Return != nil {
		return domain.ErrReturnPending
	}
	o.Payment.EscrowReleased = true
	o.Payment.EscrowReleasedAt = &now
	o.Payment.Status = domain.PaymentCompleted
	o.Payout.Amount = o.Pricing.VendorPayout
	o.Payout.Status = domain.PayoutProcessing
	o.Payout.ProcessedAt = &now
	o.UpdatedAt = now
	return nil
}

func refundEscrow(o *domain.Order, refundID string) {
	amount := EscrowRefundAmount(o)
	if !amount.IsPositive() {
		return
	}
	o.Payment.Status = domain.PaymentRefunded
	o.Payment.RefundID = refundID
	o.Payment.RefundAmount = amount
	o.Payout.Status = domain.PayoutCancelled
}

func track(o *domain.Order, status domain.OrderStatus, note string, now time.Time) {
	o.Status = status
	o.Tracking = append(o.Tracking, domain.TrackingEvent{Status: status, Note: note, At: now})
	o.UpdatedAt = now
}
