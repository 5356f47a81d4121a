package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

type PurchaseTicketRequestDTO struct {
	Destination string    `json:"destination" validate:"required,max=200" example:"Goa"`
	EventDate   time.Time `json:"eventDate" validate:"required" example:"2026-07-01T10:00:00Z"`
	BasePrice   string    `json:"basePrice" validate:"required,money" example:"500"`
	Quantity    int       `json:"quantity" validate:"required,gt=0,lte=100" example:"2"`
	Discount    string    `json:"discount,omitempty" validate:"omitempty,numeric" example:"0"`
}

type ConfirmPaymentRequestDTO struct {
	PaymentID string `json:"paymentId" validate:"required" example:"pay_Lz1"`
	Signature string `json:"signature" validate:"required,hexadecimal" example:"5f2c..."`
}

type ValidateTicketRequestDTO struct {
	TicketNumber string `json:"ticketNumber" validate:"required,luhn" example:"7992739871300000"`
}

type TicketResponseDTO struct {
	ID                 int                       `json:"id" example:"5"`
	TicketNumber       string                    `json:"ticketNumber" example:"7992739871300000"`
	UserID             int                       `json:"userId" example:"1"`
	Destination        string                    `json:"destination" example:"Goa"`
	EventDate          time.Time                 `json:"eventDate"`
	Status             domain.TicketStatus       `json:"status" swaggertype:"string" example:"confirmed"`
	Pricing            domain.TicketPricing      `json:"pricing"`
	Payment            domain.TicketPayment      `json:"payment"`
	CancellationPolicy domain.CancellationPolicy `json:"cancellationPolicy"`
	UsedAt             *time.Time                `json:"usedAt,omitempty"`
	CreatedAt          time.Time                 `json:"createdAt"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
}

type RefundQuoteResponseDTO struct {
	Eligible bool            `json:"eligible" example:"true"`
	Amount   decimal.Decimal `json:"amount" swaggertype:"string" example:"1239"`
	Deadline time.Time       `json:"deadline"`
}
