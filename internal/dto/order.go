package dto

import (
	"time"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

type OrderItemRequestDTO struct {
	ProductID string `json:"productId" validate:"required" example:"sku-42"`
	Name      string `json:"name" validate:"required,max=200" example:"Handwoven scarf"`
	UnitPrice string `json:"unitPrice" validate:"required,money" example:"500"`
	Quantity  int    `json:"quantity" validate:"required,gt=0" example:"2"`
}

type CreateOrderRequestDTO struct {
	VendorID     int                   `json:"vendorId" validate:"required,gt=0" example:"2"`
	Items        []OrderItemRequestDTO `json:"items" validate:"required,min=1,dive"`
	ShippingCost string                `json:"shippingCost,omitempty" validate:"omitempty,numeric" example:"50"`
	Discount     string                `json:"discount,omitempty" validate:"omitempty,numeric" example:"0"`
}

type UpdateOrderStatusRequestDTO struct {
	Status string `json:"status" validate:"required,oneof=processing shipped delivered" example:"shipped"`
	Note   string `json:"note,omitempty" validate:"max=500" example:"AWB 123456"`
}

type ReasonRequestDTO struct {
	Reason string `json:"reason" validate:"max=500" example:"Changed my mind"`
}

type OrderResponseDTO struct {
	ID           int                    `json:"id" example:"8"`
	OrderNumber  string                 `json:"orderNumber" example:"ORD-1A2B3C4D5E6F"`
	CustomerID   int                    `json:"customerId" example:"1"`
	VendorID     int                    `json:"vendorId" example:"2"`
	Items        []domain.OrderItem     `json:"items"`
	Status       domain.OrderStatus     `json:"status" swaggertype:"string" example:"shipped"`
	Pricing      domain.OrderPricing    `json:"pricing"`
	Payment      domain.OrderPayment    `json:"payment"`
	Payout       domain.VendorPayout    `json:"payout"`
	ReturnPolicy domain.ReturnPolicy    `json:"returnPolicy"`
	Return       *domain.ReturnRequest  `json:"return,omitempty"`
	Tracking     []domain.TrackingEvent `json:"tracking"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}
