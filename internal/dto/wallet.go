package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

type WalletResponseDTO struct {
	Currency       string          `json:"currency" example:"INR"`
	Balance        decimal.Decimal `json:"balance" swaggertype:"string" example:"500.50"`
	TotalDeposited decimal.Decimal `json:"totalDeposited" swaggertype:"string" example:"1000"`
	TotalSpent     decimal.Decimal `json:"totalSpent" swaggertype:"string" example:"499.50"`
	Points         int64           `json:"points" example:"320"`
	LifetimePoints int64           `json:"lifetimePoints" example:"2100"`
	Tier           domain.Tier     `json:"tier" swaggertype:"string" example:"silver"`
	UpdatedAt      time.Time       `json:"updatedAt" example:"2026-06-01T12:00:00Z"`
}

type StartTopUpRequestDTO struct {
	Amount string `json:"amount" validate:"required,money" example:"500.00"`
}

type TopUpResponseDTO struct {
	ID             int                `json:"id" example:"3"`
	Amount         decimal.Decimal    `json:"amount" swaggertype:"string" example:"500.00"`
	Currency       string             `json:"currency" example:"INR"`
	GatewayOrderID string             `json:"gatewayOrderId" example:"order_Lz1"`
	Status         domain.TopUpStatus `json:"status" swaggertype:"string" example:"pending"`
	CreatedAt      time.Time          `json:"createdAt" example:"2026-06-01T12:00:00Z"`
}

// TopUpRequestDTO carries the checkout callback of a wallet top-up. The
// amount is the one fixed when the top-up was opened.
type TopUpRequestDTO struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required" example:"order_Lz1"`
	PaymentID      string `json:"paymentId" validate:"required" example:"pay_Lz1"`
	Signature      string `json:"signature" validate:"required,hexadecimal" example:"5f2c..."`
}

type RedeemRequestDTO struct {
	Points int64 `json:"points" validate:"required,gt=0" example:"200"`
}

type RedeemResponseDTO struct {
	Credited decimal.Decimal   `json:"credited" swaggertype:"string" example:"100"`
	Wallet   WalletResponseDTO `json:"wallet"`
}

type WalletTransactionDTO struct {
	Kind      domain.TransactionKind `json:"kind" swaggertype:"string" example:"deposit"`
	Amount    decimal.Decimal        `json:"amount" swaggertype:"string" example:"500"`
	Points    int64                  `json:"points" example:"0"`
	Reference string                 `json:"reference" example:"pay_Lz1"`
	CreatedAt time.Time              `json:"createdAt" example:"2026-06-01T12:00:00Z"`
}
