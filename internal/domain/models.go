package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "INR"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           int       `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	// CommissionRate overrides the platform commission for a vendor's orders.
	CommissionRate decimal.NullDecimal `db:"commission_rate"`
}

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Wallet is the monetary balance and reward points of one user.
type Wallet struct {
	ID             int             `db:"id"`
	UserID         int             `db:"user_id"`
	Currency       string          `db:"currency"`
	Balance        decimal.Decimal `db:"balance"`
	TotalDeposited decimal.Decimal `db:"total_deposited"`
	TotalSpent     decimal.Decimal `db:"total_spent"`
	Points         int64           `db:"points"`
	LifetimePoints int64           `db:"lifetime_points"`
	Tier           Tier            `db:"tier"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type TransactionKind string

const (
	TransactionDeposit TransactionKind = "deposit"
	TransactionSpend   TransactionKind = "spend"
	TransactionRedeem  TransactionKind = "redeem"
	TransactionPoints  TransactionKind = "points"
	TransactionRefund  TransactionKind = "refund"
)

// WalletTransaction is an append-only history record of a wallet mutation.
type WalletTransaction struct {
	ID        int             `db:"id"`
	UserID    int             `db:"user_id"`
	Kind      TransactionKind `db:"kind"`
	Amount    decimal.Decimal `db:"amount"`
	Points    int64           `db:"points"`
	Reference string          `db:"reference"`
	CreatedAt time.Time       `db:"created_at"`
}

type TopUpStatus string

const (
	TopUpPending  TopUpStatus = "pending"
	TopUpCredited TopUpStatus = "credited"
)

// TopUp is a wallet deposit opened at the gateway. Only Amount is ever
// credited for it, whatever the client reports.
type TopUp struct {
	ID             int             `db:"id"`
	UserID         int             `db:"user_id"`
	Amount         decimal.Decimal `db:"amount"`
	Currency       string          `db:"currency"`
	GatewayOrderID string          `db:"gateway_order_id"`
	Status         TopUpStatus     `db:"status"`
	PaymentID      string          `db:"payment_id"`
	CreatedAt      time.Time       `db:"created_at"`
	CreditedAt     *time.Time      `db:"credited_at"`
}

// Capture is a payment the gateway reports as captured.
type Capture struct {
	PaymentID      string
	GatewayOrderID string
	Amount         decimal.Decimal
}

type PaymentStatus string

const (
	PaymentPending      PaymentStatus = "pending"
	PaymentCompleted    PaymentStatus = "completed"
	PaymentFailed       PaymentStatus = "failed"
	PaymentRefunded     PaymentStatus = "refunded"
	PaymentHeldInEscrow PaymentStatus = "held_in_escrow"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketConfirmed TicketStatus = "confirmed"
	TicketCancelled TicketStatus = "cancelled"
	TicketUsed      TicketStatus = "used"
	TicketExpired   TicketStatus = "expired"
)

type TicketPricing struct {
	Currency        string          `json:"currency"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	Quantity        int             `json:"quantity"`
	PlatformFeeRate decimal.Decimal `json:"platformFeeRate"`
	TaxRate         decimal.Decimal `json:"taxRate"`
	Discount        decimal.Decimal `json:"discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	PlatformFee     decimal.Decimal `json:"platformFee"`
	Tax             decimal.Decimal `json:"tax"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

type TicketPayment struct {
	Method         string          `json:"method,omitempty"`
	Status         PaymentStatus   `json:"status"`
	GatewayOrderID string          `json:"gatewayOrderId,omitempty"`
	PaymentID      string          `json:"paymentId,omitempty"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	RefundID       string          `json:"refundId,omitempty"`
	RefundAmount   decimal.Decimal `json:"refundAmount"`
	RefundedAt     *time.Time      `json:"refundedAt,omitempty"`
}

// CancellationPolicy: a refund is granted only DeadlineHours or more before the event.
type CancellationPolicy struct {
	Allowed       bool            `json:"allowed"`
	RefundPercent decimal.Decimal `json:"refundPercent"`
	DeadlineHours int             `json:"deadlineHours"`
}

type Ticket struct {
	ID                 int
	TicketNumber       string
	UserID             int
	Destination        string
	EventDate          time.Time
	Pricing            TicketPricing
	Payment            TicketPayment
	Status             TicketStatus
	CancellationPolicy CancellationPolicy
	UsedAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderPricing struct {
	Currency           string          `json:"currency"`
	ItemsTotal         decimal.Decimal `json:"itemsTotal"`
	CommissionRate     decimal.Decimal `json:"commissionRate"`
	PlatformCommission decimal.Decimal `json:"platformCommission"`
	ShippingCost       decimal.Decimal `json:"shippingCost"`
	TaxRate            decimal.Decimal `json:"taxRate"`
	Tax                decimal.Decimal `json:"tax"`
	Discount           decimal.Decimal `json:"discount"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	VendorPayout       decimal.Decimal `json:"vendorPayout"`
}

type OrderPayment struct {
	Method           string          `json:"method,omitempty"`
	Status           PaymentStatus   `json:"status"`
	GatewayOrderID   string          `json:"gatewayOrderId,omitempty"`
	PaymentID        string          `json:"paymentId,omitempty"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	EscrowReleased   bool            `json:"escrowReleased"`
	EscrowReleasedAt *time.Time      `json:"escrowReleasedAt,omitempty"`
	RefundID         string          `json:"refundId,omitempty"`
	RefundAmount     decimal.Decimal `json:"refundAmount"`
}

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutCancelled  PayoutStatus = "cancelled"
)

type VendorPayout struct {
	Amount      decimal.Decimal `json:"amount"`
	Status      PayoutStatus    `json:"status"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
}

type ReturnPolicy struct {
	Allowed      bool `json:"allowed"`
	DeadlineDays int  `json:"deadlineDays"`
}

type ReturnRequest struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

type TrackingEvent struct {
	Status OrderStatus `json:"status"`
	Note   string      `json:"note,omitempty"`
	At     time.Time   `json:"at"`
}

type Order struct {
	ID           int
	OrderNumber  string
	CustomerID   int
	VendorID     int
	Items        []OrderItem
	Pricing      OrderPricing
	Payment      OrderPayment
	Payout       VendorPayout
	Status       OrderStatus
	ReturnPolicy ReturnPolicy
	Return       *ReturnRequest
	Tracking     []TrackingEvent
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeliveredAt returns the time of the last delivered tracking entry.
func (o *Order) DeliveredAt() (time.Time, bool) {
	for i := len(o.Tracking) - 1; i >= 0; i-- {
		if o.Tracking[i].Status == OrderDelivered {
			return o.Tracking[i].At, true
		}
	}
	return time.Time{}, false
}
