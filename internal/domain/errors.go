package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DomainError is a business rule rejection identified by Code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrRefundNotAllowed     = &DomainError{Code: "RefundNotAllowed", Message: "ticket is not eligible for a refund"}
	ErrDeliveryRequired     = &DomainError{Code: "DeliveryRequired", Message: "order must be delivered before escrow release"}
	ErrAlreadyReleased      = &DomainError{Code: "AlreadyReleased", Message: "escrow already released"}
	ErrInsufficientPoints   = &DomainError{Code: "InsufficientPoints", Message: "not enough reward points"}
	ErrBelowMinimum         = &DomainError{Code: "BelowMinimum", Message: "redemption below minimum points"}
	ErrInsufficientBalance  = &DomainError{Code: "InsufficientBalance", Message: "insufficient wallet balance"}
	ErrBalanceLimitExceeded = &DomainError{Code: "BalanceLimitExceeded", Message: "wallet balance limit exceeded"}
	ErrInvalidTransition    = &DomainError{Code: "InvalidTransition", Message: "status transition not allowed"}
	ErrReturnNotAllowed     = &DomainError{Code: "ReturnNotAllowed", Message: "order is not eligible for a return"}
	ErrTicketNotUsable      = &DomainError{Code: "TicketNotUsable", Message: "ticket cannot be used"}
	ErrPaymentMismatch      = &DomainError{Code: "PaymentMismatch", Message: "payment does not belong to this entity"}
	ErrReturnPending        = &DomainError{Code: "ReturnPending", Message: "order has an open return request"}
	ErrCancelNotAllowed     = &DomainError{Code: "CancelNotAllowed", Message: "order has shipped, request a return instead"}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrLoginTaken         = errors.New("login already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignature   = errors.New("invalid payment signature")
)

// ExternalError wraps a failure of a third-party collaborator such as the
// payment gateway. Callers may retry these.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

func IsRetryable(err error) bool {
	var ext *ExternalError
	return errors.As(err, &ext)
}
