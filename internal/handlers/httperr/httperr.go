package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/pkg/utils"
	"github.com/GlebRadaev/tourmart/pkg/validate"
)

var domainStatus = map[string]int{
	domain.ErrInsufficientBalance.Code:  http.StatusPaymentRequired,
	domain.ErrInsufficientPoints.Code:   http.StatusPaymentRequired,
	domain.ErrBelowMinimum.Code:         http.StatusUnprocessableEntity,
	domain.ErrBalanceLimitExceeded.Code: http.StatusUnprocessableEntity,
}

// Status maps a service error onto the HTTP status and error code sent to
// clients. Business rule rejections default to 409.
func Status(err error) (int, string) {
	var (
		validationErr *domain.ValidationError
		fieldErr      *validate.FieldError
		domainErr     *domain.DomainError
		externalErr   *domain.ExternalError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &fieldErr):
		return http.StatusBadRequest, "ValidationError"
	case errors.As(err, &domainErr):
		if status, ok := domainStatus[domainErr.Code]; ok {
			return status, domainErr.Code
		}
		return http.StatusConflict, domainErr.Code
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrLoginTaken):
		return http.StatusConflict, "LoginTaken"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "InvalidCredentials"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "InvalidSignature"
	case errors.As(err, &externalErr):
		return http.StatusBadGateway, "ExternalError"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

// Respond writes err as a JSON error body. Internal failures are logged and
// never echoed to the client.
func Respond(w http.ResponseWriter, err error) {
	status, code := Status(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		zap.L().Error("request failed", zap.Error(err))
		message = "Internal server error"
	case http.StatusBadGateway:
		zap.L().Warn("upstream failure", zap.Error(err))
		message = "Payment provider unavailable"
	}
	utils.RespondWithCode(w, status, code, message)
}

// Decode reads a JSON body into v and validates it.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewValidationError("body", "malformed JSON")
	}
	return validate.Struct(v)
}

// PathID parses the positive integer route parameter name.
func PathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
