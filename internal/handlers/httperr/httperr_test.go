package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/pkg/utils"
	"github.com/GlebRadaev/tourmart/pkg/validate"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedTag  string
	}{
		{"validation", domain.NewValidationError("quantity", "must be positive"), http.StatusBadRequest, "ValidationError"},
		{"field", &validate.FieldError{Field: "amount", Tag: "money"}, http.StatusBadRequest, "ValidationError"},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusPaymentRequired, "InsufficientBalance"},
		{"insufficient points", domain.ErrInsufficientPoints, http.StatusPaymentRequired, "InsufficientPoints"},
		{"below minimum", domain.ErrBelowMinimum, http.StatusUnprocessableEntity, "BelowMinimum"},
		{"wrapped transition", fmt.Errorf("advance: %w", domain.ErrInvalidTransition), http.StatusConflict, "InvalidTransition"},
		{"already released", domain.ErrAlreadyReleased, http.StatusConflict, "AlreadyReleased"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NotFound"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{"login taken", domain.ErrLoginTaken, http.StatusConflict, "LoginTaken"},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "InvalidCredentials"},
		{"signature", domain.ErrInvalidSignature, http.StatusBadRequest, "InvalidSignature"},
		{"gateway", &domain.ExternalError{Op: "create_order", Err: errors.New("503")}, http.StatusBadGateway, "ExternalError"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			assert.Equal(t, tt.expectedCode, status)
			assert.Equal(t, tt.expectedTag, code)
		})
	}
}

func TestRespond_HidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	Respond(w, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body utils.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Message)
	assert.Equal(t, "InternalError", body.Code)
}

func TestDecode(t *testing.T) {
	type request struct {
		Amount string `json:"amount" validate:"required,money"`
	}

	tests := []struct {
		name        string
		body        string
		expectedErr bool
	}{
		{name: "valid", body: `{"amount":"10.50"}`},
		{name: "malformed", body: `{"amount":`, expectedErr: true},
		{name: "too many decimals", body: `{"amount":"10.505"}`, expectedErr: true},
		{name: "missing", body: `{}`, expectedErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req request
			err := Decode(r, &req)
			if tt.expectedErr {
				status, _ := Status(err)
				assert.Equal(t, http.StatusBadRequest, status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "10.50", req.Amount)
		})
	}
}

func TestPathID(t *testing.T) {
	withID := func(v string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", v)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := PathID(withID("42"), "id")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := PathID(withID(bad), "id")
		assert.Error(t, err, bad)
	}
}
