package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/dto"
	"github.com/GlebRadaev/tourmart/internal/service/orderservice"
	"github.com/GlebRadaev/tourmart/pkg/auth"
	"github.com/GlebRadaev/tourmart/pkg/utils"
)

func NewMock(t *testing.T) (*OrderHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	return New(service), service
}

func request(method, id, body string, userID int, role domain.Role) (*http.Request, context.Context) {
	ctx := auth.WithUser(context.Background(), userID, string(role))
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	r := httptest.NewRequest(method, "/api/orders", bytes.NewReader([]byte(body)))
	return r.WithContext(ctx), ctx
}

func order(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:          8,
		OrderNumber: "ORD-1A2B3C4D5E6F",
		CustomerID:  1,
		VendorID:    2,
		Items: []domain.OrderItem{
			{ProductID: "sku-42", Name: "Scarf", UnitPrice: decimal.NewFromInt(500), Quantity: 2, Subtotal: decimal.NewFromInt(1000)},
		},
		Pricing: domain.OrderPricing{
			Currency:     "INR",
			ItemsTotal:   decimal.NewFromInt(1000),
			TotalAmount:  decimal.NewFromInt(1239),
			VendorPayout: decimal.NewFromInt(850),
		},
		Status:   status,
		Tracking: []domain.TrackingEvent{{Status: status, At: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}},
	}
}

func TestCreateOrderHandler(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		prepareMock  func(s *MockService, ctx context.Context)
		expectedCode int
	}{
		{
			name: "Placed",
			body: `{"vendorId":2,"items":[{"productId":"sku-42","name":"Scarf","unitPrice":"500","quantity":2}],"shippingCost":"50"}`,
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Create(ctx, 1, gomock.Any()).DoAndReturn(
					func(_ context.Context, _ int, req orderservice.CreateRequest) (*domain.Order, error) {
						assert.Equal(t, 2, req.VendorID)
						require.Len(t, req.Items, 1)
						assert.True(t, req.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)))
						assert.True(t, req.ShippingCost.Equal(decimal.NewFromInt(50)))
						assert.True(t, req.Discount.IsZero())
						return order(domain.OrderPending), nil
					})
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "Empty cart",
			body:         `{"vendorId":2,"items":[]}`,
			prepareMock:  func(*MockService, context.Context) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Item without price",
			body:         `{"vendorId":2,"items":[{"productId":"sku-42","name":"Scarf","quantity":2}]}`,
			prepareMock:  func(*MockService, context.Context) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Unknown vendor",
			body: `{"vendorId":99,"items":[{"productId":"sku-42","name":"Scarf","unitPrice":"500","quantity":1}]}`,
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Create(ctx, 1, gomock.Any()).Return(nil, domain.ErrNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := NewMock(t)
			r, ctx := request(http.MethodPost, "", tt.body, 1, domain.RoleCustomer)
			tt.prepareMock(service, ctx)

			w := httptest.NewRecorder()
			handler.CreateOrder(w, r)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedCode == http.StatusCreated {
				var body dto.OrderResponseDTO
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, "ORD-1A2B3C4D5E6F", body.OrderNumber)
				assert.True(t, body.Pricing.VendorPayout.Equal(decimal.NewFromInt(850)))
				assert.Len(t, body.Items, 1)
			}
		})
	}
}

func TestGetOrdersHandler(t *testing.T) {
	t.Run("vendor sees sold orders", func(t *testing.T) {
		handler, service := NewMock(t)
		r, ctx := request(http.MethodGet, "", "", 2, domain.RoleVendor)
		service.EXPECT().List(ctx, orderservice.Actor{UserID: 2, Role: domain.RoleVendor}).Return([]domain.Order{*order(domain.OrderShipped)}, nil)

		w := httptest.NewRecorder()
		handler.GetOrders(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var body []dto.OrderResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, domain.OrderShipped, body[0].Status)
	})

	t.Run("no orders", func(t *testing.T) {
		handler, service := NewMock(t)
		r, ctx := request(http.MethodGet, "", "", 1, domain.RoleCustomer)
		service.EXPECT().List(ctx, orderservice.Actor{UserID: 1, Role: domain.RoleCustomer}).Return(nil, nil)

		w := httptest.NewRecorder()
		handler.GetOrders(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		handler, service := NewMock(t)
		r, ctx := request(http.MethodGet, "", "", 1, domain.RoleCustomer)
		service.EXPECT().List(ctx, gomock.Any()).Return(nil, errors.New("error"))

		w := httptest.NewRecorder()
		handler.GetOrders(w, r)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestOrderLifecycleHandlers(t *testing.T) {
	customer := orderservice.Actor{UserID: 1, Role: domain.RoleCustomer}
	vendor := orderservice.Actor{UserID: 2, Role: domain.RoleVendor}
	admin := orderservice.Actor{UserID: 3, Role: domain.RoleAdmin}

	tests := []struct {
		name         string
		actor        orderservice.Actor
		id           string
		body         string
		call         func(h *OrderHandler) http.HandlerFunc
		prepareMock  func(s *MockService, ctx context.Context)
		expectedCode int
		expectedTag  string
	}{
		{
			name:  "get",
			actor: customer,
			id:    "8",
			call:  func(h *OrderHandler) http.HandlerFunc { return h.GetOrder },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Get(ctx, customer, 8).Return(order(domain.OrderConfirmed), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "get with bad id",
			actor:        customer,
			id:           "x",
			call:         func(h *OrderHandler) http.HandlerFunc { return h.GetOrder },
			prepareMock:  func(*MockService, context.Context) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:  "confirm",
			actor: customer,
			id:    "8",
			body:  `{"paymentId":"pay_8","signature":"ab12"}`,
			call:  func(h *OrderHandler) http.HandlerFunc { return h.ConfirmOrder },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Confirm(ctx, 1, 8, "pay_8", "ab12").Return(order(domain.OrderConfirmed), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "ship",
			actor: vendor,
			id:    "8",
			body:  `{"status":"shipped","note":"AWB 123"}`,
			call:  func(h *OrderHandler) http.HandlerFunc { return h.UpdateStatus },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Advance(ctx, vendor, 8, domain.OrderShipped, "AWB 123").Return(order(domain.OrderShipped), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "status outside fulfilment",
			actor:        vendor,
			id:           "8",
			body:         `{"status":"returned"}`,
			call:         func(h *OrderHandler) http.HandlerFunc { return h.UpdateStatus },
			prepareMock:  func(*MockService, context.Context) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:  "skipping a step",
			actor: vendor,
			id:    "8",
			body:  `{"status":"delivered"}`,
			call:  func(h *OrderHandler) http.HandlerFunc { return h.UpdateStatus },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Advance(ctx, vendor, 8, domain.OrderDelivered, "").Return(nil, domain.ErrInvalidTransition)
			},
			expectedCode: http.StatusConflict,
			expectedTag:  "InvalidTransition",
		},
		{
			name:  "cancel without a body",
			actor: customer,
			id:    "8",
			call:  func(h *OrderHandler) http.HandlerFunc { return h.CancelOrder },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Cancel(ctx, customer, 8, "").Return(order(domain.OrderCancelled), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "cancel refund fails upstream",
			actor: customer,
			id:    "8",
			body:  `{"reason":"changed my mind"}`,
			call:  func(h *OrderHandler) http.HandlerFunc { return h.CancelOrder },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().Cancel(ctx, customer, 8, "changed my mind").Return(nil, &domain.ExternalError{Op: "refund", Err: errors.New("503")})
			},
			expectedCode: http.StatusBadGateway,
			expectedTag:  "ExternalError",
		},
		{
			name:  "request return",
			actor: customer,
			id:    "8",
			body:  `{"reason":"damaged"}`,
			call:  func(h *OrderHandler) http.HandlerFunc { return h.RequestReturn },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().RequestReturn(ctx, 1, 8, "damaged").Return(order(domain.OrderDelivered), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "return window closed",
			actor: customer,
			id:    "8",
			body:  `{"reason":"damaged"}`,
			call:  func(h *OrderHandler) http.HandlerFunc { return h.RequestReturn },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().RequestReturn(ctx, 1, 8, "damaged").Return(nil, domain.ErrReturnNotAllowed)
			},
			expectedCode: http.StatusConflict,
			expectedTag:  "ReturnNotAllowed",
		},
		{
			name:  "complete return",
			actor: vendor,
			id:    "8",
			call:  func(h *OrderHandler) http.HandlerFunc { return h.CompleteReturn },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().CompleteReturn(ctx, vendor, 8).Return(order(domain.OrderReturned), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "release escrow",
			actor: admin,
			id:    "8",
			call:  func(h *OrderHandler) http.HandlerFunc { return h.ReleaseEscrow },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().ReleaseEscrow(ctx, 8).Return(order(domain.OrderDelivered), nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "release twice",
			actor: admin,
			id:    "8",
			call:  func(h *OrderHandler) http.HandlerFunc { return h.ReleaseEscrow },
			prepareMock: func(s *MockService, ctx context.Context) {
				s.EXPECT().ReleaseEscrow(ctx, 8).Return(nil, domain.ErrAlreadyReleased)
			},
			expectedCode: http.StatusConflict,
			expectedTag:  "AlreadyReleased",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := NewMock(t)
			r, ctx := request(http.MethodPost, tt.id, tt.body, tt.actor.UserID, tt.actor.Role)
			tt.prepareMock(service, ctx)

			w := httptest.NewRecorder()
			tt.call(handler)(w, r)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedTag != "" {
				var resp utils.Response
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, tt.expectedTag, resp.Code)
			}
		})
	}
}
