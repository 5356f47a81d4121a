package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tourmart/internal/config"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/pkg/clients"
)

func newClient(url string) *Client {
	c := New(&config.Config{
		GatewayAddress:   url,
		GatewayKeyID:     "rzp_test",
		GatewayKeySecret: "key-secret",
		WebhookSecret:    "hook-secret",
	}, clients.NewHTTPClient())
	c.retryInterval = 0
	return c
}

func TestClient_CreateOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test", user)
		assert.Equal(t, "key-secret", pass)

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"id":"order_1","amount":123950,"currency":"INR","receipt":"tkt_5","status":"created"}`))
	}))
	defer srv.Close()

	order, err := newClient(srv.URL).CreateOrder(context.Background(),
		decimal.RequireFromString("1239.50"), "INR", "tkt_5", map[string]string{"user_id": "1"})
	require.NoError(t, err)

	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, int64(123950), order.Amount)
	assert.Equal(t, float64(123950), got["amount"])
	assert.Equal(t, "tkt_5", got["receipt"])
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		headers       map[string]string
		expectedCalls int32
		wantErr       bool
		retryable     bool
	}{
		{
			name:          "server error then success",
			responses:     []int{http.StatusBadGateway, http.StatusOK},
			expectedCalls: 2,
		},
		{
			name:          "rate limited with retry-after",
			responses:     []int{http.StatusTooManyRequests, http.StatusOK},
			headers:       map[string]string{"Retry-After": "0"},
			expectedCalls: 2,
		},
		{
			name:          "exhausted retries",
			responses:     []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
			expectedCalls: 3,
			wantErr:       true,
			retryable:     true,
		},
		{
			name:          "client error is not retried",
			responses:     []int{http.StatusBadRequest},
			expectedCalls: 1,
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := calls.Add(1)
				status := tt.responses[n-1]
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(status)
				if status == http.StatusBadRequest {
					_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too low"}}`))
					return
				}
				_, _ = w.Write([]byte(`{"id":"rfnd_1","payment_id":"pay_1","amount":5000,"status":"processed"}`))
			}))
			defer srv.Close()

			refund, err := newClient(srv.URL).Refund(context.Background(), "pay_1", decimal.NewFromInt(50))

			assert.Equal(t, tt.expectedCalls, calls.Load())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "rfnd_1", refund.ID)
				assert.Equal(t, int64(5000), refund.Amount)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
			if !tt.retryable {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url).CreateOrder(context.Background(), decimal.NewFromInt(1), "INR", "ord_1", nil)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_VerifySignature(t *testing.T) {
	c := newClient("http://localhost")
	valid := Sign("key-secret", []byte("order_1|pay_1"))

	assert.True(t, c.VerifySignature("order_1", "pay_1", valid))
	assert.False(t, c.VerifySignature("order_1", "pay_2", valid))
	assert.False(t, c.VerifySignature("order_1", "pay_1", ""))
}

func TestClient_VerifyWebhook(t *testing.T) {
	c := newClient("http://localhost")
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, c.VerifyWebhook(body, Sign("hook-secret", body)))
	assert.False(t, c.VerifyWebhook(body, Sign("key-secret", body)))

	noSecret := New(&config.Config{}, clients.NewHTTPClient())
	assert.False(t, noSecret.VerifyWebhook(body, Sign("", body)))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(123950), ToMinor(decimal.RequireFromString("1239.5")))
	assert.Equal(t, int64(1), ToMinor(decimal.RequireFromString("0.005")))
	assert.True(t, FromMinor(123950).Equal(decimal.RequireFromString("1239.50")))
}
