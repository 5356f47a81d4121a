package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/config"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/pkg/clients"
)

const (
	maxRetries    = 3
	retryInterval = time.Second * 1
)

var errServerStatus = errors.New("gateway server error")

// APIError is a request the gateway rejected. Retrying it will not help.
type APIError struct {
	Status      int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway rejected request (%d %s): %s", e.Status, e.Code, e.Description)
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type Client struct {
	url           string
	keyID         string
	keySecret     string
	webhookSecret string
	client        clients.HTTPClientI
	retryInterval time.Duration
}

func New(cfg *config.Config, client clients.HTTPClientI) *Client {
	return &Client{
		url:           cfg.GatewayAddress,
		keyID:         cfg.GatewayKeyID,
		keySecret:     cfg.GatewayKeySecret,
		webhookSecret: cfg.WebhookSecret,
		client:        client,
		retryInterval: retryInterval,
	}
}

// ToMinor converts a major-unit amount to paise.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*Order, error) {
	body, err := json.Marshal(struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Notes    map[string]string `json:"notes,omitempty"`
	}{ToMinor(amount), currency, receipt, notes})
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "create_order", c.url+"/v1/orders", body)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(resp, &order); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}
	return &order, nil
}

func (c *Client) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*Refund, error) {
	body, err := json.Marshal(struct {
		Amount int64 `json:"amount"`
	}{ToMinor(amount)})
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "refund", c.url+"/v1/payments/"+paymentID+"/refund", body)
	if err != nil {
		return nil, err
	}

	var refund Refund
	if err := json.Unmarshal(resp, &refund); err != nil {
		return nil, fmt.Errorf("failed to parse refund response: %w", err)
	}
	return &refund, nil
}

// VerifySignature checks the checkout signature returned to the client
// after a successful payment.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(c.keySecret, []byte(orderID+"|"+paymentID), signature)
}

func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	return verify(c.webhookSecret, body, signature)
}

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.keyID+":"+c.keySecret)))
	return h
}

func (c *Client) post(ctx context.Context, op, url string, body []byte) ([]byte, error) {
	var err error
	var statusCode int
	var respBody []byte
	var respHeaders http.Header

	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := time.Now()
		statusCode, respBody, respHeaders, err = c.client.Post(ctx, url, c.headers(), body)
		metrics.GatewayRequestDuration.WithLabelValues(op, strconv.Itoa(statusCode)).Observe(time.Since(start).Seconds())

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, &domain.ExternalError{Op: op, Err: ctx.Err()}
			}
			wait = c.retryInterval * time.Duration(attempt)
		case statusCode == http.StatusTooManyRequests:
			err = fmt.Errorf("rate limited: status %d", statusCode)
			wait = c.retryAfter(respHeaders, attempt)
		case statusCode >= http.StatusInternalServerError:
			err = fmt.Errorf("%w: status %d", errServerStatus, statusCode)
			wait = c.retryInterval * time.Duration(attempt)
		case statusCode >= http.StatusBadRequest:
			return nil, fmt.Errorf("%s: %w", op, parseAPIError(statusCode, respBody))
		default:
			return respBody, nil
		}

		zap.L().Warn("Gateway call failed", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == maxRetries {
			break
		}
		if werr := sleep(ctx, wait); werr != nil {
			return nil, &domain.ExternalError{Op: op, Err: werr}
		}
	}

	zap.L().Error("Gateway call exhausted retries", zap.String("op", op), zap.Error(err))
	return nil, &domain.ExternalError{Op: op, Err: fmt.Errorf("after %d retries: %w", maxRetries, err)}
}

func (c *Client) retryAfter(headers http.Header, attempt int) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.retryInterval * time.Duration(attempt)
}

func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Description = envelope.Error.Description
	}
	return apiErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
