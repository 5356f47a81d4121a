//go:generate mockgen -source=webhooks.go -destination=mocks.go -package=webhooks
package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/handlers/httperr"
	"github.com/GlebRadaev/tourmart/pkg/utils"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	maxBodySize = 1 << 20
)

type Service interface {
	Handle(ctx context.Context, eventID string, body []byte, signature string) error
}

type WebhookHandler struct {
	webhookService Service
}

func New(webhookService Service) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// Payments godoc
//
//	@Summary		Payment gateway webhook
//	@Description	Applies payment.captured and payment.failed deliveries. The body must be signed with the webhook secret. Redeliveries are acknowledged without side effects.
//	@Tags			Webhooks
//	@Accept			json
//	@Produce		json
//	@Param			X-Razorpay-Signature	header		string			true	"HMAC-SHA256 of the body"
//	@Param			X-Razorpay-Event-Id		header		string			false	"Delivery id used for dedupe"
//	@Success		200						{object}	utils.Response	"Accepted"
//	@Failure		400						{object}	utils.Response	"Invalid signature or payload"
//	@Failure		500						{object}	utils.Response	"Handling failed, retry later"
//	@Router			/api/webhooks/payments [post]
func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || len(body) == 0 {
		httperr.Respond(w, domain.NewValidationError("body", "empty webhook body"))
		return
	}

	err = h.webhookService.Handle(r.Context(), r.Header.Get(EventIDHeader), body, r.Header.Get(SignatureHeader))
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.Response{Message: "ok"})
}
