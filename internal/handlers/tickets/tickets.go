//go:generate mockgen -source=tickets.go -destination=mocks.go -package=tickets
package tickets

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/dto"
	"github.com/GlebRadaev/tourmart/internal/handlers/httperr"
	"github.com/GlebRadaev/tourmart/internal/service/ticketservice"
	"github.com/GlebRadaev/tourmart/pkg/auth"
	"github.com/GlebRadaev/tourmart/pkg/utils"
)

type Service interface {
	Purchase(ctx context.Context, userID int, req ticketservice.PurchaseRequest) (*domain.Ticket, error)
	Get(ctx context.Context, userID int, role domain.Role, id int) (*domain.Ticket, error)
	List(ctx context.Context, userID int) ([]domain.Ticket, error)
	Confirm(ctx context.Context, userID, id int, paymentID, signature string) (*domain.Ticket, error)
	PayWithWallet(ctx context.Context, userID, id int) (*domain.Ticket, error)
	QuoteRefund(ctx context.Context, userID, id int) (*ticketservice.RefundQuote, error)
	Refund(ctx context.Context, userID, id int) (*domain.Ticket, error)
	QRCode(ctx context.Context, userID, id int) ([]byte, error)
	Validate(ctx context.Context, number string) (*domain.Ticket, error)
}

type TicketHandler struct {
	ticketService Service
}

func New(ticketService Service) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// Purchase godoc
//
//	@Summary		Book a ticket
//	@Description	Price the booking and open a gateway order for its total. The ticket stays pending until the payment is confirmed.
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PurchaseTicketRequestDTO	true	"Booking"
//	@Success		201		{object}	dto.TicketResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid booking"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		502		{object}	utils.Response	"Payment provider unavailable"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/tickets [post]
func (h *TicketHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	var req dto.PurchaseTicketRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}
	basePrice, err := decimal.NewFromString(req.BasePrice)
	if err != nil {
		httperr.Respond(w, domain.NewValidationError("basePrice", "not a number"))
		return
	}
	discount := decimal.Zero
	if req.Discount != "" {
		if discount, err = decimal.NewFromString(req.Discount); err != nil {
			httperr.Respond(w, domain.NewValidationError("discount", "not a number"))
			return
		}
	}

	ticket, err := h.ticketService.Purchase(r.Context(), userID, ticketservice.PurchaseRequest{
		Destination: req.Destination,
		EventDate:   req.EventDate,
		BasePrice:   basePrice,
		Quantity:    req.Quantity,
		Discount:    discount,
	})
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondTicket(w, http.StatusCreated, ticket)
}

// List godoc
//
//	@Summary		List own tickets
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.TicketResponseDTO
//	@Success		204	{object}	utils.Response	"No tickets"
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/tickets [get]
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	tickets, err := h.ticketService.List(r.Context(), userID)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	if len(tickets) == 0 {
		utils.RespondWithJSON(w, http.StatusNoContent, nil)
		return
	}
	resp, err := dto.NewTickets(tickets)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Get godoc
//
//	@Summary		Get a ticket
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Ticket id"
//	@Success		200	{object}	dto.TicketResponseDTO
//	@Failure		403	{object}	utils.Response	"Not your ticket"
//	@Failure		404	{object}	utils.Response	"Ticket not found"
//	@Router			/api/tickets/{id} [get]
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, role := auth.UserFrom(r.Context())
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	ticket, err := h.ticketService.Get(r.Context(), userID, domain.Role(role), id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondTicket(w, http.StatusOK, ticket)
}

// Confirm godoc
//
//	@Summary		Confirm a ticket payment
//	@Description	Checkout callback. The gateway signature must match the ticket's gateway order. Confirming twice is a no-op.
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int								true	"Ticket id"
//	@Param			request	body		dto.ConfirmPaymentRequestDTO	true	"Checkout callback"
//	@Success		200		{object}	dto.TicketResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid signature"
//	@Failure		409		{object}	utils.Response	"Ticket cannot be confirmed"
//	@Router			/api/tickets/{id}/confirm [post]
func (h *TicketHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	var req dto.ConfirmPaymentRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}

	ticket, err := h.ticketService.Confirm(r.Context(), userID, id, req.PaymentID, req.Signature)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondTicket(w, http.StatusOK, ticket)
}

// PayWithWallet godoc
//
//	@Summary		Pay a ticket from the wallet
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Ticket id"
//	@Success		200	{object}	dto.TicketResponseDTO
//	@Failure		402	{object}	utils.Response	"Insufficient balance"
//	@Failure		409	{object}	utils.Response	"Ticket is not awaiting payment"
//	@Router			/api/tickets/{id}/pay-wallet [post]
func (h *TicketHandler) PayWithWallet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	ticket, err := h.ticketService.PayWithWallet(r.Context(), userID, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondTicket(w, http.StatusOK, ticket)
}

// QuoteRefund godoc
//
//	@Summary		Quote a ticket refund
//	@Description	Amount that a cancellation would refund right now.
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Ticket id"
//	@Success		200	{object}	dto.RefundQuoteResponseDTO
//	@Failure		404	{object}	utils.Response	"Ticket not found"
//	@Router			/api/tickets/{id}/refund [get]
func (h *TicketHandler) QuoteRefund(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	quote, err := h.ticketService.QuoteRefund(r.Context(), userID, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.RefundQuoteResponseDTO{
		Eligible: quote.Eligible,
		Amount:   quote.Amount,
		Deadline: quote.Deadline,
	})
}

// Refund godoc
//
//	@Summary		Cancel and refund a ticket
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Ticket id"
//	@Success		200	{object}	dto.TicketResponseDTO
//	@Failure		409	{object}	utils.Response	"Refund not allowed"
//	@Failure		502	{object}	utils.Response	"Payment provider unavailable"
//	@Router			/api/tickets/{id}/refund [post]
func (h *TicketHandler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	ticket, err := h.ticketService.Refund(r.Context(), userID, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondTicket(w, http.StatusOK, ticket)
}

// QRCode godoc
//
//	@Summary		Ticket QR code
//	@Description	PNG encoding the ticket number for gate scanners.
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Produce		png
//	@Param			id	path		int	true	"Ticket id"
//	@Success		200	{file}		binary
//	@Failure		409	{object}	utils.Response	"Ticket is not confirmed"
//	@Router			/api/tickets/{id}/qr [get]
func (h *TicketHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	png, err := h.ticketService.QRCode(r.Context(), userID, id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		zap.L().Error("failed to write qr code", zap.Int("ticketID", id), zap.Error(err))
	}
}

// Validate godoc
//
//	@Summary		Scan a ticket at the gate
//	@Description	Marks a confirmed ticket as used. Vendors and admins only.
//	@Tags			Tickets
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.ValidateTicketRequestDTO	true	"Scanned number"
//	@Success		200		{object}	dto.TicketResponseDTO
//	@Failure		400		{object}	utils.Response	"Malformed ticket number"
//	@Failure		403		{object}	utils.Response	"Role not allowed"
//	@Failure		409		{object}	utils.Response	"Ticket cannot be used"
//	@Router			/api/tickets/validate [post]
func (h *TicketHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateTicketRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}

	ticket, err := h.ticketService.Validate(r.Context(), req.TicketNumber)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondTicket(w, http.StatusOK, ticket)
}

func respondTicket(w http.ResponseWriter, status int, ticket *domain.Ticket) {
	resp, err := dto.NewTicket(ticket)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, status, resp)
}
