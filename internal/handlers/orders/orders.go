//go:generate mockgen -source=orders.go -destination=mocks.go -package=orders
package orders

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/dto"
	"github.com/GlebRadaev/tourmart/internal/handlers/httperr"
	"github.com/GlebRadaev/tourmart/internal/service/orderservice"
	"github.com/GlebRadaev/tourmart/pkg/auth"
	"github.com/GlebRadaev/tourmart/pkg/utils"
)

type Service interface {
	Create(ctx context.Context, customerID int, req orderservice.CreateRequest) (*domain.Order, error)
	Get(ctx context.Context, actor orderservice.Actor, id int) (*domain.Order, error)
	List(ctx context.Context, actor orderservice.Actor) ([]domain.Order, error)
	Confirm(ctx context.Context, customerID, id int, paymentID, signature string) (*domain.Order, error)
	Advance(ctx context.Context, actor orderservice.Actor, id int, to domain.OrderStatus, note string) (*domain.Order, error)
	Cancel(ctx context.Context, actor orderservice.Actor, id int, reason string) (*domain.Order, error)
	RequestReturn(ctx context.Context, customerID, id int, reason string) (*domain.Order, error)
	CompleteReturn(ctx context.Context, actor orderservice.Actor, id int) (*domain.Order, error)
	ReleaseEscrow(ctx context.Context, id int) (*domain.Order, error)
}

type OrderHandler struct {
	orderService Service
}

func New(orderService Service) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func actorFrom(r *http.Request) orderservice.Actor {
	userID, role := auth.UserFrom(r.Context())
	return orderservice.Actor{UserID: userID, Role: domain.Role(role)}
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, "not a number")
	}
	return d, nil
}

// CreateOrder godoc
//
//	@Summary		Place a marketplace order
//	@Description	Price the cart with the vendor's commission and open a gateway order for the total.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.CreateOrderRequestDTO	true	"Cart"
//	@Success		201		{object}	dto.OrderResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid cart"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		404		{object}	utils.Response	"Vendor not found"
//	@Failure		502		{object}	utils.Response	"Payment provider unavailable"
//	@Router			/api/orders [post]
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	var req dto.CreateOrderRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		price, err := parseAmount("unitPrice", item.UnitPrice)
		if err != nil {
			httperr.Respond(w, err)
			return
		}
		items[i] = domain.OrderItem{ProductID: item.ProductID, Name: item.Name, UnitPrice: price, Quantity: item.Quantity}
	}
	shipping, err := parseAmount("shippingCost", req.ShippingCost)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	discount, err := parseAmount("discount", req.Discount)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	order, err := h.orderService.Create(r.Context(), userID, orderservice.CreateRequest{
		VendorID:     req.VendorID,
		Items:        items,
		ShippingCost: shipping,
		Discount:     discount,
	})
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondOrder(w, http.StatusCreated, order)
}

// GetOrders godoc
//
//	@Summary		List orders
//	@Description	Customers see what they bought, vendors what they sold, admins everything.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.OrderResponseDTO
//	@Success		204	{object}	utils.Response	"No orders"
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/orders [get]
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.List(r.Context(), actorFrom(r))
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	if len(orders) == 0 {
		utils.RespondWithJSON(w, http.StatusNoContent, nil)
		return
	}
	resp, err := dto.NewOrders(orders)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// GetOrder godoc
//
//	@Summary		Get an order
//	@Tags			Orders
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Order id"
//	@Success		200	{object}	dto.OrderResponseDTO
//	@Failure		403	{object}	utils.Response	"Not a party to the order"
//	@Failure		404	{object}	utils.Response	"Order not found"
//	@Router			/api/orders/{id} [get]
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.Get(r.Context(), actorFrom(r), id)
	})
}

// ConfirmOrder godoc
//
//	@Summary		Confirm an order payment
//	@Description	Checkout callback. Funds are held in escrow until delivery.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int								true	"Order id"
//	@Param			request	body		dto.ConfirmPaymentRequestDTO	true	"Checkout callback"
//	@Success		200		{object}	dto.OrderResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid signature"
//	@Failure		409		{object}	utils.Response	"Order cannot be confirmed"
//	@Router			/api/orders/{id}/confirm [post]
func (h *OrderHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmPaymentRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}
	userID, _ := auth.UserFrom(r.Context())
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.Confirm(r.Context(), userID, id, req.PaymentID, req.Signature)
	})
}

// UpdateStatus godoc
//
//	@Summary		Advance fulfilment
//	@Description	Vendor moves a paid order forward: processing, shipped, delivered.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int								true	"Order id"
//	@Param			request	body		dto.UpdateOrderStatusRequestDTO	true	"Target status"
//	@Success		200		{object}	dto.OrderResponseDTO
//	@Failure		403		{object}	utils.Response	"Not the order's vendor"
//	@Failure		409		{object}	utils.Response	"Transition not allowed"
//	@Router			/api/orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateOrderStatusRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.Advance(r.Context(), actorFrom(r), id, domain.OrderStatus(req.Status), req.Note)
	})
}

// CancelOrder godoc
//
//	@Summary		Cancel an order
//	@Description	Refunds a paid order through the gateway and cancels the vendor payout.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Order id"
//	@Param			request	body		dto.ReasonRequestDTO	false	"Cancellation reason"
//	@Success		200		{object}	dto.OrderResponseDTO
//	@Failure		409		{object}	utils.Response	"Order already settled"
//	@Failure		502		{object}	utils.Response	"Payment provider unavailable"
//	@Router			/api/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.Cancel(r.Context(), actorFrom(r), id, reason)
	})
}

// RequestReturn godoc
//
//	@Summary		Request a return
//	@Description	Allowed within the return window after delivery.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Order id"
//	@Param			request	body		dto.ReasonRequestDTO	true	"Return reason"
//	@Success		200		{object}	dto.OrderResponseDTO
//	@Failure		409		{object}	utils.Response	"Return not allowed"
//	@Router			/api/orders/{id}/return [post]
func (h *OrderHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserFrom(r.Context())
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.RequestReturn(r.Context(), userID, id, reason)
	})
}

// CompleteReturn godoc
//
//	@Summary		Accept a returned order
//	@Description	Refunds the customer and marks the order returned. Vendors and admins only.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Order id"
//	@Success		200	{object}	dto.OrderResponseDTO
//	@Failure		409	{object}	utils.Response	"No pending return"
//	@Router			/api/orders/{id}/return/complete [post]
func (h *OrderHandler) CompleteReturn(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.CompleteReturn(r.Context(), actorFrom(r), id)
	})
}

// ReleaseEscrow godoc
//
//	@Summary		Release escrow to the vendor
//	@Description	Admins only. The order must be delivered.
//	@Tags			Orders
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Order id"
//	@Success		200	{object}	dto.OrderResponseDTO
//	@Failure		409	{object}	utils.Response	"Not delivered or already released"
//	@Router			/api/orders/{id}/release-escrow [post]
func (h *OrderHandler) ReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int) (*domain.Order, error) {
		return h.orderService.ReleaseEscrow(r.Context(), id)
	})
}

func (h *OrderHandler) withID(w http.ResponseWriter, r *http.Request, fn func(id int) (*domain.Order, error)) {
	id, err := httperr.PathID(r, "id")
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	order, err := fn(id)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondOrder(w, http.StatusOK, order)
}

// decodeReason accepts an empty body as an empty reason.
func decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req dto.ReasonRequestDTO
	if r.ContentLength == 0 {
		return "", true
	}
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return "", false
	}
	return req.Reason, true
}

func respondOrder(w http.ResponseWriter, status int, order *domain.Order) {
	resp, err := dto.NewOrder(order)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, status, resp)
}
