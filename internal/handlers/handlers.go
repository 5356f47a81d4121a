//go:generate mockgen -source=handlers.go -destination=mocks.go -package=handlers
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/GlebRadaev/tourmart/docs"
	"github.com/GlebRadaev/tourmart/internal/domain"
	authhandlers "github.com/GlebRadaev/tourmart/internal/handlers/auth"
	ordershandlers "github.com/GlebRadaev/tourmart/internal/handlers/orders"
	ticketshandlers "github.com/GlebRadaev/tourmart/internal/handlers/tickets"
	wallethandlers "github.com/GlebRadaev/tourmart/internal/handlers/wallet"
	webhookshandlers "github.com/GlebRadaev/tourmart/internal/handlers/webhooks"
	"github.com/GlebRadaev/tourmart/internal/metrics"
	"github.com/GlebRadaev/tourmart/internal/service"
	"github.com/GlebRadaev/tourmart/pkg/auth"
)

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

type WalletHandler interface {
	GetWallet(w http.ResponseWriter, r *http.Request)
	StartTopUp(w http.ResponseWriter, r *http.Request)
	TopUp(w http.ResponseWriter, r *http.Request)
	Redeem(w http.ResponseWriter, r *http.Request)
	GetTransactions(w http.ResponseWriter, r *http.Request)
}

type TicketHandler interface {
	Purchase(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Confirm(w http.ResponseWriter, r *http.Request)
	PayWithWallet(w http.ResponseWriter, r *http.Request)
	QuoteRefund(w http.ResponseWriter, r *http.Request)
	Refund(w http.ResponseWriter, r *http.Request)
	QRCode(w http.ResponseWriter, r *http.Request)
	Validate(w http.ResponseWriter, r *http.Request)
}

type OrderHandler interface {
	CreateOrder(w http.ResponseWriter, r *http.Request)
	GetOrders(w http.ResponseWriter, r *http.Request)
	GetOrder(w http.ResponseWriter, r *http.Request)
	ConfirmOrder(w http.ResponseWriter, r *http.Request)
	UpdateStatus(w http.ResponseWriter, r *http.Request)
	CancelOrder(w http.ResponseWriter, r *http.Request)
	RequestReturn(w http.ResponseWriter, r *http.Request)
	CompleteReturn(w http.ResponseWriter, r *http.Request)
	ReleaseEscrow(w http.ResponseWriter, r *http.Request)
}

type WebhookHandler interface {
	Payments(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	AuthHandler    AuthHandler
	WalletHandler  WalletHandler
	TicketHandler  TicketHandler
	OrderHandler   OrderHandler
	WebhookHandler WebhookHandler

	jwtService auth.JWTServiceInterface
}

func New(s *service.Services, jwtService auth.JWTServiceInterface) *Handlers {
	return &Handlers{
		AuthHandler:    authhandlers.New(s.AuthService),
		WalletHandler:  wallethandlers.New(s.WalletService),
		TicketHandler:  ticketshandlers.New(s.TicketService),
		OrderHandler:   ordershandlers.New(s.OrderService),
		WebhookHandler: webhookshandlers.New(s.WebhookService),
		jwtService:     jwtService,
	}
}

func roles(rs ...domain.Role) func(http.Handler) http.Handler {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r)
	}
	return auth.RequireRole(names...)
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Logger,
		metrics.Middleware,
	)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))

	r.Post("/api/webhooks/payments", h.WebhookHandler.Payments)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.AuthHandler.Register)
		r.Post("/login", h.AuthHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.jwtService))
			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", h.WalletHandler.GetWallet)
				r.Post("/topups", h.WalletHandler.StartTopUp)
				r.Post("/topup", h.WalletHandler.TopUp)
				r.Post("/redeem", h.WalletHandler.Redeem)
				r.Get("/transactions", h.WalletHandler.GetTransactions)
			})
		})
	})

	r.Route("/api/tickets", func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtService))
		r.Post("/", h.TicketHandler.Purchase)
		r.Get("/", h.TicketHandler.List)
		r.With(roles(domain.RoleVendor, domain.RoleAdmin)).Post("/validate", h.TicketHandler.Validate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.TicketHandler.Get)
			r.Post("/confirm", h.TicketHandler.Confirm)
			r.Post("/pay-wallet", h.TicketHandler.PayWithWallet)
			r.Get("/refund", h.TicketHandler.QuoteRefund)
			r.Post("/refund", h.TicketHandler.Refund)
			r.Get("/qr", h.TicketHandler.QRCode)
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtService))
		r.With(roles(domain.RoleCustomer)).Post("/", h.OrderHandler.CreateOrder)
		r.Get("/", h.OrderHandler.GetOrders)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.OrderHandler.GetOrder)
			r.Post("/confirm", h.OrderHandler.ConfirmOrder)
			r.Post("/cancel", h.OrderHandler.CancelOrder)
			r.Post("/return", h.OrderHandler.RequestReturn)
			r.With(roles(domain.RoleVendor, domain.RoleAdmin)).Patch("/status", h.OrderHandler.UpdateStatus)
			r.With(roles(domain.RoleVendor, domain.RoleAdmin)).Post("/return/complete", h.OrderHandler.CompleteReturn)
			r.With(roles(domain.RoleAdmin)).Post("/release-escrow", h.OrderHandler.ReleaseEscrow)
		})
	})

	return r
}
