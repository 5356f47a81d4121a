package service

import (
	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/config"
	"github.com/GlebRadaev/tourmart/internal/expiry"
	"github.com/GlebRadaev/tourmart/internal/handlers/auth"
	"github.com/GlebRadaev/tourmart/internal/handlers/orders"
	"github.com/GlebRadaev/tourmart/internal/handlers/tickets"
	"github.com/GlebRadaev/tourmart/internal/handlers/wallet"
	"github.com/GlebRadaev/tourmart/internal/handlers/webhooks"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/repo"
	"github.com/GlebRadaev/tourmart/internal/service/authservice"
	"github.com/GlebRadaev/tourmart/internal/service/orderservice"
	"github.com/GlebRadaev/tourmart/internal/service/ticketservice"
	"github.com/GlebRadaev/tourmart/internal/service/walletservice"
	"github.com/GlebRadaev/tourmart/internal/service/webhookservice"
	pkgauth "github.com/GlebRadaev/tourmart/pkg/auth"
)

// Gateway is everything the services need from the payment provider.
type Gateway interface {
	ticketservice.Gateway
	walletservice.Gateway
	webhookservice.Verifier
}

type Deps struct {
	Repos     *repo.Repositories
	TxManager pg.TXManager
	Gateway   Gateway
	Cache     webhookservice.Cache
	Events    analytics.Emitter
	Hash      pkgauth.HashServiceInterface
	JWT       pkgauth.JWTServiceInterface
}

type Services struct {
	AuthService    auth.Service
	WalletService  wallet.Service
	TicketService  tickets.Service
	OrderService   orders.Service
	WebhookService webhooks.Service

	TicketExpiry expiry.Tickets
}

func New(cfg *config.Config, d Deps) *Services {
	policy := cfg.Policy()

	walletService := walletservice.New(d.Repos.WalletRepo, d.Repos.TransactionRepo, d.Repos.TopUpRepo, d.TxManager, d.Gateway, policy, d.Events)
	ticketService := ticketservice.New(d.Repos.TicketRepo, d.Gateway, walletService, d.TxManager, policy, d.Events)
	orderService := orderservice.New(d.Repos.OrderRepo, d.Repos.UserRepo, d.Gateway, walletService, d.TxManager, policy, d.Events)
	authService := authservice.New(d.Repos.UserRepo, d.Repos.WalletRepo, d.TxManager, d.Hash, d.JWT, cfg.TokenTTL, cfg.Currency)
	webhookService := webhookservice.New(d.Gateway, ticketService, orderService, walletService, d.Cache, cfg.WebhookDedupeTTL)

	return &Services{
		AuthService:    authService,
		WalletService:  walletService,
		TicketService:  ticketService,
		OrderService:   orderService,
		WebhookService: webhookService,
		TicketExpiry:   ticketService,
	}
}
