package repo

import (
	"github.com/GlebRadaev/tourmart/internal/pg"
	orderrepo "github.com/GlebRadaev/tourmart/internal/repo/order-repo"
	ticketrepo "github.com/GlebRadaev/tourmart/internal/repo/ticket-repo"
	topuprepo "github.com/GlebRadaev/tourmart/internal/repo/topup-repo"
	transactionrepo "github.com/GlebRadaev/tourmart/internal/repo/transaction-repo"
	userrepo "github.com/GlebRadaev/tourmart/internal/repo/user-repo"
	walletrepo "github.com/GlebRadaev/tourmart/internal/repo/wallet-repo"
)

type Repositories struct {
	UserRepo        *userrepo.Repository
	WalletRepo      *walletrepo.Repository
	TransactionRepo *transactionrepo.Repository
	TopUpRepo       *topuprepo.Repository
	TicketRepo      *ticketrepo.Repository
	OrderRepo       *orderrepo.Repository
}

func New(conn pg.Database, txManager pg.TXManager) *Repositories {
	return &Repositories{
		UserRepo:        userrepo.New(conn),
		WalletRepo:      walletrepo.New(conn),
		TransactionRepo: transactionrepo.New(conn),
		TopUpRepo:       topuprepo.New(conn),
		TicketRepo:      ticketrepo.New(conn),
		OrderRepo:       orderrepo.New(conn, txManager),
	}
}
