package dto

import (
	"github.com/jinzhu/copier"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

func copyInto[T any](from any) (T, error) {
	var to T
	err := copier.Copy(&to, from)
	return to, err
}

func NewWallet(w *domain.Wallet) (WalletResponseDTO, error) {
	return copyInto[WalletResponseDTO](w)
}

func NewTopUp(t *domain.TopUp) (TopUpResponseDTO, error) {
	return copyInto[TopUpResponseDTO](t)
}

func NewWalletTransactions(txs []domain.WalletTransaction) ([]WalletTransactionDTO, error) {
	return copyInto[[]WalletTransactionDTO](txs)
}

func NewTicket(t *domain.Ticket) (TicketResponseDTO, error) {
	return copyInto[TicketResponseDTO](t)
}

func NewTickets(ts []domain.Ticket) ([]TicketResponseDTO, error) {
	return copyInto[[]TicketResponseDTO](ts)
}

func NewOrder(o *domain.Order) (OrderResponseDTO, error) {
	return copyInto[OrderResponseDTO](o)
}

func NewOrders(os []domain.Order) ([]OrderResponseDTO, error) {
	return copyInto[[]OrderResponseDTO](os)
}
