//go:generate mockgen -source=wallet.go -destination=mocks.go -package=wallet
package wallet

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/dto"
	"github.com/GlebRadaev/tourmart/internal/handlers/httperr"
	"github.com/GlebRadaev/tourmart/pkg/auth"
	"github.com/GlebRadaev/tourmart/pkg/utils"
)

const maxHistoryLimit = 200

type Service interface {
	Get(ctx context.Context, userID int) (*domain.Wallet, error)
	StartTopUp(ctx context.Context, userID int, amount decimal.Decimal) (*domain.TopUp, error)
	TopUp(ctx context.Context, userID int, gatewayOrderID, paymentID, signature string) (*domain.Wallet, error)
	Redeem(ctx context.Context, userID int, points int64) (decimal.Decimal, *domain.Wallet, error)
	History(ctx context.Context, userID int, limit int) ([]domain.WalletTransaction, error)
}

type WalletHandler struct {
	walletService Service
}

func New(walletService Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

// GetWallet godoc
//
//	@Summary		Get current user wallet
//	@Description	Balance, reward points and loyalty tier of the authenticated user.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.WalletResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		404	{object}	utils.Response	"Wallet not found"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/user/wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	wallet, err := h.walletService.Get(r.Context(), userID)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondWallet(w, wallet)
}

// StartTopUp godoc
//
//	@Summary		Open a wallet top-up
//	@Description	Open a gateway order for the amount. Pay it at checkout, then post the callback to /api/user/wallet/topup.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.StartTopUpRequestDTO	true	"Amount to add"
//	@Success		201		{object}	dto.TopUpResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Balance limit exceeded"
//	@Failure		502		{object}	utils.Response	"Payment gateway unavailable"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/user/wallet/topups [post]
func (h *WalletHandler) StartTopUp(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	var req dto.StartTopUpRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httperr.Respond(w, domain.NewValidationError("amount", "not a number"))
		return
	}

	topUp, err := h.walletService.StartTopUp(r.Context(), userID, amount)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	resp, err := dto.NewTopUp(topUp)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, resp)
}

// TopUp godoc
//
//	@Summary		Complete a wallet top-up
//	@Description	Credit the amount of a top-up the caller opened once the gateway signature verifies. Replaying the same payment returns the wallet unchanged.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.TopUpRequestDTO	true	"Checkout callback"
//	@Success		200		{object}	dto.WalletResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request or signature"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		403		{object}	utils.Response	"Top-up belongs to another user"
//	@Failure		404		{object}	utils.Response	"Top-up not found"
//	@Failure		409		{object}	utils.Response	"Top-up credited by another payment"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/user/wallet/topup [post]
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	var req dto.TopUpRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}

	wallet, err := h.walletService.TopUp(r.Context(), userID, req.GatewayOrderID, req.PaymentID, req.Signature)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	respondWallet(w, wallet)
}

// Redeem godoc
//
//	@Summary		Redeem reward points
//	@Description	Convert reward points into wallet balance at the configured ratio.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.RedeemRequestDTO	true	"Points to redeem"
//	@Success		200		{object}	dto.RedeemResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		402		{object}	utils.Response	"Insufficient points"
//	@Failure		422		{object}	utils.Response	"Below minimum redemption"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/user/wallet/redeem [post]
func (h *WalletHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	var req dto.RedeemRequestDTO
	if err := httperr.Decode(r, &req); err != nil {
		httperr.Respond(w, err)
		return
	}

	credited, wallet, err := h.walletService.Redeem(r.Context(), userID, req.Points)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	resp, err := dto.NewWallet(wallet)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.RedeemResponseDTO{Credited: credited, Wallet: resp})
}

// GetTransactions godoc
//
//	@Summary		Get wallet history
//	@Description	Most recent wallet mutations first.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			limit	query		int							false	"Maximum number of entries"
//	@Success		200		{array}		dto.WalletTransactionDTO	"Wallet history"
//	@Success		204		{object}	utils.Response				"No transactions"
//	@Failure		400		{object}	utils.Response				"Invalid limit"
//	@Failure		401		{object}	utils.Response				"User not authorized"
//	@Failure		500		{object}	utils.Response				"Internal server error"
//	@Router			/api/user/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			httperr.Respond(w, domain.NewValidationError("limit", "must be between 1 and 200"))
			return
		}
		limit = n
	}

	txs, err := h.walletService.History(r.Context(), userID, limit)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	if len(txs) == 0 {
		utils.RespondWithJSON(w, http.StatusNoContent, nil)
		return
	}
	resp, err := dto.NewWalletTransactions(txs)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func respondWallet(w http.ResponseWriter, wallet *domain.Wallet) {
	resp, err := dto.NewWallet(wallet)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
