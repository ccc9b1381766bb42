package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/dto"
	"github.com/kilcode/kilcode/internal/service/ledgerservice"
	"github.com/kilcode/kilcode/internal/service/paymentservice"
	"github.com/kilcode/kilcode/pkg/auth"
	"github.com/kilcode/kilcode/pkg/utils"
)

type LedgerService interface {
	Balance(ctx context.Context, userID int) (*domain.User, error)
	Reconcile(ctx context.Context, userID int) (decimal.Decimal, error)
}

type PaymentService interface {
	InitiateWithdrawal(ctx context.Context, userID int, amount decimal.Decimal, method, destination string) (*domain.Transaction, error)
	GetWithdrawals(ctx context.Context, userID int) ([]domain.Transaction, error)
	VerifyWithProvider(ctx context.Context, reference string) (*domain.Transaction, error)
	GetPendingWithdrawals(ctx context.Context, country string) ([]domain.Payment, error)
}

type WalletHandler struct {
	ledgerService  LedgerService
	paymentService PaymentService
}

func New(ledgerService LedgerService, paymentService PaymentService) *WalletHandler {
	return &WalletHandler{
		ledgerService:  ledgerService,
		paymentService: paymentService,
	}
}

// GetBalance godoc
//
//	@Summary		Get current user balance
//	@Description	Balance in minor units of the user's country currency
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.BalanceResponseDTO
//	@Failure		401	{object}	utils.ErrorResponse	"User not authorized"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/user/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	user, err := h.ledgerService.Balance(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.BalanceResponseDTO{
		Balance:  dto.MinorUnits(user.Balance),
		Currency: domain.CurrencyFor(user.Country),
	})
}

// Withdraw godoc
//
//	@Summary		Request funds withdrawal
//	@Description	Open a pending withdrawal; amount in minor units, the fee follows the country schedule
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.WithdrawRequestDTO	true	"Withdrawal request payload"
//	@Success		201		{object}	dto.TransactionResponseDTO
//	@Failure		400		{object}	utils.ErrorResponse	"Invalid amount"
//	@Failure		401		{object}	utils.ErrorResponse	"User not authorized"
//	@Failure		402		{object}	utils.ErrorResponse	"Insufficient balance"
//	@Failure		422		{object}	utils.ErrorResponse	"Invalid destination"
//	@Failure		500		{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/user/balance/withdraw [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req dto.WithdrawRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.paymentService.InitiateWithdrawal(r.Context(), userID, dto.FromMinorUnits(req.Amount), req.Method, req.Destination)
	if err != nil {
		switch {
		case errors.Is(err, paymentservice.ErrInvalidAmount):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ledgerservice.ErrInsufficientBalance):
			utils.RespondWithError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, paymentservice.ErrInvalidDestination):
			utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewTransactionResponse(transaction))
}

// GetWithdrawals godoc
//
//	@Summary		Get withdrawals history
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.TransactionResponseDTO
//	@Success		204	{object}	utils.ErrorResponse	"No withdrawals"
//	@Failure		401	{object}	utils.ErrorResponse	"User not authorized"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/user/withdrawals [get]
func (h *WalletHandler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	withdrawals, err := h.paymentService.GetWithdrawals(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch withdrawals")
		return
	}

	if len(withdrawals) == 0 {
		utils.RespondWithError(w, http.StatusNoContent, "Withdrawals not found")
		return
	}

	response := make([]dto.TransactionResponseDTO, len(withdrawals))
	for i := range withdrawals {
		response[i] = dto.NewTransactionResponse(&withdrawals[i])
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

// VerifyPayment godoc
//
//	@Summary		Verify a payment with the provider
//	@Description	Ask the provider for the state of a reference and reconcile it; retryable on provider timeout
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			reference	path		string	true	"Payment reference"
//	@Success		200			{object}	dto.TransactionResponseDTO
//	@Failure		404			{object}	utils.ErrorResponse	"Transaction not found"
//	@Failure		409			{object}	utils.ErrorResponse	"Amount mismatch"
//	@Failure		502			{object}	utils.ErrorResponse	"Provider unavailable"
//	@Failure		500			{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/user/payments/{reference}/verify [post]
func (h *WalletHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	transaction, err := h.paymentService.VerifyWithProvider(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, paymentservice.ErrTransactionNotFound):
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, paymentservice.ErrAmountMismatch), errors.Is(err, paymentservice.ErrCurrencyMismatch):
			utils.RespondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, paymentservice.ErrProviderUnavailable):
			utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		case errors.Is(err, ledgerservice.ErrInsufficientBalance):
			utils.RespondWithError(w, http.StatusPaymentRequired, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransactionResponse(transaction))
}

// Reconcile godoc
//
//	@Summary		Reconcile a user balance
//	@Description	Recompute the balance from the transaction log and heal the cached value on drift
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"User ID"
//	@Success		200	{object}	dto.ReconcileResponseDTO
//	@Failure		404	{object}	utils.ErrorResponse	"User not found"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/admin/users/{id}/reconcile [post]
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	balance, err := h.ledgerService.Reconcile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ledgerservice.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.ReconcileResponseDTO{
		UserID:  userID,
		Balance: dto.MinorUnits(balance),
	})
}

// GetPendingWithdrawals godoc
//
//	@Summary		List pending withdrawals for the admin's country
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.PaymentResponseDTO
//	@Failure		403	{object}	utils.ErrorResponse	"Forbidden"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/admin/withdrawals/pending [get]
func (h *WalletHandler) GetPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	country := auth.CountryFromContext(r.Context())

	payments, err := h.paymentService.GetPendingWithdrawals(r.Context(), country)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch pending withdrawals")
		return
	}

	response := make([]dto.PaymentResponseDTO, len(payments))
	for i := range payments {
		response[i] = dto.NewPaymentResponse(&payments[i])
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}
