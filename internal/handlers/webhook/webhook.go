package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/dto"
	"github.com/kilcode/kilcode/internal/service/paymentservice"
	"github.com/kilcode/kilcode/pkg/utils"
)

const signatureHeader = "x-paystack-signature"

type PaymentService interface {
	ReconcilePayment(ctx context.Context, reference, providerStatus string, amount decimal.Decimal, currency string) (*domain.Transaction, error)
}

// WebhookHandler receives provider callbacks. The signature check runs
// before anything touches state; a bad signature produces a 400 and no
// side effects.
type WebhookHandler struct {
	paymentService PaymentService
	secret         []byte
}

func New(paymentService PaymentService, secret string) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		secret:         []byte(secret),
	}
}

func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandlePaystack godoc
//
//	@Summary		Provider payment webhook
//	@Description	HMAC-SHA512 signed callback; charge.success events reconcile the referenced payment
//	@Tags			Webhooks
//	@Accept			json
//	@Produce		json
//	@Param			x-paystack-signature	header		string				true	"HMAC-SHA512 of the raw body"
//	@Param			request					body		dto.WebhookEventDTO	true	"Provider event"
//	@Success		200						{string}	string				"ok"
//	@Failure		400						{object}	utils.ErrorResponse	"Invalid signature or body"
//	@Router			/webhooks/paystack [post]
func (h *WebhookHandler) HandlePaystack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Cannot read body")
		return
	}

	if !h.validSignature(body, r.Header.Get(signatureHeader)) {
		zap.L().Warn("webhook signature mismatch")
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	var event dto.WebhookEventDTO
	if err := json.Unmarshal(body, &event); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	if event.Event != "charge.success" {
		zap.L().Info("webhook event ignored", zap.String("event", event.Event))
		utils.RespondWithJSON(w, http.StatusOK, "ignored")
		return
	}

	amount := dto.FromMinorUnits(event.Data.Amount)
	_, err = h.paymentService.ReconcilePayment(r.Context(), event.Data.Reference, event.Data.Status, amount, event.Data.Currency)
	if err != nil {
		// The provider retries on non-2xx. A reference we do not know or an
		// amount that does not match will never heal, so answer 200 and
		// keep the alarm in the logs.
		if errors.Is(err, paymentservice.ErrTransactionNotFound) || errors.Is(err, paymentservice.ErrAmountMismatch) {
			zap.L().Error("webhook reconciliation rejected",
				zap.String("reference", event.Data.Reference),
				zap.Error(err),
			)
			utils.RespondWithJSON(w, http.StatusOK, "rejected")
			return
		}
		zap.L().Error("webhook reconciliation failed", zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, "ok")
}
