package dto

import (
	"time"

	"github.com/kilcode/kilcode/internal/domain"
)

type BalanceResponseDTO struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

type WithdrawRequestDTO struct {
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
}

type TransactionResponseDTO struct {
	ID          int        `json:"id"`
	Type        string     `json:"type"`
	Amount      int64      `json:"amount"`
	Fee         int64      `json:"fee"`
	Status      string     `json:"status"`
	Reference   string     `json:"reference"`
	Currency    string     `json:"currency"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func NewTransactionResponse(t *domain.Transaction) TransactionResponseDTO {
	return TransactionResponseDTO{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      MinorUnits(t.Amount),
		Fee:         MinorUnits(t.Fee),
		Status:      t.Status,
		Reference:   t.PaymentReference,
		Currency:    t.Currency,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

type ReconcileResponseDTO struct {
	UserID  int   `json:"user_id"`
	Balance int64 `json:"balance"`
}

type PaymentResponseDTO struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Method    string    `json:"method"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func NewPaymentResponse(p *domain.Payment) PaymentResponseDTO {
	return PaymentResponseDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		Reference: p.Reference,
		Amount:    MinorUnits(p.Amount),
		Currency:  p.Currency,
		Status:    p.Status,
		Method:    p.Method,
		Type:      p.Type,
		CreatedAt: p.CreatedAt,
	}
}

// WebhookEventDTO is the provider callback body. Amount arrives in minor
// units, the provider's convention.
type WebhookEventDTO struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
	} `json:"data"`
}
