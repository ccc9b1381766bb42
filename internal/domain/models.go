package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CountryNigeria = "NG"
	CountryGhana   = "GH"
)

// CurrencyFor maps a country to the currency its ledger is kept in.
func CurrencyFor(country string) string {
	if country == CountryGhana {
		return "GHS"
	}
	return "NGN"
}

type User struct {
	ID           int             `db:"id"`
	Email        string          `db:"email"`
	PasswordHash string          `db:"password_hash"`
	Name         string          `db:"name"`
	Country      string          `db:"country"`
	Role         string          `db:"role"`
	Balance      decimal.Decimal `db:"balance"`
	Status       string          `db:"status"`
	CreatedAt    time.Time       `db:"created_at"`
}

// Transaction is immutable once it reaches a terminal status. The set of
// completed transactions is the source of truth for user balances; the
// cached users.balance column is a projection of it.
type Transaction struct {
	ID               int             `db:"id"`
	UserID           int             `db:"user_id"`
	Type             string          `db:"type"`
	Amount           decimal.Decimal `db:"amount"`
	Fee              decimal.Decimal `db:"fee"`
	Status           string          `db:"status"`
	PaymentMethod    string          `db:"payment_method"`
	PaymentReference string          `db:"payment_reference"`
	Description      string          `db:"description"`
	Currency         string          `db:"currency"`
	CreatedAt        time.Time       `db:"created_at"`
	CompletedAt      *time.Time      `db:"completed_at"`
}

type BettingCode struct {
	ID                int             `db:"id"`
	UserID            int             `db:"user_id"`
	Bookmaker         string          `db:"bookmaker"`
	Code              string          `db:"code"`
	Odds              decimal.Decimal `db:"odds"`
	Stake             decimal.Decimal `db:"stake"`
	PotentialWinnings decimal.Decimal `db:"potential_winnings"`
	Status            string          `db:"status"`
	AdminNote         string          `db:"admin_note"`
	VerifiedBy        *int            `db:"verified_by"`
	VerifiedAt        *time.Time      `db:"verified_at"`
	CreatedAt         time.Time       `db:"created_at"`
}

// Payment mirrors an external provider payment. At most one Transaction
// corresponds to a Payment, matched on reference.
type Payment struct {
	ID         int             `db:"id"`
	UserID     int             `db:"user_id"`
	Reference  string          `db:"reference"`
	Amount     decimal.Decimal `db:"amount"`
	Currency   string          `db:"currency"`
	Status     string          `db:"status"`
	Method     string          `db:"method"`
	Type       string          `db:"type"`
	VerifiedBy *int            `db:"verified_by"`
	VerifiedAt *time.Time      `db:"verified_at"`
	CreatedAt  time.Time       `db:"created_at"`
}
