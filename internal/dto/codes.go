package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilcode/kilcode/internal/domain"
)

type SubmitCodeRequestDTO struct {
	Bookmaker string          `json:"bookmaker"`
	Code      string          `json:"code"`
	Odds      decimal.Decimal `json:"odds"`
	Stake     int64           `json:"stake"`
}

type CodeResponseDTO struct {
	ID                int             `json:"id"`
	UserID            int             `json:"user_id"`
	Bookmaker         string          `json:"bookmaker"`
	Code              string          `json:"code"`
	Odds              decimal.Decimal `json:"odds"`
	Stake             int64           `json:"stake"`
	PotentialWinnings int64           `json:"potential_winnings"`
	Status            string          `json:"status"`
	AdminNote         string          `json:"admin_note,omitempty"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func NewCodeResponse(code *domain.BettingCode) CodeResponseDTO {
	return CodeResponseDTO{
		ID:                code.ID,
		UserID:            code.UserID,
		Bookmaker:         code.Bookmaker,
		Code:              code.Code,
		Odds:              code.Odds,
		Stake:             MinorUnits(code.Stake),
		PotentialWinnings: MinorUnits(code.PotentialWinnings),
		Status:            code.Status,
		AdminNote:         code.AdminNote,
		VerifiedAt:        code.VerifiedAt,
		CreatedAt:         code.CreatedAt,
	}
}

type VerifyCodeRequestDTO struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note"`
}

type BulkVerifyRequestDTO struct {
	UserID  int    `json:"user_id"`
	Outcome string `json:"outcome"`
	Note    string `json:"note"`
}

type BulkVerifyResponseDTO struct {
	Verified []int          `json:"verified"`
	Failed   map[int]string `json:"failed"`
}
