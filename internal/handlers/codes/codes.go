package codes

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
	"github.com/kilcode/kilcode/internal/service/codeservice"
	"github.com/kilcode/kilcode/pkg/auth"
	"github.com/kilcode/kilcode/pkg/utils"
)

type Service interface {
	Submit(ctx context.Context, userID int, bookmaker, code string, odds, stake decimal.Decimal) (*domain.BettingCode, error)
	GetCodes(ctx context.Context, userID int) ([]domain.BettingCode, error)
	GetCountryCodes(ctx context.Context, country, status string) ([]domain.BettingCode, error)
	MarkAnalyzing(ctx context.Context, codeID int, adminCountry string) (*domain.BettingCode, error)
	Verify(ctx context.Context, codeID, adminID int, adminCountry, outcome, note string) (*domain.BettingCode, error)
	BulkVerify(ctx context.Context, userID, adminID int, adminCountry, outcome, note string) (*codeservice.BulkResult, error)
}

type CodeHandler struct {
	codeService Service
}

func New(codeService Service) *CodeHandler {
	return &CodeHandler{
		codeService: codeService,
	}
}

// AddCode godoc
//
//	@Summary		Submit a betting code
//	@Description	Submit a bookmaker code with odds and stake for verification
//	@Tags			Codes
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.SubmitCodeRequestDTO	true	"Code submission payload"
//	@Success		201		{object}	dto.CodeResponseDTO
//	@Failure		400		{object}	utils.ErrorResponse	"Invalid request body"
//	@Failure		401		{object}	utils.ErrorResponse	"User not authorized"
//	@Failure		429		{object}	utils.ErrorResponse	"Daily submission limit reached"
//	@Failure		500		{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/user/codes [post]
func (h *CodeHandler) AddCode(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req dto.SubmitCodeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	code, err := h.codeService.Submit(r.Context(), userID, req.Bookmaker, req.Code, req.Odds, dto.FromMinorUnits(req.Stake))
	if err != nil {
		switch {
		case errors.Is(err, codeservice.ErrInvalidOdds), errors.Is(err, codeservice.ErrInvalidStake):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, codeservice.ErrDailyLimitExceeded):
			utils.RespondWithError(w, http.StatusTooManyRequests, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewCodeResponse(code))
}

// GetCodes godoc
//
//	@Summary		List own betting codes
//	@Tags			Codes
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.CodeResponseDTO
//	@Failure		401	{object}	utils.ErrorResponse	"User not authorized"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/user/codes [get]
func (h *CodeHandler) GetCodes(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	codes, err := h.codeService.GetCodes(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch codes")
		return
	}

	response := make([]dto.CodeResponseDTO, len(codes))
	for i := range codes {
		response[i] = dto.NewCodeResponse(&codes[i])
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

// GetPendingCodes godoc
//
//	@Summary		List pending codes for the admin's country
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		dto.CodeResponseDTO
//	@Failure		403	{object}	utils.ErrorResponse	"Forbidden"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/admin/codes/pending [get]
func (h *CodeHandler) GetPendingCodes(w http.ResponseWriter, r *http.Request) {
	country := auth.CountryFromContext(r.Context())

	codes, err := h.codeService.GetCountryCodes(r.Context(), country, codeservice.StatusPending)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch pending codes")
		return
	}

	response := make([]dto.CodeResponseDTO, len(codes))
	for i := range codes {
		response[i] = dto.NewCodeResponse(&codes[i])
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

// AnalyzeCode godoc
//
//	@Summary		Move a pending code into analysis
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"Code ID"
//	@Success		200	{object}	dto.CodeResponseDTO
//	@Failure		403	{object}	utils.ErrorResponse	"Cross-country access denied"
//	@Failure		404	{object}	utils.ErrorResponse	"Code not found"
//	@Failure		409	{object}	utils.ErrorResponse	"Code already verified"
//	@Failure		500	{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/admin/codes/{id}/analyze [post]
func (h *CodeHandler) AnalyzeCode(w http.ResponseWriter, r *http.Request) {
	codeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid code id")
		return
	}
	country := auth.CountryFromContext(r.Context())

	code, err := h.codeService.MarkAnalyzing(r.Context(), codeID, country)
	if err != nil {
		h.respondVerifyError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewCodeResponse(code))
}

// VerifyCode godoc
//
//	@Summary		Verify a betting code
//	@Description	Set the terminal outcome of a code; a won outcome credits the reward
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Code ID"
//	@Param			request	body		dto.VerifyCodeRequestDTO	true	"Outcome payload"
//	@Success		200		{object}	dto.CodeResponseDTO
//	@Failure		400		{object}	utils.ErrorResponse	"Invalid outcome"
//	@Failure		403		{object}	utils.ErrorResponse	"Cross-country access denied"
//	@Failure		404		{object}	utils.ErrorResponse	"Code not found"
//	@Failure		409		{object}	utils.ErrorResponse	"Code already verified"
//	@Failure		500		{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/admin/codes/{id}/verify [post]
func (h *CodeHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	codeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid code id")
		return
	}
	adminID := auth.UserIDFromContext(r.Context())
	country := auth.CountryFromContext(r.Context())

	var req dto.VerifyCodeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	code, err := h.codeService.Verify(r.Context(), codeID, adminID, country, req.Outcome, req.Note)
	if err != nil {
		h.respondVerifyError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewCodeResponse(code))
}

// BulkVerify godoc
//
//	@Summary		Verify every pending code of a user
//	@Description	Apply one outcome to all pending codes of a user; failures are reported per code
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.BulkVerifyRequestDTO	true	"Bulk verification payload"
//	@Success		200		{object}	dto.BulkVerifyResponseDTO
//	@Failure		400		{object}	utils.ErrorResponse	"Invalid request body"
//	@Failure		403		{object}	utils.ErrorResponse	"Cross-country access denied"
//	@Failure		404		{object}	utils.ErrorResponse	"User not found"
//	@Failure		500		{object}	utils.ErrorResponse	"Internal server error"
//	@Router			/api/admin/codes/bulk-verify [post]
func (h *CodeHandler) BulkVerify(w http.ResponseWriter, r *http.Request) {
	adminID := auth.UserIDFromContext(r.Context())
	country := auth.CountryFromContext(r.Context())

	var req dto.BulkVerifyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.codeService.BulkVerify(r.Context(), req.UserID, adminID, country, req.Outcome, req.Note)
	if err != nil {
		h.respondVerifyError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.BulkVerifyResponseDTO{
		Verified: result.Verified,
		Failed:   result.Failed,
	})
}

func (h *CodeHandler) respondVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, codeservice.ErrCodeNotFound), errors.Is(err, codeservice.ErrUserNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, codeservice.ErrCrossCountryAccess):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, codeservice.ErrAlreadyVerified):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, codeservice.ErrInvalidOutcome):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
