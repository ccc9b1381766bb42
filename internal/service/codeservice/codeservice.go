package codeservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/internal/pg"
	"github.com/kilcode/kilcode/internal/service/ledgerservice"
)

const (
	// StatusPending is the submission state; the outcome track closes it
	// as won/lost and the analysis track routes it through analyzing to
	// approved/rejected. Terminal states are never left again.
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusWon       = "won"
	StatusLost      = "lost"
)

// RewardMultiplier sets the payout for a won code to odds × 2. Business
// policy inherited as-is; change it here, not in the ledger.
var RewardMultiplier = decimal.NewFromInt(2)

var (
	ErrCodeNotFound       = errors.New("betting code not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("betting code already verified")
	ErrCrossCountryAccess = errors.New("not authorized for this country")
	ErrInvalidOutcome     = errors.New("invalid verification outcome")
	ErrInvalidOdds        = errors.New("odds must be at least 1.0")
	ErrInvalidStake       = errors.New("stake must be positive")
	ErrDailyLimitExceeded = errors.New("daily submission limit reached")
)

type Repo interface {
	GetByID(ctx context.Context, codeID int) (*domain.BettingCode, error)
	Save(ctx context.Context, code *domain.BettingCode) error
	FindByUserID(ctx context.Context, userID int) ([]domain.BettingCode, error)
	FindPendingByUserID(ctx context.Context, userID int) ([]domain.BettingCode, error)
	FindByCountry(ctx context.Context, country string, status string) ([]domain.BettingCode, error)
	CountByUserSince(ctx context.Context, userID int, since time.Time) (int, error)
	SetStatus(ctx context.Context, codeID int, status string) error
	SetVerified(ctx context.Context, codeID int, status string, adminID int, note string, verifiedAt time.Time) error
}

type UserRepo interface {
	GetByID(ctx context.Context, userID int) (*domain.User, error)
}

type Ledger interface {
	Apply(ctx context.Context, t *domain.Transaction) (*domain.User, error)
}

type Publisher interface {
	Publish(event notify.Event)
}

type Service struct {
	repo       Repo
	userRepo   UserRepo
	ledger     Ledger
	txManager  pg.TXManager
	bus        Publisher
	dailyLimit int
}

func New(repo Repo, userRepo UserRepo, ledger Ledger, txManager pg.TXManager, bus Publisher, dailyLimit int) *Service {
	return &Service{
		repo:       repo,
		userRepo:   userRepo,
		ledger:     ledger,
		txManager:  txManager,
		bus:        bus,
		dailyLimit: dailyLimit,
	}
}

func IsTerminal(status string) bool {
	switch status {
	case StatusWon, StatusLost, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func validOutcome(outcome string) bool {
	return IsTerminal(outcome)
}

// Submit records a new pending code. The potential winnings are fixed at
// submission time (odds × stake) and never recomputed.
func (s *Service) Submit(ctx context.Context, userID int, bookmaker, codeValue string, odds, stake decimal.Decimal) (*domain.BettingCode, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if odds.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidOdds
	}
	if !stake.IsPositive() {
		return nil, ErrInvalidStake
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := s.repo.CountByUserSince(ctx, userID, startOfDay)
	if err != nil {
		return nil, err
	}
	if count >= s.dailyLimit {
		zap.L().Info("daily submission limit reached", zap.Int("userID", userID), zap.Int("limit", s.dailyLimit))
		return nil, ErrDailyLimitExceeded
	}

	code := &domain.BettingCode{
		UserID:            userID,
		Bookmaker:         bookmaker,
		Code:              codeValue,
		Odds:              odds,
		Stake:             stake,
		PotentialWinnings: odds.Mul(stake),
		Status:            StatusPending,
	}
	if err := s.repo.Save(ctx, code); err != nil {
		zap.L().Error("can't save betting code", zap.Error(err))
		return nil, err
	}

	s.bus.Publish(notify.Event{
		Type:    notify.EventCodeSubmitted,
		Country: user.Country,
		Payload: map[string]any{
			"code_id":            code.ID,
			"user_id":            userID,
			"bookmaker":          bookmaker,
			"code":               codeValue,
			"odds":               odds.String(),
			"stake":              stake.String(),
			"potential_winnings": code.PotentialWinnings.String(),
		},
	})
	return code, nil
}

// MarkAnalyzing moves a pending code onto the analysis track.
func (s *Service) MarkAnalyzing(ctx context.Context, codeID int, adminCountry string) (*domain.BettingCode, error) {
	var code *domain.BettingCode
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		code, err = s.repo.GetByID(ctx, codeID)
		if err != nil {
			return err
		}
		if code == nil {
			return ErrCodeNotFound
		}
		user, err := s.userRepo.GetByID(ctx, code.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.Country != adminCountry {
			return ErrCrossCountryAccess
		}
		if IsTerminal(code.Status) {
			return ErrAlreadyVerified
		}
		if err := s.repo.SetStatus(ctx, codeID, StatusAnalyzing); err != nil {
			return err
		}
		code.Status = StatusAnalyzing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// Verify closes a code with a terminal outcome. The status flip and, for a
// won code, the reward transaction commit as one atomic unit; if the reward
// cannot be applied the status change rolls back with it.
func (s *Service) Verify(ctx context.Context, codeID, adminID int, adminCountry, outcome, note string) (*domain.BettingCode, error) {
	if !validOutcome(outcome) {
		return nil, ErrInvalidOutcome
	}

	var code *domain.BettingCode
	var user *domain.User
	var reward *domain.Transaction
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		code, err = s.repo.GetByID(ctx, codeID)
		if err != nil {
			return err
		}
		if code == nil {
			return ErrCodeNotFound
		}

		user, err = s.userRepo.GetByID(ctx, code.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.Country != adminCountry {
			zap.L().Info("cross-country verification rejected",
				zap.Int("codeID", codeID),
				zap.String("adminCountry", adminCountry),
				zap.String("userCountry", user.Country),
			)
			return ErrCrossCountryAccess
		}
		if IsTerminal(code.Status) {
			return ErrAlreadyVerified
		}

		now := time.Now()
		if outcome == StatusWon {
			reward = &domain.Transaction{
				UserID:           user.ID,
				Type:             ledgerservice.TypeReward,
				Amount:           code.Odds.Mul(RewardMultiplier),
				PaymentMethod:    "system",
				PaymentReference: fmt.Sprintf("WIN-%d-%s", code.ID, now.UTC().Format("20060102150405")),
				Description:      fmt.Sprintf("Reward for winning bet %s", code.Code),
				Currency:         domain.CurrencyFor(user.Country),
			}
			user, err = s.ledger.Apply(ctx, reward)
			if err != nil {
				return err
			}
		}

		if err := s.repo.SetVerified(ctx, codeID, outcome, adminID, note, now); err != nil {
			return err
		}
		code.Status = outcome
		code.VerifiedBy = &adminID
		code.VerifiedAt = &now
		code.AdminNote = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"code_id":       code.ID,
		"status":        code.Status,
		"note":          note,
		"reward_amount": "0",
		"new_balance":   user.Balance.String(),
	}
	if reward != nil {
		payload["reward_amount"] = reward.Amount.String()
		payload["transaction_id"] = reward.ID
	}
	s.bus.Publish(notify.Event{
		Type:    notify.EventCodeVerified,
		UserID:  user.ID,
		Country: user.Country,
		Payload: payload,
	})
	return code, nil
}

// BulkResult reports a bulk verification batch: which codes closed and
// which failed, so no failure is silently absorbed.
type BulkResult struct {
	Verified []int
	Failed   map[int]string
}

// BulkVerify closes every pending code of one user with the same outcome.
// Each code is its own atomic unit; a failing code leaves the rest of the
// batch untouched and is reported by id.
func (s *Service) BulkVerify(ctx context.Context, userID, adminID int, adminCountry, outcome, note string) (*BulkResult, error) {
	if !validOutcome(outcome) {
		return nil, ErrInvalidOutcome
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Country != adminCountry {
		return nil, ErrCrossCountryAccess
	}

	if note == "" {
		note = fmt.Sprintf("Bulk verification: %s", outcome)
	}

	codes, err := s.repo.FindPendingByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Failed: make(map[int]string)}
	for _, code := range codes {
		if _, err := s.Verify(ctx, code.ID, adminID, adminCountry, outcome, note); err != nil {
			zap.L().Error("bulk verification failed for code", zap.Int("codeID", code.ID), zap.Error(err))
			result.Failed[code.ID] = err.Error()
			continue
		}
		result.Verified = append(result.Verified, code.ID)
	}
	return result, nil
}

func (s *Service) GetCodes(ctx context.Context, userID int) ([]domain.BettingCode, error) {
	codes, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get betting codes", zap.Error(err))
		return nil, err
	}
	return codes, nil
}

func (s *Service) GetCountryCodes(ctx context.Context, country, status string) ([]domain.BettingCode, error) {
	codes, err := s.repo.FindByCountry(ctx, country, status)
	if err != nil {
		zap.L().Error("failed to get country betting codes", zap.Error(err))
		return nil, err
	}
	return codes, nil
}
