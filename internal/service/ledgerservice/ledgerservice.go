package ledgerservice

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/internal/pg"
)

const (
	TypeDeposit             = "deposit"
	TypeWithdrawal          = "withdrawal"
	TypeReward              = "reward"
	TypeRegistrationPayment = "registration_payment"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// driftTolerance is the largest cached-vs-computed divergence treated as
// rounding noise. Anything above it is a concurrency bug somewhere else
// and gets self-healed and counted.
var driftTolerance = decimal.New(1, -2)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnknownType         = errors.New("unknown transaction type")
)

type UserRepo interface {
	GetByID(ctx context.Context, userID int) (*domain.User, error)
	GetForUpdate(ctx context.Context, userID int) (*domain.User, error)
	UpdateBalance(ctx context.Context, userID int, balance decimal.Decimal) (*domain.User, error)
}

type TransactionRepo interface {
	FindByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	FindCompletedByUserID(ctx context.Context, userID int) ([]domain.Transaction, error)
	Save(ctx context.Context, t *domain.Transaction) error
	SetStatus(ctx context.Context, id int, status string, completedAt *time.Time) error
}

type Publisher interface {
	Publish(event notify.Event)
}

// Service owns the users.balance column. Every balance mutation in the
// module funnels through Apply or Reconcile; the cached column is only a
// projection of the completed-transaction log.
type Service struct {
	userRepo        UserRepo
	transactionRepo TransactionRepo
	txManager       pg.TXManager
	bus             Publisher

	driftCount atomic.Int64
}

func New(userRepo UserRepo, transactionRepo TransactionRepo, txManager pg.TXManager, bus Publisher) *Service {
	return &Service{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		txManager:       txManager,
		bus:             bus,
	}
}

// Delta is the signed balance effect of one completed transaction.
func Delta(t *domain.Transaction) (decimal.Decimal, error) {
	switch t.Type {
	case TypeReward, TypeDeposit:
		return t.Amount, nil
	case TypeWithdrawal:
		return t.Amount.Add(t.Fee).Neg(), nil
	case TypeRegistrationPayment:
		// Registration fees are house revenue, not user funds.
		return decimal.Zero, nil
	}
	return decimal.Zero, ErrUnknownType
}

// ComputeBalance derives the balance from the transaction log. Pure
// function of the completed set; decimal arithmetic end to end.
func (s *Service) ComputeBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	transactions, err := s.transactionRepo.FindCompletedByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to load transaction log", zap.Error(err))
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for i := range transactions {
		delta, err := Delta(&transactions[i])
		if err != nil {
			return decimal.Zero, err
		}
		balance = balance.Add(delta)
	}
	return balance, nil
}

// Balance returns the user with the cached balance projection.
func (s *Service) Balance(ctx context.Context, userID int) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Reconcile compares the computed balance against the cached one and
// overwrites the cache when they diverge beyond the tolerance. Drift never
// errors; it is healed, logged and counted.
func (s *Service) Reconcile(ctx context.Context, userID int) (decimal.Decimal, error) {
	var computed decimal.Decimal
	var cached decimal.Decimal
	var country string
	var drifted bool
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		computed, err = s.ComputeBalance(ctx, userID)
		if err != nil {
			return err
		}

		if computed.Sub(user.Balance).Abs().LessThanOrEqual(driftTolerance) {
			return nil
		}

		drifted = true
		cached = user.Balance
		country = user.Country
		s.driftCount.Add(1)
		zap.L().Warn("balance drift detected, self-healing",
			zap.Int("userID", userID),
			zap.String("cached", user.Balance.String()),
			zap.String("computed", computed.String()),
		)
		_, err = s.userRepo.UpdateBalance(ctx, userID, computed)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if drifted {
		s.bus.Publish(notify.Event{
			Type:    notify.EventBalanceDrift,
			Country: country,
			Payload: map[string]any{
				"user_id":  userID,
				"cached":   cached.String(),
				"computed": computed.String(),
			},
		})
	}
	return computed, nil
}

// DriftCount reports how many drift corrections this process has made.
func (s *Service) DriftCount() int64 {
	return s.driftCount.Load()
}

// Apply commits one completed transaction and its balance delta as a
// single atomic unit: lock the user row, write the transaction if its
// reference is new, move the cached balance. Replays of an already
// completed reference return the current user with no further effect.
//
// A withdrawal that overdraws the balance is recorded as failed (that
// write commits) and surfaced as ErrInsufficientBalance.
func (s *Service) Apply(ctx context.Context, t *domain.Transaction) (*domain.User, error) {
	if _, err := Delta(t); err != nil {
		return nil, err
	}

	var user *domain.User
	var applyErr error
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		existing, err := s.transactionRepo.FindByReference(ctx, t.PaymentReference)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == StatusCompleted {
			*t = *existing
			user, err = s.userRepo.GetByID(ctx, t.UserID)
			return err
		}

		locked, err := s.userRepo.GetForUpdate(ctx, t.UserID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrUserNotFound
		}

		if t.Type == TypeWithdrawal {
			total := t.Amount.Add(t.Fee)
			if locked.Balance.LessThan(total) {
				zap.L().Info("withdrawal exceeds balance, marking failed",
					zap.Int("userID", t.UserID),
					zap.String("requested", total.String()),
					zap.String("balance", locked.Balance.String()),
				)
				applyErr = ErrInsufficientBalance
				if existing != nil {
					return s.transactionRepo.SetStatus(ctx, existing.ID, StatusFailed, nil)
				}
				t.Status = StatusFailed
				return s.transactionRepo.Save(ctx, t)
			}
		}

		now := time.Now()
		t.Status = StatusCompleted
		t.CompletedAt = &now
		if existing != nil {
			t.ID = existing.ID
			if err := s.transactionRepo.SetStatus(ctx, existing.ID, StatusCompleted, &now); err != nil {
				return err
			}
		} else {
			if err := s.transactionRepo.Save(ctx, t); err != nil {
				return err
			}
		}

		delta, err := Delta(t)
		if err != nil {
			return err
		}
		user, err = s.userRepo.UpdateBalance(ctx, t.UserID, locked.Balance.Add(delta))
		return err
	})
	if err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	return user, nil
}
