package paymentservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/internal/pg"
	"github.com/kilcode/kilcode/internal/service/ledgerservice"
	"github.com/kilcode/kilcode/pkg/clients"
	"github.com/kilcode/kilcode/pkg/validate"
)

const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	TypeRegistration = "registration"
	TypeWithdrawal   = "withdrawal"

	// Provider-side statuses as reported on webhooks and verify calls.
	ProviderSuccess   = "success"
	ProviderFailed    = "failed"
	ProviderAbandoned = "abandoned"
)

var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrAmountMismatch        = errors.New("payment amount mismatch")
	ErrCurrencyMismatch      = errors.New("payment currency mismatch")
	ErrUnknownProviderStatus = errors.New("unknown provider status")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidDestination    = errors.New("invalid withdrawal destination")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
)

type TransactionRepo interface {
	FindByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	Save(ctx context.Context, t *domain.Transaction) error
	SetStatus(ctx context.Context, id int, status string, completedAt *time.Time) error
	FindWithdrawalsByUserID(ctx context.Context, userID int) ([]domain.Transaction, error)
}

type PaymentRepo interface {
	FindByReference(ctx context.Context, reference string) (*domain.Payment, error)
	Save(ctx context.Context, p *domain.Payment) error
	SetStatus(ctx context.Context, reference string, status string, verifiedBy *int, verifiedAt *time.Time) error
	FindPendingWithdrawalsByCountry(ctx context.Context, country string) ([]domain.Payment, error)
}

type UserRepo interface {
	GetByID(ctx context.Context, userID int) (*domain.User, error)
}

type Ledger interface {
	Apply(ctx context.Context, t *domain.Transaction) (*domain.User, error)
}

type ProviderClient interface {
	VerifyTransaction(ctx context.Context, reference string) (*clients.ProviderVerification, error)
}

type Publisher interface {
	Publish(event notify.Event)
}

// Service turns externally verified payment events into ledger effects
// exactly once.
type Service struct {
	transactionRepo TransactionRepo
	paymentRepo     PaymentRepo
	userRepo        UserRepo
	ledger          Ledger
	provider        ProviderClient
	txManager       pg.TXManager
	bus             Publisher
}

func New(transactionRepo TransactionRepo, paymentRepo PaymentRepo, userRepo UserRepo, ledger Ledger, provider ProviderClient, txManager pg.TXManager, bus Publisher) *Service {
	return &Service{
		transactionRepo: transactionRepo,
		paymentRepo:     paymentRepo,
		userRepo:        userRepo,
		ledger:          ledger,
		provider:        provider,
		txManager:       txManager,
		bus:             bus,
	}
}

// WithdrawalFee is the country fee schedule: Nigeria pays 1.5% with a 100
// NGN floor, Ghana 1% with a 1 GHS floor.
func WithdrawalFee(amount decimal.Decimal, country string) decimal.Decimal {
	switch country {
	case domain.CountryGhana:
		return decimal.Max(decimal.NewFromInt(1), amount.Mul(decimal.RequireFromString("0.01")))
	default:
		return decimal.Max(decimal.NewFromInt(100), amount.Mul(decimal.RequireFromString("0.015")))
	}
}

// ReconcilePayment applies one provider verification result. Replays of an
// already completed reference return the transaction unchanged; a success
// marks payment and transaction and moves the balance through the ledger,
// all in one atomic unit; failed/abandoned close both records with no
// ledger effect. An amount or currency mismatch changes nothing.
func (s *Service) ReconcilePayment(ctx context.Context, reference, providerStatus string, amount decimal.Decimal, currency string) (*domain.Transaction, error) {
	var transaction *domain.Transaction
	var user *domain.User
	var reconcileErr error

	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		transaction, err = s.transactionRepo.FindByReference(ctx, reference)
		if err != nil {
			return err
		}
		if transaction == nil {
			return ErrTransactionNotFound
		}
		if transaction.Status == ledgerservice.StatusCompleted {
			zap.L().Info("payment already reconciled, replay ignored", zap.String("reference", reference))
			return nil
		}

		switch providerStatus {
		case ProviderSuccess:
			if !amount.Equal(transaction.Amount) {
				zap.L().Error("provider amount mismatch",
					zap.String("reference", reference),
					zap.String("expected", transaction.Amount.String()),
					zap.String("reported", amount.String()),
				)
				return ErrAmountMismatch
			}
			if currency != "" && currency != transaction.Currency {
				return ErrCurrencyMismatch
			}

			now := time.Now()
			if err := s.paymentRepo.SetStatus(ctx, reference, StatusSuccess, nil, &now); err != nil {
				return err
			}
			user, err = s.ledger.Apply(ctx, transaction)
			if errors.Is(err, ledgerservice.ErrInsufficientBalance) {
				// The failed transaction row must commit, not roll back.
				reconcileErr = err
				return s.paymentRepo.SetStatus(ctx, reference, StatusFailed, nil, &now)
			}
			return err

		case ProviderFailed, ProviderAbandoned:
			now := time.Now()
			if err := s.transactionRepo.SetStatus(ctx, transaction.ID, ledgerservice.StatusFailed, nil); err != nil {
				return err
			}
			if err := s.paymentRepo.SetStatus(ctx, reference, StatusFailed, nil, &now); err != nil {
				return err
			}
			transaction.Status = ledgerservice.StatusFailed
			return nil
		}
		return ErrUnknownProviderStatus
	})
	if err != nil {
		return nil, err
	}
	if reconcileErr != nil {
		return nil, reconcileErr
	}

	if user != nil {
		s.bus.Publish(notify.Event{
			Type:    notify.EventPaymentVerified,
			UserID:  user.ID,
			Country: user.Country,
			Payload: map[string]any{
				"reference":   reference,
				"status":      transaction.Status,
				"type":        transaction.Type,
				"amount":      transaction.Amount.String(),
				"currency":    transaction.Currency,
				"new_balance": user.Balance.String(),
			},
		})
	}
	return transaction, nil
}

// VerifyWithProvider asks the provider for the state of a reference and
// reconciles it. Transport failures leave the transaction pending and are
// surfaced as retryable; the caller repeats the call explicitly.
func (s *Service) VerifyWithProvider(ctx context.Context, reference string) (*domain.Transaction, error) {
	verification, err := s.provider.VerifyTransaction(ctx, reference)
	if err != nil {
		zap.L().Error("provider verification failed", zap.String("reference", reference), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	amount := decimal.NewFromInt(verification.Amount).Shift(-2)
	return s.ReconcilePayment(ctx, reference, verification.Status, amount, verification.Currency)
}

// InitiateWithdrawal opens a pending withdrawal: one pending transaction
// plus its payment mirror, sharing a fresh unique reference. The balance is
// pre-checked here; the authoritative check happens under the row lock when
// the withdrawal is applied.
func (s *Service) InitiateWithdrawal(ctx context.Context, userID int, amount decimal.Decimal, method, destination string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if method == "card" && !validate.IsCardNumber(destination) {
		return nil, ErrInvalidDestination
	}

	fee := WithdrawalFee(amount, user.Country)
	if user.Balance.LessThan(amount.Add(fee)) {
		return nil, ledgerservice.ErrInsufficientBalance
	}

	reference := "WD-" + uuid.NewString()
	transaction := &domain.Transaction{
		UserID:           userID,
		Type:             ledgerservice.TypeWithdrawal,
		Amount:           amount,
		Fee:              fee,
		Status:           ledgerservice.StatusPending,
		PaymentMethod:    method,
		PaymentReference: reference,
		Description:      "Withdrawal request",
		Currency:         domain.CurrencyFor(user.Country),
	}
	payment := &domain.Payment{
		UserID:    userID,
		Reference: reference,
		Amount:    amount,
		Currency:  transaction.Currency,
		Status:    StatusPending,
		Method:    method,
		Type:      TypeWithdrawal,
	}

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if err := s.transactionRepo.Save(ctx, transaction); err != nil {
			return err
		}
		return s.paymentRepo.Save(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(notify.Event{
		Type:    notify.EventWithdrawalRequested,
		Country: user.Country,
		Payload: map[string]any{
			"reference": reference,
			"user_id":   userID,
			"amount":    amount.String(),
			"fee":       fee.String(),
			"currency":  transaction.Currency,
			"method":    method,
		},
	})
	return transaction, nil
}

// InitiateRegistration opens the pending registration-fee records that a
// later provider webhook or verify call closes. Registration money is
// house revenue; reconciling it never credits the user balance.
func (s *Service) InitiateRegistration(ctx context.Context, userID int, amount decimal.Decimal, method string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	reference := "REG-" + uuid.NewString()
	transaction := &domain.Transaction{
		UserID:           userID,
		Type:             ledgerservice.TypeRegistrationPayment,
		Amount:           amount,
		Status:           ledgerservice.StatusPending,
		PaymentMethod:    method,
		PaymentReference: reference,
		Description:      "Registration payment",
		Currency:         domain.CurrencyFor(user.Country),
	}
	payment := &domain.Payment{
		UserID:    userID,
		Reference: reference,
		Amount:    amount,
		Currency:  transaction.Currency,
		Status:    StatusPending,
		Method:    method,
		Type:      TypeRegistration,
	}

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if err := s.transactionRepo.Save(ctx, transaction); err != nil {
			return err
		}
		return s.paymentRepo.Save(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *Service) GetWithdrawals(ctx context.Context, userID int) ([]domain.Transaction, error) {
	withdrawals, err := s.transactionRepo.FindWithdrawalsByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to fetch withdrawals", zap.Error(err))
		return nil, err
	}
	return withdrawals, nil
}

func (s *Service) GetPendingWithdrawals(ctx context.Context, country string) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.FindPendingWithdrawalsByCountry(ctx, country)
	if err != nil {
		zap.L().Error("failed to fetch pending withdrawals", zap.Error(err))
		return nil, err
	}
	return payments, nil
}
