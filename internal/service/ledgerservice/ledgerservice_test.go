package ledgerservice

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/internal/pg"
)

func NewMock(t *testing.T) (*Service, *MockUserRepo, *MockTransactionRepo, *MockPublisher) {
	ctrl := gomock.NewController(t)
	userRepo := NewMockUserRepo(ctrl)
	transactionRepo := NewMockTransactionRepo(ctrl)
	txManager := pg.NewMockTXManager(ctrl)
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()
	bus := NewMockPublisher(ctrl)
	service := New(userRepo, transactionRepo, txManager, bus)
	defer ctrl.Finish()
	return service, userRepo, transactionRepo, bus
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeBalance(t *testing.T) {
	service, _, transactionRepo, _ := NewMock(t)

	tests := []struct {
		name            string
		userID          int
		prepareMock     func()
		expectedBalance decimal.Decimal
		expectedError   error
	}{
		{
			name:   "Sums credits and debits",
			userID: 1,
			prepareMock: func() {
				transactionRepo.EXPECT().FindCompletedByUserID(gomock.Any(), 1).Return([]domain.Transaction{
					{Type: TypeReward, Amount: dec("6.00")},
					{Type: TypeDeposit, Amount: dec("100.00")},
					{Type: TypeWithdrawal, Amount: dec("40.00"), Fee: dec("1.50")},
					{Type: TypeRegistrationPayment, Amount: dec("25.00")},
				}, nil)
			},
			expectedBalance: dec("64.50"),
		},
		{
			name:   "Empty log is zero",
			userID: 2,
			prepareMock: func() {
				transactionRepo.EXPECT().FindCompletedByUserID(gomock.Any(), 2).Return(nil, nil)
			},
			expectedBalance: decimal.Zero,
		},
		{
			name:   "Repo error",
			userID: 1,
			prepareMock: func() {
				transactionRepo.EXPECT().FindCompletedByUserID(gomock.Any(), 1).Return(nil, errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			balance, err := service.ComputeBalance(context.Background(), tt.userID)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.True(t, tt.expectedBalance.Equal(balance), "want %s got %s", tt.expectedBalance, balance)
			}
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name          string
		transaction   *domain.Transaction
		prepareMock   func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo)
		expectedError error
		checkBalance  string
	}{
		{
			name: "Reward credits balance",
			transaction: &domain.Transaction{
				UserID: 1, Type: TypeReward, Amount: dec("6.00"), PaymentReference: "WIN-1-1",
			},
			prepareMock: func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo) {
				transactionRepo.EXPECT().FindByReference(gomock.Any(), "WIN-1-1").Return(nil, nil)
				userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).Return(&domain.User{ID: 1, Balance: dec("10.00")}, nil)
				transactionRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
				userRepo.EXPECT().UpdateBalance(gomock.Any(), 1, gomock.Any()).DoAndReturn(
					func(_ context.Context, userID int, balance decimal.Decimal) (*domain.User, error) {
						return &domain.User{ID: userID, Balance: balance}, nil
					},
				)
			},
			checkBalance: "16.00",
		},
		{
			name: "Replay of completed reference applies nothing",
			transaction: &domain.Transaction{
				UserID: 1, Type: TypeReward, Amount: dec("6.00"), PaymentReference: "WIN-1-1",
			},
			prepareMock: func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo) {
				transactionRepo.EXPECT().FindByReference(gomock.Any(), "WIN-1-1").Return(&domain.Transaction{
					ID: 7, UserID: 1, Type: TypeReward, Amount: dec("6.00"),
					PaymentReference: "WIN-1-1", Status: StatusCompleted,
				}, nil)
				userRepo.EXPECT().GetByID(gomock.Any(), 1).Return(&domain.User{ID: 1, Balance: dec("16.00")}, nil)
			},
			checkBalance: "16.00",
		},
		{
			name: "Withdrawal over balance marked failed",
			transaction: &domain.Transaction{
				UserID: 1, Type: TypeWithdrawal, Amount: dec("100.00"), Fee: dec("1.50"), PaymentReference: "WD-1",
			},
			prepareMock: func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo) {
				transactionRepo.EXPECT().FindByReference(gomock.Any(), "WD-1").Return(nil, nil)
				userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).Return(&domain.User{ID: 1, Balance: dec("50.00")}, nil)
				transactionRepo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, tr *domain.Transaction) error {
						assert.Equal(t, StatusFailed, tr.Status)
						return nil
					},
				)
			},
			expectedError: ErrInsufficientBalance,
		},
		{
			name: "Withdrawal within balance debits amount plus fee",
			transaction: &domain.Transaction{
				UserID: 1, Type: TypeWithdrawal, Amount: dec("40.00"), Fee: dec("1.50"), PaymentReference: "WD-2",
			},
			prepareMock: func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo) {
				transactionRepo.EXPECT().FindByReference(gomock.Any(), "WD-2").Return(nil, nil)
				userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).Return(&domain.User{ID: 1, Balance: dec("50.00")}, nil)
				transactionRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
				userRepo.EXPECT().UpdateBalance(gomock.Any(), 1, gomock.Any()).DoAndReturn(
					func(_ context.Context, userID int, balance decimal.Decimal) (*domain.User, error) {
						return &domain.User{ID: userID, Balance: balance}, nil
					},
				)
			},
			checkBalance: "8.50",
		},
		{
			name: "Pending transaction completed in place",
			transaction: &domain.Transaction{
				UserID: 1, Type: TypeWithdrawal, Amount: dec("10.00"), Fee: dec("1.00"), PaymentReference: "WD-3",
			},
			prepareMock: func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo) {
				transactionRepo.EXPECT().FindByReference(gomock.Any(), "WD-3").Return(&domain.Transaction{
					ID: 9, UserID: 1, Type: TypeWithdrawal, Amount: dec("10.00"), Fee: dec("1.00"),
					PaymentReference: "WD-3", Status: StatusPending,
				}, nil)
				userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).Return(&domain.User{ID: 1, Balance: dec("50.00")}, nil)
				transactionRepo.EXPECT().SetStatus(gomock.Any(), 9, StatusCompleted, gomock.Any()).Return(nil)
				userRepo.EXPECT().UpdateBalance(gomock.Any(), 1, gomock.Any()).DoAndReturn(
					func(_ context.Context, userID int, balance decimal.Decimal) (*domain.User, error) {
						return &domain.User{ID: userID, Balance: balance}, nil
					},
				)
			},
			checkBalance: "39.00",
		},
		{
			name: "Unknown user",
			transaction: &domain.Transaction{
				UserID: 42, Type: TypeReward, Amount: dec("1.00"), PaymentReference: "WIN-42-1",
			},
			prepareMock: func(userRepo *MockUserRepo, transactionRepo *MockTransactionRepo) {
				transactionRepo.EXPECT().FindByReference(gomock.Any(), "WIN-42-1").Return(nil, nil)
				userRepo.EXPECT().GetForUpdate(gomock.Any(), 42).Return(nil, nil)
			},
			expectedError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, userRepo, transactionRepo, _ := NewMock(t)
			tt.prepareMock(userRepo, transactionRepo)

			user, err := service.Apply(context.Background(), tt.transaction)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			assert.NoError(t, err)
			assert.True(t, dec(tt.checkBalance).Equal(user.Balance), "want %s got %s", tt.checkBalance, user.Balance)
		})
	}
}

func TestReconcile(t *testing.T) {
	t.Run("No drift within tolerance", func(t *testing.T) {
		service, userRepo, transactionRepo, _ := NewMock(t)
		userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).Return(&domain.User{ID: 1, Balance: dec("100.00")}, nil)
		transactionRepo.EXPECT().FindCompletedByUserID(gomock.Any(), 1).Return([]domain.Transaction{
			{Type: TypeDeposit, Amount: dec("100.00")},
		}, nil)

		computed, err := service.Reconcile(context.Background(), 1)
		assert.NoError(t, err)
		assert.True(t, dec("100.00").Equal(computed))
		assert.Equal(t, int64(0), service.DriftCount())
	})

	t.Run("Drift overwrites cache, bumps counter and notifies admins", func(t *testing.T) {
		service, userRepo, transactionRepo, bus := NewMock(t)
		userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).Return(&domain.User{ID: 1, Country: domain.CountryNigeria, Balance: dec("90.00")}, nil)
		transactionRepo.EXPECT().FindCompletedByUserID(gomock.Any(), 1).Return([]domain.Transaction{
			{Type: TypeDeposit, Amount: dec("100.00")},
		}, nil)
		userRepo.EXPECT().UpdateBalance(gomock.Any(), 1, gomock.Any()).DoAndReturn(
			func(_ context.Context, userID int, balance decimal.Decimal) (*domain.User, error) {
				assert.True(t, dec("100.00").Equal(balance))
				return &domain.User{ID: userID, Balance: balance}, nil
			},
		)
		bus.EXPECT().Publish(gomock.Any()).Do(func(event notify.Event) {
			assert.Equal(t, notify.EventBalanceDrift, event.Type)
			assert.Equal(t, domain.CountryNigeria, event.Country)
			payload := event.Payload.(map[string]any)
			assert.Equal(t, "90", payload["cached"])
			assert.Equal(t, "100", payload["computed"])
		})

		computed, err := service.Reconcile(context.Background(), 1)
		assert.NoError(t, err)
		assert.True(t, dec("100.00").Equal(computed))
		assert.Equal(t, int64(1), service.DriftCount())
	})

	t.Run("Unknown user", func(t *testing.T) {
		service, userRepo, _, _ := NewMock(t)
		userRepo.EXPECT().GetForUpdate(gomock.Any(), 7).Return(nil, nil)

		_, err := service.Reconcile(context.Background(), 7)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestBalanceInvariant(t *testing.T) {
	// After every Apply the cached balance must equal the balance computed
	// from the log. Replays the same sequence through both paths.
	service, userRepo, transactionRepo, _ := NewMock(t)

	log := []domain.Transaction{
		{UserID: 1, Type: TypeDeposit, Amount: dec("100.00"), PaymentReference: "DEP-1"},
		{UserID: 1, Type: TypeReward, Amount: dec("6.00"), PaymentReference: "WIN-1"},
		{UserID: 1, Type: TypeWithdrawal, Amount: dec("30.00"), Fee: dec("1.50"), PaymentReference: "WD-1"},
	}

	cached := decimal.Zero
	var completed []domain.Transaction
	for i := range log {
		tr := log[i]
		transactionRepo.EXPECT().FindByReference(gomock.Any(), tr.PaymentReference).Return(nil, nil)
		userRepo.EXPECT().GetForUpdate(gomock.Any(), 1).DoAndReturn(
			func(context.Context, int) (*domain.User, error) {
				return &domain.User{ID: 1, Balance: cached}, nil
			},
		)
		transactionRepo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, saved *domain.Transaction) error {
				completed = append(completed, *saved)
				return nil
			},
		)
		userRepo.EXPECT().UpdateBalance(gomock.Any(), 1, gomock.Any()).DoAndReturn(
			func(_ context.Context, userID int, balance decimal.Decimal) (*domain.User, error) {
				cached = balance
				return &domain.User{ID: userID, Balance: balance}, nil
			},
		)

		_, err := service.Apply(context.Background(), &tr)
		assert.NoError(t, err)

		transactionRepo.EXPECT().FindCompletedByUserID(gomock.Any(), 1).Return(completed, nil)
		computed, err := service.ComputeBalance(context.Background(), 1)
		assert.NoError(t, err)
		assert.True(t, computed.Equal(cached), "invariant broken: computed %s cached %s", computed, cached)
	}
}
