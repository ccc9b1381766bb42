package transactionrepo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/pg"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface, *pg.MockTXManager) {
	ctrl := gomock.NewController(t)
	mockTxManager := pg.NewMockTXManager(ctrl)

	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB, mockTxManager)
	defer mockDB.Close()
	defer ctrl.Finish()

	return repo, mockDB, mockTxManager
}

func txRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "user_id", "type", "amount", "fee", "status", "payment_method",
		"payment_reference", "description", "currency", "created_at", "completed_at"}).
		AddRow(t.ID, t.UserID, t.Type, t.Amount, t.Fee, t.Status, t.PaymentMethod,
			t.PaymentReference, t.Description, t.Currency, t.CreatedAt, t.CompletedAt)
}

func TestRepository_FindByReference(t *testing.T) {
	repo, mock, _ := NewMock(t)

	expected := &domain.Transaction{
		ID: 1, UserID: 1, Type: "reward", Amount: decimal.RequireFromString("6.00"),
		Fee: decimal.Zero, Status: "completed", PaymentReference: "WIN-5-20260101000000",
		Currency: "NGN", CreatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_reference = $1")).
		WithArgs("WIN-5-20260101000000").
		WillReturnRows(txRow(expected))

	transaction, err := repo.FindByReference(context.Background(), "WIN-5-20260101000000")
	assert.NoError(t, err)
	assert.Equal(t, expected.PaymentReference, transaction.PaymentReference)
	assert.True(t, expected.Amount.Equal(transaction.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByReferenceMissing(t *testing.T) {
	repo, mock, _ := NewMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_reference = $1")).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	transaction, err := repo.FindByReference(context.Background(), "NOPE")
	assert.NoError(t, err)
	assert.Nil(t, transaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindCompletedByUserID(t *testing.T) {
	repo, mock, _ := NewMock(t)

	rows := pgxmock.NewRows([]string{"id", "user_id", "type", "amount", "fee", "status", "payment_method",
		"payment_reference", "description", "currency", "created_at", "completed_at"}).
		AddRow(1, 1, "deposit", decimal.RequireFromString("50.00"), decimal.Zero, "completed", "card",
			"PAY-1", "", "NGN", time.Now(), (*time.Time)(nil)).
		AddRow(2, 1, "withdrawal", decimal.RequireFromString("20.00"), decimal.RequireFromString("1.00"), "completed", "bank_transfer",
			"WD-1", "", "NGN", time.Now(), (*time.Time)(nil))

	mock.ExpectQuery(regexp.QuoteMeta("status = 'completed'")).
		WithArgs(1).
		WillReturnRows(rows)

	transactions, err := repo.FindCompletedByUserID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, transactions, 2)
	assert.Equal(t, "deposit", transactions[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Save(t *testing.T) {
	repo, mock, txManager := NewMock(t)

	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(1, "withdrawal", decimal.RequireFromString("20.00"), decimal.RequireFromString("1.00"),
			"pending", "bank_transfer", "WD-1", "Withdrawal request", "NGN", (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(9, now))

	transaction := &domain.Transaction{
		UserID: 1, Type: "withdrawal", Amount: decimal.RequireFromString("20.00"),
		Fee: decimal.RequireFromString("1.00"), Status: "pending", PaymentMethod: "bank_transfer",
		PaymentReference: "WD-1", Description: "Withdrawal request", Currency: "NGN",
	}
	err := repo.Save(context.Background(), transaction)
	assert.NoError(t, err)
	assert.Equal(t, 9, transaction.ID)
	assert.Equal(t, now, transaction.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetStatus(t *testing.T) {
	repo, mock, txManager := NewMock(t)

	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs("completed", &now, 9).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetStatus(context.Background(), 9, "completed", &now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
