package transactionrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/pg"
)

type Repository struct {
	db        pg.Database
	txManager pg.TXManager
}

func New(db pg.Database, txManager pg.TXManager) *Repository {
	return &Repository{
		db:        db,
		txManager: txManager,
	}
}

const txColumns = "id, user_id, type, amount, fee, status, payment_method, payment_reference, description, currency, created_at, completed_at"

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Fee, &t.Status, &t.PaymentMethod,
		&t.PaymentReference, &t.Description, &t.Currency, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) FindByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `
        SELECT ` + txColumns + `
        FROM transactions
        WHERE payment_reference = $1
    `
	t, err := scanTransaction(r.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find transaction", zap.Error(err))
		return nil, err
	}
	return t, nil
}

// FindCompletedByUserID returns the user's slice of the ledger truth: every
// completed transaction, oldest first.
func (r *Repository) FindCompletedByUserID(ctx context.Context, userID int) ([]domain.Transaction, error) {
	query := `
        SELECT ` + txColumns + `
        FROM transactions
        WHERE user_id = $1 AND status = 'completed'
        ORDER BY created_at ASC
    `
	return r.queryMany(ctx, query, userID)
}

func (r *Repository) FindByUserID(ctx context.Context, userID int) ([]domain.Transaction, error) {
	query := `
        SELECT ` + txColumns + `
        FROM transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	return r.queryMany(ctx, query, userID)
}

func (r *Repository) FindWithdrawalsByUserID(ctx context.Context, userID int) ([]domain.Transaction, error) {
	query := `
        SELECT ` + txColumns + `
        FROM transactions
        WHERE user_id = $1 AND type = 'withdrawal'
        ORDER BY created_at DESC
    `
	return r.queryMany(ctx, query, userID)
}

func (r *Repository) queryMany(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("can't get transactions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			zap.L().Error("can't scan transaction row", zap.Error(err))
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (r *Repository) Save(ctx context.Context, t *domain.Transaction) error {
	query := `
        INSERT INTO transactions (user_id, type, amount, fee, status, payment_method, payment_reference, description, currency, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, query, t.UserID, t.Type, t.Amount, t.Fee, t.Status,
			t.PaymentMethod, t.PaymentReference, t.Description, t.Currency, t.CompletedAt)
		if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
			zap.L().Error("can't save transaction", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// SetStatus moves a transaction into its terminal status exactly once.
// Rows already in a terminal status are left untouched.
func (r *Repository) SetStatus(ctx context.Context, id int, status string, completedAt *time.Time) error {
	query := `
        UPDATE transactions
        SET status = $1, completed_at = $2
        WHERE id = $3 AND status = 'pending'
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, status, completedAt, id)
		if err != nil {
			zap.L().Error("failed to update transaction status", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}
