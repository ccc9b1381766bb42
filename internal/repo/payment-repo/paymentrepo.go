package paymentrepo

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

const paymentColumns = "id, user_id, reference, amount, currency, status, method, type, verified_by, verified_at, created_at"

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.Reference, &p.Amount, &p.Currency, &p.Status,
		&p.Method, &p.Type, &p.VerifiedBy, &p.VerifiedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `
        SELECT ` + paymentColumns + `
        FROM payments
        WHERE reference = $1
    `
	p, err := scanPayment(r.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find payment", zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *Repository) Save(ctx context.Context, p *domain.Payment) error {
	query := `
        INSERT INTO payments (user_id, reference, amount, currency, status, method, type)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, query, p.UserID, p.Reference, p.Amount, p.Currency, p.Status, p.Method, p.Type)
		if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
			zap.L().Error("can't save payment", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, reference string, status string, verifiedBy *int, verifiedAt *time.Time) error {
	query := `
        UPDATE payments
        SET status = $1, verified_by = $2, verified_at = $3
        WHERE reference = $4
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, status, verifiedBy, verifiedAt, reference)
		if err != nil {
			zap.L().Error("failed to update payment status", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Repository) FindPendingWithdrawalsByCountry(ctx context.Context, country string) ([]domain.Payment, error) {
	query := `
        SELECT p.id, p.user_id, p.reference, p.amount, p.currency, p.status, p.method, p.type, p.verified_by, p.verified_at, p.created_at
        FROM payments p
        JOIN users u ON u.id = p.user_id
        WHERE u.country = $1 AND p.status = 'pending' AND p.type = 'withdrawal'
        ORDER BY p.created_at ASC
    `
	rows, err := r.db.Query(ctx, query, country)
	if err != nil {
		zap.L().Error("can't get pending withdrawals", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			zap.L().Error("can't scan payment row", zap.Error(err))
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
