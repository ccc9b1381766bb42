package coderepo

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

const codeColumns = "id, user_id, bookmaker, code, odds, stake, potential_winnings, status, admin_note, verified_by, verified_at, created_at"

func scanCode(row pgx.Row) (*domain.BettingCode, error) {
	var c domain.BettingCode
	err := row.Scan(&c.ID, &c.UserID, &c.Bookmaker, &c.Code, &c.Odds, &c.Stake,
		&c.PotentialWinnings, &c.Status, &c.AdminNote, &c.VerifiedBy, &c.VerifiedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) GetByID(ctx context.Context, codeID int) (*domain.BettingCode, error) {
	query := `
        SELECT ` + codeColumns + `
        FROM betting_codes
        WHERE id = $1
    `
	code, err := scanCode(r.db.QueryRow(ctx, query, codeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find betting code", zap.Error(err))
		return nil, err
	}
	return code, nil
}

func (r *Repository) Save(ctx context.Context, code *domain.BettingCode) error {
	query := `
        INSERT INTO betting_codes (user_id, bookmaker, code, odds, stake, potential_winnings, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, query, code.UserID, code.Bookmaker, code.Code,
			code.Odds, code.Stake, code.PotentialWinnings, code.Status)
		if err := row.Scan(&code.ID, &code.CreatedAt); err != nil {
			zap.L().Error("can't save betting code", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Repository) FindByUserID(ctx context.Context, userID int) ([]domain.BettingCode, error) {
	query := `
        SELECT ` + codeColumns + `
        FROM betting_codes
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	return r.queryMany(ctx, query, userID)
}

func (r *Repository) FindPendingByUserID(ctx context.Context, userID int) ([]domain.BettingCode, error) {
	query := `
        SELECT ` + codeColumns + `
        FROM betting_codes
        WHERE user_id = $1 AND status = 'pending'
        ORDER BY created_at ASC
    `
	return r.queryMany(ctx, query, userID)
}

// FindByCountry lists codes owned by users of one country, newest first.
// An empty status matches every status.
func (r *Repository) FindByCountry(ctx context.Context, country string, status string) ([]domain.BettingCode, error) {
	query := `
        SELECT bc.id, bc.user_id, bc.bookmaker, bc.code, bc.odds, bc.stake, bc.potential_winnings,
               bc.status, bc.admin_note, bc.verified_by, bc.verified_at, bc.created_at
        FROM betting_codes bc
        JOIN users u ON u.id = bc.user_id
        WHERE u.country = $1 AND ($2 = '' OR bc.status = $2)
        ORDER BY bc.created_at DESC
    `
	return r.queryMany(ctx, query, country, status)
}

// CountByUserSince backs the daily submission limit.
func (r *Repository) CountByUserSince(ctx context.Context, userID int, since time.Time) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM betting_codes
        WHERE user_id = $1 AND created_at >= $2
    `
	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		zap.L().Error("can't count betting codes", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *Repository) SetStatus(ctx context.Context, codeID int, status string) error {
	query := `
        UPDATE betting_codes
        SET status = $1
        WHERE id = $2
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, status, codeID)
		if err != nil {
			zap.L().Error("failed to update betting code status", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Repository) SetVerified(ctx context.Context, codeID int, status string, adminID int, note string, verifiedAt time.Time) error {
	query := `
        UPDATE betting_codes
        SET status = $1, verified_by = $2, admin_note = $3, verified_at = $4
        WHERE id = $5
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, status, adminID, note, verifiedAt, codeID)
		if err != nil {
			zap.L().Error("failed to verify betting code", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *Repository) queryMany(ctx context.Context, query string, args ...any) ([]domain.BettingCode, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("can't get betting codes", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var codes []domain.BettingCode
	for rows.Next() {
		code, err := scanCode(rows)
		if err != nil {
			zap.L().Error("can't scan betting code row", zap.Error(err))
			return nil, err
		}
		codes = append(codes, *code)
	}
	return codes, rows.Err()
}
