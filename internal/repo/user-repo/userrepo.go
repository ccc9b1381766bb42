package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
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

const userColumns = "id, email, password_hash, name, country, role, balance, status, created_at"

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Country, &user.Role, &user.Balance, &user.Status, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetByID(ctx context.Context, userID int) (*domain.User, error) {
	query := `
        SELECT ` + userColumns + `
        FROM users
        WHERE id = $1
    `
	user, err := r.scanUser(r.db.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("failed to get user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
        SELECT ` + userColumns + `
        FROM users
        WHERE email = $1
    `
	user, err := r.scanUser(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("failed to get user by email", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// GetForUpdate takes a row-level lock on the user. Ledger mutations for one
// user are serialized on this lock; callers must already be inside a
// TXManager.Begin unit.
func (r *Repository) GetForUpdate(ctx context.Context, userID int) (*domain.User, error) {
	query := `
        SELECT ` + userColumns + `
        FROM users
        WHERE id = $1
        FOR UPDATE
    `
	user, err := r.scanUser(r.db.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("failed to lock user row", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *Repository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
        INSERT INTO users (email, password_hash, name, country, role, balance, status)
        VALUES ($1, $2, $3, $4, $5, 0, $6)
        RETURNING ` + userColumns + `
    `
	created, err := r.scanUser(r.db.QueryRow(ctx, query, user.Email, user.PasswordHash, user.Name, user.Country, user.Role, user.Status))
	if err != nil {
		zap.L().Error("failed to create user", zap.Error(err))
		return nil, err
	}
	return created, nil
}

// UpdateBalance is the only write path for the cached balance column. It is
// reachable solely through the ledger service.
func (r *Repository) UpdateBalance(ctx context.Context, userID int, balance decimal.Decimal) (*domain.User, error) {
	query := `
        UPDATE users
        SET balance = $1
        WHERE id = $2
        RETURNING ` + userColumns + `
    `
	user, err := r.scanUser(r.db.QueryRow(ctx, query, balance, userID))
	if err != nil {
		zap.L().Error("failed to update user balance", zap.Error(err))
		return nil, err
	}
	return user, nil
}
