package userrepo

import (
	"context"
	"errors"
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

func userRows(user *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "email", "password_hash", "name", "country", "role", "balance", "status", "created_at"}).
		AddRow(user.ID, user.Email, user.PasswordHash, user.Name, user.Country, user.Role, user.Balance, user.Status, user.CreatedAt)
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock, _ := NewMock(t)

	expected := &domain.User{
		ID: 1, Email: "tipster@example.com", Country: domain.CountryNigeria,
		Role: "user", Balance: decimal.RequireFromString("25.50"),
		Status: "active", CreatedAt: time.Now(),
	}

	tests := []struct {
		name      string
		userID    int
		mockSetup func()
		expectErr bool
		result    *domain.User
	}{
		{
			name:   "Existing user",
			userID: 1,
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(userColumns)).
					WithArgs(1).
					WillReturnRows(userRows(expected))
			},
			result: expected,
		},
		{
			name:   "Missing user returns nil",
			userID: 99,
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(userColumns)).
					WithArgs(99).
					WillReturnError(pgx.ErrNoRows)
			},
			result: nil,
		},
		{
			name:   "Database error",
			userID: 1,
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(userColumns)).
					WithArgs(1).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			user, err := repo.GetByID(context.Background(), tt.userID)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if tt.result == nil {
				assert.Nil(t, user)
			} else {
				assert.Equal(t, tt.result.ID, user.ID)
				assert.True(t, tt.result.Balance.Equal(user.Balance))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_GetForUpdate(t *testing.T) {
	repo, mock, _ := NewMock(t)

	expected := &domain.User{
		ID: 1, Country: domain.CountryGhana, Role: "user",
		Balance: decimal.RequireFromString("10.00"), Status: "active", CreatedAt: time.Now(),
	}
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(1).
		WillReturnRows(userRows(expected))

	user, err := repo.GetForUpdate(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create(t *testing.T) {
	repo, mock, _ := NewMock(t)

	created := &domain.User{
		ID: 7, Email: "new@example.com", Country: domain.CountryNigeria,
		Role: "user", Balance: decimal.Zero, Status: "pending", CreatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("new@example.com", "hashed", "Ade", domain.CountryNigeria, "user", "pending").
		WillReturnRows(userRows(created))

	user, err := repo.Create(context.Background(), &domain.User{
		Email: "new@example.com", PasswordHash: "hashed", Name: "Ade",
		Country: domain.CountryNigeria, Role: "user", Status: "pending",
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.True(t, user.Balance.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateBalance(t *testing.T) {
	repo, mock, _ := NewMock(t)

	updated := &domain.User{
		ID: 1, Country: domain.CountryNigeria, Role: "user",
		Balance: decimal.RequireFromString("42.00"), Status: "active", CreatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
		WithArgs(decimal.RequireFromString("42.00"), 1).
		WillReturnRows(userRows(updated))

	user, err := repo.UpdateBalance(context.Background(), 1, decimal.RequireFromString("42.00"))
	assert.NoError(t, err)
	assert.True(t, decimal.RequireFromString("42.00").Equal(user.Balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}
