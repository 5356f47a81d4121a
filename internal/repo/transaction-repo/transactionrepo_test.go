package transactionrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	defer mockDB.Close()

	return repo, mockDB
}

func TestRepository_Create(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`
		INSERT INTO wallet_transactions (user_id, kind, amount, points, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`)

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
	}{
		{
			name: "Saves transaction",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, domain.TransactionRedeem, pgxmock.AnyArg(), int64(-100), "redeem", now).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(12))
			},
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, domain.TransactionRedeem, pgxmock.AnyArg(), int64(-100), "redeem", now).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			tx := &domain.WalletTransaction{
				UserID:    1,
				Kind:      domain.TransactionRedeem,
				Amount:    decimal.NewFromInt(50),
				Points:    -100,
				Reference: "redeem",
				CreatedAt: now,
			}
			result, err := repo.Create(context.Background(), tx)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 12, result.ID)
			}
		})
	}
}

func TestRepository_ListByUserID(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`)
	cols := []string{"id", "user_id", "kind", "amount", "points", "reference", "created_at"}

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
		expected  int
	}{
		{
			name: "Returns history",
			mockSetup: func() {
				mock.ExpectQuery(query).WithArgs(1, 50).WillReturnRows(
					pgxmock.NewRows(cols).
						AddRow(2, 1, domain.TransactionSpend, decimal.NewFromInt(30), int64(0), "tkt_4", now).
						AddRow(1, 1, domain.TransactionDeposit, decimal.NewFromInt(100), int64(0), "pay_1", now.Add(-time.Hour)),
				)
			},
			expected: 2,
		},
		{
			name: "Empty history",
			mockSetup: func() {
				mock.ExpectQuery(query).WithArgs(1, 50).WillReturnRows(pgxmock.NewRows(cols))
			},
			expected: 0,
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(query).WithArgs(1, 50).WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.ListByUserID(context.Background(), 1, 50)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result, tt.expected)
		})
	}
}
