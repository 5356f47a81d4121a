package topuprepo

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
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

var (
	createdAt = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	topUpCols = []string{"id", "user_id", "amount", "currency", "gateway_order_id", "status", "payment_id", "created_at", "credited_at"}
	lockQuery = regexp.QuoteMeta(`SELECT id, user_id, amount, currency, gateway_order_id, status, payment_id, created_at, credited_at FROM wallet_topups WHERE gateway_order_id = $1 FOR UPDATE`)
	amount500 = decimal.RequireFromString("500")
	nilCredit *time.Time
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
	query := regexp.QuoteMeta(`
		INSERT INTO wallet_topups (user_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`)

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
	}{
		{
			name: "Saves top-up",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, amount500, "INR", domain.TopUpPending, createdAt).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(5))
			},
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(1, amount500, "INR", domain.TopUpPending, createdAt).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			topUp := &domain.TopUp{UserID: 1, Amount: amount500, Currency: "INR", Status: domain.TopUpPending, CreatedAt: createdAt}

			result, err := repo.Create(context.Background(), topUp)

			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 5, result.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_FindByGatewayOrderIDForUpdate(t *testing.T) {
	repo, mock := NewMock(t)

	tests := []struct {
		name      string
		mockSetup func()
		isNil     bool
		expectErr bool
	}{
		{
			name: "Top-up found",
			mockSetup: func() {
				mock.ExpectQuery(lockQuery).WithArgs("order_1").WillReturnRows(
					pgxmock.NewRows(topUpCols).AddRow(5, 1, amount500, "INR", "order_1", domain.TopUpPending, "", createdAt, nilCredit),
				)
			},
		},
		{
			name: "Unknown gateway order",
			mockSetup: func() {
				mock.ExpectQuery(lockQuery).WithArgs("order_1").WillReturnError(pgx.ErrNoRows)
			},
			isNil: true,
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(lockQuery).WithArgs("order_1").WillReturnError(errors.New("database error"))
			},
			isNil:     true,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			topUp, err := repo.FindByGatewayOrderIDForUpdate(context.Background(), "order_1")

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.isNil {
				assert.Nil(t, topUp)
			} else {
				require.NotNil(t, topUp)
				assert.Equal(t, 1, topUp.UserID)
				assert.True(t, topUp.Amount.Equal(amount500))
				assert.Equal(t, domain.TopUpPending, topUp.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Update(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta(`
		UPDATE wallet_topups
		SET gateway_order_id = $1, status = $2, payment_id = $3, credited_at = $4
		WHERE id = $5
	`)
	creditedAt := createdAt.Add(time.Minute)
	topUp := &domain.TopUp{ID: 5, GatewayOrderID: "order_1", Status: domain.TopUpCredited, PaymentID: "pay_1", CreditedAt: &creditedAt}

	tests := []struct {
		name        string
		mockSetup   func()
		expectedErr error
		expectErr   bool
	}{
		{
			name: "Updates top-up",
			mockSetup: func() {
				mock.ExpectExec(query).
					WithArgs("order_1", domain.TopUpCredited, "pay_1", &creditedAt, 5).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "Missing row",
			mockSetup: func() {
				mock.ExpectExec(query).
					WithArgs("order_1", domain.TopUpCredited, "pay_1", &creditedAt, 5).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			expectedErr: domain.ErrNotFound,
			expectErr:   true,
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectExec(query).
					WithArgs("order_1", domain.TopUpCredited, "pay_1", &creditedAt, 5).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			err := repo.Update(context.Background(), topUp)

			if tt.expectErr {
				assert.Error(t, err)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
