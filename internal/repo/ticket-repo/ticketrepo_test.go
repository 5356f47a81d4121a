package ticketrepo

import (
	"context"
	"encoding/json"
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
	eventDate  = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	createdAt  = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ticketCols = []string{"id", "ticket_number", "user_id", "destination", "event_date", "pricing", "payment", "status", "cancellation_policy", "used_at", "created_at", "updated_at"}
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	defer mockDB.Close()

	return repo, mockDB
}

func sampleTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:           3,
		TicketNumber: "4000123400001234",
		UserID:       1,
		Destination:  "Gulmarg Gondola",
		EventDate:    eventDate,
		Pricing: domain.TicketPricing{
			Currency:    "INR",
			BasePrice:   decimal.NewFromInt(100),
			Quantity:    2,
			Subtotal:    decimal.NewFromInt(200),
			PlatformFee: decimal.NewFromInt(10),
			Tax:         decimal.RequireFromString("37.8"),
			TotalAmount: decimal.RequireFromString("247.8"),
		},
		Payment:            domain.TicketPayment{Status: domain.PaymentPending, GatewayOrderID: "order_1"},
		Status:             domain.TicketPending,
		CancellationPolicy: domain.CancellationPolicy{Allowed: true, RefundPercent: decimal.NewFromInt(100), DeadlineHours: 24},
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func ticketRow(t *testing.T, ticket *domain.Ticket) []any {
	pricing, err := json.Marshal(ticket.Pricing)
	require.NoError(t, err)
	payment, err := json.Marshal(ticket.Payment)
	require.NoError(t, err)
	policy, err := json.Marshal(ticket.CancellationPolicy)
	require.NoError(t, err)
	return []any{
		ticket.ID, ticket.TicketNumber, ticket.UserID, ticket.Destination, ticket.EventDate,
		pricing, payment, ticket.Status, policy, ticket.UsedAt, ticket.CreatedAt, ticket.UpdatedAt,
	}
}

func TestRepository_Create(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta(`INSERT INTO tickets (ticket_number, user_id, destination, event_date, pricing, payment, status, cancellation_policy, created_at, updated_at)`)

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
	}{
		{
			name: "Saves ticket",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("4000123400001234", 1, "Gulmarg Gondola", eventDate,
						pgxmock.AnyArg(), pgxmock.AnyArg(), domain.TicketPending, pgxmock.AnyArg(), createdAt, createdAt).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(42))
			},
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("4000123400001234", 1, "Gulmarg Gondola", eventDate,
						pgxmock.AnyArg(), pgxmock.AnyArg(), domain.TicketPending, pgxmock.AnyArg(), createdAt, createdAt).
					WillReturnError(errors.New("duplicate ticket number"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			ticket := sampleTicket()
			ticket.ID = 0
			result, err := repo.Create(context.Background(), ticket)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 42, result.ID)
			}
		})
	}
}

func TestRepository_FindByID(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta(`FROM tickets WHERE id = $1`)

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
		isNil     bool
	}{
		{
			name: "Ticket found",
			mockSetup: func() {
				mock.ExpectQuery(query).WithArgs(3).
					WillReturnRows(pgxmock.NewRows(ticketCols).AddRow(ticketRow(t, sampleTicket())...))
			},
		},
		{
			name: "Ticket missing",
			mockSetup: func() {
				mock.ExpectQuery(query).WithArgs(3).WillReturnError(pgx.ErrNoRows)
			},
			isNil: true,
		},
		{
			name: "Corrupt pricing document",
			mockSetup: func() {
				row := ticketRow(t, sampleTicket())
				row[5] = []byte(`{"basePrice":`)
				mock.ExpectQuery(query).WithArgs(3).WillReturnRows(pgxmock.NewRows(ticketCols).AddRow(row...))
			},
			expectErr: true,
			isNil:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.FindByID(context.Background(), 3)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.isNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, "Gulmarg Gondola", result.Destination)
			assert.True(t, result.Pricing.TotalAmount.Equal(decimal.RequireFromString("247.8")))
			assert.Equal(t, "order_1", result.Payment.GatewayOrderID)
			assert.Equal(t, 24, result.CancellationPolicy.DeadlineHours)
		})
	}
}

func TestRepository_FindByIDForUpdate(t *testing.T) {
	repo, mock := NewMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM tickets WHERE id = $1 FOR UPDATE`)).WithArgs(3).
		WillReturnRows(pgxmock.NewRows(ticketCols).AddRow(ticketRow(t, sampleTicket())...))

	result, err := repo.FindByIDForUpdate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindExpirable(t *testing.T) {
	repo, mock := NewMock(t)
	now := eventDate.Add(time.Hour)
	query := regexp.QuoteMeta(`WHERE status IN ('pending', 'confirmed') AND event_date < $1`)

	first := sampleTicket()
	second := sampleTicket()
	second.ID = 4
	second.Status = domain.TicketConfirmed

	mock.ExpectQuery(query).WithArgs(now, 100).WillReturnRows(
		pgxmock.NewRows(ticketCols).AddRow(ticketRow(t, first)...).AddRow(ticketRow(t, second)...),
	)

	tickets, err := repo.FindExpirable(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, domain.TicketConfirmed, tickets[1].Status)
}

func TestRepository_ListByUserID(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta(`FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`)

	mock.ExpectQuery(query).WithArgs(1).WillReturnError(errors.New("database error"))
	_, err := repo.ListByUserID(context.Background(), 1)
	assert.Error(t, err)

	mock.ExpectQuery(query).WithArgs(1).WillReturnRows(pgxmock.NewRows(ticketCols).AddRow(ticketRow(t, sampleTicket())...))
	tickets, err := repo.ListByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestRepository_Update(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta(`UPDATE tickets SET pricing = $1, payment = $2, status = $3, cancellation_policy = $4, used_at = $5, updated_at = $6 WHERE id = $7`)

	tests := []struct {
		name        string
		mockSetup   func()
		expectedErr error
		expectErr   bool
	}{
		{
			name: "Updates ticket",
			mockSetup: func() {
				mock.ExpectExec(query).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), domain.TicketConfirmed, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 3).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "Ticket missing",
			mockSetup: func() {
				mock.ExpectExec(query).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), domain.TicketConfirmed, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 3).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			expectErr:   true,
			expectedErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			ticket := sampleTicket()
			ticket.Status = domain.TicketConfirmed
			err := repo.Update(context.Background(), ticket)
			if tt.expectErr {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
