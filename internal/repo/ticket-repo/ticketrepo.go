package ticketrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
)

const ticketColumns = `id, ticket_number, user_id, destination, event_date, pricing, payment, status, cancellation_policy, used_at, created_at, updated_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	pricing, payment, policy, err := encodeTicket(t)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO tickets (ticket_number, user_id, destination, event_date, pricing, payment, status, cancellation_policy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = r.db.QueryRow(ctx, query,
		t.TicketNumber, t.UserID, t.Destination, t.EventDate,
		pricing, payment, t.Status, policy, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		zap.L().Error("can't save ticket", zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		zap.L().Error("can't find ticket", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// FindByIDForUpdate locks the ticket row until the surrounding transaction ends.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id int) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		zap.L().Error("can't lock ticket", zap.Int("ticketID", id), zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (r *Repository) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = $1 FOR UPDATE`, number))
	if err != nil {
		zap.L().Error("can't lock ticket by number", zap.String("ticketNumber", number), zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (r *Repository) ListByUserID(ctx context.Context, userID int) ([]domain.Ticket, error) {
	query := `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	return r.list(ctx, "can't get tickets", query, userID)
}

// FindExpirable returns pending or confirmed tickets whose event started before.
func (r *Repository) FindExpirable(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error) {
	query := `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status IN ('pending', 'confirmed') AND event_date < $1
        ORDER BY event_date ASC
        LIMIT $2
    `
	return r.list(ctx, "can't get tickets for expiry", query, before, limit)
}

func (r *Repository) Update(ctx context.Context, t *domain.Ticket) error {
	pricing, payment, policy, err := encodeTicket(t)
	if err != nil {
		return err
	}
	query := `
        UPDATE tickets
        SET pricing = $1, payment = $2, status = $3, cancellation_policy = $4, used_at = $5, updated_at = $6
        WHERE id = $7
    `
	tag, err := r.db.Exec(ctx, query, pricing, payment, t.Status, policy, t.UsedAt, t.UpdatedAt, t.ID)
	if err != nil {
		zap.L().Error("failed to update ticket", zap.Int("ticketID", t.ID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) list(ctx context.Context, msg, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error(msg, zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			zap.L().Error("can't scan ticket row", zap.Error(err))
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error(msg, zap.Error(err))
		return nil, err
	}
	return tickets, nil
}

func encodeTicket(t *domain.Ticket) (pricing, payment, policy []byte, err error) {
	if pricing, err = json.Marshal(t.Pricing); err != nil {
		return nil, nil, nil, fmt.Errorf("encode ticket pricing: %w", err)
	}
	if payment, err = json.Marshal(t.Payment); err != nil {
		return nil, nil, nil, fmt.Errorf("encode ticket payment: %w", err)
	}
	if policy, err = json.Marshal(t.CancellationPolicy); err != nil {
		return nil, nil, nil, fmt.Errorf("encode cancellation policy: %w", err)
	}
	return pricing, payment, policy, nil
}

// scanTicket returns nil, nil when the row does not exist.
func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t                        domain.Ticket
		pricing, payment, policy []byte
	)
	err := row.Scan(&t.ID, &t.TicketNumber, &t.UserID, &t.Destination, &t.EventDate,
		&pricing, &payment, &t.Status, &policy, &t.UsedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pricing, &t.Pricing); err != nil {
		return nil, fmt.Errorf("decode ticket pricing: %w", err)
	}
	if err := json.Unmarshal(payment, &t.Payment); err != nil {
		return nil, fmt.Errorf("decode ticket payment: %w", err)
	}
	if err := json.Unmarshal(policy, &t.CancellationPolicy); err != nil {
		return nil, fmt.Errorf("decode cancellation policy: %w", err)
	}
	return &t, nil
}
