package orderrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/pg"
)

const orderColumns = `id, order_number, customer_id, vendor_id, items, pricing, payment, payout, status, return_policy, return_request, tracking, created_at, updated_at`

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

type documents struct {
	items, pricing, payment, payout, returnPolicy, returnRequest, tracking []byte
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	docs, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}
	query := `
        INSERT INTO orders (order_number, customer_id, vendor_id, items, pricing, payment, payout, status, return_policy, return_request, tracking, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	err = r.txManager.Begin(ctx, func(ctx context.Context) error {
		err := r.db.QueryRow(ctx, query,
			order.OrderNumber, order.CustomerID, order.VendorID,
			docs.items, docs.pricing, docs.payment, docs.payout, order.Status,
			docs.returnPolicy, docs.returnRequest, docs.tracking, order.CreatedAt, order.UpdatedAt,
		).Scan(&order.ID)
		if err != nil {
			zap.L().Error("can't save order", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		zap.L().Error("can't find order", zap.Int("orderID", id), zap.Error(err))
		return nil, err
	}
	return order, nil
}

// FindByIDForUpdate locks the order row until the surrounding transaction ends.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id int) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		zap.L().Error("can't lock order", zap.Int("orderID", id), zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListByCustomerID(ctx context.Context, customerID int) ([]domain.Order, error) {
	query := `
        SELECT ` + orderColumns + `
        FROM orders
        WHERE customer_id = $1
        ORDER BY created_at DESC
    `
	return r.list(ctx, query, customerID)
}

func (r *Repository) ListByVendorID(ctx context.Context, vendorID int) ([]domain.Order, error) {
	query := `
        SELECT ` + orderColumns + `
        FROM orders
        WHERE vendor_id = $1
        ORDER BY created_at DESC
    `
	return r.list(ctx, query, vendorID)
}

func (r *Repository) Update(ctx context.Context, order *domain.Order) error {
	docs, err := encodeOrder(order)
	if err != nil {
		return err
	}
	query := `
        UPDATE orders
        SET payment = $1, payout = $2, status = $3, return_request = $4, tracking = $5, updated_at = $6
        WHERE id = $7
    `
	return r.txManager.Begin(ctx, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, docs.payment, docs.payout, order.Status, docs.returnRequest, docs.tracking, order.UpdatedAt, order.ID)
		if err != nil {
			zap.L().Error("failed to update order", zap.Int("orderID", order.ID), zap.Error(err))
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("can't get orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			zap.L().Error("can't scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("can't iterate orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func encodeOrder(o *domain.Order) (documents, error) {
	var (
		docs documents
		err  error
	)
	tracking := o.Tracking
	if tracking == nil {
		tracking = []domain.TrackingEvent{}
	}
	for _, field := range []struct {
		name string
		dst  *[]byte
		src  any
	}{
		{"items", &docs.items, o.Items},
		{"pricing", &docs.pricing, o.Pricing},
		{"payment", &docs.payment, o.Payment},
		{"payout", &docs.payout, o.Payout},
		{"return policy", &docs.returnPolicy, o.ReturnPolicy},
		{"tracking", &docs.tracking, tracking},
	} {
		if *field.dst, err = json.Marshal(field.src); err != nil {
			return docs, fmt.Errorf("encode order %s: %w", field.name, err)
		}
	}
	if o.Return != nil {
		if docs.returnRequest, err = json.Marshal(o.Return); err != nil {
			return docs, fmt.Errorf("encode order return request: %w", err)
		}
	}
	return docs, nil
}

// scanOrder returns nil, nil when the row does not exist.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o    domain.Order
		docs documents
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.VendorID,
		&docs.items, &docs.pricing, &docs.payment, &docs.payout, &o.Status,
		&docs.returnPolicy, &docs.returnRequest, &docs.tracking, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, field := range []struct {
		name string
		src  []byte
		dst  any
	}{
		{"items", docs.items, &o.Items},
		{"pricing", docs.pricing, &o.Pricing},
		{"payment", docs.payment, &o.Payment},
		{"payout", docs.payout, &o.Payout},
		{"return policy", docs.returnPolicy, &o.ReturnPolicy},
		{"tracking", docs.tracking, &o.Tracking},
	} {
		if err := json.Unmarshal(field.src, field.dst); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", field.name, err)
		}
	}
	if len(docs.returnRequest) > 0 {
		o.Return = &domain.ReturnRequest{}
		if err := json.Unmarshal(docs.returnRequest, o.Return); err != nil {
			return nil, fmt.Errorf("decode order return request: %w", err)
		}
	}
	return &o, nil
}
