package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averku/orderdesk/internal/domain/order"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

const orderColumns = `id, order_number, customer_id, customer_email, status, items,
	subtotal, tax_amount, shipping_amount, discount_amount, total_amount, currency,
	billing_address, shipping_address, payment_info, notes, source, version, created_at, updated_at`

const createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

const updateOrderSQL = `UPDATE orders SET
	customer_email = $1, status = $2, items = $3,
	subtotal = $4, tax_amount = $5, shipping_amount = $6, discount_amount = $7, total_amount = $8,
	currency = $9, billing_address = $10, shipping_address = $11, payment_info = $12,
	notes = $13, source = $14, updated_at = $15, version = version + 1
	WHERE id = $16 AND version = $17
	RETURNING version`

const getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

const getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items,
// addresses, and payment info live in JSONB columns; monetary fields are
// NUMERIC and round-trip through shopspring decimals.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A unique violation on the order number maps to
// order.ErrDuplicateOrderNumber.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	docs, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.OrderNumber, o.CustomerID, o.CustomerEmail, string(o.Status), docs.items,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount, o.Currency,
		docs.billing, docs.shipping, docs.payment, o.Notes, o.Source, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return order.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// Update replaces the stored order if its version still matches o.Version and
// bumps the version. A vanished row maps to order.ErrNotFound, a stale
// version to order.ErrConcurrencyConflict.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	docs, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, updateOrderSQL,
		o.CustomerEmail, string(o.Status), docs.items,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
		o.Currency, docs.billing, docs.shipping, docs.payment,
		o.Notes, o.Source, o.UpdatedAt, o.ID, o.Version,
	).Scan(&o.Version)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}

	// The row either never existed or moved past o.Version.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", o.ID, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrConcurrencyConflict
}

// Delete removes an order permanently.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// GetByID fetches one order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// GetByNumber fetches one order by its human-facing order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderByNumberSQL, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	return o, nil
}

// List returns one page of matching orders ordered by creation time ascending
// plus the total match count. CreatedFrom is inclusive, CreatedTo exclusive.
func (r *OrderRepository) List(ctx context.Context, f order.Filter, page, pageSize int) ([]order.Order, int, error) {
	where, args := buildOrderFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	return orders, total, nil
}

func buildOrderFilter(f order.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.CreatedFrom.IsZero() {
		add("created_at >= $%d", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		add("created_at < $%d", f.CreatedTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type orderDocs struct {
	items    []byte
	billing  []byte
	shipping []byte
	payment  []byte
}

func marshalOrderDocs(o *order.Order) (orderDocs, error) {
	var (
		docs orderDocs
		err  error
	)
	if docs.items, err = json.Marshal(o.Items); err != nil {
		return docs, fmt.Errorf("marshaling order items: %w", err)
	}
	if docs.billing, err = json.Marshal(o.BillingAddress); err != nil {
		return docs, fmt.Errorf("marshaling billing address: %w", err)
	}
	if docs.shipping, err = json.Marshal(o.ShippingAddress); err != nil {
		return docs, fmt.Errorf("marshaling shipping address: %w", err)
	}
	if docs.payment, err = json.Marshal(o.Payment); err != nil {
		return docs, fmt.Errorf("marshaling payment info: %w", err)
	}
	return docs, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
		docs   orderDocs
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerEmail, &status, &docs.items,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency,
		&docs.billing, &docs.shipping, &docs.payment, &o.Notes, &o.Source, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	if o.UpdatedAt != nil {
		t := o.UpdatedAt.UTC()
		o.UpdatedAt = &t
	}
	if err := json.Unmarshal(docs.items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(docs.billing, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	if err := json.Unmarshal(docs.shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(docs.payment, &o.Payment); err != nil {
		return nil, fmt.Errorf("unmarshaling payment info: %w", err)
	}

	return &o, nil
}
