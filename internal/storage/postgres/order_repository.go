package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
)

const orderColumns = `
id, order_code, name, email, num_tickets, total_amount, show_time, status,
reserved_until, paid_at, COALESCE(payer_name, ''), COALESCE(payment_note, ''),
created_at, updated_at`

// OrderRepository is the single store for orders; the app services each
// consume the slice of it they need.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_code = $1)`

	var exists bool
	if err := r.queryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order code: %w", err)
	}
	return exists, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, order_code, name, email, num_tickets, total_amount,
	show_time, status, reserved_until, paid_at, payer_name, payment_note,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14)`

	var reservedUntil any
	if !order.ReservedUntil.IsZero() {
		reservedUntil = order.ReservedUntil
	}

	_, err := r.exec(ctx, stmt,
		order.ID,
		order.OrderCode,
		order.Name,
		order.Email,
		order.NumTickets,
		order.TotalAmount,
		order.ShowTime,
		order.Status,
		reservedUntil,
		order.PaidAt,
		order.PayerName,
		order.PaymentNote,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderCodeTaken
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1`
	return r.findOne(ctx, query, code)
}

// FindByCodeForUpdate locks the order row for the duration of the enclosing
// transaction; callers read, validate, and write under that lock.
func (r *OrderRepository) FindByCodeForUpdate(ctx context.Context, code string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1 FOR UPDATE`
	return r.findOne(ctx, query, code)
}

func (r *OrderRepository) findOne(ctx context.Context, query, code string) (*domain.Order, error) {
	order, err := scanOrder(r.queryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// MarkPaid transitions a pending order to paid. The status predicate makes
// the write conditional: a concurrent settlement that got there first leaves
// zero rows to update.
func (r *OrderRepository) MarkPaid(ctx context.Context, code string, paidAt time.Time, payerName, note string) error {
	const stmt = `
UPDATE orders
SET status = 'paid', paid_at = $2, payer_name = NULLIF($3, ''),
	payment_note = NULLIF($4, ''), updated_at = $2
WHERE order_code = $1 AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, code, paidAt, payerName, note)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotPending
	}
	return nil
}

// FlagPayment annotates an order with payer and note without touching its
// status, used for amount mismatches awaiting manual review.
func (r *OrderRepository) FlagPayment(ctx context.Context, code, payerName, note string) error {
	const stmt = `
UPDATE orders
SET payer_name = NULLIF($2, ''), payment_note = $3, updated_at = NOW()
WHERE order_code = $1`

	tag, err := r.exec(ctx, stmt, code, payerName, note)
	if err != nil {
		return fmt.Errorf("flag payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) SetCancelled(ctx context.Context, code string, now time.Time) error {
	const stmt = `
UPDATE orders
SET status = 'cancelled', updated_at = $2
WHERE order_code = $1 AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, code, now)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotPending
	}
	return nil
}

// ExpirePending sweeps every pending order whose reservation deadline has
// passed into the expired state, releasing the seats it held.
func (r *OrderRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	const stmt = `
UPDATE orders
SET status = 'expired', updated_at = $1
WHERE status = 'pending' AND reserved_until IS NOT NULL AND reserved_until < $1`

	tag, err := r.exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("expire pending orders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate orders: %w", rows.Err())
	}
	return orders, nil
}

// SumReservedSeats counts the seats held for a show time: paid orders plus
// pending ones whose reservation is still live. Expired and cancelled orders
// hold nothing.
func (r *OrderRepository) SumReservedSeats(ctx context.Context, showTime string, now time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(num_tickets), 0)
FROM orders
WHERE show_time = $1
  AND (status = 'paid' OR (status = 'pending' AND reserved_until > $2))`

	var total int
	if err := r.queryRow(ctx, query, showTime, now).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum reserved seats: %w", err)
	}
	return total, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	var reservedUntil *time.Time
	err := row.Scan(
		&o.ID,
		&o.OrderCode,
		&o.Name,
		&o.Email,
		&o.NumTickets,
		&o.TotalAmount,
		&o.ShowTime,
		&status,
		&reservedUntil,
		&o.PaidAt,
		&o.PayerName,
		&o.PaymentNote,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if reservedUntil != nil {
		o.ReservedUntil = *reservedUntil
	}
	return &o, nil
}

func (r *OrderRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OrderRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
