package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates an OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, total_amount, shipping_address, billing_address, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.UserID, o.TotalAmount, o.ShippingAddress, o.BillingAddress, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, color, size, price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, item.ProductID, item.ProductName, item.Color, item.Size, item.Price, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, total_amount, shipping_address, billing_address, status, tracking_id, payment_method, payment_transaction_id, created_at`

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("order with ID %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	o.Items, err = r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) FindByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	for i := range orders {
		orders[i].Items, err = r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_transaction_id = $1`, transactionID)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("order with transaction %s not found", transactionID)
	}
	if err != nil {
		return nil, err
	}

	o.Items, err = r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, trackingID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, tracking_id = COALESCE(NULLIF($3, ''), tracking_id) WHERE id = $1`,
		id, status, trackingID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("order with ID %s not found", id)
	}
	return nil
}

func (r *orderRepository) SetPayment(ctx context.Context, id string, payment entity.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_method = $2, payment_transaction_id = $3 WHERE id = $1`,
		id, payment.Method, payment.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("order with ID %s not found", id)
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("order with ID %s not found", id)
	}
	return nil
}

func (r *orderRepository) CancelStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE status = $2 AND created_at < $3`,
		entity.StatusCancelled, entity.StatusPending, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale pending orders: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]entity.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, product_name, color, size, price, quantity FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []entity.OrderItem
	for rows.Next() {
		var item entity.OrderItem
		var price string
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Color, &item.Size, &price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse order item price: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var o entity.Order
	var total string
	var method, txnID string
	err := row.Scan(&o.ID, &o.UserID, &total, &o.ShippingAddress, &o.BillingAddress, &o.Status, &o.TrackingID, &method, &txnID, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order total: %w", err)
	}
	if method != "" || txnID != "" {
		o.Payment = &entity.Payment{Method: method, TransactionID: txnID}
	}
	return &o, nil
}
