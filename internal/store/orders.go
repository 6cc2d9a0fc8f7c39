package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusReserved       = "RESERVED"
	OrderStatusCanceled       = "CANCELED"
	OrderStatusRefunded       = "REFUNDED"
)

// Payment modes recorded on an order.
const (
	PaymentModeGateway = "gateway"
	PaymentModeFree    = "free"
	PaymentModeDoor    = "door"
)

// Order is created exactly once per successful checkout and immutable
// afterwards except through the admin correction endpoint.
type Order struct {
	ID                uuid.UUID
	CartID            *uuid.UUID
	OwnerEmail        string
	BuyerName         string
	Status            string
	PaymentMode       string
	Subtotal          int64
	Discount          int64
	Shipping          int64
	Total             int64
	PromoCode         *string
	ShippingSelection []byte
	CreatedAt         time.Time
}

const orderColumns = `id, cart_id, owner_email, buyer_name, status, payment_mode, subtotal, discount, shipping, total, promo_code, shipping_selection, created_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CartID, &o.OwnerEmail, &o.BuyerName, &o.Status, &o.PaymentMode,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Total, &o.PromoCode, &o.ShippingSelection, &o.CreatedAt)
	return o, err
}

// CreateOrder inserts a new order row.
func (s *Store) CreateOrder(ctx context.Context, o Order) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx,
		`INSERT INTO orders (cart_id, owner_email, buyer_name, status, payment_mode, subtotal, discount, shipping, total, promo_code, shipping_selection)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+orderColumns,
		o.CartID, o.OwnerEmail, o.BuyerName, o.Status, o.PaymentMode,
		o.Subtotal, o.Discount, o.Shipping, o.Total, o.PromoCode, o.ShippingSelection))
}

// GetOrderByID loads an order.
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// ListOrdersByOwner returns a user's orders, newest first.
func (s *Store) ListOrdersByOwner(ctx context.Context, email string, limit, offset int32) ([]Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE owner_email = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		email, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrderStatusIfCurrent transitions an order only when it currently
// carries one of the expected statuses. Returns false when no row matched.
func (s *Store) UpdateOrderStatusIfCurrent(ctx context.Context, id uuid.UUID, next string, current []string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1 AND status = ANY($3)`, id, next, current)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// OrderItem is an itemized line on an order.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   *uuid.UUID
	Description string
	Qty         int32
	UnitPrice   int64
	Subtotal    int64
}

const orderItemColumns = `id, order_id, product_id, description, qty, unit_price, subtotal`

// CreateOrderItem inserts an order line.
func (s *Store) CreateOrderItem(ctx context.Context, it OrderItem) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO order_items (order_id, product_id, description, qty, unit_price, subtotal)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		it.OrderID, it.ProductID, it.Description, it.Qty, it.UnitPrice, it.Subtotal)
	return err
}

// ListOrderItems returns the order's lines.
func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Description, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
