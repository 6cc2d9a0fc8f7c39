package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cart statuses.
const (
	CartStatusPending = "pending"
	CartStatusPaid    = "paid"
)

// Cart is one owner's pending collection of line items. The owner is
// either an authenticated user's email or an anonymous guest id; one
// pending cart per owner at a time.
type Cart struct {
	ID         uuid.UUID
	OwnerEmail *string
	AnonID     *string
	Status     string
	PromoCode  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}

const cartColumns = `id, owner_email, anon_id, status, promo_code, created_at, updated_at, expires_at`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.OwnerEmail, &c.AnonID, &c.Status, &c.PromoCode, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// GetCartByID loads a cart by id.
func (s *Store) GetCartByID(ctx context.Context, id uuid.UUID) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
}

// GetPendingCartByOwner loads the pending cart of an authenticated user.
func (s *Store) GetPendingCartByOwner(ctx context.Context, email string) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE owner_email = $1 AND status = 'pending' ORDER BY created_at DESC LIMIT 1`,
		email))
}

// GetPendingCartByAnon loads the pending cart of a guest.
func (s *Store) GetPendingCartByAnon(ctx context.Context, anonID string) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE anon_id = $1 AND status = 'pending' ORDER BY created_at DESC LIMIT 1`,
		anonID))
}

// CreateCart inserts a pending cart for the given owner.
func (s *Store) CreateCart(ctx context.Context, ownerEmail, anonID *string, expiresAt time.Time) (Cart, error) {
	return scanCart(s.db.QueryRow(ctx,
		`INSERT INTO carts (owner_email, anon_id, status, expires_at)
		 VALUES ($1, $2, 'pending', $3)
		 RETURNING `+cartColumns,
		ownerEmail, anonID, expiresAt))
}

// TouchCart extends the cart expiry.
func (s *Store) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt)
	return err
}

// SetCartPromo stores the validated promo code on the cart.
func (s *Store) SetCartPromo(ctx context.Context, id uuid.UUID, code string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE carts SET promo_code = $2, updated_at = now() WHERE id = $1`, id, code)
	return err
}

// ClearCartPromo removes the applied promo code.
func (s *Store) ClearCartPromo(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE carts SET promo_code = NULL, updated_at = now() WHERE id = $1`, id)
	return err
}

// MarkCartPaid transitions the cart to paid. It only succeeds for carts
// still pending, so a concurrent double-submit flips exactly one cart.
func (s *Store) MarkCartPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE carts SET status = 'paid', updated_at = now() WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CartItem is a single line in a cart. Unit prices are snapshots taken at
// add-to-cart time.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Title     string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

const cartItemColumns = `id, cart_id, product_id, title, qty, unit_price, subtotal`

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Qty, &it.UnitPrice, &it.Subtotal)
	return it, err
}

// ListCartItems returns the cart's lines in insertion order.
func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindCartItemByProduct locates an existing line for the product.
func (s *Store) FindCartItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (CartItem, error) {
	return scanCartItem(s.db.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID))
}

// CreateCartItem inserts a new line.
func (s *Store) CreateCartItem(ctx context.Context, item CartItem) (CartItem, error) {
	return scanCartItem(s.db.QueryRow(ctx,
		`INSERT INTO cart_items (cart_id, product_id, title, qty, unit_price, subtotal)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+cartItemColumns,
		item.CartID, item.ProductID, item.Title, item.Qty, item.UnitPrice, item.Subtotal))
}

// UpdateCartItemQty overwrites quantity and subtotal for a line.
func (s *Store) UpdateCartItemQty(ctx context.Context, id uuid.UUID, qty int32, subtotal int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE cart_items SET qty = $2, subtotal = $3 WHERE id = $1`, id, qty, subtotal)
	return err
}

// DeleteCartItem removes a single line.
func (s *Store) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	return err
}

// GetCartItem loads a line by id.
func (s *Store) GetCartItem(ctx context.Context, id uuid.UUID) (CartItem, error) {
	return scanCartItem(s.db.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1`, id))
}
