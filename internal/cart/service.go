package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/pricing"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/shipping"
	"github.com/solvieth/verslun-api/internal/store"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrCartClosed is returned when a mutation targets a cart that has
// already been paid.
var ErrCartClosed = errors.New("cart already closed")

// Queries lists the store operations the cart service depends on.
type Queries interface {
	GetCartByID(ctx context.Context, id uuid.UUID) (store.Cart, error)
	GetPendingCartByOwner(ctx context.Context, email string) (store.Cart, error)
	GetPendingCartByAnon(ctx context.Context, anonID string) (store.Cart, error)
	CreateCart(ctx context.Context, ownerEmail, anonID *string, expiresAt time.Time) (store.Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetCartPromo(ctx context.Context, id uuid.UUID, code string) error
	ClearCartPromo(ctx context.Context, id uuid.UUID) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	FindCartItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (store.CartItem, error)
	CreateCartItem(ctx context.Context, item store.CartItem) (store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, id uuid.UUID, qty int32, subtotal int64) error
	DeleteCartItem(ctx context.Context, id uuid.UUID) error
	GetCartItem(ctx context.Context, id uuid.UUID) (store.CartItem, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (store.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Q     Queries
	Promo *promo.Service
	Ship  *shipping.Resolver
	TTL   time.Duration
	Now   func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates the caller's pending cart. Logged-in
// callers are keyed by email, guests by their anonymous id.
func (s *Service) EnsureCart(ctx context.Context, p common.Principal) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	expires := s.now().Add(s.ttl())

	if p.Email != "" {
		cart, err := s.Q.GetPendingCartByOwner(ctx, p.Email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				email := p.Email
				return s.Q.CreateCart(ctx, &email, nil, expires)
			}
			return store.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, cart.ID, expires)
		return cart, nil
	}

	if p.AnonID != "" {
		cart, err := s.Q.GetPendingCartByAnon(ctx, p.AnonID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				anon := p.AnonID
				return s.Q.CreateCart(ctx, nil, &anon, expires)
			}
			return store.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, cart.ID, expires)
		return cart, nil
	}

	return store.Cart{}, fmt.Errorf("missing caller identity: %w", ErrInvalidInput)
}

// pendingCart loads the cart and rejects mutations on closed carts.
func (s *Service) pendingCart(ctx context.Context, cartID uuid.UUID) (store.Cart, error) {
	cart, err := s.Q.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Cart{}, ErrNotFound
		}
		return store.Cart{}, err
	}
	if cart.Status != store.CartStatusPending {
		return store.Cart{}, ErrCartClosed
	}
	return cart, nil
}

// AddItem inserts or increments a cart line. The unit price is
// snapshotted from the product at the time the line is created.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int32) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if _, err := s.pendingCart(ctx, cartID); err != nil {
		return err
	}
	expires := s.now().Add(s.ttl())

	item, err := s.Q.FindCartItemByProduct(ctx, cartID, productID)
	if err == nil {
		newQty := item.Qty + qty
		if err := s.Q.UpdateCartItemQty(ctx, item.ID, newQty, int64(newQty)*item.UnitPrice); err != nil {
			return err
		}
		_ = s.Q.TouchCart(ctx, cartID, expires)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	product, err := s.Q.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("unknown product: %w", ErrInvalidInput)
		}
		return err
	}
	if !product.Active {
		return fmt.Errorf("product not available: %w", ErrInvalidInput)
	}
	unitPrice := product.Price
	if unitPrice < 0 {
		unitPrice = 0
	}
	if _, err := s.Q.CreateCartItem(ctx, store.CartItem{
		CartID:    cartID,
		ProductID: productID,
		Title:     product.Title,
		Qty:       qty,
		UnitPrice: unitPrice,
		Subtotal:  int64(qty) * unitPrice,
	}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, cartID, expires)
	return nil
}

// UpdateQty sets the quantity for a cart line. A quantity of zero
// removes the line.
func (s *Service) UpdateQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty < 0 {
		return fmt.Errorf("qty cannot be negative: %w", ErrInvalidInput)
	}
	if _, err := s.pendingCart(ctx, cartID); err != nil {
		return err
	}
	item, err := s.Q.GetCartItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if item.CartID != cartID {
		return ErrNotFound
	}
	if qty == 0 {
		if err := s.Q.DeleteCartItem(ctx, item.ID); err != nil {
			return err
		}
	} else if err := s.Q.UpdateCartItemQty(ctx, item.ID, qty, int64(qty)*item.UnitPrice); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return s.UpdateQty(ctx, cartID, itemID, 0)
}

// ApplyPromo validates and attaches a promo code to the cart, returning
// the discount it currently yields.
func (s *Service) ApplyPromo(ctx context.Context, cartID uuid.UUID, code, owner string) (pricing.Money, error) {
	if s == nil || s.Q == nil || s.Promo == nil {
		return 0, errors.New("cart service not configured")
	}
	cart, err := s.pendingCart(ctx, cartID)
	if err != nil {
		return 0, err
	}
	items, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("cart is empty: %w", ErrInvalidInput)
	}
	subtotal := itemsSubtotal(items)
	discount, rule, err := s.Promo.Evaluate(ctx, code, owner, subtotal, nil)
	if err != nil {
		return 0, err
	}
	if err := s.Q.SetCartPromo(ctx, cart.ID, rule.Code); err != nil {
		return 0, err
	}
	_ = s.Q.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
	return discount, nil
}

// RemovePromo clears an applied promo code.
func (s *Service) RemovePromo(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cart, err := s.pendingCart(ctx, cartID)
	if err != nil {
		return err
	}
	if err := s.Q.ClearCartPromo(ctx, cart.ID); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
	return nil
}

// View is a cart with its lines and a price breakdown.
type View struct {
	Cart      store.Cart
	Items     []store.CartItem
	PromoNote string
	Summary   pricing.Summary
}

// Load assembles the cart view. The applied promo code is re-evaluated
// on every read so a code that has since expired shows up with its
// rejection reason instead of a stale discount.
func (s *Service) Load(ctx context.Context, cartID uuid.UUID, owner string, sel *shipping.Selection) (View, error) {
	if s == nil || s.Q == nil {
		return View{}, errors.New("cart service not configured")
	}
	cart, err := s.Q.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, ErrNotFound
		}
		return View{}, err
	}
	items, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	subtotal := itemsSubtotal(items)

	var discount pricing.Money
	var note string
	if cart.PromoCode != nil && *cart.PromoCode != "" && s.Promo != nil {
		d, _, err := s.Promo.Evaluate(ctx, *cart.PromoCode, owner, subtotal, nil)
		switch {
		case err == nil:
			discount = d
		case isPromoRejection(err):
			note = err.Error()
		default:
			return View{}, err
		}
	}

	var shippingCost pricing.Money
	if sel != nil && s.Ship != nil {
		shippingCost = s.Ship.Quote(*sel)
	}

	return View{
		Cart:      cart,
		Items:     items,
		PromoNote: note,
		Summary:   pricing.Compute(toPricingItems(items), discount, shippingCost),
	}, nil
}

func itemsSubtotal(items []store.CartItem) pricing.Money {
	var subtotal pricing.Money
	for _, it := range items {
		subtotal += it.Subtotal
	}
	return subtotal
}

func toPricingItems(items []store.CartItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{Qty: int(it.Qty), UnitPrice: it.UnitPrice})
	}
	return out
}

func isPromoRejection(err error) bool {
	return errors.Is(err, promo.ErrNotFound) ||
		errors.Is(err, promo.ErrInactive) ||
		errors.Is(err, promo.ErrExpired) ||
		errors.Is(err, promo.ErrUsageLimitReached) ||
		errors.Is(err, promo.ErrPerUserLimitReached) ||
		errors.Is(err, promo.ErrMinimumSpendUnmet) ||
		errors.Is(err, promo.ErrWrongEvent)
}
