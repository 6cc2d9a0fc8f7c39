package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/shipping"
	"github.com/solvieth/verslun-api/internal/store"
)

type memStore struct {
	carts    map[uuid.UUID]store.Cart
	items    map[uuid.UUID]store.CartItem
	products map[uuid.UUID]store.Product
	promos   map[string]store.PromoCode
}

func newMemStore() *memStore {
	return &memStore{
		carts:    map[uuid.UUID]store.Cart{},
		items:    map[uuid.UUID]store.CartItem{},
		products: map[uuid.UUID]store.Product{},
		promos:   map[string]store.PromoCode{},
	}
}

func (m *memStore) GetCartByID(_ context.Context, id uuid.UUID) (store.Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) GetPendingCartByOwner(_ context.Context, email string) (store.Cart, error) {
	for _, c := range m.carts {
		if c.OwnerEmail != nil && *c.OwnerEmail == email && c.Status == store.CartStatusPending {
			return c, nil
		}
	}
	return store.Cart{}, pgx.ErrNoRows
}

func (m *memStore) GetPendingCartByAnon(_ context.Context, anonID string) (store.Cart, error) {
	for _, c := range m.carts {
		if c.AnonID != nil && *c.AnonID == anonID && c.Status == store.CartStatusPending {
			return c, nil
		}
	}
	return store.Cart{}, pgx.ErrNoRows
}

func (m *memStore) CreateCart(_ context.Context, ownerEmail, anonID *string, expiresAt time.Time) (store.Cart, error) {
	c := store.Cart{
		ID:         uuid.New(),
		OwnerEmail: ownerEmail,
		AnonID:     anonID,
		Status:     store.CartStatusPending,
		ExpiresAt:  expiresAt,
	}
	m.carts[c.ID] = c
	return c, nil
}

func (m *memStore) TouchCart(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	c, ok := m.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.ExpiresAt = expiresAt
	m.carts[id] = c
	return nil
}

func (m *memStore) SetCartPromo(_ context.Context, id uuid.UUID, code string) error {
	c := m.carts[id]
	c.PromoCode = &code
	m.carts[id] = c
	return nil
}

func (m *memStore) ClearCartPromo(_ context.Context, id uuid.UUID) error {
	c := m.carts[id]
	c.PromoCode = nil
	m.carts[id] = c
	return nil
}

func (m *memStore) ListCartItems(_ context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	var out []store.CartItem
	for _, it := range m.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) FindCartItemByProduct(_ context.Context, cartID, productID uuid.UUID) (store.CartItem, error) {
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return store.CartItem{}, pgx.ErrNoRows
}

func (m *memStore) CreateCartItem(_ context.Context, item store.CartItem) (store.CartItem, error) {
	item.ID = uuid.New()
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) UpdateCartItemQty(_ context.Context, id uuid.UUID, qty int32, subtotal int64) error {
	it, ok := m.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	it.Qty = qty
	it.Subtotal = subtotal
	m.items[id] = it
	return nil
}

func (m *memStore) DeleteCartItem(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *memStore) GetCartItem(_ context.Context, id uuid.UUID) (store.CartItem, error) {
	it, ok := m.items[id]
	if !ok {
		return store.CartItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (m *memStore) GetProductByID(_ context.Context, id uuid.UUID) (store.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) GetPromoByCode(_ context.Context, code string) (store.PromoCode, error) {
	p, ok := m.promos[code]
	if !ok {
		return store.PromoCode{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) CountPromoRedemptionsByUser(_ context.Context, _, _ string) (int32, error) {
	return 0, nil
}

func testService(m *memStore) *Service {
	return &Service{
		Q:     m,
		Promo: &promo.Service{Q: m, Now: time.Now},
		Ship:  shipping.NewResolver(shipping.DefaultRates(), []string{"101", "105"}),
		TTL:   time.Hour,
		Now:   time.Now,
	}
}

func TestEnsureCartReusesPendingCart(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	p := common.Principal{Email: "jon@example.is"}

	first, err := svc.EnsureCart(context.Background(), p)
	require.NoError(t, err)

	second, err := svc.EnsureCart(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestEnsureCartRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc := testService(newMemStore())
	_, err := svc.EnsureCart(context.Background(), common.Principal{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemSnapshotsPriceAndIncrements(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	cart, err := svc.EnsureCart(context.Background(), common.Principal{AnonID: "guest-1"})
	require.NoError(t, err)

	product := store.Product{ID: uuid.New(), Title: "Kertastjaki", Price: 2500, Active: true}
	m.products[product.ID] = product

	require.NoError(t, svc.AddItem(context.Background(), cart.ID, product.ID, 2))

	// A later price change must not affect the existing line.
	product.Price = 9999
	m.products[product.ID] = product
	require.NoError(t, svc.AddItem(context.Background(), cart.ID, product.ID, 1))

	items, err := m.ListCartItems(context.Background(), cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int32(3), items[0].Qty)
	require.Equal(t, int64(2500), items[0].UnitPrice)
	require.Equal(t, int64(7500), items[0].Subtotal)
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	cart, err := svc.EnsureCart(context.Background(), common.Principal{AnonID: "guest-2"})
	require.NoError(t, err)

	product := store.Product{ID: uuid.New(), Title: "Gamalt", Price: 100, Active: false}
	m.products[product.ID] = product

	err = svc.AddItem(context.Background(), cart.ID, product.ID, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateQtyZeroRemovesLine(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	cart, err := svc.EnsureCart(context.Background(), common.Principal{AnonID: "guest-3"})
	require.NoError(t, err)

	product := store.Product{ID: uuid.New(), Title: "Bolli", Price: 1200, Active: true}
	m.products[product.ID] = product
	require.NoError(t, svc.AddItem(context.Background(), cart.ID, product.ID, 2))

	items, _ := m.ListCartItems(context.Background(), cart.ID)
	require.Len(t, items, 1)

	require.NoError(t, svc.UpdateQty(context.Background(), cart.ID, items[0].ID, 0))
	items, _ = m.ListCartItems(context.Background(), cart.ID)
	require.Empty(t, items)
}

func TestApplyPromoOnEmptyCart(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	cart, err := svc.EnsureCart(context.Background(), common.Principal{AnonID: "guest-4"})
	require.NoError(t, err)

	m.promos["AFSL10"] = store.PromoCode{Code: "AFSL10", Kind: promo.KindPercent, Value: 10}

	_, err = svc.ApplyPromo(context.Background(), cart.ID, "AFSL10", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoadRecomputesDiscountAndShipping(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	cart, err := svc.EnsureCart(context.Background(), common.Principal{Email: "lara@example.is"})
	require.NoError(t, err)

	product := store.Product{ID: uuid.New(), Title: "Skál", Price: 5000, Active: true}
	m.products[product.ID] = product
	require.NoError(t, svc.AddItem(context.Background(), cart.ID, product.ID, 2))

	m.promos["AFSL10"] = store.PromoCode{Code: "AFSL10", Kind: promo.KindPercent, Value: 10}
	discount, err := svc.ApplyPromo(context.Background(), cart.ID, "afsl10", "lara@example.is")
	require.NoError(t, err)
	require.Equal(t, int64(1000), discount)

	sel := &shipping.Selection{Method: shipping.MethodDelivery, Option: shipping.OptionHome, PostalCode: "101"}
	view, err := svc.Load(context.Background(), cart.ID, "lara@example.is", sel)
	require.NoError(t, err)
	require.Equal(t, int64(10000), view.Summary.Subtotal)
	require.Equal(t, int64(1000), view.Summary.Discount)
	require.Equal(t, int64(1350), view.Summary.Shipping)
	require.Equal(t, int64(10350), view.Summary.Total)
}

func TestLoadReportsStalePromo(t *testing.T) {
	t.Parallel()

	m := newMemStore()
	svc := testService(m)
	cart, err := svc.EnsureCart(context.Background(), common.Principal{AnonID: "guest-5"})
	require.NoError(t, err)

	product := store.Product{ID: uuid.New(), Title: "Plakat", Price: 3000, Active: true}
	m.products[product.ID] = product
	require.NoError(t, svc.AddItem(context.Background(), cart.ID, product.ID, 1))

	m.promos["HORFINN"] = store.PromoCode{Code: "HORFINN", Kind: promo.KindFixed, Value: 500}
	_, err = svc.ApplyPromo(context.Background(), cart.ID, "HORFINN", "")
	require.NoError(t, err)

	// The code disappears between apply and read.
	delete(m.promos, "HORFINN")

	view, err := svc.Load(context.Background(), cart.ID, "", nil)
	require.NoError(t, err)
	require.Zero(t, view.Summary.Discount)
	require.NotEmpty(t, view.PromoNote)
}
