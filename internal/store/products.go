package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product is a shop item purchasable through the cart.
type Product struct {
	ID          uuid.UUID
	Slug        string
	Title       string
	Description string
	Price       int64
	Active      bool
	CreatedAt   time.Time
}

const productColumns = `id, slug, title, description, price, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Price, &p.Active, &p.CreatedAt)
	return p, err
}

// ListProducts returns active products ordered by title.
func (s *Store) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY title LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductBySlug returns a single active product.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(s.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1 AND active`, slug))
}

// GetProductByID returns a product regardless of active state; carts that
// already hold the item keep their price snapshot either way.
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(s.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}
