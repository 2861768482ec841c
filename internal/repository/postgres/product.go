package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *entity.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, description, category, subcategory, brand, images, seller_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Description, p.Category, p.Subcategory, p.Brand, pq.Array(p.Images), p.SellerID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	if err := insertVariations(ctx, tx, p.ID, p.Variations); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertVariations(ctx context.Context, tx *sql.Tx, productID string, variations []entity.Variation) error {
	for _, v := range variations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO product_variations (product_id, color, size, price, stock)
			 VALUES ($1, $2, $3, $4, $5)`,
			productID, v.Color, v.Size, v.Price, v.Stock,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variation %s/%s: %w", v.Color, v.Size, err)
		}
	}
	return nil
}

func (r *productRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, category, subcategory, brand, images, seller_id, created_at
		 FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	for i := range products {
		variations, err := r.loadVariations(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Variations = variations
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, category, subcategory, brand, images, seller_id, created_at
		 FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("product with ID %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	p.Variations, err = r.loadVariations(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	if len(ids) == 0 {
		return map[string]*entity.Product{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, category, subcategory, brand, images, seller_id, created_at
		 FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]*entity.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	for _, p := range products {
		p.Variations, err = r.loadVariations(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return products, nil
}

func (r *productRepository) Update(ctx context.Context, p *entity.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET name = $2, description = $3, category = $4, subcategory = $5, brand = $6, images = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Category, p.Subcategory, p.Brand, pq.Array(p.Images),
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("product with ID %s not found", p.ID)
	}

	// Variations are replaced wholesale. Orders hold value snapshots, so
	// rewriting catalog rows never rewrites history.
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variations WHERE product_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to clear variations: %w", err)
	}
	if err := insertVariations(ctx, tx, p.ID, p.Variations); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("product with ID %s not found", id)
	}
	return nil
}

// ReserveItems is the single stock-decrement path for checkout and direct
// order placement. Every decrement is conditional on stock >= quantity, so
// two concurrent reservations for the last unit cannot both succeed.
func (r *productRepository) ReserveItems(ctx context.Context, items []repository.ReservationItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE product_variations SET stock = stock - $1
			 WHERE product_id = $2 AND color = $3 AND size = $4 AND stock >= $1`,
			item.Quantity, item.ProductID, item.Key.Color, item.Key.Size,
		)
		if err != nil {
			return fmt.Errorf("failed to reserve stock for %s: %w", item.ProductID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.Validationf(
				"product %s with variation %s/%s is not available in the requested quantity",
				item.ProductID, item.Key.Color, item.Key.Size,
			)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// ReleaseItems compensates a reservation whose payment did not go through.
func (r *productRepository) ReleaseItems(ctx context.Context, items []repository.ReservationItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			`UPDATE product_variations SET stock = stock + $1
			 WHERE product_id = $2 AND color = $3 AND size = $4`,
			item.Quantity, item.ProductID, item.Key.Color, item.Key.Size,
		)
		if err != nil {
			return fmt.Errorf("failed to release stock for %s: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit release: %w", err)
	}
	return nil
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil // already seeded
	}

	for i := range products {
		if err := r.Create(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].ID, err)
		}
	}
	return nil
}

func (r *productRepository) loadVariations(ctx context.Context, productID string) ([]entity.Variation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT color, size, price, stock FROM product_variations WHERE product_id = $1 ORDER BY color, size`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variations: %w", err)
	}
	defer rows.Close()

	var variations []entity.Variation
	for rows.Next() {
		var v entity.Variation
		var price string
		if err := rows.Scan(&v.Color, &v.Size, &price, &v.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan variation: %w", err)
		}
		v.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse variation price: %w", err)
		}
		variations = append(variations, v)
	}
	return variations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*entity.Product, error) {
	var p entity.Product
	var images pq.StringArray
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Subcategory, &p.Brand, &images, &p.SellerID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Images = images
	return &p, nil
}
