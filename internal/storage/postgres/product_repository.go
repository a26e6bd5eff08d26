package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository struct {
	conn
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{conn: conn{pool: pool}}
}

const productColumns = `id, name, description, image_url, category, price, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Category, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	if !validUUID(id) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at ASC, id ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate products: %w", rows.Err())
	}
	return products, nil
}

// LockProducts takes FOR UPDATE locks on the listed products in id order.
// Must be called inside WithTx; outside a transaction the locks end immediately.
func (r *ProductRepository) LockProducts(ctx context.Context, ids []string) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	const query = `SELECT id FROM products WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	rows, err := r.query(ctx, query, valid)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if rows.Err() != nil {
		return fmt.Errorf("lock products: %w", rows.Err())
	}
	return nil
}

func (r *ProductRepository) DecrementStockIfSufficient(ctx context.Context, id string, quantity int) error {
	if !validUUID(id) {
		return domain.ErrProductNotFound
	}
	const stmt = `
UPDATE products
SET stock = stock - $2, updated_at = NOW()
WHERE id = $1 AND stock >= $2`

	tag, err := r.exec(ctx, stmt, id, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *ProductRepository) Create(ctx context.Context, p domain.Product) error {
	const stmt = `
INSERT INTO products (id, name, description, image_url, category, price, stock, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt, p.ID, p.Name, p.Description, p.ImageURL, p.Category, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidStock
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p domain.Product) error {
	if !validUUID(p.ID) {
		return domain.ErrProductNotFound
	}
	const stmt = `
UPDATE products
SET name = $2, description = $3, image_url = $4, category = $5, price = $6, stock = $7, updated_at = $8
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, p.ID, p.Name, p.Description, p.ImageURL, p.Category, p.Price, p.Stock, p.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidStock
		}
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// Delete removes a product. Products referenced by past orders are kept and
// reported as ErrProductInUse.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return domain.ErrProductNotFound
	}
	tag, err := r.exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
