package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/shop-engine/shop"
)

// =============================================================================
// PRODUCT OPERATIONS
// =============================================================================

const productColumns = `id, name, description, category, price, quantity, created_at`

func (q queries) GetProduct(ctx context.Context, id shop.ProductID) (*shop.Product, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shop.ProductNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (q queries) ListProducts(ctx context.Context) ([]shop.Product, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []shop.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (q queries) CreateProduct(ctx context.Context, p shop.Product) (shop.Product, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO products (name, description, category, price, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, p.Category, shop.FormatMoney(p.UnitPrice), p.QuantityOnHand, formatTime(p.CreatedAt))
	if err != nil {
		return shop.Product{}, fmt.Errorf("create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return shop.Product{}, err
	}
	p.ID = shop.ProductID(id)
	return p, nil
}

// UpdateProduct writes the catalog fields. Quantity is owned by the stock
// operations and is never written here.
func (q queries) UpdateProduct(ctx context.Context, p shop.Product) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, category = ?, price = ?
		WHERE id = ?
	`, p.Name, p.Description, p.Category, shop.FormatMoney(p.UnitPrice), p.ID)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	// MySQL reports 0 affected rows for an unchanged row.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetProduct(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (q queries) DeleteProduct(ctx context.Context, id shop.ProductID) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shop.ProductNotFound(id)
	}
	return nil
}

// =============================================================================
// STOCK OPERATIONS
// =============================================================================

func (q queries) DecrementStock(ctx context.Context, id shop.ProductID, n int) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`,
		n, id, n)
	if err != nil {
		return false, fmt.Errorf("decrement stock %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (q queries) IncrementStock(ctx context.Context, id shop.ProductID, n int) (int, error) {
	if _, err := q.q.ExecContext(ctx,
		`UPDATE products SET quantity = quantity + ? WHERE id = ?`, n, id); err != nil {
		return 0, fmt.Errorf("increment stock %d: %w", id, err)
	}
	return q.quantity(ctx, id)
}

func (q queries) ClampDecrementStock(ctx context.Context, id shop.ProductID, n int) (int, error) {
	if _, err := q.q.ExecContext(ctx,
		`UPDATE products SET quantity = CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END WHERE id = ?`,
		n, n, id); err != nil {
		return 0, fmt.Errorf("decrement stock %d: %w", id, err)
	}
	return q.quantity(ctx, id)
}

// quantity reads back the quantity after an update. RowsAffected cannot
// tell a missing product from a no-op update on MySQL.
func (q queries) quantity(ctx context.Context, id shop.ProductID) (int, error) {
	var qty int
	err := q.q.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = ?`, id).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, shop.ProductNotFound(id)
	}
	if err != nil {
		return 0, fmt.Errorf("read stock %d: %w", id, err)
	}
	return qty, nil
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*shop.Product, error) {
	var (
		p         shop.Product
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.QuantityOnHand, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
