package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/shop-engine/shop"
)

// =============================================================================
// SALE OPERATIONS
// =============================================================================

const saleColumns = `id, reference, sale_date, customer_name, phone_number,
	total_amount, discount_amount, final_amount, notes, created_by`

func (q queries) InsertSale(ctx context.Context, sale *shop.SaleTransaction) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO sales_transactions (reference, sale_date, customer_name, phone_number,
			total_amount, discount_amount, final_amount, notes, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sale.Reference,
		formatTime(sale.SaleDate),
		sale.CustomerName,
		sale.PhoneNumber,
		shop.FormatMoney(sale.TotalAmount),
		shop.FormatMoney(sale.DiscountAmount),
		shop.FormatMoney(sale.FinalAmount),
		sale.Notes,
		sale.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sale.ID = shop.SaleID(id)

	for i := range sale.Items {
		item := &sale.Items[i]
		item.TransactionID = sale.ID
		res, err := q.q.ExecContext(ctx, `
			INSERT INTO sales_items (transaction_id, product_id, quantity_sold, unit_price)
			VALUES (?, ?, ?, ?)
		`, sale.ID, item.ProductID, item.QuantitySold, shop.FormatMoney(item.UnitPriceAtSale))
		if err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = shop.LineItemID(itemID)
	}
	return nil
}

func (q queries) GetSale(ctx context.Context, id shop.SaleID) (*shop.SaleTransaction, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales_transactions WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shop.SaleNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get sale %d: %w", id, err)
	}

	items, err := q.loadItems(ctx, []shop.SaleID{id})
	if err != nil {
		return nil, err
	}
	sale.Items = items[id]
	return sale, nil
}

// ListSales returns matching sales newest first. From and To are inclusive.
func (q queries) ListSales(ctx context.Context, filter shop.SaleFilter) ([]shop.SaleTransaction, error) {
	var (
		where []string
		args  []any
	)
	if search := strings.TrimSpace(filter.CustomerSearch); search != "" {
		where = append(where, `LOWER(customer_name) LIKE ? ESCAPE '!'`)
		args = append(args, likePattern(search))
	}
	if !filter.From.IsZero() {
		where = append(where, `sale_date >= ?`)
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, `sale_date <= ?`)
		args = append(args, formatTime(filter.To))
	}

	query := `SELECT ` + saleColumns + ` FROM sales_transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sale_date DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	var (
		sales []shop.SaleTransaction
		ids   []shop.SaleID
	)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	items, err := q.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

// DeleteSale removes the line items first, then the sale row.
func (q queries) DeleteSale(ctx context.Context, id shop.SaleID) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM sales_items WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("delete sale items %d: %w", id, err)
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM sales_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sale %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shop.SaleNotFound(id)
	}
	return nil
}

// loadItems fetches the line items of the given sales, keyed by sale.
// ProductName is empty when the product has since been deleted.
func (q queries) loadItems(ctx context.Context, ids []shop.SaleID) (map[shop.SaleID][]shop.SaleLineItem, error) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT si.id, si.transaction_id, si.product_id, COALESCE(p.name, ''), si.quantity_sold, si.unit_price
		FROM sales_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.transaction_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY si.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	items := make(map[shop.SaleID][]shop.SaleLineItem, len(ids))
	for rows.Next() {
		var li shop.SaleLineItem
		if err := rows.Scan(&li.ID, &li.TransactionID, &li.ProductID, &li.ProductName, &li.QuantitySold, &li.UnitPriceAtSale); err != nil {
			return nil, err
		}
		items[li.TransactionID] = append(items[li.TransactionID], li)
	}
	return items, rows.Err()
}

func scanSale(row scanner) (*shop.SaleTransaction, error) {
	var (
		s        shop.SaleTransaction
		saleDate string
	)
	if err := row.Scan(
		&s.ID, &s.Reference, &saleDate, &s.CustomerName, &s.PhoneNumber,
		&s.TotalAmount, &s.DiscountAmount, &s.FinalAmount, &s.Notes, &s.CreatedBy,
	); err != nil {
		return nil, err
	}
	s.SaleDate = parseTime(saleDate)
	return &s, nil
}
