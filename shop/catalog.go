/*
catalog.go - Product CRUD and sale lookups

Catalog writes are admin-only; reads need any active account. Quantity is accepted on create (initial
stock) but UpdateProduct never changes it: stock moves only through sales,
reversals and AdjustStock.
*/
package shop

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxProductName        = 100
	maxProductDescription = 500
	maxProductCategory    = 50
)

// ProductInput carries caller-editable product fields.
type ProductInput struct {
	Name        string
	Description string
	Category    string
	UnitPrice   decimal.Decimal
	Quantity    int
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	switch {
	case in.Name == "":
		return &ValidationError{Field: "name", Message: "required"}
	case utf8.RuneCountInString(in.Name) > maxProductName:
		return &ValidationError{Field: "name", Message: "too long"}
	case utf8.RuneCountInString(in.Description) > maxProductDescription:
		return &ValidationError{Field: "description", Message: "too long"}
	case utf8.RuneCountInString(in.Category) > maxProductCategory:
		return &ValidationError{Field: "category", Message: "too long"}
	case in.UnitPrice.IsNegative():
		return &ValidationError{Field: "price", Message: "must not be negative"}
	case in.Quantity < 0:
		return &ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	in.UnitPrice = RoundMoney(in.UnitPrice)
	return nil
}

// CreateProduct adds a product with its initial stock.
func (e *Engine) CreateProduct(ctx context.Context, caller Principal, in ProductInput) (Product, error) {
	if err := in.normalize(); err != nil {
		return Product{}, err
	}
	if _, err := e.requireAdmin(ctx, caller); err != nil {
		return Product{}, err
	}

	p, err := e.store.CreateProduct(ctx, Product{
		Name:           in.Name,
		Description:    in.Description,
		Category:       in.Category,
		UnitPrice:      in.UnitPrice,
		QuantityOnHand: in.Quantity,
		CreatedAt:      e.now(),
	})
	if err != nil {
		return Product{}, err
	}
	e.logger.Info("product created", zap.Int64("product_id", int64(p.ID)), zap.String("name", p.Name))
	return p, nil
}

// UpdateProduct edits name, description, category and price.
func (e *Engine) UpdateProduct(ctx context.Context, caller Principal, id ProductID, in ProductInput) (Product, error) {
	in.Quantity = 0
	if err := in.normalize(); err != nil {
		return Product{}, err
	}
	if _, err := e.requireAdmin(ctx, caller); err != nil {
		return Product{}, err
	}

	var updated Product
	err := e.store.WithTx(ctx, func(s Store) error {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		p.Name = in.Name
		p.Description = in.Description
		p.Category = in.Category
		p.UnitPrice = in.UnitPrice
		if err := s.UpdateProduct(ctx, *p); err != nil {
			return err
		}
		updated = *p
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	e.logger.Info("product updated", zap.Int64("product_id", int64(id)))
	return updated, nil
}

// DeleteProduct removes a product. Line items of past sales keep their
// product reference; reversing those sales skips the restock.
func (e *Engine) DeleteProduct(ctx context.Context, caller Principal, id ProductID) error {
	if _, err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := e.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	e.logger.Info("product deleted", zap.Int64("product_id", int64(id)))
	return nil
}

func (e *Engine) GetProduct(ctx context.Context, caller Principal, id ProductID) (*Product, error) {
	if _, err := e.requireActive(ctx, caller); err != nil {
		return nil, err
	}
	return e.store.GetProduct(ctx, id)
}

// ListProducts returns products ordered by name, optionally filtered by a
// case-insensitive match on name or category.
func (e *Engine) ListProducts(ctx context.Context, caller Principal, search string) ([]Product, error) {
	if _, err := e.requireActive(ctx, caller); err != nil {
		return nil, err
	}
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return products, nil
	}
	out := products[:0]
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), search) ||
			strings.Contains(strings.ToLower(p.Category), search) {
			out = append(out, p)
		}
	}
	return out, nil
}

// AvailableProducts lists products with stock on hand, for the sale form.
func (e *Engine) AvailableProducts(ctx context.Context, caller Principal) ([]Product, error) {
	if _, err := e.requireActive(ctx, caller); err != nil {
		return nil, err
	}
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := products[:0]
	for _, p := range products {
		if p.QuantityOnHand > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (e *Engine) GetSale(ctx context.Context, caller Principal, id SaleID) (*SaleTransaction, error) {
	if _, err := e.requireActive(ctx, caller); err != nil {
		return nil, err
	}
	return e.store.GetSale(ctx, id)
}

func (e *Engine) ListSales(ctx context.Context, caller Principal, filter SaleFilter) ([]SaleTransaction, error) {
	if _, err := e.requireActive(ctx, caller); err != nil {
		return nil, err
	}
	return e.store.ListSales(ctx, filter)
}
