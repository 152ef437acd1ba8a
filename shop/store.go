/*
store.go - Persistence interfaces for products and sales

PURPOSE:
  Defines the boundary between the engine and the database. The engine never
  reads a quantity, computes a new one and writes it back: every stock change
  is a single conditional update performed by the store, so concurrent sales
  cannot oversell a product.

KEY INTERFACES:
  Store:   Products, stock updates, sales
  TxStore: Store + WithTx for all-or-nothing multi-row writes

STOCK CONTRACT:
  DecrementStock(id, n)  -> applied only when quantity >= n (else false)
  IncrementStock(id, n)  -> always applied
  ClampDecrementStock(id, n) -> quantity = max(0, quantity - n)
  All three return ErrNotFound (as *NotFoundError) for a missing product,
  except DecrementStock, which reports a missing product as not applied.

IMPLEMENTATIONS:
  - shop/store/memory.go: In-memory, for tests and dev
  - store/sqlstore: SQLite and MySQL
*/
package shop

import "context"

// Store handles persistence of products and sales.
type Store interface {
	// Products

	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id ProductID) error

	// Stock

	// DecrementStock subtracts n when at least n units are on hand.
	// Returns false, nil when the product is missing or short.
	DecrementStock(ctx context.Context, id ProductID, n int) (bool, error)
	IncrementStock(ctx context.Context, id ProductID, n int) (int, error)
	ClampDecrementStock(ctx context.Context, id ProductID, n int) (int, error)

	// Sales

	// InsertSale persists the sale and its items, assigning IDs in place.
	InsertSale(ctx context.Context, sale *SaleTransaction) error
	GetSale(ctx context.Context, id SaleID) (*SaleTransaction, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]SaleTransaction, error)
	// DeleteSale removes the line items and then the sale.
	DeleteSale(ctx context.Context, id SaleID) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
