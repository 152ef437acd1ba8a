/*
Package shop provides the core of the shop management engine.

PURPOSE:
  This package owns the inventory and sales ledger of a small shop. It
  converts a cart of (product, quantity) rows into a persisted sale while
  decrementing stock, computes discounted totals, and reverses sales by
  restocking and deleting them. Everything around it (HTTP, accounts,
  reports formatting) calls into this package through the Engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: catalog row with price and quantity on hand
  - SaleTransaction: committed sale with totals and line items
  - SaleLineItem: one product row of a sale with a price snapshot
  - CartItem: caller-submitted (product, quantity) row, not yet persisted
  - Principal: explicit caller identity passed to every operation

MONEY:
  All amounts are decimal.Decimal with a fixed 2-digit scale. Rounding is
  done with RoundMoney at the points where the ledger persists a value.

LIFECYCLE:
  A SaleTransaction and its line items are created together at commit and
  never edited afterward. The only mutation is whole-transaction reversal.

SEE ALSO:
  - sale.go: CommitSale
  - reversal.go: ReverseSale, ReverseSales
  - stock.go: AdjustStock
  - store.go: Persistence interfaces
*/
package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID int64
type SaleID int64
type LineItemID int64
type UserID int64

// =============================================================================
// MONEY
// =============================================================================

// MoneyScale is the number of fractional digits every persisted amount keeps.
const MoneyScale = 2

// RoundMoney rounds half to even (banker's rounding) to MoneyScale places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyScale)
}

// FormatMoney renders an amount with exactly two decimals, e.g. "140.00".
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// MustParseMoney parses s or panics. Intended for seed data and tests.
func MustParseMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is a catalog entry. QuantityOnHand is never negative: it is only
// changed through the Engine, which uses conditional store updates.
type Product struct {
	ID             ProductID
	Name           string
	Description    string
	Category       string
	UnitPrice      decimal.Decimal
	QuantityOnHand int
	CreatedAt      time.Time
}

// StockValue is UnitPrice * QuantityOnHand.
func (p Product) StockValue() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.QuantityOnHand)))
}

// =============================================================================
// SALE
// =============================================================================

// SaleTransaction is a committed sale.
//
// INVARIANTS:
//   - TotalAmount = sum of line totals, before discount
//   - DiscountAmount >= 0
//   - FinalAmount = round(TotalAmount - DiscountAmount, 2)
type SaleTransaction struct {
	ID             SaleID
	Reference      string // printable receipt reference, unique per sale
	SaleDate       time.Time
	CustomerName   string
	PhoneNumber    string
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Notes          string
	CreatedBy      UserID
	Items          []SaleLineItem
}

// SaleLineItem is owned by its SaleTransaction and references a Product.
// UnitPriceAtSale is a snapshot; later product price changes do not touch it.
type SaleLineItem struct {
	ID              LineItemID
	TransactionID   SaleID
	ProductID       ProductID
	ProductName     string // filled on reads when the product still exists
	QuantitySold    int
	UnitPriceAtSale decimal.Decimal
}

// LineTotal is UnitPriceAtSale * QuantitySold.
func (li SaleLineItem) LineTotal() decimal.Decimal {
	return li.UnitPriceAtSale.Mul(decimal.NewFromInt(int64(li.QuantitySold)))
}

// =============================================================================
// CART
// =============================================================================

type CartItem struct {
	ProductID ProductID
	Quantity  int
}

// SaleRequest is the input to CommitSale. Optional fields are empty strings
// or a nil Discount.
type SaleRequest struct {
	Items        []CartItem
	CustomerName string
	PhoneNumber  string
	Notes        string
	Discount     *decimal.Decimal
}

// SkipReason explains why a cart row did not become a line item.
type SkipReason string

const (
	SkipNonPositiveQuantity SkipReason = "non_positive_quantity"
	SkipUnknownProduct      SkipReason = "unknown_product"
	SkipInsufficientStock   SkipReason = "insufficient_stock"
)

// SkippedLine is a per-row warning returned to the caller of CommitSale.
type SkippedLine struct {
	Index     int
	ProductID ProductID
	Quantity  int
	Reason    SkipReason
}

// Receipt is the result of CommitSale.
type Receipt struct {
	Sale    SaleTransaction
	Skipped []SkippedLine
}

// =============================================================================
// REVERSAL RESULTS
// =============================================================================

// Restock records stock returned to a product by a reversal.
type Restock struct {
	ProductID   ProductID
	Quantity    int
	NewQuantity int
}

// Reversal is the result of reversing one sale.
type Reversal struct {
	SaleID    SaleID
	Restocked []Restock
	// Orphaned lists line items whose product no longer exists; their stock
	// is not restored.
	Orphaned []LineItemID
}

// BulkReversal is the result of ReverseSales.
type BulkReversal struct {
	Reversed []Reversal
	Missing  []SaleID
}

// =============================================================================
// STOCK ADJUSTMENT
// =============================================================================

type AdjustmentKind string

const (
	AdjustIncrease AdjustmentKind = "increase"
	AdjustDecrease AdjustmentKind = "decrease"
)

// =============================================================================
// IDENTITY
// =============================================================================

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleStaff Role = "Staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleStaff }

// Principal is the caller of an engine operation. It is always passed
// explicitly; the engine keeps no ambient "current user".
type Principal struct {
	UserID   UserID
	Username string
	Role     Role
	Active   bool
}

func (p Principal) IsAdmin() bool     { return p.Active && p.Role == RoleAdmin }
func (p Principal) IsAnonymous() bool { return p.UserID == 0 }

// =============================================================================
// FILTERS
// =============================================================================

// SaleFilter narrows ListSales. Zero values mean "no constraint".
type SaleFilter struct {
	CustomerSearch string
	From           time.Time
	To             time.Time
	Limit          int
}
