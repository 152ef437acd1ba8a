/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in package shop from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts in responses are strings with exactly two decimals ("140.00").
  Amounts in requests accept either a JSON number or a string.

TYPES:
  Products:  ProductDTO, ProductRequest, AdjustStockRequest
  Sales:     SaleDTO, SaleItemDTO, CommitSaleRequest, ReceiptDTO
  Reversal:  ReverseSaleRequest, ReverseSalesRequest, ReversalDTO
  Accounts:  LoginRequest, LoginResponse, UserDTO, RegisterRequest
  Reports:   SummaryDTO, SalesReportDTO, InventoryReportDTO

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/shop"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	StockValue  string    `json:"stock_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductRequest is the body of product create and update. Quantity is
// ignored on update.
type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// AdjustStockRequest is the body of POST /api/products/{id}/stock.
type AdjustStockRequest struct {
	Amount int    `json:"amount"`
	Kind   string `json:"kind"` // "increase" or "decrease"
}

// =============================================================================
// SALES
// =============================================================================

type CartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CommitSaleRequest is the body of POST /api/sales.
type CommitSaleRequest struct {
	Items        []CartItemRequest `json:"items"`
	CustomerName string            `json:"customer_name"`
	PhoneNumber  string            `json:"phone_number"`
	Notes        string            `json:"notes"`
	Discount     *decimal.Decimal  `json:"discount,omitempty"`
}

type SaleItemDTO struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// SaleDTO represents a sale transaction in API responses.
type SaleDTO struct {
	ID             int64         `json:"id"`
	Reference      string        `json:"reference"`
	SaleDate       time.Time     `json:"sale_date"`
	CustomerName   string        `json:"customer_name,omitempty"`
	PhoneNumber    string        `json:"phone_number,omitempty"`
	TotalAmount    string        `json:"total_amount"`
	DiscountAmount string        `json:"discount_amount"`
	FinalAmount    string        `json:"final_amount"`
	Notes          string        `json:"notes,omitempty"`
	CreatedBy      int64         `json:"created_by,omitempty"`
	Items          []SaleItemDTO `json:"items"`
}

type SkippedLineDTO struct {
	Index     int    `json:"index"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// ReceiptDTO is the response of a committed sale.
type ReceiptDTO struct {
	Sale     SaleDTO          `json:"sale"`
	Warnings []SkippedLineDTO `json:"warnings"`
}

// ReverseSaleRequest carries the caller's re-entered password.
type ReverseSaleRequest struct {
	Password string `json:"password"`
}

type ReverseSalesRequest struct {
	SaleIDs  []int64 `json:"sale_ids"`
	Password string  `json:"password"`
}

type RestockDTO struct {
	ProductID   int64 `json:"product_id"`
	Quantity    int   `json:"quantity"`
	NewQuantity int   `json:"new_quantity"`
}

type ReversalDTO struct {
	SaleID    int64        `json:"sale_id"`
	Restocked []RestockDTO `json:"restocked"`
	Orphaned  []int64      `json:"orphaned_items,omitempty"`
}

type BulkReversalDTO struct {
	Reversed []ReversalDTO `json:"reversed"`
	Missing  []int64       `json:"missing"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

type UserDTO struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// =============================================================================
// REPORTS
// =============================================================================

type TopProductDTO struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int    `json:"total_sold"`
	Revenue   string `json:"revenue"`
}

type MonthlySalesDTO struct {
	Month      string `json:"month"` // "2026-03"
	SalesCount int    `json:"sales_count"`
	Revenue    string `json:"revenue"`
}

type SummaryDTO struct {
	TotalProducts   int               `json:"total_products"`
	TotalStock      int               `json:"total_stock"`
	TotalStockValue string            `json:"total_stock_value"`
	TotalSalesCount int               `json:"total_sales_count"`
	TotalRevenue    string            `json:"total_revenue"`
	TodaySalesCount int               `json:"today_sales_count"`
	TodayRevenue    string            `json:"today_revenue"`
	LowStock        []ProductDTO      `json:"low_stock"`
	TopProducts     []TopProductDTO   `json:"top_products"`
	RecentSales     []SaleDTO         `json:"recent_sales"`
	Monthly         []MonthlySalesDTO `json:"monthly"`
}

type SalesReportDTO struct {
	From         string    `json:"from,omitempty"`
	To           string    `json:"to,omitempty"`
	Sales        []SaleDTO `json:"sales"`
	TotalSales   int       `json:"total_sales"`
	TotalRevenue string    `json:"total_revenue"`
	TotalFinal   string    `json:"total_final"`
}

type InventoryReportDTO struct {
	Products      []ProductDTO `json:"products"`
	TotalProducts int          `json:"total_products"`
	TotalStock    int          `json:"total_stock"`
	TotalValue    string       `json:"total_value"`
	OutOfStock    int          `json:"out_of_stock"`
	LowStock      int          `json:"low_stock"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProductDTO(p shop.Product) ProductDTO {
	return ProductDTO{
		ID:          int64(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       shop.FormatMoney(p.UnitPrice),
		Quantity:    p.QuantityOnHand,
		StockValue:  shop.FormatMoney(p.StockValue()),
		CreatedAt:   p.CreatedAt,
	}
}

func toProductDTOs(products []shop.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toProductDTO(p))
	}
	return out
}

func toSaleDTO(s shop.SaleTransaction) SaleDTO {
	dto := SaleDTO{
		ID:             int64(s.ID),
		Reference:      s.Reference,
		SaleDate:       s.SaleDate,
		CustomerName:   s.CustomerName,
		PhoneNumber:    s.PhoneNumber,
		TotalAmount:    shop.FormatMoney(s.TotalAmount),
		DiscountAmount: shop.FormatMoney(s.DiscountAmount),
		FinalAmount:    shop.FormatMoney(s.FinalAmount),
		Notes:          s.Notes,
		CreatedBy:      int64(s.CreatedBy),
		Items:          make([]SaleItemDTO, 0, len(s.Items)),
	}
	for _, li := range s.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ID:          int64(li.ID),
			ProductID:   int64(li.ProductID),
			ProductName: li.ProductName,
			Quantity:    li.QuantitySold,
			UnitPrice:   shop.FormatMoney(li.UnitPriceAtSale),
			LineTotal:   shop.FormatMoney(li.LineTotal()),
		})
	}
	return dto
}

func toSaleDTOs(sales []shop.SaleTransaction) []SaleDTO {
	out := make([]SaleDTO, 0, len(sales))
	for _, s := range sales {
		out = append(out, toSaleDTO(s))
	}
	return out
}

func toReceiptDTO(r *shop.Receipt) ReceiptDTO {
	dto := ReceiptDTO{Sale: toSaleDTO(r.Sale), Warnings: make([]SkippedLineDTO, 0, len(r.Skipped))}
	for _, sk := range r.Skipped {
		dto.Warnings = append(dto.Warnings, SkippedLineDTO{
			Index:     sk.Index,
			ProductID: int64(sk.ProductID),
			Quantity:  sk.Quantity,
			Reason:    string(sk.Reason),
		})
	}
	return dto
}

func toReversalDTO(r shop.Reversal) ReversalDTO {
	dto := ReversalDTO{SaleID: int64(r.SaleID), Restocked: make([]RestockDTO, 0, len(r.Restocked))}
	for _, rs := range r.Restocked {
		dto.Restocked = append(dto.Restocked, RestockDTO{
			ProductID:   int64(rs.ProductID),
			Quantity:    rs.Quantity,
			NewQuantity: rs.NewQuantity,
		})
	}
	for _, id := range r.Orphaned {
		dto.Orphaned = append(dto.Orphaned, int64(id))
	}
	return dto
}

func toBulkReversalDTO(b *shop.BulkReversal) BulkReversalDTO {
	dto := BulkReversalDTO{
		Reversed: make([]ReversalDTO, 0, len(b.Reversed)),
		Missing:  make([]int64, 0, len(b.Missing)),
	}
	for _, r := range b.Reversed {
		dto.Reversed = append(dto.Reversed, toReversalDTO(r))
	}
	for _, id := range b.Missing {
		dto.Missing = append(dto.Missing, int64(id))
	}
	return dto
}

func toUserDTO(u auth.User) UserDTO {
	return UserDTO{
		ID:        int64(u.ID),
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func toMonthlyDTOs(months []shop.MonthlySales) []MonthlySalesDTO {
	out := make([]MonthlySalesDTO, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlySalesDTO{
			Month:      time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
			SalesCount: m.SalesCount,
			Revenue:    shop.FormatMoney(m.Revenue),
		})
	}
	return out
}

func toSummaryDTO(s *shop.Summary) SummaryDTO {
	dto := SummaryDTO{
		TotalProducts:   s.TotalProducts,
		TotalStock:      s.TotalStock,
		TotalStockValue: shop.FormatMoney(s.TotalStockValue),
		TotalSalesCount: s.TotalSalesCount,
		TotalRevenue:    shop.FormatMoney(s.TotalRevenue),
		TodaySalesCount: s.TodaySalesCount,
		TodayRevenue:    shop.FormatMoney(s.TodayRevenue),
		LowStock:        toProductDTOs(s.LowStock),
		TopProducts:     make([]TopProductDTO, 0, len(s.TopProducts)),
		RecentSales:     toSaleDTOs(s.RecentSales),
		Monthly:         toMonthlyDTOs(s.Monthly),
	}
	for _, tp := range s.TopProducts {
		dto.TopProducts = append(dto.TopProducts, TopProductDTO{
			ProductID: int64(tp.ProductID),
			Name:      tp.Name,
			TotalSold: tp.TotalSold,
			Revenue:   shop.FormatMoney(tp.Revenue),
		})
	}
	return dto
}
