/*
reports.go - Read-only aggregations over products and sales

Reports never write and are admin-only, except StockLevels which serves
background jobs that run without a caller. Money aggregates are computed
in Go with decimal so the same code serves every store dialect. Revenue is
the sum of TotalAmount (pre-discount), matching the dashboard of the shop
front-end.
*/
package shop

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold marks products with fewer units as low stock.
const DefaultLowStockThreshold = 10

type Reporter struct {
	store             Store
	gate              Gate
	lowStockThreshold int
	now               func() time.Time
}

func NewReporter(store Store, gate Gate, lowStockThreshold int) *Reporter {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &Reporter{store: store, gate: gate, lowStockThreshold: lowStockThreshold, now: time.Now}
}

type TopProduct struct {
	ProductID ProductID
	Name      string
	TotalSold int
	Revenue   decimal.Decimal
}

type MonthlySales struct {
	Year       int
	Month      time.Month
	SalesCount int
	Revenue    decimal.Decimal
}

type Summary struct {
	TotalProducts   int
	TotalStock      int
	TotalStockValue decimal.Decimal
	TotalSalesCount int
	TotalRevenue    decimal.Decimal
	TodaySalesCount int
	TodayRevenue    decimal.Decimal
	LowStock        []Product
	TopProducts     []TopProduct
	RecentSales     []SaleTransaction
	Monthly         []MonthlySales
}

type SalesReport struct {
	From         time.Time
	To           time.Time
	Sales        []SaleTransaction
	TotalSales   int
	TotalRevenue decimal.Decimal
	TotalFinal   decimal.Decimal
}

type InventoryReport struct {
	Products      []Product
	TotalProducts int
	TotalStock    int
	TotalValue    decimal.Decimal
	OutOfStock    int
	LowStock      int
}

// Summary builds the dashboard view.
func (r *Reporter) Summary(ctx context.Context, caller Principal) (*Summary, error) {
	if _, err := requireAdmin(ctx, r.gate, caller); err != nil {
		return nil, err
	}
	products, err := r.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := r.store.ListSales(ctx, SaleFilter{})
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalProducts:   len(products),
		TotalStockValue: decimal.Zero,
		TotalRevenue:    decimal.Zero,
		TodayRevenue:    decimal.Zero,
		TotalSalesCount: len(sales),
	}

	names := make(map[ProductID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
		s.TotalStock += p.QuantityOnHand
		s.TotalStockValue = s.TotalStockValue.Add(p.StockValue())
		if p.QuantityOnHand < r.lowStockThreshold {
			s.LowStock = append(s.LowStock, p)
		}
	}
	sort.SliceStable(s.LowStock, func(i, j int) bool {
		return s.LowStock[i].QuantityOnHand < s.LowStock[j].QuantityOnHand
	})

	now := r.now()
	today := startOfDay(now)
	top := make(map[ProductID]*TopProduct)
	for _, sale := range sales {
		s.TotalRevenue = s.TotalRevenue.Add(sale.TotalAmount)
		if !sale.SaleDate.Before(today) && sale.SaleDate.Before(today.AddDate(0, 0, 1)) {
			s.TodaySalesCount++
			s.TodayRevenue = s.TodayRevenue.Add(sale.TotalAmount)
		}
		for _, li := range sale.Items {
			tp, ok := top[li.ProductID]
			if !ok {
				tp = &TopProduct{ProductID: li.ProductID, Name: names[li.ProductID], Revenue: decimal.Zero}
				top[li.ProductID] = tp
			}
			tp.TotalSold += li.QuantitySold
			tp.Revenue = tp.Revenue.Add(li.LineTotal())
		}
	}

	for _, tp := range top {
		s.TopProducts = append(s.TopProducts, *tp)
	}
	sort.Slice(s.TopProducts, func(i, j int) bool {
		if s.TopProducts[i].TotalSold != s.TopProducts[j].TotalSold {
			return s.TopProducts[i].TotalSold > s.TopProducts[j].TotalSold
		}
		return s.TopProducts[i].ProductID < s.TopProducts[j].ProductID
	})
	if len(s.TopProducts) > 5 {
		s.TopProducts = s.TopProducts[:5]
	}

	// ListSales is newest first
	s.RecentSales = sales
	if len(s.RecentSales) > 10 {
		s.RecentSales = s.RecentSales[:10]
	}

	s.Monthly = monthly(sales, now.AddDate(0, -6, 0))
	return s, nil
}

// Sales returns the sales whose date falls in [from, to] by calendar day.
// A zero bound is open.
func (r *Reporter) Sales(ctx context.Context, caller Principal, from, to time.Time) (*SalesReport, error) {
	if _, err := requireAdmin(ctx, r.gate, caller); err != nil {
		return nil, err
	}
	filter := SaleFilter{}
	if !from.IsZero() {
		filter.From = startOfDay(from)
	}
	if !to.IsZero() {
		filter.To = startOfDay(to).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	sales, err := r.store.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}

	rep := &SalesReport{
		From:         from,
		To:           to,
		Sales:        sales,
		TotalSales:   len(sales),
		TotalRevenue: decimal.Zero,
		TotalFinal:   decimal.Zero,
	}
	for _, s := range sales {
		rep.TotalRevenue = rep.TotalRevenue.Add(s.TotalAmount)
		rep.TotalFinal = rep.TotalFinal.Add(s.FinalAmount)
	}
	return rep, nil
}

// Inventory returns all products ordered by name with stock totals.
func (r *Reporter) Inventory(ctx context.Context, caller Principal) (*InventoryReport, error) {
	if _, err := requireAdmin(ctx, r.gate, caller); err != nil {
		return nil, err
	}
	return r.StockLevels(ctx)
}

// StockLevels is Inventory without a caller check, for the stock monitor.
func (r *Reporter) StockLevels(ctx context.Context) (*InventoryReport, error) {
	products, err := r.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	rep := &InventoryReport{Products: products, TotalProducts: len(products), TotalValue: decimal.Zero}
	for _, p := range products {
		rep.TotalStock += p.QuantityOnHand
		rep.TotalValue = rep.TotalValue.Add(p.StockValue())
		switch {
		case p.QuantityOnHand == 0:
			rep.OutOfStock++
		case p.QuantityOnHand < r.lowStockThreshold:
			rep.LowStock++
		}
	}
	return rep, nil
}

// Monthly buckets sales dated at or after since by calendar month, oldest
// month first.
func (r *Reporter) Monthly(ctx context.Context, caller Principal, since time.Time) ([]MonthlySales, error) {
	if _, err := requireAdmin(ctx, r.gate, caller); err != nil {
		return nil, err
	}
	sales, err := r.store.ListSales(ctx, SaleFilter{From: since})
	if err != nil {
		return nil, err
	}
	return monthly(sales, since), nil
}

func monthly(sales []SaleTransaction, since time.Time) []MonthlySales {
	type ym struct {
		y int
		m time.Month
	}
	buckets := make(map[ym]*MonthlySales)
	for _, s := range sales {
		if s.SaleDate.Before(since) {
			continue
		}
		k := ym{s.SaleDate.Year(), s.SaleDate.Month()}
		b, ok := buckets[k]
		if !ok {
			b = &MonthlySales{Year: k.y, Month: k.m, Revenue: decimal.Zero}
			buckets[k] = b
		}
		b.SalesCount++
		b.Revenue = b.Revenue.Add(s.TotalAmount)
	}
	out := make([]MonthlySales, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
