// Package store provides in-memory shop.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/shop-engine/shop"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	products map[shop.ProductID]shop.Product
	sales    map[shop.SaleID]shop.SaleTransaction

	nextProduct shop.ProductID
	nextSale    shop.SaleID
	nextLine    shop.LineItemID
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[shop.ProductID]shop.Product),
		sales:    make(map[shop.SaleID]shop.SaleTransaction),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) GetProduct(_ context.Context, id shop.ProductID) (*shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProductLocked(id)
}

func (m *Memory) getProductLocked(id shop.ProductID) (*shop.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, shop.ProductNotFound(id)
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]shop.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listProductsLocked(), nil
}

func (m *Memory) listProductsLocked() []shop.Product {
	result := make([]shop.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) CreateProduct(_ context.Context, p shop.Product) (shop.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createProductLocked(p), nil
}

func (m *Memory) createProductLocked(p shop.Product) shop.Product {
	m.nextProduct++
	p.ID = m.nextProduct
	m.products[p.ID] = p
	return p
}

func (m *Memory) UpdateProduct(_ context.Context, p shop.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateProductLocked(p)
}

func (m *Memory) updateProductLocked(p shop.Product) error {
	existing, ok := m.products[p.ID]
	if !ok {
		return shop.ProductNotFound(p.ID)
	}
	p.QuantityOnHand = existing.QuantityOnHand
	p.CreatedAt = existing.CreatedAt
	m.products[p.ID] = p
	return nil
}

func (m *Memory) DeleteProduct(_ context.Context, id shop.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteProductLocked(id)
}

func (m *Memory) deleteProductLocked(id shop.ProductID) error {
	if _, ok := m.products[id]; !ok {
		return shop.ProductNotFound(id)
	}
	delete(m.products, id)
	return nil
}

// =============================================================================
// STOCK
// =============================================================================

func (m *Memory) DecrementStock(_ context.Context, id shop.ProductID, n int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decrementLocked(id, n), nil
}

func (m *Memory) decrementLocked(id shop.ProductID, n int) bool {
	p, ok := m.products[id]
	if !ok || p.QuantityOnHand < n {
		return false
	}
	p.QuantityOnHand -= n
	m.products[id] = p
	return true
}

func (m *Memory) IncrementStock(_ context.Context, id shop.ProductID, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incrementLocked(id, n)
}

func (m *Memory) incrementLocked(id shop.ProductID, n int) (int, error) {
	p, ok := m.products[id]
	if !ok {
		return 0, shop.ProductNotFound(id)
	}
	p.QuantityOnHand += n
	m.products[id] = p
	return p.QuantityOnHand, nil
}

func (m *Memory) ClampDecrementStock(_ context.Context, id shop.ProductID, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clampDecrementLocked(id, n)
}

func (m *Memory) clampDecrementLocked(id shop.ProductID, n int) (int, error) {
	p, ok := m.products[id]
	if !ok {
		return 0, shop.ProductNotFound(id)
	}
	p.QuantityOnHand -= n
	if p.QuantityOnHand < 0 {
		p.QuantityOnHand = 0
	}
	m.products[id] = p
	return p.QuantityOnHand, nil
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) InsertSale(_ context.Context, sale *shop.SaleTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertSaleLocked(sale)
	return nil
}

func (m *Memory) insertSaleLocked(sale *shop.SaleTransaction) {
	m.nextSale++
	sale.ID = m.nextSale
	for i := range sale.Items {
		m.nextLine++
		sale.Items[i].ID = m.nextLine
		sale.Items[i].TransactionID = sale.ID
	}
	m.sales[sale.ID] = cloneSale(*sale)
}

func (m *Memory) GetSale(_ context.Context, id shop.SaleID) (*shop.SaleTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSaleLocked(id)
}

func (m *Memory) getSaleLocked(id shop.SaleID) (*shop.SaleTransaction, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, shop.SaleNotFound(id)
	}
	out := m.withProductNames(cloneSale(s))
	return &out, nil
}

func (m *Memory) ListSales(_ context.Context, filter shop.SaleFilter) ([]shop.SaleTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSalesLocked(filter), nil
}

func (m *Memory) listSalesLocked(filter shop.SaleFilter) []shop.SaleTransaction {
	search := strings.ToLower(strings.TrimSpace(filter.CustomerSearch))
	result := make([]shop.SaleTransaction, 0, len(m.sales))
	for _, s := range m.sales {
		if search != "" && !strings.Contains(strings.ToLower(s.CustomerName), search) {
			continue
		}
		if !filter.From.IsZero() && s.SaleDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && s.SaleDate.After(filter.To) {
			continue
		}
		result = append(result, m.withProductNames(cloneSale(s)))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SaleDate.Equal(result[j].SaleDate) {
			return result[i].SaleDate.After(result[j].SaleDate)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result
}

func (m *Memory) DeleteSale(_ context.Context, id shop.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSaleLocked(id)
}

func (m *Memory) deleteSaleLocked(id shop.SaleID) error {
	if _, ok := m.sales[id]; !ok {
		return shop.SaleNotFound(id)
	}
	delete(m.sales, id)
	return nil
}

func (m *Memory) withProductNames(s shop.SaleTransaction) shop.SaleTransaction {
	for i := range s.Items {
		if p, ok := m.products[s.Items[i].ProductID]; ok {
			s.Items[i].ProductName = p.Name
		} else {
			s.Items[i].ProductName = ""
		}
	}
	return s
}

func cloneSale(s shop.SaleTransaction) shop.SaleTransaction {
	s.Items = append([]shop.SaleLineItem(nil), s.Items...)
	return s
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The store lock is held for the whole of fn, so transactions serialize.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(shop.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	products    map[shop.ProductID]shop.Product
	sales       map[shop.SaleID]shop.SaleTransaction
	nextProduct shop.ProductID
	nextSale    shop.SaleID
	nextLine    shop.LineItemID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	products := make(map[shop.ProductID]shop.Product, len(tm.products))
	for k, v := range tm.products {
		products[k] = v
	}
	sales := make(map[shop.SaleID]shop.SaleTransaction, len(tm.sales))
	for k, v := range tm.sales {
		sales[k] = cloneSale(v)
	}
	return memorySnapshot{
		products:    products,
		sales:       sales,
		nextProduct: tm.nextProduct,
		nextSale:    tm.nextSale,
		nextLine:    tm.nextLine,
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.products = s.products
	tm.sales = s.sales
	tm.nextProduct = s.nextProduct
	tm.nextSale = s.nextSale
	tm.nextLine = s.nextLine
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it calls the *Locked helpers directly.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetProduct(_ context.Context, id shop.ProductID) (*shop.Product, error) {
	return tv.parent.getProductLocked(id)
}

func (tv *txMemoryView) ListProducts(_ context.Context) ([]shop.Product, error) {
	return tv.parent.listProductsLocked(), nil
}

func (tv *txMemoryView) CreateProduct(_ context.Context, p shop.Product) (shop.Product, error) {
	return tv.parent.createProductLocked(p), nil
}

func (tv *txMemoryView) UpdateProduct(_ context.Context, p shop.Product) error {
	return tv.parent.updateProductLocked(p)
}

func (tv *txMemoryView) DeleteProduct(_ context.Context, id shop.ProductID) error {
	return tv.parent.deleteProductLocked(id)
}

func (tv *txMemoryView) DecrementStock(_ context.Context, id shop.ProductID, n int) (bool, error) {
	return tv.parent.decrementLocked(id, n), nil
}

func (tv *txMemoryView) IncrementStock(_ context.Context, id shop.ProductID, n int) (int, error) {
	return tv.parent.incrementLocked(id, n)
}

func (tv *txMemoryView) ClampDecrementStock(_ context.Context, id shop.ProductID, n int) (int, error) {
	return tv.parent.clampDecrementLocked(id, n)
}

func (tv *txMemoryView) InsertSale(_ context.Context, sale *shop.SaleTransaction) error {
	tv.parent.insertSaleLocked(sale)
	return nil
}

func (tv *txMemoryView) GetSale(_ context.Context, id shop.SaleID) (*shop.SaleTransaction, error) {
	return tv.parent.getSaleLocked(id)
}

func (tv *txMemoryView) ListSales(_ context.Context, filter shop.SaleFilter) ([]shop.SaleTransaction, error) {
	return tv.parent.listSalesLocked(filter), nil
}

func (tv *txMemoryView) DeleteSale(_ context.Context, id shop.SaleID) error {
	return tv.parent.deleteSaleLocked(id)
}
