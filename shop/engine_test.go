package shop_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/shop-engine/shop"
	"github.com/warp/shop-engine/shop/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testGate is an in-memory shop.Gate.
type testGate struct {
	mu        sync.Mutex
	users     map[shop.UserID]shop.Principal
	passwords map[shop.UserID]string
}

func newTestGate() *testGate {
	return &testGate{
		users:     make(map[shop.UserID]shop.Principal),
		passwords: make(map[shop.UserID]string),
	}
}

func (g *testGate) add(id shop.UserID, role shop.Role, password string) shop.Principal {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := shop.Principal{UserID: id, Username: string(role) + "-user", Role: role, Active: true}
	g.users[id] = p
	g.passwords[id] = password
	return p
}

func (g *testGate) remove(id shop.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.users, id)
}

func (g *testGate) Resolve(_ context.Context, id shop.UserID) (shop.Principal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.users[id]
	if !ok {
		return shop.Principal{}, &shop.NotFoundError{Kind: "user", ID: int64(id)}
	}
	return p, nil
}

func (g *testGate) VerifyCredential(_ context.Context, id shop.UserID, secret string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.passwords[id] == secret, nil
}

func (g *testGate) ActiveAdminCount(_ context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.users {
		if p.IsAdmin() {
			n++
		}
	}
	return n, nil
}

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	engine *shop.Engine
	store  *store.TxMemory
	gate   *testGate
	admin  shop.Principal
	admin2 shop.Principal
	staff  shop.Principal
}

func newFixture(t *testing.T, opts ...shop.Option) *fixture {
	t.Helper()
	f := &fixture{store: store.NewTxMemory(), gate: newTestGate()}
	f.admin = f.gate.add(1, shop.RoleAdmin, "admin-pass")
	f.admin2 = f.gate.add(2, shop.RoleAdmin, "second-pass")
	f.staff = f.gate.add(3, shop.RoleStaff, "staff-pass")

	opts = append([]shop.Option{
		shop.WithLogger(zaptest.NewLogger(t)),
		shop.WithClock(func() time.Time { return testNow }),
	}, opts...)
	f.engine = shop.NewEngine(f.store, f.gate, opts...)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, qty int) shop.Product {
	t.Helper()
	p, err := f.store.CreateProduct(context.Background(), shop.Product{
		Name:           name,
		UnitPrice:      shop.MustParseMoney(price),
		QuantityOnHand: qty,
		CreatedAt:      testNow,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) quantity(t *testing.T, id shop.ProductID) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.QuantityOnHand
}

func money(s string) *decimal.Decimal {
	d := shop.MustParseMoney(s)
	return &d
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, shop.FormatMoney(got), msgAndArgs...)
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommitSale_RoundTrip(t *testing.T) {
	// GIVEN: product P with quantity 10 and price 50.00
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", "50.00", 10)

	// WHEN: staff sells 3 with a 10.00 discount
	receipt, err := f.engine.CommitSale(ctx, f.staff, shop.SaleRequest{
		Items:        []shop.CartItem{{ProductID: p.ID, Quantity: 3}},
		CustomerName: "  Sita  ",
		Discount:     money("10.00"),
	})

	// THEN: totals are computed and stock decremented
	require.NoError(t, err)
	sale := receipt.Sale
	assert.Empty(t, receipt.Skipped)
	assertMoney(t, "150.00", sale.TotalAmount)
	assertMoney(t, "10.00", sale.DiscountAmount)
	assertMoney(t, "140.00", sale.FinalAmount)
	assert.Equal(t, "Sita", sale.CustomerName)
	assert.Equal(t, f.staff.UserID, sale.CreatedBy)
	assert.True(t, sale.SaleDate.Equal(testNow))
	assert.NotEmpty(t, sale.Reference)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 3, sale.Items[0].QuantitySold)
	assertMoney(t, "50.00", sale.Items[0].UnitPriceAtSale)
	assert.Equal(t, 7, f.quantity(t, p.ID))

	// WHEN: an admin reverses it with quorum satisfied
	rev, err := f.engine.ReverseSale(ctx, f.admin, sale.ID, "admin-pass")

	// THEN: stock is restored and the sale is gone
	require.NoError(t, err)
	require.Len(t, rev.Restocked, 1)
	assert.Equal(t, 10, rev.Restocked[0].NewQuantity)
	assert.Equal(t, 10, f.quantity(t, p.ID))
	_, err = f.engine.GetSale(ctx, f.admin, sale.ID)
	assert.ErrorIs(t, err, shop.ErrNotFound)
}

func TestCommitSale_EmptyCart(t *testing.T) {
	// GIVEN: a product and an empty cart
	f := newFixture(t)
	p := f.product(t, "P", "50.00", 10)

	// WHEN
	_, err := f.engine.CommitSale(context.Background(), f.staff, shop.SaleRequest{})

	// THEN: validation error, nothing written
	assert.ErrorIs(t, err, shop.ErrValidation)
	assert.Equal(t, 10, f.quantity(t, p.ID))
	sales, err := f.engine.ListSales(context.Background(), f.admin, shop.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestCommitSale_InsufficientStockSkipsRow(t *testing.T) {
	// GIVEN: product with quantity 3
	f := newFixture(t)
	p := f.product(t, "P", "50.00", 3)

	// WHEN: a cart asks for 5
	receipt, err := f.engine.CommitSale(context.Background(), f.staff, shop.SaleRequest{
		Items: []shop.CartItem{{ProductID: p.ID, Quantity: 5}},
	})

	// THEN: the sale commits with zero lines and the row is reported
	require.NoError(t, err)
	assert.Empty(t, receipt.Sale.Items)
	assertMoney(t, "0.00", receipt.Sale.TotalAmount)
	assertMoney(t, "0.00", receipt.Sale.FinalAmount)
	require.Len(t, receipt.Skipped, 1)
	assert.Equal(t, shop.SkipInsufficientStock, receipt.Skipped[0].Reason)
	assert.Equal(t, 3, f.quantity(t, p.ID))

	got, err := f.engine.GetSale(context.Background(), f.admin, receipt.Sale.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestCommitSale_SkipReasons(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "12.50", 4)
	b := f.product(t, "B", "3.00", 1)

	receipt, err := f.engine.CommitSale(context.Background(), f.staff, shop.SaleRequest{
		Items: []shop.CartItem{
			{ProductID: a.ID, Quantity: 0},
			{ProductID: 999, Quantity: 1},
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 2},
			{ProductID: a.ID, Quantity: -1},
			{ProductID: a.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)

	// Rows 2 and 5 survive; the second A row sees the first row's decrement
	require.Len(t, receipt.Sale.Items, 2)
	assertMoney(t, "50.00", receipt.Sale.TotalAmount)
	assert.Equal(t, 0, f.quantity(t, a.ID))
	assert.Equal(t, 1, f.quantity(t, b.ID))

	reasons := map[int]shop.SkipReason{}
	for _, sk := range receipt.Skipped {
		reasons[sk.Index] = sk.Reason
	}
	assert.Equal(t, map[int]shop.SkipReason{
		0: shop.SkipNonPositiveQuantity,
		1: shop.SkipUnknownProduct,
		3: shop.SkipInsufficientStock,
		4: shop.SkipNonPositiveQuantity,
	}, reasons)
}

func TestCommitSale_RequiresActiveCaller(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "P", "1.00", 5)
	req := shop.SaleRequest{Items: []shop.CartItem{{ProductID: p.ID, Quantity: 1}}}

	_, err := f.engine.CommitSale(context.Background(), shop.Principal{}, req)
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	f.gate.remove(f.staff.UserID)
	_, err = f.engine.CommitSale(context.Background(), f.staff, req)
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestCommitSale_ConcurrentLastUnit(t *testing.T) {
	// GIVEN: one unit on hand
	f := newFixture(t)
	p := f.product(t, "Last", "9.99", 1)

	// WHEN: many sales race for it
	const workers = 10
	var wg sync.WaitGroup
	receipts := make([]*shop.Receipt, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.engine.CommitSale(context.Background(), f.staff, shop.SaleRequest{
				Items: []shop.CartItem{{ProductID: p.ID, Quantity: 1}},
			})
			assert.NoError(t, err)
			receipts[i] = r
		}(i)
	}
	wg.Wait()

	// THEN: exactly one line item exists and stock is zero
	lines := 0
	for _, r := range receipts {
		if r != nil {
			lines += len(r.Sale.Items)
		}
	}
	assert.Equal(t, 1, lines)
	assert.Equal(t, 0, f.quantity(t, p.ID))
}

func TestCommitSale_PriceSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", "20.00", 5)

	receipt, err := f.engine.CommitSale(ctx, f.staff, shop.SaleRequest{
		Items: []shop.CartItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.engine.UpdateProduct(ctx, f.admin, p.ID, shop.ProductInput{Name: "P", UnitPrice: shop.MustParseMoney("25.00")})
	require.NoError(t, err)

	got, err := f.engine.GetSale(ctx, f.admin, receipt.Sale.ID)
	require.NoError(t, err)
	assertMoney(t, "20.00", got.Items[0].UnitPriceAtSale)
}

// =============================================================================
// TOTALS
// =============================================================================

func TestComputeTotals(t *testing.T) {
	items := []shop.SaleLineItem{
		{QuantitySold: 3, UnitPriceAtSale: shop.MustParseMoney("50.00")},
	}

	tests := []struct {
		name      string
		discount  string
		clamp     bool
		wantTotal string
		wantDisc  string
		wantFinal string
	}{
		{"no discount", "0", false, "150.00", "0.00", "150.00"},
		{"plain discount", "10.00", false, "150.00", "10.00", "140.00"},
		{"negative discount is zero", "-5.00", false, "150.00", "0.00", "150.00"},
		{"discount over total goes negative", "200.00", false, "150.00", "200.00", "-50.00"},
		{"clamped discount", "200.00", true, "150.00", "150.00", "0.00"},
		{"half discount rounds to even below", "10.005", false, "150.00", "10.00", "140.00"},
		{"half discount rounds to even above", "10.015", false, "150.00", "10.02", "139.98"},
		{"half cent discount rounds to zero", "0.005", false, "150.00", "0.00", "150.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, disc, final := shop.ComputeTotals(items, shop.MustParseMoney(tt.discount), tt.clamp)
			assertMoney(t, tt.wantTotal, total)
			assertMoney(t, tt.wantDisc, disc)
			assertMoney(t, tt.wantFinal, final)
		})
	}
}

func TestCommitSale_DiscountClampOption(t *testing.T) {
	f := newFixture(t, shop.WithDiscountClamp(true))
	p := f.product(t, "P", "5.00", 5)

	receipt, err := f.engine.CommitSale(context.Background(), f.staff, shop.SaleRequest{
		Items:    []shop.CartItem{{ProductID: p.ID, Quantity: 1}},
		Discount: money("8.00"),
	})
	require.NoError(t, err)
	assertMoney(t, "5.00", receipt.Sale.DiscountAmount)
	assertMoney(t, "0.00", receipt.Sale.FinalAmount)
}

// =============================================================================
// REVERSAL
// =============================================================================

func (f *fixture) sell(t *testing.T, p shop.Product, qty int) shop.SaleTransaction {
	t.Helper()
	receipt, err := f.engine.CommitSale(context.Background(), f.staff, shop.SaleRequest{
		Items: []shop.CartItem{{ProductID: p.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	require.Len(t, receipt.Sale.Items, 1)
	return receipt.Sale
}

func TestReverseSale_NonAdminDenied(t *testing.T) {
	// GIVEN: a committed sale
	f := newFixture(t)
	p := f.product(t, "P", "50.00", 10)
	sale := f.sell(t, p, 3)

	// WHEN: staff tries to reverse it with a correct password
	_, err := f.engine.ReverseSale(context.Background(), f.staff, sale.ID, "staff-pass")

	// THEN: unauthorized, nothing changed
	assert.ErrorIs(t, err, shop.ErrUnauthorized)
	assert.Equal(t, 7, f.quantity(t, p.ID))
	_, err = f.engine.GetSale(context.Background(), f.admin, sale.ID)
	assert.NoError(t, err)
}

func TestReverseSale_WrongPassword(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "P", "50.00", 10)
	sale := f.sell(t, p, 3)

	_, err := f.engine.ReverseSale(context.Background(), f.admin, sale.ID, "wrong")
	assert.ErrorIs(t, err, shop.ErrInvalidCredential)
	assert.Equal(t, 7, f.quantity(t, p.ID))
}

func TestReverseSale_QuorumViolation(t *testing.T) {
	// GIVEN: only one active admin remains
	f := newFixture(t)
	p := f.product(t, "P", "50.00", 10)
	sale := f.sell(t, p, 3)
	f.gate.remove(f.admin2.UserID)

	// WHEN: the remaining admin reverses with the right password
	_, err := f.engine.ReverseSale(context.Background(), f.admin, sale.ID, "admin-pass")

	// THEN: quorum violation, nothing changed
	assert.ErrorIs(t, err, shop.ErrQuorumViolation)
	var qerr *shop.QuorumError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 1, qerr.ActiveAdmins)
	assert.Equal(t, 7, f.quantity(t, p.ID))
}

func TestReverseSale_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ReverseSale(context.Background(), f.admin, 42, "admin-pass")
	assert.ErrorIs(t, err, shop.ErrNotFound)
}

func TestReverseSale_DeletedProductIsOrphaned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", "50.00", 10)
	sale := f.sell(t, p, 3)
	require.NoError(t, f.engine.DeleteProduct(ctx, f.admin, p.ID))

	rev, err := f.engine.ReverseSale(ctx, f.admin, sale.ID, "admin-pass")
	require.NoError(t, err)
	assert.Empty(t, rev.Restocked)
	assert.Equal(t, []shop.LineItemID{sale.Items[0].ID}, rev.Orphaned)
	_, err = f.engine.GetSale(ctx, f.admin, sale.ID)
	assert.ErrorIs(t, err, shop.ErrNotFound)
}

func TestReverseSales_Bulk(t *testing.T) {
	// GIVEN: two sales of the same product
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", "10.00", 10)
	s1 := f.sell(t, p, 2)
	s2 := f.sell(t, p, 3)
	require.Equal(t, 5, f.quantity(t, p.ID))

	// WHEN: reversing both, a duplicate and a missing id
	res, err := f.engine.ReverseSales(ctx, f.admin, []shop.SaleID{s1.ID, s2.ID, s1.ID, 999}, "admin-pass")

	// THEN: both reversed once, the missing id reported
	require.NoError(t, err)
	assert.Len(t, res.Reversed, 2)
	assert.Equal(t, []shop.SaleID{999}, res.Missing)
	assert.Equal(t, 10, f.quantity(t, p.ID))
}

func TestReverseSales_GatedLikeSingle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", "10.00", 10)
	sale := f.sell(t, p, 2)
	ids := []shop.SaleID{sale.ID}

	_, err := f.engine.ReverseSales(ctx, f.staff, ids, "staff-pass")
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	_, err = f.engine.ReverseSales(ctx, f.admin, ids, "wrong")
	assert.ErrorIs(t, err, shop.ErrInvalidCredential)

	f.gate.remove(f.admin2.UserID)
	_, err = f.engine.ReverseSales(ctx, f.admin, ids, "admin-pass")
	assert.ErrorIs(t, err, shop.ErrQuorumViolation)

	_, err = f.engine.ReverseSales(ctx, f.admin, nil, "admin-pass")
	assert.ErrorIs(t, err, shop.ErrValidation)

	assert.Equal(t, 8, f.quantity(t, p.ID))
}

// =============================================================================
// STOCK ADJUSTMENT
// =============================================================================

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P", "1.00", 4)

	qty, err := f.engine.AdjustStock(ctx, f.admin, p.ID, 6, shop.AdjustIncrease)
	require.NoError(t, err)
	assert.Equal(t, 10, qty)

	qty, err = f.engine.AdjustStock(ctx, f.admin, p.ID, 25, shop.AdjustDecrease)
	require.NoError(t, err)
	assert.Equal(t, 0, qty, "decrease clamps at zero")

	_, err = f.engine.AdjustStock(ctx, f.staff, p.ID, 1, shop.AdjustIncrease)
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	_, err = f.engine.AdjustStock(ctx, f.admin, p.ID, -1, shop.AdjustIncrease)
	assert.ErrorIs(t, err, shop.ErrValidation)

	_, err = f.engine.AdjustStock(ctx, f.admin, p.ID, 1, "sideways")
	assert.ErrorIs(t, err, shop.ErrValidation)

	_, err = f.engine.AdjustStock(ctx, f.admin, 999, 1, shop.AdjustIncrease)
	assert.ErrorIs(t, err, shop.ErrNotFound)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateProduct(ctx, f.staff, shop.ProductInput{Name: "X", UnitPrice: shop.MustParseMoney("1")})
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	_, err = f.engine.CreateProduct(ctx, f.admin, shop.ProductInput{Name: " ", UnitPrice: shop.MustParseMoney("1")})
	assert.ErrorIs(t, err, shop.ErrValidation)

	_, err = f.engine.CreateProduct(ctx, f.admin, shop.ProductInput{Name: "X", UnitPrice: shop.MustParseMoney("-1")})
	assert.ErrorIs(t, err, shop.ErrValidation)

	soap, err := f.engine.CreateProduct(ctx, f.admin, shop.ProductInput{
		Name: "Bath Soap", Category: "Personal Care", UnitPrice: shop.MustParseMoney("45.005"), Quantity: 0,
	})
	require.NoError(t, err)
	assertMoney(t, "45.00", soap.UnitPrice, "half to even")

	_, err = f.engine.CreateProduct(ctx, f.admin, shop.ProductInput{
		Name: "Rice", Category: "Grocery", UnitPrice: shop.MustParseMoney("65"), Quantity: 100,
	})
	require.NoError(t, err)

	found, err := f.engine.ListProducts(ctx, f.staff, "personal")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bath Soap", found[0].Name)

	available, err := f.engine.AvailableProducts(ctx, f.staff)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Rice", available[0].Name)
}

func TestReads_RequireActiveCaller(t *testing.T) {
	// GIVEN: a sale made by staff
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Rice", "65.00", 10)
	sale := f.sell(t, p, 1)

	// WHEN: the staff account is removed
	f.gate.remove(f.staff.UserID)

	// THEN: its principal no longer reads anything
	_, err := f.engine.ListSales(ctx, f.staff, shop.SaleFilter{})
	assert.ErrorIs(t, err, shop.ErrUnauthorized)
	_, err = f.engine.GetSale(ctx, f.staff, sale.ID)
	assert.ErrorIs(t, err, shop.ErrUnauthorized)
	_, err = f.engine.ListProducts(ctx, f.staff, "")
	assert.ErrorIs(t, err, shop.ErrUnauthorized)
	_, err = f.engine.AvailableProducts(ctx, f.staff)
	assert.ErrorIs(t, err, shop.ErrUnauthorized)
	_, err = f.engine.GetProduct(ctx, f.staff, p.ID)
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	_, err = f.engine.ListSales(ctx, shop.Principal{}, shop.SaleFilter{})
	assert.ErrorIs(t, err, shop.ErrUnauthorized)

	got, err := f.engine.GetSale(ctx, f.admin, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Reference, got.Reference)
}
