/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Authentication (login, bearer token middleware)
- Sale posting through POST /api/sales
- Single and bulk reversal, including the admin quorum
- Report and read access for staff and deactivated accounts
- Seeding and the stock monitor
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/shop"
	"github.com/warp/shop-engine/shop/store"
)

const adminPassword = "admin123"

type testEnv struct {
	t       *testing.T
	router  http.Handler
	engine  *shop.Engine
	reports *shop.Reporter
	auth    *auth.Service
	system  shop.Principal
}

// newTestEnv wires the API over in-memory stores and seeds the catalog.
// Seeded product IDs follow SeedProducts order: 1 is rice, 9 is soap.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := zaptest.NewLogger(t)

	authSvc := auth.NewService(auth.NewMemoryUsers(), auth.NewTokenIssuer("test-key", time.Hour),
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithServiceLogger(l),
	)
	engine := shop.NewEngine(store.NewTxMemory(), authSvc, shop.WithLogger(l))
	reports := shop.NewReporter(engine.Store(), authSvc, 10)

	_, err := Seed(context.Background(), engine, authSvc, adminPassword, l)
	require.NoError(t, err)
	system, _, err := authSvc.EnsureSystemAdmin(context.Background(), adminPassword)
	require.NoError(t, err)

	h := NewHandler(engine, reports, authSvc, WithHandlerLogger(l))
	return &testEnv{
		t:       t,
		router:  NewRouter(h),
		engine:  engine,
		reports: reports,
		auth:    authSvc,
		system:  system.Principal(),
	}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(username, password string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(e.t, rec, &resp)
	require.NotEmpty(e.t, resp.Token)
	return resp.Token
}

func (e *testEnv) register(token, username, password string, role shop.Role) UserDTO {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/users", token, RegisterRequest{
		Username: username, Password: password, FullName: username, Role: string(role),
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var u UserDTO
	decode(e.t, rec, &u)
	return u
}

func (e *testEnv) commit(token string, items ...CartItemRequest) ReceiptDTO {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/sales", token, map[string]any{"items": items, "customer_name": "Asha"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var receipt ReceiptDTO
	decode(e.t, rec, &receipt)
	return receipt
}

func (e *testEnv) quantity(token string, id int64) int {
	e.t.Helper()
	rec := e.do(http.MethodGet, fmt.Sprintf("/api/products/%d", id), token, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var p ProductDTO
	decode(e.t, rec, &p)
	return p.Quantity
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

// =============================================================================
// AUTH
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_TokenRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/products", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: auth.SystemUsername, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := env.login(auth.SystemUsername, adminPassword)
	rec = env.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	decode(t, rec, &me)
	assert.Equal(t, auth.SystemUsername, me["username"])
	assert.Equal(t, "Admin", me["role"])
}

// =============================================================================
// SALES
// =============================================================================

func TestCommitSale(t *testing.T) {
	// GIVEN: the seeded catalog
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)

	// WHEN: a cart with one valid row and one row exceeding stock is posted
	receipt := env.commit(token,
		CartItemRequest{ProductID: 1, Quantity: 2},
		CartItemRequest{ProductID: 9, Quantity: 1000},
	)

	// THEN: only the valid row is sold and the other comes back as a warning
	assert.Equal(t, "130.00", receipt.Sale.TotalAmount)
	assert.Equal(t, "0.00", receipt.Sale.DiscountAmount)
	assert.Equal(t, "130.00", receipt.Sale.FinalAmount)
	require.Len(t, receipt.Sale.Items, 1)
	assert.Equal(t, "65.00", receipt.Sale.Items[0].UnitPrice)
	require.Len(t, receipt.Warnings, 1)
	assert.Equal(t, 1, receipt.Warnings[0].Index)
	assert.Equal(t, string(shop.SkipInsufficientStock), receipt.Warnings[0].Reason)

	assert.Equal(t, 98, env.quantity(token, 1))
	assert.Equal(t, 5, env.quantity(token, 9))

	rec := env.do(http.MethodGet, fmt.Sprintf("/api/sales/%d", receipt.Sale.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sale SaleDTO
	decode(t, rec, &sale)
	assert.Equal(t, receipt.Sale.Reference, sale.Reference)
	assert.Equal(t, "Asha", sale.CustomerName)
}

func TestCommitSale_Discount(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)

	rec := env.do(http.MethodPost, "/api/sales", token, map[string]any{
		"items":    []CartItemRequest{{ProductID: 3, Quantity: 1}},
		"discount": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var receipt ReceiptDTO
	decode(t, rec, &receipt)
	assert.Equal(t, "180.00", receipt.Sale.TotalAmount)
	assert.Equal(t, "30.00", receipt.Sale.DiscountAmount)
	assert.Equal(t, "150.00", receipt.Sale.FinalAmount)
}

func TestCommitSale_BadInput(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)

	rec := env.do(http.MethodPost, "/api/sales", token, map[string]any{"items": []CartItemRequest{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/sales?from=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/sales/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/sales/42", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSales_DateBounds(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)
	receipt := env.commit(token, CartItemRequest{ProductID: 1, Quantity: 1})
	saleDate := receipt.Sale.SaleDate

	count := func(query string) int {
		t.Helper()
		rec := env.do(http.MethodGet, "/api/sales?"+query, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sales []SaleDTO
		decode(t, rec, &sales)
		return len(sales)
	}

	// A bare date covers the whole calendar day
	day := saleDate.In(time.Local).Format("2006-01-02")
	assert.Equal(t, 1, count("from="+day+"&to="+day))

	// A timestamp bound is exact
	before := saleDate.Add(-time.Second).Format(time.RFC3339)
	assert.Equal(t, 0, count("to="+url.QueryEscape(before)))
	after := saleDate.Add(time.Second).Format(time.RFC3339)
	assert.Equal(t, 1, count("to="+url.QueryEscape(after)))
}

// =============================================================================
// ACCESS CONTROL
// =============================================================================

func TestReports_AdminOnly(t *testing.T) {
	// GIVEN: an admin token and a staff token
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)
	env.register(token, "ram", "ram-pass", shop.RoleStaff)
	staffToken := env.login("ram", "ram-pass")

	for _, path := range []string{
		"/api/reports/summary",
		"/api/reports/sales",
		"/api/reports/inventory",
		"/api/reports/monthly",
	} {
		// WHEN/THEN: staff is refused, the admin is served
		rec := env.do(http.MethodGet, path, staffToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = env.do(http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	// Staff still reads sales and products
	rec := env.do(http.MethodGet, "/api/sales", staffToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/products", staffToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeactivatedToken_LosesReadAccess(t *testing.T) {
	// GIVEN: a staff member with a live token
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)
	ram := env.register(token, "ram", "ram-pass", shop.RoleStaff)
	staffToken := env.login("ram", "ram-pass")
	receipt := env.commit(staffToken, CartItemRequest{ProductID: 1, Quantity: 1})

	// WHEN: an admin deactivates the account
	rec := env.do(http.MethodPost, fmt.Sprintf("/api/users/%d/deactivate", ram.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: the token no longer reads anything
	for _, path := range []string{
		"/api/sales",
		fmt.Sprintf("/api/sales/%d", receipt.Sale.ID),
		"/api/products",
		"/api/products/available",
		"/api/products/1",
	} {
		rec = env.do(http.MethodGet, path, staffToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

// =============================================================================
// REVERSALS
// =============================================================================

func TestReverseSale(t *testing.T) {
	// GIVEN: a committed sale and only the system admin
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)
	receipt := env.commit(token, CartItemRequest{ProductID: 1, Quantity: 3})
	path := fmt.Sprintf("/api/sales/%d/reverse", receipt.Sale.ID)

	// WHEN/THEN: one active admin is not enough
	rec := env.do(http.MethodPost, path, token, ReverseSaleRequest{Password: adminPassword})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 97, env.quantity(token, 1))

	// GIVEN: a second admin and a staff member
	env.register(token, "sita", "sita-pass", shop.RoleAdmin)
	env.register(token, "ram", "ram-pass", shop.RoleStaff)

	// Staff cannot reverse
	staffToken := env.login("ram", "ram-pass")
	rec = env.do(http.MethodPost, path, staffToken, ReverseSaleRequest{Password: "ram-pass"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A wrong re-authentication password is rejected
	rec = env.do(http.MethodPost, path, token, ReverseSaleRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: the admin re-authenticates
	rec = env.do(http.MethodPost, path, token, ReverseSaleRequest{Password: adminPassword})

	// THEN: stock returns and the sale is gone
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rev ReversalDTO
	decode(t, rec, &rev)
	require.Len(t, rev.Restocked, 1)
	assert.Equal(t, 100, rev.Restocked[0].NewQuantity)
	assert.Equal(t, 100, env.quantity(token, 1))

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/sales/%d", receipt.Sale.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReverseSales_Bulk(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(auth.SystemUsername, adminPassword)
	env.register(token, "sita", "sita-pass", shop.RoleAdmin)

	s1 := env.commit(token, CartItemRequest{ProductID: 1, Quantity: 1})
	s2 := env.commit(token, CartItemRequest{ProductID: 2, Quantity: 4})

	// Bulk reversal is gated like single reversal
	rec := env.do(http.MethodPost, "/api/sales/reverse", token, ReverseSalesRequest{
		SaleIDs: []int64{s1.Sale.ID}, Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/sales/reverse", token, ReverseSalesRequest{
		SaleIDs: []int64{s1.Sale.ID, s2.Sale.ID, 999}, Password: adminPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res BulkReversalDTO
	decode(t, rec, &res)
	assert.Len(t, res.Reversed, 2)
	assert.Equal(t, []int64{999}, res.Missing)

	assert.Equal(t, 100, env.quantity(token, 1))
	assert.Equal(t, 50, env.quantity(token, 2))

	rec = env.do(http.MethodPost, "/api/sales/reverse", token, ReverseSalesRequest{Password: adminPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SEEDING AND MONITORING
// =============================================================================

func TestSeed_Idempotent(t *testing.T) {
	env := newTestEnv(t)

	res, err := Seed(context.Background(), env.engine, env.auth, adminPassword, nil)
	require.NoError(t, err)
	assert.False(t, res.AdminCreated)
	assert.Zero(t, res.ProductsCreated)

	products, err := env.engine.ListProducts(context.Background(), env.system, "")
	require.NoError(t, err)
	assert.Len(t, products, len(SeedProducts))
}

func TestStockMonitor_RunNow(t *testing.T) {
	env := newTestEnv(t)
	sm := NewStockMonitor(env.reports, zaptest.NewLogger(t))

	rep, err := sm.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(SeedProducts), rep.TotalProducts)
	assert.Equal(t, 1, rep.LowStock, "only the soap is under the threshold")
	assert.Zero(t, rep.OutOfStock)

	sm.CheckInterval = 10 * time.Millisecond
	sm.Start()
	sm.Stop()
}
