/*
handlers.go - HTTP API handlers for the shop engine

PURPOSE:
  Exposes the sale engine, catalog, accounts and reports via REST API.
  Handles HTTP request/response and JSON serialization, and delegates every
  decision to package shop or package auth.

ENDPOINTS:
  Session:
    POST   /api/auth/login              Exchange credentials for a token
    GET    /api/auth/me                 Current principal

  Products:
    GET    /api/products                List (optional ?search=)
    GET    /api/products/available      Products with stock on hand
    POST   /api/products                Create (Admin)
    GET    /api/products/{id}           Get one
    PUT    /api/products/{id}           Update catalog fields (Admin)
    DELETE /api/products/{id}           Delete (Admin)
    POST   /api/products/{id}/stock     Adjust stock (Admin)

  Sales:
    GET    /api/sales                   List (?customer=&from=&to=&limit=)
    POST   /api/sales                   Commit a cart
    GET    /api/sales/{id}              Get one with line items
    POST   /api/sales/{id}/reverse      Reverse one sale (Admin + password)
    POST   /api/sales/reverse           Reverse many sales (Admin + password)

  Users (Admin):
    GET    /api/users                   List accounts
    POST   /api/users                   Register
    PUT    /api/users/{id}              Update profile/role/password
    POST   /api/users/{id}/activate     Enable
    POST   /api/users/{id}/deactivate   Disable
    DELETE /api/users/{id}              Delete

  Reports:
    GET    /api/reports/summary         Dashboard
    GET    /api/reports/sales           ?from=&to= (YYYY-MM-DD)
    GET    /api/reports/inventory       Stock levels
    GET    /api/reports/monthly         ?since= (YYYY-MM-DD)

IDENTITY:
  The auth middleware turns the bearer token into a shop.Principal stored
  in the request context. Handlers read it with principalFrom and pass it
  explicitly to the engine; the engine re-resolves the caller on every
  guarded call.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid token, wrong password on login or reauthentication
  - 403: Caller role insufficient
  - 404: Resource not found
  - 409: Admin quorum violation
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Auth, logging, metrics middleware
  - server.go: Router setup
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/logger"
	"github.com/warp/shop-engine/shop"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *shop.Engine
	Reports *shop.Reporter
	Auth    *auth.Service

	logger         *zap.Logger
	allowedOrigins []string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins sets the CORS origins; defaults to the local
// front-end dev servers.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		if len(origins) > 0 {
			h.allowedOrigins = origins
		}
	}
}

// NewHandler creates a new handler.
func NewHandler(engine *shop.Engine, reports *shop.Reporter, authSvc *auth.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		Engine:         engine,
		Reports:        reports,
		Auth:           authSvc,
		logger:         zap.NewNop(),
		allowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Login exchanges username and password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserDTO(res.User),
	})
}

// Me returns the caller's current account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.Auth.Resolve(r.Context(), principalFrom(r).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       p.UserID,
		"username": p.Username,
		"role":     p.Role,
		"active":   p.Active,
	})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Engine.ListProducts(r.Context(), principalFrom(r), r.URL.Query().Get("search"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// AvailableProducts lists products that can be put in a cart.
func (h *Handler) AvailableProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Engine.AvailableProducts(r.Context(), principalFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.Engine.GetProduct(r.Context(), principalFrom(r), shop.ProductID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Engine.CreateProduct(r.Context(), principalFrom(r), productInput(req))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Engine.UpdateProduct(r.Context(), principalFrom(r), shop.ProductID(id), productInput(req))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteProduct(r.Context(), principalFrom(r), shop.ProductID(id)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock applies a manual increase or clamped decrease.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	qty, err := h.Engine.AdjustStock(r.Context(), principalFrom(r), shop.ProductID(id), req.Amount, shop.AdjustmentKind(req.Kind))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": id,
		"quantity":   qty,
	})
}

func productInput(req ProductRequest) shop.ProductInput {
	return shop.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		UnitPrice:   req.Price,
		Quantity:    req.Quantity,
	}
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CommitSale turns a cart into a sale. Skipped rows come back as warnings.
func (h *Handler) CommitSale(w http.ResponseWriter, r *http.Request) {
	var req CommitSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sr := shop.SaleRequest{
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Notes:        req.Notes,
		Discount:     req.Discount,
	}
	for _, item := range req.Items {
		sr.Items = append(sr.Items, shop.CartItem{ProductID: shop.ProductID(item.ProductID), Quantity: item.Quantity})
	}

	receipt, err := h.Engine.CommitSale(r.Context(), principalFrom(r), sr)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := shop.SaleFilter{CustomerSearch: q.Get("customer")}

	from, _, err := parseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, toDay, err := parseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	if !from.IsZero() {
		filter.From = from
	}
	if !to.IsZero() {
		// A bare date includes the whole day; a timestamp is exact.
		if toDay {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		filter.To = to
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	sales, err := h.Engine.ListSales(r.Context(), principalFrom(r), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	sale, err := h.Engine.GetSale(r.Context(), principalFrom(r), shop.SaleID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// ReverseSale restocks and deletes one sale.
func (h *Handler) ReverseSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req ReverseSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rev, err := h.Engine.ReverseSale(r.Context(), principalFrom(r), shop.SaleID(id), req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReversalDTO(*rev))
}

// ReverseSales reverses a set of sales under one authorization check.
func (h *Handler) ReverseSales(w http.ResponseWriter, r *http.Request) {
	var req ReverseSalesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids := make([]shop.SaleID, 0, len(req.SaleIDs))
	for _, id := range req.SaleIDs {
		ids = append(ids, shop.SaleID(id))
	}
	res, err := h.Engine.ReverseSales(r.Context(), principalFrom(r), ids, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkReversalDTO(res))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Auth.ListUsers(r.Context(), principalFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.Auth.Register(r.Context(), principalFrom(r), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     shop.Role(req.Role),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.Auth.UpdateUser(r.Context(), principalFrom(r), shop.UserID(id), auth.UpdateInput{
		FullName: req.FullName,
		Role:     shop.Role(req.Role),
		Password: req.Password,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Auth.SetActive(r.Context(), principalFrom(r), shop.UserID(id), active); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": active})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Auth.DeleteUser(r.Context(), principalFrom(r), shop.UserID(id)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) SummaryReport(w http.ResponseWriter, r *http.Request) {
	s, err := h.Reports.Summary(r.Context(), principalFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	from, _, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, _, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	rep, err := h.Reports.Sales(r.Context(), principalFrom(r), from, to)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SalesReportDTO{
		From:         formatDate(rep.From),
		To:           formatDate(rep.To),
		Sales:        toSaleDTOs(rep.Sales),
		TotalSales:   rep.TotalSales,
		TotalRevenue: shop.FormatMoney(rep.TotalRevenue),
		TotalFinal:   shop.FormatMoney(rep.TotalFinal),
	})
}

func (h *Handler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Inventory(r.Context(), principalFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InventoryReportDTO{
		Products:      toProductDTOs(rep.Products),
		TotalProducts: rep.TotalProducts,
		TotalStock:    rep.TotalStock,
		TotalValue:    shop.FormatMoney(rep.TotalValue),
		OutOfStock:    rep.OutOfStock,
		LowStock:      rep.LowStock,
	})
}

// MonthlyReport defaults to the last six months.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	since, _, err := parseDate(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid since date", err)
		return
	}
	if since.IsZero() {
		since = time.Now().AddDate(0, -6, 0)
	}
	months, err := h.Reports.Monthly(r.Context(), principalFrom(r), since)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyDTOs(months))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and auth errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *shop.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, shop.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case errors.Is(err, shop.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, shop.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Not allowed", nil)
	case errors.Is(err, shop.ErrQuorumViolation):
		writeError(w, http.StatusConflict, "At least two active admins are required", err)
	case errors.Is(err, shop.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		logger.FromContext(r.Context(), h.logger).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return 0, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD or RFC3339. Empty yields the zero time.
// dateOnly reports whether s was a bare calendar date.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t, false, err
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
