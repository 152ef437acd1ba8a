/*
seed.go - First-start data

PURPOSE:
  Ensures the built-in "system" Admin account exists and, when the catalog
  is empty, fills it with a small grocery assortment so a fresh install can
  ring up sales immediately.

NOTE:
  Seeding never touches existing data. Reversal needs two active admins,
  so a second Admin must be registered before sales can be reversed.

SEE ALSO:
  - cmd/server/main.go: Calls Seed when SEED=true
  - auth/service.go: EnsureSystemAdmin
*/
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/shop-engine/auth"
	"github.com/warp/shop-engine/shop"
)

// SeedProducts is the catalog loaded into an empty database.
var SeedProducts = []shop.ProductInput{
	{Name: "Basmati Rice (1kg)", Category: "Grocery", UnitPrice: shop.MustParseMoney("65.00"), Quantity: 100},
	{Name: "Red Lentils (1kg)", Category: "Grocery", UnitPrice: shop.MustParseMoney("120.00"), Quantity: 50},
	{Name: "Mustard Oil (1L)", Category: "Grocery", UnitPrice: shop.MustParseMoney("180.00"), Quantity: 30},
	{Name: "Sugar (1kg)", Category: "Grocery", UnitPrice: shop.MustParseMoney("110.00"), Quantity: 40},
	{Name: "Iodized Salt (1kg)", Category: "Grocery", UnitPrice: shop.MustParseMoney("30.00"), Quantity: 80},
	{Name: "Turmeric Powder (200g)", Category: "Spices", UnitPrice: shop.MustParseMoney("200.00"), Quantity: 25},
	{Name: "Chili Powder (200g)", Category: "Spices", UnitPrice: shop.MustParseMoney("250.00"), Quantity: 20},
	{Name: "Wheat Flour (1kg)", Category: "Grocery", UnitPrice: shop.MustParseMoney("90.00"), Quantity: 60},
	{Name: "Bath Soap", Category: "Personal Care", UnitPrice: shop.MustParseMoney("45.00"), Quantity: 5},
	{Name: "Shampoo (200ml)", Category: "Personal Care", UnitPrice: shop.MustParseMoney("150.00"), Quantity: 15},
}

// SeedResult reports what Seed created.
type SeedResult struct {
	AdminCreated    bool
	ProductsCreated int
}

// Seed creates the system admin and the starter catalog if missing.
func Seed(ctx context.Context, engine *shop.Engine, authSvc *auth.Service, adminPassword string, logger *zap.Logger) (*SeedResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	admin, created, err := authSvc.EnsureSystemAdmin(ctx, adminPassword)
	if err != nil {
		return nil, fmt.Errorf("seed system admin: %w", err)
	}
	res := &SeedResult{AdminCreated: created}
	if created {
		logger.Info("seeded system admin", zap.Int64("user_id", int64(admin.ID)))
	}

	existing, err := engine.ListProducts(ctx, admin.Principal(), "")
	if err != nil {
		return nil, fmt.Errorf("seed products: %w", err)
	}
	if len(existing) > 0 {
		return res, nil
	}

	for _, in := range SeedProducts {
		if _, err := engine.CreateProduct(ctx, admin.Principal(), in); err != nil {
			return nil, fmt.Errorf("seed product %q: %w", in.Name, err)
		}
		res.ProductsCreated++
	}
	logger.Info("seeded product catalog", zap.Int("count", res.ProductsCreated))
	return res, nil
}
