/*
stock.go - Manual stock adjustments

Increases add to the quantity on hand. Decreases are clamped at zero by the
store in a single update, so an adjustment never fails for lack of stock.
Adjustments are admin-only and are counted by kind in the metrics.
*/
package shop

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/shop-engine/metrics"
)

// AdjustStock changes a product's quantity outside of any sale and returns
// the new quantity. A decrease larger than the quantity on hand clamps the
// result at zero. No ledger entry is written for manual adjustments.
func (e *Engine) AdjustStock(ctx context.Context, caller Principal, id ProductID, amount int, kind AdjustmentKind) (int, error) {
	if amount < 0 {
		return 0, &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if kind != AdjustIncrease && kind != AdjustDecrease {
		return 0, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown adjustment kind %q", kind)}
	}
	actor, err := e.requireAdmin(ctx, caller)
	if err != nil {
		return 0, err
	}

	var qty int
	err = e.store.WithTx(ctx, func(s Store) error {
		var err error
		if kind == AdjustIncrease {
			qty, err = s.IncrementStock(ctx, id, amount)
		} else {
			qty, err = s.ClampDecrementStock(ctx, id, amount)
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	metrics.StockAdjustments.WithLabelValues(string(kind)).Inc()
	e.logger.Info("stock adjusted",
		zap.Int64("product_id", int64(id)),
		zap.Int64("actor", int64(actor.UserID)),
		zap.String("kind", string(kind)),
		zap.Int("amount", amount),
		zap.Int("quantity", qty),
	)
	return qty, nil
}
