/*
reversal.go - Compensating deletion of committed sales

A reversal restores every line item's quantity to its product and then
deletes the line items and the sale, all in one transaction. Line items
whose product has been deleted are reported as orphaned and not restocked.

AUTHORIZATION:
  ReverseSale and ReverseSales share authorizeDestructive (gate.go):
    1. caller must resolve to an active Admin       -> ErrUnauthorized
    2. reauthPassword must match the stored hash    -> ErrInvalidCredential
    3. at least MinActiveAdmins active admins exist -> ErrQuorumViolation
  No state is touched unless all three pass.
*/
package shop

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/warp/shop-engine/metrics"
)

// ReverseSale restocks and deletes one sale.
func (e *Engine) ReverseSale(ctx context.Context, caller Principal, id SaleID, reauthPassword string) (*Reversal, error) {
	actor, err := e.authorizeDestructive(ctx, caller, reauthPassword)
	if err != nil {
		e.denied(caller, err)
		return nil, err
	}

	var rev *Reversal
	err = e.store.WithTx(ctx, func(s Store) error {
		sale, err := s.GetSale(ctx, id)
		if err != nil {
			return err
		}
		rev, err = reverseOne(ctx, s, sale)
		return err
	})
	if err != nil {
		if !IsNotFound(err) {
			e.logger.Error("sale reversal failed", zap.Int64("sale_id", int64(id)), zap.Error(err))
		}
		return nil, err
	}

	metrics.SalesReversed.WithLabelValues("single").Inc()
	e.logger.Info("sale reversed",
		zap.Int64("sale_id", int64(id)),
		zap.Int64("actor", int64(actor.UserID)),
		zap.Int("restocked", len(rev.Restocked)),
		zap.Int("orphaned", len(rev.Orphaned)),
	)
	return rev, nil
}

// ReverseSales reverses a set of sales in one transaction. IDs that do not
// exist are reported in BulkReversal.Missing rather than failing the batch.
// Duplicate IDs are reversed once.
func (e *Engine) ReverseSales(ctx context.Context, caller Principal, ids []SaleID, reauthPassword string) (*BulkReversal, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "sale_ids", Message: "no sales selected"}
	}

	actor, err := e.authorizeDestructive(ctx, caller, reauthPassword)
	if err != nil {
		e.denied(caller, err)
		return nil, err
	}

	seen := make(map[SaleID]bool, len(ids))
	unique := make([]SaleID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var result *BulkReversal
	err = e.store.WithTx(ctx, func(s Store) error {
		result = &BulkReversal{}
		for _, id := range unique {
			sale, err := s.GetSale(ctx, id)
			if err != nil {
				if IsNotFound(err) {
					result.Missing = append(result.Missing, id)
					continue
				}
				return err
			}
			rev, err := reverseOne(ctx, s, sale)
			if err != nil {
				return err
			}
			result.Reversed = append(result.Reversed, *rev)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("bulk reversal failed", zap.Int("requested", len(unique)), zap.Error(err))
		return nil, err
	}

	metrics.SalesReversed.WithLabelValues("bulk").Add(float64(len(result.Reversed)))
	e.logger.Info("sales reversed",
		zap.Int64("actor", int64(actor.UserID)),
		zap.Int("reversed", len(result.Reversed)),
		zap.Int("missing", len(result.Missing)),
	)
	return result, nil
}

func reverseOne(ctx context.Context, s Store, sale *SaleTransaction) (*Reversal, error) {
	rev := &Reversal{SaleID: sale.ID}
	for _, li := range sale.Items {
		qty, err := s.IncrementStock(ctx, li.ProductID, li.QuantitySold)
		if err != nil {
			if IsNotFound(err) {
				rev.Orphaned = append(rev.Orphaned, li.ID)
				continue
			}
			return nil, err
		}
		rev.Restocked = append(rev.Restocked, Restock{
			ProductID:   li.ProductID,
			Quantity:    li.QuantitySold,
			NewQuantity: qty,
		})
	}
	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		return nil, err
	}
	return rev, nil
}

func (e *Engine) denied(caller Principal, err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrUnauthorized):
		reason = "unauthorized"
	case errors.Is(err, ErrInvalidCredential):
		reason = "invalid_credential"
	case errors.Is(err, ErrQuorumViolation):
		reason = "quorum"
	}
	metrics.ReversalDenied.WithLabelValues(reason).Inc()
	e.logger.Warn("reversal denied",
		zap.Int64("actor", int64(caller.UserID)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}
