/*
sale.go - Cart validation and commit

FLOW:
  1. Reject an empty cart (ErrEmptyCart), before any store access
  2. Clamp the discount at 0 (and at the total when the clamp option is on)
  3. In one transaction, for each cart row:
       qty <= 0                      -> skipped
       product missing               -> skipped
       conditional decrement fails   -> skipped (insufficient stock)
       otherwise                     -> line item with price snapshot
  4. Totals: TotalAmount = sum(lines), FinalAmount = round(total - discount, 2)
  5. Insert sale + line items in the same transaction

Skipped rows are not errors. They are returned on the Receipt so callers can
surface them, and a cart where every row is skipped still commits as an
empty-totals sale.
*/
package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/shop-engine/metrics"
)

// CommitSale validates req against current stock and persists a sale.
func (e *Engine) CommitSale(ctx context.Context, caller Principal, req SaleRequest) (*Receipt, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	actor, err := e.requireActive(ctx, caller)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	if req.Discount != nil && req.Discount.IsPositive() {
		discount = *req.Discount
	}

	sale := SaleTransaction{
		Reference:    e.newReference(),
		CustomerName: strings.TrimSpace(req.CustomerName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Notes:        strings.TrimSpace(req.Notes),
		CreatedBy:    actor.UserID,
	}
	var skipped []SkippedLine

	err = e.store.WithTx(ctx, func(s Store) error {
		sale.Items = sale.Items[:0]
		skipped = skipped[:0]

		for i, row := range req.Items {
			skip := func(reason SkipReason) {
				skipped = append(skipped, SkippedLine{
					Index: i, ProductID: row.ProductID, Quantity: row.Quantity, Reason: reason,
				})
			}

			if row.Quantity <= 0 {
				skip(SkipNonPositiveQuantity)
				continue
			}

			product, err := s.GetProduct(ctx, row.ProductID)
			if err != nil {
				if IsNotFound(err) {
					skip(SkipUnknownProduct)
					continue
				}
				return err
			}

			applied, err := s.DecrementStock(ctx, row.ProductID, row.Quantity)
			if err != nil {
				return err
			}
			if !applied {
				skip(SkipInsufficientStock)
				continue
			}

			sale.Items = append(sale.Items, SaleLineItem{
				ProductID:       product.ID,
				ProductName:     product.Name,
				QuantitySold:    row.Quantity,
				UnitPriceAtSale: product.UnitPrice,
			})
		}

		sale.TotalAmount, sale.DiscountAmount, sale.FinalAmount = e.computeTotals(sale.Items, discount)
		sale.SaleDate = e.now()

		if err := s.InsertSale(ctx, &sale); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("sale commit failed", zap.Int64("actor", int64(caller.UserID)), zap.Error(err))
		return nil, err
	}

	for _, sk := range skipped {
		metrics.LinesSkipped.WithLabelValues(string(sk.Reason)).Inc()
		e.logger.Debug("cart row skipped",
			zap.Int64("sale_id", int64(sale.ID)),
			zap.Int("row", sk.Index),
			zap.Int64("product_id", int64(sk.ProductID)),
			zap.Int("quantity", sk.Quantity),
			zap.String("reason", string(sk.Reason)),
		)
	}
	metrics.SalesCommitted.Inc()
	metrics.SaleFinalAmount.Observe(sale.FinalAmount.InexactFloat64())

	e.logger.Info("sale committed",
		zap.Int64("sale_id", int64(sale.ID)),
		zap.String("reference", sale.Reference),
		zap.Int64("actor", int64(actor.UserID)),
		zap.Int("lines", len(sale.Items)),
		zap.Int("skipped", len(skipped)),
		zap.String("total", FormatMoney(sale.TotalAmount)),
		zap.String("final", FormatMoney(sale.FinalAmount)),
	)

	return &Receipt{Sale: sale, Skipped: skipped}, nil
}

// computeTotals returns (total, discount, final). Discount must already be
// non-negative.
func (e *Engine) computeTotals(items []SaleLineItem, discount decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	return ComputeTotals(items, discount, e.clampDiscount)
}

// ComputeTotals sums line totals and applies discount. Negative discounts
// are treated as zero. With clamp set the discount never exceeds the total.
func ComputeTotals(items []SaleLineItem, discount decimal.Decimal, clamp bool) (total, disc, final decimal.Decimal) {
	total = decimal.Zero
	for _, li := range items {
		total = total.Add(li.LineTotal())
	}
	total = RoundMoney(total)

	disc = discount
	if disc.IsNegative() {
		disc = decimal.Zero
	}
	if clamp && disc.GreaterThan(total) {
		disc = total
	}
	final = RoundMoney(total.Sub(disc))
	disc = RoundMoney(disc)
	return total, disc, final
}
