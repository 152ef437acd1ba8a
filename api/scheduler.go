/*
scheduler.go - Periodic stock monitor

PURPOSE:
  Periodically builds the inventory report, publishes the low-stock,
  out-of-stock and inventory value gauges, and logs products that need
  restocking.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Read-only: never changes stock

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether the monitor is active (default: true)

USAGE:
  monitor := NewStockMonitor(reporter, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - shop/reports.go: Reporter.Inventory
  - metrics/metrics.go: Gauges
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shop-engine/metrics"
	"github.com/warp/shop-engine/shop"
)

// StockMonitor refreshes inventory gauges on a ticker.
type StockMonitor struct {
	Reports       *shop.Reporter
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStockMonitor creates a new monitor.
func NewStockMonitor(reports *shop.Reporter, logger *zap.Logger) *StockMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockMonitor{
		Reports:       reports,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the monitor.
func (sm *StockMonitor) Start() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.Enabled {
		sm.logger.Info("stock monitor disabled, not starting")
		return
	}
	if sm.ticker != nil {
		return
	}

	sm.ticker = time.NewTicker(sm.CheckInterval)
	sm.wg.Add(1)
	go sm.run()

	sm.logger.Info("stock monitor started", zap.Duration("interval", sm.CheckInterval))
}

// Stop stops the monitor and waits for an in-flight check.
func (sm *StockMonitor) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.ticker != nil {
		sm.ticker.Stop()
		close(sm.stop)
		sm.wg.Wait()
		sm.ticker = nil
		sm.logger.Info("stock monitor stopped")
	}
}

// RunNow performs one check synchronously.
func (sm *StockMonitor) RunNow(ctx context.Context) (*shop.InventoryReport, error) {
	return sm.check(ctx)
}

func (sm *StockMonitor) run() {
	defer sm.wg.Done()

	sm.checkAndLog()

	for {
		select {
		case <-sm.ticker.C:
			sm.checkAndLog()
		case <-sm.stop:
			return
		}
	}
}

func (sm *StockMonitor) checkAndLog() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := sm.check(ctx); err != nil {
		sm.logger.Error("stock check failed", zap.Error(err))
	}
}

func (sm *StockMonitor) check(ctx context.Context) (*shop.InventoryReport, error) {
	rep, err := sm.Reports.StockLevels(ctx)
	if err != nil {
		return nil, err
	}

	metrics.ProductsLowStock.Set(float64(rep.LowStock))
	metrics.ProductsOutOfStock.Set(float64(rep.OutOfStock))
	value, _ := rep.TotalValue.Float64()
	metrics.InventoryValue.Set(value)

	if rep.LowStock > 0 || rep.OutOfStock > 0 {
		sm.logger.Warn("products need restocking",
			zap.Int("low_stock", rep.LowStock),
			zap.Int("out_of_stock", rep.OutOfStock),
		)
	}
	return rep, nil
}
