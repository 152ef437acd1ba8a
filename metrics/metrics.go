// Package metrics holds the Prometheus collectors of the shop engine and its
// HTTP layer. Collectors register with the default registry at init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SalesCommitted counts committed sales, including empty-total ones.
	SalesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_sales_committed_total",
		Help: "Total number of committed sales",
	})

	// LinesSkipped counts cart rows dropped by best-effort filtering.
	LinesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_sale_lines_skipped_total",
			Help: "Cart rows skipped at commit, by reason",
		},
		[]string{"reason"},
	)

	SaleFinalAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shop_sale_final_amount",
		Help:    "Final amount of committed sales",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})

	// SalesReversed counts reversed sales; mode is "single" or "bulk".
	SalesReversed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_sales_reversed_total",
			Help: "Total number of reversed sales",
		},
		[]string{"mode"},
	)

	ReversalDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_reversal_denied_total",
			Help: "Reversal attempts rejected by the authorization gate",
		},
		[]string{"reason"},
	)

	StockAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_stock_adjustments_total",
			Help: "Manual stock adjustments, by kind",
		},
		[]string{"kind"},
	)

	// Inventory gauges are refreshed by the stock monitor.
	ProductsLowStock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_products_low_stock",
		Help: "Products with stock above zero but below the low-stock threshold",
	})

	ProductsOutOfStock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_products_out_of_stock",
		Help: "Products with no stock on hand",
	})

	InventoryValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_inventory_value",
		Help: "Sum of unit price times quantity on hand",
	})

	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
