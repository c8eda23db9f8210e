package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout outcomes by result and payment method.
	CheckoutTotal *prometheus.CounterVec
	// StockConflictTotal counts checkout aborts caused by insufficient stock.
	StockConflictTotal *prometheus.CounterVec
	// SaleAmount records grand totals of completed sales in minor units.
	SaleAmount prometheus.Histogram
	// LoyaltyPointsTotal counts loyalty points granted or reclaimed.
	LoyaltyPointsTotal *prometheus.CounterVec
	// InvoiceRetryTotal counts invoice number regeneration caused by collisions.
	InvoiceRetryTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result", "payment_method"})
		StockConflictTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflict_total",
			Help:      "Count of checkouts rejected for insufficient stock.",
		}, []string{"reason"})
		SaleAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_amount_minor_units",
			Help:      "Distribution of completed sale grand totals in minor units.",
			Buckets:   []float64{1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000},
		})
		LoyaltyPointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_total",
			Help:      "Loyalty points granted and reclaimed.",
		}, []string{"direction"})
		InvoiceRetryTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_retry_total",
			Help:      "Invoice numbers regenerated after a uniqueness conflict.",
		})

		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, StockConflictTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StockConflictTotal = v
			}
		})
		mustRegisterCollector(reg, SaleAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SaleAmount = v
			}
		})
		mustRegisterCollector(reg, LoyaltyPointsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LoyaltyPointsTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceRetryTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InvoiceRetryTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
