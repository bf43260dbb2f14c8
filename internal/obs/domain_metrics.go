package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts invoice settlement outcomes.
	SettlementTotal *prometheus.CounterVec
	// SettlementDuration records settlement latency in milliseconds.
	SettlementDuration *prometheus.HistogramVec
	// LowStockEventsTotal counts low-stock threshold crossings.
	LowStockEventsTotal prometheus.Counter
	// InvoiceAllocAttemptsTotal counts invoice number allocation attempts.
	InvoiceAllocAttemptsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_settlement_total",
			Help:      "Count of invoice settlement outcomes.",
		}, []string{"result"})
		SettlementDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sales_settlement_duration_ms",
			Help:      "Invoice settlement latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"result"})
		LowStockEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_low_events_total",
			Help:      "Count of low-stock threshold crossings observed at settlement.",
		})
		InvoiceAllocAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_alloc_attempts_total",
			Help:      "Count of invoice number allocation attempts including retries.",
		})
		reg.MustRegister(SettlementTotal, SettlementDuration, LowStockEventsTotal, InvoiceAllocAttemptsTotal)
	})
}

// ObserveSettlement records one settlement outcome. Safe to call before
// registration; observations are dropped until collectors exist.
func ObserveSettlement(result string, d time.Duration) {
	if SettlementTotal == nil || SettlementDuration == nil {
		return
	}
	SettlementTotal.WithLabelValues(result).Inc()
	SettlementDuration.WithLabelValues(result).Observe(DurationMillis(d))
}

// ObserveLowStock records one low-stock crossing.
func ObserveLowStock() {
	if LowStockEventsTotal == nil {
		return
	}
	LowStockEventsTotal.Inc()
}

// ObserveInvoiceAllocAttempt records one allocation attempt.
func ObserveInvoiceAllocAttempt() {
	if InvoiceAllocAttemptsTotal == nil {
		return
	}
	InvoiceAllocAttemptsTotal.Inc()
}
