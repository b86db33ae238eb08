package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dustgate_settlements_total",
		Help: "The total number of settlement batches processed",
	}, []string{"status"})

	SettlementLegs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dustgate_settlement_legs_total",
		Help: "Per-leg outcomes across all batches",
	}, []string{"result"})

	SettlementAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dustgate_settlement_aborts_total",
		Help: "Total batch aborts by reason",
	}, []string{"reason"})

	NativePaidWei = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dustgate_native_paid_wei_total",
		Help: "Cumulative native value paid out to makers (wei)",
	})

	RetainedBalanceWei = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dustgate_retained_balance_wei",
		Help: "Native value currently retained for protocol payout (wei)",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dustgate_http_request_duration_seconds",
		Help:    "HTTP request latency by route template and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
