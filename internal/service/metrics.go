package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ledger results
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

var (
	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by transaction type, currency and result",
		},
		[]string{"type", "currency", "result"},
	)
	MiningCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mining_credits_total",
			Help: "SOD credited by mining",
		},
		[]string{"source"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Open economy sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(LedgerOperations)
	prometheus.MustRegister(MiningCredits)
	prometheus.MustRegister(ActiveSessions)
}
