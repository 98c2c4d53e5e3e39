// Package metrics holds the Prometheus collectors for ledger operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExpensesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_expenses_recorded_total",
			Help: "Expenses written by the submission path",
		},
	)

	LimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_limit_rejections_total",
			Help: "Expenses rejected by the daily spending limit",
		},
	)

	Settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlements_total",
			Help: "Balance settlements by outcome",
		},
		[]string{"outcome"},
	)

	NettingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_netting_runs_total",
			Help: "Transaction minimization passes by outcome",
		},
		[]string{"outcome"},
	)

	NettingTransfers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_netting_transfers_total",
			Help: "Settling transfers written by netting passes",
		},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"operation"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
