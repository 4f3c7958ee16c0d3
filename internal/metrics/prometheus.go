package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScenarioRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maelstrom_scenario_runs_total",
			Help: "Total number of scenario runs",
		},
		[]string{"status"}, // status: converged|diverged|error|invalid_config
	)

	ScenarioDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maelstrom_scenario_duration_seconds",
			Help:    "Scenario run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	CascadePasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maelstrom_cascade_passes",
			Help:    "Number of cascade passes per scenario run",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	LiquidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maelstrom_liquidations_total",
			Help: "Total number of liquidation events across all runs",
		},
	)

	BadDebtUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maelstrom_bad_debt_usd",
			Help: "Bad debt of the most recent scenario run in USD",
		},
	)

	UnresolvedRiskUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maelstrom_unresolved_risk_usd",
			Help: "Liquidatable debt blocked by illiquid markets in the most recent run",
		},
	)
)

// Register registers all collectors with the default registry
func Register() {
	prometheus.MustRegister(
		ScenarioRuns,
		ScenarioDuration,
		CascadePasses,
		LiquidationsTotal,
		BadDebtUSD,
		UnresolvedRiskUSD,
	)
}

// Serve exposes /metrics on the given port. Blocks; intended to run in its
// own goroutine.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
