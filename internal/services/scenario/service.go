package scenarioservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/scenario"
	"maelstrom/internal/metrics"
	"maelstrom/internal/services/liquidation"
	"maelstrom/pkg/logger"
)

// Service orchestrates scenario runs: it validates inputs, applies the shock
// through the cascade driver, and aggregates the result. Runs never mutate
// the caller's snapshot, so the same snapshot can be swept concurrently.
type Service struct {
	engine  *liquidation.Engine
	log     *logger.Logger
	workers int
	rate    float64 // sweep run starts per second, 0 = unlimited
}

// Option configures the service
type Option func(*Service)

// WithSweepWorkers bounds sweep parallelism
func WithSweepWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSweepStartRate throttles sweep run starts (runs per second)
func WithSweepStartRate(rps float64) Option {
	return func(s *Service) { s.rate = rps }
}

// NewService creates a scenario orchestrator
func NewService(engine *liquidation.Engine, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		engine:  engine,
		log:     log.With("component", "scenario_service"),
		workers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one scenario against a working copy of the snapshot and
// returns the aggregated result. Invalid configuration and invalid reserves
// fail fast; malformed positions are excluded individually with a recorded
// warning.
func (s *Service) Run(ctx context.Context, snap *scenario.Snapshot, cfg scenario.Config) (*scenario.Result, error) {
	started := time.Now().UTC()

	if err := cfg.Validate(); err != nil {
		metrics.ScenarioRuns.WithLabelValues("invalid_config").Inc()
		return nil, err
	}
	if err := snap.Reserves.Validate(); err != nil {
		metrics.ScenarioRuns.WithLabelValues("invalid_config").Inc()
		return nil, err
	}

	working := snap.Clone()
	runID := uuid.New()

	st := scenario.NewCascadeState(runID, cfg, working.Reserves, working.Positions)

	// Exclude malformed positions individually rather than aborting the run
	valid := st.Positions[:0]
	for _, pos := range st.Positions {
		if err := pos.Validate(); err != nil {
			st.Warn("position excluded: " + err.Error())
			s.log.Warnw("position excluded", "run_id", runID, "error", err)
			continue
		}
		valid = append(valid, pos)
	}
	st.Positions = valid

	tvlStart := st.TotalCollateralUSD()

	s.log.Infow("scenario run starting", "run_id", runID,
		"positions", len(st.Positions), "reserves", len(st.Book), "shocks", len(cfg.Shocks))

	if err := s.engine.RunCascade(st); err != nil {
		metrics.ScenarioRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	result := s.aggregate(st, tvlStart, started)
	s.observe(result, started)

	s.log.Infow("scenario run finished", "run_id", runID,
		"converged", result.Converged, "passes", result.Passes,
		"liquidations", len(result.Events),
		"bad_debt_usd", result.BadDebtUSD.StringFixed(2),
		"risk_status", result.RiskStatus)

	return result, nil
}

// aggregate folds the cascade state into the immutable result
func (s *Service) aggregate(st *scenario.CascadeState, tvlStart decimal.Decimal, started time.Time) *scenario.Result {
	result := &scenario.Result{
		RunID:                st.RunID,
		StartedAt:            started,
		FinishedAt:           time.Now().UTC(),
		Config:               st.Config,
		Converged:            st.Converged,
		Passes:               st.Passes,
		Events:               st.Events,
		BadDebtUSD:           st.BadDebtUSD,
		UnresolvedRiskUSD:    st.UnresolvedRiskUSD,
		TVLStartUSD:          tvlStart,
		VolumeByReserve:      st.VolumeByReserve,
		UtilizationByReserve: make(map[string]decimal.Decimal),
		FinalPrices:          make(map[string]decimal.Decimal),
		History:              st.History,
		Warnings:             st.Warnings,
		RiskStatus:           scenario.RiskStable,
	}

	liquidatedUsers := make(map[string]bool)
	for _, ev := range st.Events {
		liquidatedUsers[ev.UserID] = true
		result.LiquidatedVolumeUSD = result.LiquidatedVolumeUSD.Add(ev.CollateralSeizedUSD)
	}
	result.LiquidatedPositions = len(liquidatedUsers)

	if tvlStart.IsPositive() {
		result.LiquidatedPctOfTVL = result.LiquidatedVolumeUSD.Div(tvlStart)
	}

	// Post-run utilization: outstanding debt over remaining supply, per reserve
	supply := make(map[string]decimal.Decimal)
	debt := make(map[string]decimal.Decimal)
	for _, pos := range st.Positions {
		for _, id := range pos.CollateralIDs() {
			supply[id] = supply[id].Add(pos.Collateral[id].Amount)
		}
		for _, id := range pos.DebtIDs() {
			debt[id] = debt[id].Add(pos.Debt[id])
		}
	}
	for _, id := range st.Book.IDs() {
		result.FinalPrices[id] = st.Book[id].Price
		if supply[id].IsPositive() {
			result.UtilizationByReserve[id] = debt[id].Div(supply[id])
		}
	}

	if st.BadDebtUSD.IsPositive() {
		result.RiskStatus = scenario.RiskCritical
	}

	return result
}

// observe exports run metrics
func (s *Service) observe(result *scenario.Result, started time.Time) {
	status := "converged"
	if !result.Converged {
		status = "diverged"
	}
	metrics.ScenarioRuns.WithLabelValues(status).Inc()
	metrics.ScenarioDuration.Observe(time.Since(started).Seconds())
	metrics.CascadePasses.Observe(float64(result.Passes))
	metrics.LiquidationsTotal.Add(float64(len(result.Events)))
	metrics.BadDebtUSD.Set(result.BadDebtUSD.InexactFloat64())
	metrics.UnresolvedRiskUSD.Set(result.UnresolvedRiskUSD.InexactFloat64())
}
