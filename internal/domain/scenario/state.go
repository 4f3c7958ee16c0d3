package scenario

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/health"
	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
)

// StageSnapshot captures aggregate metrics at one point of the cascade,
// retained on the result for post-run analysis.
type StageSnapshot struct {
	Stage              string                     `json:"stage"`
	Prices             map[string]decimal.Decimal `json:"prices"` // shocked reserves only
	BadDebtUSD         decimal.Decimal            `json:"bad_debt_usd"`
	LiquidatableCount  int                        `json:"liquidatable_count"`
	TotalCollateralUSD decimal.Decimal            `json:"total_collateral_usd"`
}

// CascadeState is the process-scoped state of one cascade run. It owns the
// working copies of the book and positions and is never shared across
// concurrent runs.
type CascadeState struct {
	RunID  uuid.UUID
	Config Config

	Book      reserve.Book
	Positions []*position.Position

	Events []*LiquidationEvent

	BadDebtUSD        decimal.Decimal
	UnresolvedRiskUSD decimal.Decimal

	// VolumeByReserve accumulates USD sold per collateral reserve, fed back
	// into the impact model as cumulative depth consumption
	VolumeByReserve map[string]decimal.Decimal

	// IlliquidReserves marks reserves whose market depth was exhausted;
	// further sales there fail to execute
	IlliquidReserves map[string]bool

	// Processed guards against reprocessing a user within the same pass
	// before their updated health is reconfirmed
	Processed map[string]bool

	Passes    int
	Converged bool

	History  []StageSnapshot
	Warnings []string
}

// NewCascadeState builds the per-run state around working copies of the
// inputs. Positions are ordered by user ID so every downstream iteration is
// deterministic.
func NewCascadeState(runID uuid.UUID, cfg Config, book reserve.Book, positions []*position.Position) *CascadeState {
	sorted := make([]*position.Position, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	return &CascadeState{
		RunID:            runID,
		Config:           cfg,
		Book:             book,
		Positions:        sorted,
		VolumeByReserve:  make(map[string]decimal.Decimal),
		IlliquidReserves: make(map[string]bool),
		Processed:        make(map[string]bool),
	}
}

// ResetPass clears the per-pass processed set
func (s *CascadeState) ResetPass() {
	s.Processed = make(map[string]bool)
}

// Warn records a data-quality or cascade warning
func (s *CascadeState) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// TotalCollateralUSD values all collateral (enabled or not) at current prices
func (s *CascadeState) TotalCollateralUSD() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range s.Positions {
		for _, id := range pos.CollateralIDs() {
			if r, ok := s.Book[id]; ok {
				total = total.Add(pos.Collateral[id].Amount.Mul(r.Price))
			}
		}
	}
	return total
}

// TotalDebtUSD values all outstanding debt at current prices
func (s *CascadeState) TotalDebtUSD() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range s.Positions {
		for _, id := range pos.DebtIDs() {
			if r, ok := s.Book[id]; ok {
				total = total.Add(pos.Debt[id].Mul(r.Price))
			}
		}
	}
	return total
}

// LiquidatableCount evaluates all non-terminal positions at current prices
func (s *CascadeState) LiquidatableCount() int {
	count := 0
	for _, pos := range s.Positions {
		if pos.Status.Terminal() {
			continue
		}
		res, err := health.Evaluate(pos, s.Book)
		if err != nil {
			continue
		}
		if res.Liquidatable() {
			count++
		}
	}
	return count
}

// SnapshotStage appends a stage entry to the run history
func (s *CascadeState) SnapshotStage(stage string) {
	prices := make(map[string]decimal.Decimal, len(s.Config.Shocks))
	for _, id := range s.Config.ShockedReserves() {
		if r, ok := s.Book[id]; ok {
			prices[id] = r.Price
		}
	}
	s.History = append(s.History, StageSnapshot{
		Stage:              stage,
		Prices:             prices,
		BadDebtUSD:         s.BadDebtUSD,
		LiquidatableCount:  s.LiquidatableCount(),
		TotalCollateralUSD: s.TotalCollateralUSD(),
	})
}
