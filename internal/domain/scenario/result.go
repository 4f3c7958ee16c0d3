package scenario

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskStatus is the headline verdict of a run
type RiskStatus string

const (
	RiskStable   RiskStatus = "stable"
	RiskCritical RiskStatus = "critical"
)

// Result is the full outcome of one scenario run
type Result struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Config Config `json:"config"`

	// Converged is false when the cascade hit the pass cap before reaching a
	// stable state; the rest of the result is the partial outcome
	Converged bool `json:"converged"`
	Passes    int  `json:"passes"`

	Events []*LiquidationEvent `json:"events"`

	BadDebtUSD        decimal.Decimal `json:"bad_debt_usd"`
	UnresolvedRiskUSD decimal.Decimal `json:"unresolved_risk_usd"`

	LiquidatedPositions int             `json:"liquidated_positions"`
	LiquidatedVolumeUSD decimal.Decimal `json:"liquidated_volume_usd"`

	TVLStartUSD        decimal.Decimal `json:"tvl_start_usd"`
	LiquidatedPctOfTVL decimal.Decimal `json:"liquidated_pct_of_tvl"`

	VolumeByReserve      map[string]decimal.Decimal `json:"volume_by_reserve"`
	UtilizationByReserve map[string]decimal.Decimal `json:"utilization_by_reserve"`
	FinalPrices          map[string]decimal.Decimal `json:"final_prices"`

	History  []StageSnapshot `json:"history"`
	Warnings []string        `json:"warnings,omitempty"`

	RiskStatus RiskStatus `json:"risk_status"`
}
