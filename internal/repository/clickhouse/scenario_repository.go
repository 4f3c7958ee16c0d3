package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"maelstrom/internal/domain/scenario"
	"maelstrom/pkg/errors"
)

// Compile-time check
var _ scenario.ResultSink = (*ScenarioRepository)(nil)

// ScenarioRepository persists scenario results and their liquidation event
// logs into ClickHouse for analytics
type ScenarioRepository struct {
	conn driver.Conn
}

// NewScenarioRepository creates a new scenario repository
func NewScenarioRepository(conn driver.Conn) *ScenarioRepository {
	return &ScenarioRepository{conn: conn}
}

// SaveResult writes the run summary and the full event log
func (r *ScenarioRepository) SaveResult(ctx context.Context, result *scenario.Result) error {
	err := r.conn.Exec(ctx, `
		INSERT INTO scenario_runs (
			run_id, started_at, finished_at, converged, passes,
			bad_debt_usd, unresolved_risk_usd,
			liquidated_positions, liquidated_volume_usd,
			tvl_start_usd, liquidated_pct_of_tvl, risk_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID.String(), result.StartedAt, result.FinishedAt,
		result.Converged, uint32(result.Passes),
		result.BadDebtUSD.InexactFloat64(), result.UnresolvedRiskUSD.InexactFloat64(),
		uint32(result.LiquidatedPositions), result.LiquidatedVolumeUSD.InexactFloat64(),
		result.TVLStartUSD.InexactFloat64(), result.LiquidatedPctOfTVL.InexactFloat64(),
		string(result.RiskStatus),
	)
	if err != nil {
		return errors.Wrap(err, "insert scenario run")
	}

	return r.insertEvents(ctx, result)
}

func (r *ScenarioRepository) insertEvents(ctx context.Context, result *scenario.Result) error {
	if len(result.Events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO liquidation_events (
			run_id, event_id, pass, sequence, user_id,
			debt_reserve, debt_repaid_amount, debt_repaid_usd, debt_price,
			collateral_reserve, collateral_seized_amount, collateral_seized_usd, collateral_price,
			bonus_usd, residual_bad_debt, bad_debt_usd, timestamp
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare event batch")
	}

	for _, ev := range result.Events {
		err := batch.Append(
			result.RunID.String(), ev.ID.String(), uint32(ev.Pass), uint32(ev.Sequence), ev.UserID,
			ev.DebtReserve, ev.DebtRepaidAmount.InexactFloat64(), ev.DebtRepaidUSD.InexactFloat64(),
			ev.DebtPrice.InexactFloat64(),
			ev.CollateralReserve, ev.CollateralSeizedAmount.InexactFloat64(),
			ev.CollateralSeizedUSD.InexactFloat64(), ev.CollateralPrice.InexactFloat64(),
			ev.BonusUSD.InexactFloat64(), ev.ResidualBadDebt, ev.BadDebtUSD.InexactFloat64(),
			ev.Timestamp,
		)
		if err != nil {
			return errors.Wrap(err, "append liquidation event")
		}
	}

	return batch.Send()
}
