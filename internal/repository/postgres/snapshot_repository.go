package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
	"maelstrom/internal/domain/scenario"
	"maelstrom/pkg/errors"
)

// Compile-time check
var _ scenario.SnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository loads position/reserve snapshots that an external
// collector has materialized into Postgres
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type reserveRow struct {
	ID                   string          `db:"id"`
	Price                decimal.Decimal `db:"price"`
	LiquidationThreshold decimal.Decimal `db:"liquidation_threshold"`
	LoanToValue          decimal.Decimal `db:"loan_to_value"`
	LiquidationBonus     decimal.Decimal `db:"liquidation_bonus"`
	Decimals             int32           `db:"decimals"`
	DepthUSD             decimal.Decimal `db:"depth_usd"`
	ReferenceSlippage    decimal.Decimal `db:"reference_slippage"`
	StressFactor         decimal.Decimal `db:"stress_factor"`
	PenaltyMultiplier    decimal.Decimal `db:"penalty_multiplier"`
}

type collateralRow struct {
	UserID    string          `db:"user_id"`
	ReserveID string          `db:"reserve_id"`
	Amount    decimal.Decimal `db:"amount"`
	Enabled   bool            `db:"enabled"`
}

type debtRow struct {
	UserID    string          `db:"user_id"`
	ReserveID string          `db:"reserve_id"`
	Amount    decimal.Decimal `db:"amount"`
}

// LoadSnapshot reads the latest snapshot of reserves and positions
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (*scenario.Snapshot, error) {
	var reserves []reserveRow
	err := r.db.SelectContext(ctx, &reserves, `
		SELECT id, price, liquidation_threshold, loan_to_value, liquidation_bonus,
		       decimals, depth_usd, reference_slippage, stress_factor, penalty_multiplier
		FROM reserves
		ORDER BY id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load reserves")
	}
	if len(reserves) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no reserves in snapshot")
	}

	book := make(reserve.Book, len(reserves))
	for _, row := range reserves {
		book[row.ID] = &reserve.Reserve{
			ID:                   row.ID,
			Price:                row.Price,
			LiquidationThreshold: row.LiquidationThreshold,
			LoanToValue:          row.LoanToValue,
			LiquidationBonus:     row.LiquidationBonus,
			Decimals:             row.Decimals,
			Depth: reserve.DepthCurve{
				DepthUSD:          row.DepthUSD,
				ReferenceSlippage: row.ReferenceSlippage,
				StressFactor:      row.StressFactor,
				PenaltyMultiplier: row.PenaltyMultiplier,
			},
		}
	}

	var collateral []collateralRow
	err = r.db.SelectContext(ctx, &collateral, `
		SELECT user_id, reserve_id, amount, enabled
		FROM position_collateral
		ORDER BY user_id, reserve_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load position collateral")
	}

	var debt []debtRow
	err = r.db.SelectContext(ctx, &debt, `
		SELECT user_id, reserve_id, amount
		FROM position_debt
		ORDER BY user_id, reserve_id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load position debt")
	}

	byUser := make(map[string]*position.Position)
	order := make([]string, 0)
	get := func(userID string) *position.Position {
		if pos, ok := byUser[userID]; ok {
			return pos
		}
		pos := position.New(userID)
		byUser[userID] = pos
		order = append(order, userID)
		return pos
	}

	for _, row := range collateral {
		get(row.UserID).Collateral[row.ReserveID] = position.Holding{
			Amount:  row.Amount,
			Enabled: row.Enabled,
		}
	}
	for _, row := range debt {
		get(row.UserID).Debt[row.ReserveID] = row.Amount
	}

	positions := make([]*position.Position, 0, len(order))
	for _, userID := range order {
		positions = append(positions, byUser[userID])
	}

	return &scenario.Snapshot{Reserves: book, Positions: positions}, nil
}

// SaveSnapshot replaces the stored snapshot with the given one. Used by the
// seeder to materialize synthetic books for later runs.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap *scenario.Snapshot) error {
	for _, table := range []string{"position_debt", "position_collateral", "reserves"} {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	for _, id := range snap.Reserves.IDs() {
		res := snap.Reserves[id]
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO reserves (
				id, price, liquidation_threshold, loan_to_value, liquidation_bonus,
				decimals, depth_usd, reference_slippage, stress_factor, penalty_multiplier
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			res.ID, res.Price, res.LiquidationThreshold, res.LoanToValue, res.LiquidationBonus,
			res.Decimals, res.Depth.DepthUSD, res.Depth.ReferenceSlippage,
			res.Depth.StressFactor, res.Depth.PenaltyMultiplier,
		)
		if err != nil {
			return errors.Wrapf(err, "insert reserve %s", id)
		}
	}

	for _, pos := range snap.Positions {
		for _, id := range pos.CollateralIDs() {
			holding := pos.Collateral[id]
			_, err := r.db.ExecContext(ctx, `
				INSERT INTO position_collateral (user_id, reserve_id, amount, enabled)
				VALUES ($1, $2, $3, $4)
			`, pos.UserID, id, holding.Amount, holding.Enabled)
			if err != nil {
				return errors.Wrapf(err, "insert collateral for %s", pos.UserID)
			}
		}
		for _, id := range pos.DebtIDs() {
			_, err := r.db.ExecContext(ctx, `
				INSERT INTO position_debt (user_id, reserve_id, amount)
				VALUES ($1, $2, $3)
			`, pos.UserID, id, pos.Debt[id])
			if err != nil {
				return errors.Wrapf(err, "insert debt for %s", pos.UserID)
			}
		}
	}

	return nil
}
