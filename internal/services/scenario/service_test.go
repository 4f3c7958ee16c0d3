package scenarioservice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maelstrom/internal/domain/impact"
	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
	"maelstrom/internal/domain/scenario"
	"maelstrom/internal/services/liquidation"
	"maelstrom/pkg/errors"
	"maelstrom/pkg/logger"
)

func newTestService() *Service {
	engine := liquidation.NewEngine(impact.NewLinear(), liquidation.LargestDebtFirst{}, logger.Get())
	return NewService(engine, logger.Get())
}

func testSnapshot() *scenario.Snapshot {
	book := reserve.Book{
		"ETH": {
			ID:                   "ETH",
			Price:                decimal.NewFromInt(2000),
			LiquidationThreshold: decimal.NewFromFloat(0.825),
			LoanToValue:          decimal.NewFromFloat(0.80),
			LiquidationBonus:     decimal.NewFromFloat(0.05),
			Decimals:             18,
			Depth: reserve.NewDepthCurve(
				decimal.NewFromInt(100_000_000),
				decimal.NewFromFloat(0.01),
				decimal.NewFromInt(1),
			),
		},
		"USDC": {
			ID:                   "USDC",
			Price:                decimal.NewFromInt(1),
			LiquidationThreshold: decimal.NewFromFloat(0.90),
			LoanToValue:          decimal.NewFromFloat(0.87),
			LiquidationBonus:     decimal.NewFromFloat(0.04),
			Decimals:             6,
			Depth: reserve.NewDepthCurve(
				decimal.NewFromInt(500_000_000),
				decimal.NewFromFloat(0.01),
				decimal.NewFromInt(1),
			),
		},
	}
	positions := []*position.Position{
		position.New("user-1").
			WithCollateral("ETH", decimal.NewFromInt(500)).
			WithDebt("USDC", decimal.NewFromInt(700_000)),
		position.New("user-2").
			WithCollateral("ETH", decimal.NewFromInt(100)).
			WithDebt("USDC", decimal.NewFromInt(50_000)),
	}
	return &scenario.Snapshot{Reserves: book, Positions: positions}
}

func shocked(magnitude float64) scenario.Config {
	return scenario.DefaultConfig().WithShock("ETH", decimal.NewFromFloat(magnitude))
}

func TestService_Run(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()

	result, err := s.Run(context.Background(), snap, shocked(0.30))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Converged)
	assert.NotEmpty(t, result.Events)
	assert.Equal(t, 1, result.LiquidatedPositions, "only user-1 crosses the boundary")
	assert.True(t, result.LiquidatedVolumeUSD.IsPositive())
	assert.True(t, result.TVLStartUSD.Equal(decimal.NewFromInt(1_200_000)),
		"TVL is valued at pre-shock prices, got %s", result.TVLStartUSD)
	assert.True(t, result.LiquidatedPctOfTVL.IsPositive())
	assert.NotEmpty(t, result.FinalPrices)
	assert.Equal(t, scenario.RiskStable, result.RiskStatus)
	assert.NotEqual(t, result.RunID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestService_Run_DoesNotMutateInput(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()

	_, err := s.Run(context.Background(), snap, shocked(0.30))
	require.NoError(t, err)

	assert.True(t, snap.Reserves["ETH"].Price.Equal(decimal.NewFromInt(2000)),
		"run must not shock the caller's book")
	assert.True(t, snap.Positions[0].Debt["USDC"].Equal(decimal.NewFromInt(700_000)),
		"run must not liquidate the caller's positions")
	assert.Equal(t, position.StatusActive, snap.Positions[0].Status)

	// A second run over the same snapshot yields the same outcome
	a, err := s.Run(context.Background(), snap, shocked(0.30))
	require.NoError(t, err)
	b, err := s.Run(context.Background(), snap, shocked(0.30))
	require.NoError(t, err)
	assert.True(t, a.BadDebtUSD.Equal(b.BadDebtUSD))
	assert.Equal(t, len(a.Events), len(b.Events))
}

func TestService_Run_InvalidConfig(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()

	cfg := shocked(0.30)
	cfg.CloseFactor = decimal.Zero

	_, err := s.Run(context.Background(), snap, cfg)
	assert.ErrorIs(t, err, errors.ErrInvalidScenarioConfig)
}

func TestService_Run_InvalidReserve(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()
	snap.Reserves["ETH"].Price = decimal.Zero

	_, err := s.Run(context.Background(), snap, shocked(0.30))
	assert.ErrorIs(t, err, errors.ErrInvalidReserveConfig)
}

func TestService_Run_ExcludesMalformedPositions(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()
	snap.Positions = append(snap.Positions,
		position.New("broken").WithDebt("USDC", decimal.NewFromInt(-5)),
	)

	result, err := s.Run(context.Background(), snap, shocked(0.30))
	require.NoError(t, err, "one malformed position must not abort the run")
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "position excluded")

	for _, ev := range result.Events {
		assert.NotEqual(t, "broken", ev.UserID)
	}
}

func TestService_Run_BadDebtTurnsStatusCritical(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()
	// Deep underwater: even full ETH seizure cannot cover the debt
	snap.Positions = []*position.Position{
		position.New("user-1").
			WithCollateral("ETH", decimal.NewFromInt(1)).
			WithDebt("USDC", decimal.NewFromInt(50_000)),
	}

	result, err := s.Run(context.Background(), snap, shocked(0.30))
	require.NoError(t, err)
	assert.True(t, result.BadDebtUSD.IsPositive())
	assert.Equal(t, scenario.RiskCritical, result.RiskStatus)
}

func TestService_Sweep(t *testing.T) {
	s := newTestService()
	snap := testSnapshot()

	cfgs := []scenario.Config{shocked(0.10), shocked(0.30), shocked(0.50)}

	results, err := s.Sweep(context.Background(), snap, cfgs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, result := range results {
		require.NotNil(t, result, "result %d missing", i)
		want := cfgs[i].Shocks["ETH"]
		assert.True(t, result.Config.Shocks["ETH"].Equal(want),
			"results must come back in configuration order")
	}

	// Deeper shocks liquidate at least as much volume
	assert.True(t, results[0].LiquidatedVolumeUSD.LessThanOrEqual(results[2].LiquidatedVolumeUSD),
		"10%% shock liquidated more than 50%%: %s vs %s",
		results[0].LiquidatedVolumeUSD, results[2].LiquidatedVolumeUSD)

	assert.True(t, snap.Reserves["ETH"].Price.Equal(decimal.NewFromInt(2000)),
		"sweep must not mutate the shared snapshot")
}

func TestService_Sweep_Empty(t *testing.T) {
	s := newTestService()
	results, err := s.Sweep(context.Background(), testSnapshot(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestService_Sweep_PropagatesErrors(t *testing.T) {
	s := newTestService()
	bad := shocked(0.30)
	bad.MaxPasses = 0

	_, err := s.Sweep(context.Background(), testSnapshot(), []scenario.Config{shocked(0.10), bad})
	assert.ErrorIs(t, err, errors.ErrInvalidScenarioConfig)
}
