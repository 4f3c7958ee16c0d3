package liquidation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maelstrom/internal/domain/impact"
	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
	"maelstrom/pkg/logger"
)

func newTestEngine() *Engine {
	return NewEngine(impact.NewLinear(), LargestDebtFirst{}, logger.Get())
}

func testBook() reserve.Book {
	return reserve.Book{
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
}

func TestLiquidate_HealthyPositionIsNoOp(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	pos := position.New("user-1").
		WithCollateral("ETH", decimal.NewFromInt(500)).
		WithDebt("USDC", decimal.NewFromInt(700_000))

	ev, err := e.Liquidate(pos, book, decimal.NewFromFloat(0.5))
	require.NoError(t, err)
	assert.Nil(t, ev, "healthy position must not be touched")
	assert.Equal(t, position.StatusActive, pos.Status)
	assert.True(t, pos.Debt["USDC"].Equal(decimal.NewFromInt(700_000)))
}

// 500 ETH at $1400 against $700k USDC: close factor caps the repay at $350k,
// the seizure grosses up by the 5% bonus to $367.5k = 262.5 ETH
func TestLiquidate_CloseFactorBound(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	require.NoError(t, book["ETH"].ApplyShock(decimal.NewFromFloat(0.30)))

	pos := position.New("user-1").
		WithCollateral("ETH", decimal.NewFromInt(500)).
		WithDebt("USDC", decimal.NewFromInt(700_000))

	ev, err := e.Liquidate(pos, book, decimal.NewFromFloat(0.5))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "USDC", ev.DebtReserve)
	assert.Equal(t, "ETH", ev.CollateralReserve)
	assert.True(t, ev.DebtRepaidUSD.Equal(decimal.NewFromInt(350_000)), "repaid = %s", ev.DebtRepaidUSD)
	assert.True(t, ev.CollateralSeizedUSD.Equal(decimal.NewFromInt(367_500)), "seized = %s", ev.CollateralSeizedUSD)
	assert.True(t, ev.CollateralSeizedAmount.Equal(decimal.NewFromFloat(262.5)), "amount = %s", ev.CollateralSeizedAmount)
	assert.True(t, ev.BonusUSD.Equal(decimal.NewFromInt(17_500)), "bonus = %s", ev.BonusUSD)
	assert.False(t, ev.ResidualBadDebt)
	assert.True(t, ev.BadDebtUSD.IsZero())

	assert.True(t, pos.Debt["USDC"].Equal(decimal.NewFromInt(350_000)))
	assert.True(t, pos.Collateral["ETH"].Amount.Equal(decimal.NewFromFloat(237.5)))
	assert.Equal(t, position.StatusPartiallyLiquidated, pos.Status)
}

func TestLiquidate_RepayNeverExceedsCloseFactor(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	require.NoError(t, book["ETH"].ApplyShock(decimal.NewFromFloat(0.30)))

	for _, cf := range []float64{0.25, 0.5, 1.0} {
		pos := position.New("user-1").
			WithCollateral("ETH", decimal.NewFromInt(500)).
			WithDebt("USDC", decimal.NewFromInt(700_000))

		closeFactor := decimal.NewFromFloat(cf)
		ev, err := e.Liquidate(pos, book, closeFactor)
		require.NoError(t, err)
		require.NotNil(t, ev)

		maxRepay := decimal.NewFromInt(700_000).Mul(closeFactor)
		assert.True(t, ev.DebtRepaidUSD.LessThanOrEqual(maxRepay),
			"close factor %v: repaid %s above cap %s", cf, ev.DebtRepaidUSD, maxRepay)
	}
}

func TestLiquidate_SeizureCappedAtAvailableCollateral(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	require.NoError(t, book["ETH"].SetPrice(decimal.NewFromInt(1000)))

	// 1 ETH ($1000) against $2000 debt: full repay wants 2.1 ETH, only 1 exists
	pos := position.New("user-1").
		WithCollateral("ETH", decimal.NewFromInt(1)).
		WithDebt("USDC", decimal.NewFromInt(2000))

	ev, err := e.Liquidate(pos, book, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.True(t, ev.CollateralSeizedAmount.Equal(decimal.NewFromInt(1)),
		"seizure must not exceed available collateral")
	assert.True(t, ev.CollateralSeizedUSD.Equal(decimal.NewFromInt(1000)))
	assert.True(t, ev.ResidualBadDebt)

	// Effective repay is 1000/1.05; everything uncovered is bad debt and the
	// position is wiped off the book
	effective := decimal.NewFromInt(1000).Div(decimal.NewFromFloat(1.05))
	wantBadDebt := decimal.NewFromInt(2000).Sub(effective)
	assert.True(t, ev.BadDebtUSD.Sub(wantBadDebt).Abs().LessThan(decimal.NewFromFloat(0.0001)),
		"bad debt = %s, want ~%s", ev.BadDebtUSD, wantBadDebt)
	assert.Equal(t, position.StatusInsolvent, pos.Status)
	assert.False(t, pos.HasDebt())
	assert.True(t, pos.Collateral["ETH"].Amount.IsZero())
}

func TestLiquidate_CapBindsWithOtherCollateralLeft(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	require.NoError(t, book["ETH"].SetPrice(decimal.NewFromInt(1000)))

	// Dominant ETH is too small for the intended repay but USDC collateral
	// remains, so the position survives as partially liquidated
	pos := position.New("user-1").
		WithCollateral("ETH", decimal.NewFromInt(2)).
		WithCollateral("USDC", decimal.NewFromInt(500)).
		WithDebt("USDC", decimal.NewFromInt(4000))

	ev, err := e.Liquidate(pos, book, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, "ETH", ev.CollateralReserve)
	assert.True(t, ev.ResidualBadDebt)
	assert.Equal(t, position.StatusPartiallyLiquidated, pos.Status)
	assert.True(t, pos.HasDebt(), "remaining debt stays on the book while collateral remains")
	assert.True(t, pos.Collateral["USDC"].Amount.Equal(decimal.NewFromInt(500)),
		"non-dominant collateral must be untouched")
}

func TestLiquidate_RepayCappedByDominantDebtHolding(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	book["DAI"] = &reserve.Reserve{
		ID:                   "DAI",
		Price:                decimal.NewFromInt(1),
		LiquidationThreshold: decimal.NewFromFloat(0.85),
		LoanToValue:          decimal.NewFromFloat(0.80),
		LiquidationBonus:     decimal.NewFromFloat(0.04),
		Decimals:             18,
		Depth: reserve.NewDepthCurve(
			decimal.NewFromInt(500_000_000),
			decimal.NewFromFloat(0.01),
			decimal.NewFromInt(1),
		),
	}
	require.NoError(t, book["ETH"].SetPrice(decimal.NewFromInt(1000)))

	// Restore-to-1 wants ~$56k but the dominant USDC debt holds only $50k,
	// so the repay is capped by the holding and clears it entirely
	pos := position.New("user-1").
		WithCollateral("ETH", decimal.NewFromInt(100)).
		WithDebt("USDC", decimal.NewFromInt(50_000)).
		WithDebt("DAI", decimal.NewFromInt(40_000))

	ev, err := e.Liquidate(pos, book, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, "USDC", ev.DebtReserve)
	assert.True(t, ev.DebtRepaidUSD.Equal(decimal.NewFromInt(50_000)), "repaid = %s", ev.DebtRepaidUSD)
	assert.True(t, pos.Debt["USDC"].IsZero())
	assert.True(t, pos.Debt["DAI"].Equal(decimal.NewFromInt(40_000)), "other debt untouched")
	assert.Equal(t, position.StatusPartiallyLiquidated, pos.Status)
}

func TestLiquidate_RestoreToOneBound(t *testing.T) {
	e := newTestEngine()
	book := testBook()
	require.NoError(t, book["ETH"].ApplyShock(decimal.NewFromFloat(0.30)))

	pos := position.New("user-1").
		WithCollateral("ETH", decimal.NewFromInt(500)).
		WithDebt("USDC", decimal.NewFromInt(700_000))

	// With close factor 1 the restore-to-1 amount binds instead:
	// (700000 - 577500) / (1 - 0.825 x 1.05) = 122500 / 0.13375
	ev, err := e.Liquidate(pos, book, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotNil(t, ev)

	restore := decimal.NewFromInt(122_500).Div(decimal.NewFromFloat(0.13375))
	assert.True(t, ev.DebtRepaidUSD.Sub(restore).Abs().LessThan(decimal.NewFromFloat(0.0001)),
		"repaid = %s, want ~%s", ev.DebtRepaidUSD, restore)
	assert.True(t, ev.DebtRepaidUSD.LessThan(decimal.NewFromInt(700_000)))
}

func TestRankPolicies(t *testing.T) {
	mk := func(userID string, debtUSD, factor float64) Candidate {
		c := Candidate{Position: position.New(userID)}
		c.Health.DebtUSD = decimal.NewFromFloat(debtUSD)
		c.Health.Factor = decimal.NewFromFloat(factor)
		return c
	}

	t.Run("largest debt first", func(t *testing.T) {
		p := LargestDebtFirst{}
		assert.Equal(t, "largest_debt", p.Name())
		assert.True(t, p.Less(mk("a", 200, 0.9), mk("b", 100, 0.5)))
		assert.False(t, p.Less(mk("a", 100, 0.9), mk("b", 200, 0.5)))
		assert.True(t, p.Less(mk("a", 100, 0.9), mk("b", 100, 0.5)), "tie breaks on user id")
	})

	t.Run("riskiest first", func(t *testing.T) {
		p := RiskiestFirst{}
		assert.Equal(t, "riskiest_first", p.Name())
		assert.True(t, p.Less(mk("a", 100, 0.5), mk("b", 200, 0.9)))
		assert.False(t, p.Less(mk("a", 100, 0.9), mk("b", 200, 0.5)))
	})

	t.Run("resolve by name", func(t *testing.T) {
		p, err := PolicyByName("")
		require.NoError(t, err)
		assert.Equal(t, "largest_debt", p.Name())

		p, err = PolicyByName("riskiest_first")
		require.NoError(t, err)
		assert.Equal(t, "riskiest_first", p.Name())

		_, err = PolicyByName("random")
		assert.Error(t, err)
	})
}
