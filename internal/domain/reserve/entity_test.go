package reserve

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maelstrom/pkg/errors"
)

func validReserve() *Reserve {
	return &Reserve{
		ID:                   "ETH",
		Price:                decimal.NewFromInt(2000),
		LiquidationThreshold: decimal.NewFromFloat(0.825),
		LoanToValue:          decimal.NewFromFloat(0.80),
		LiquidationBonus:     decimal.NewFromFloat(0.05),
		Decimals:             18,
		Depth: NewDepthCurve(
			decimal.NewFromInt(2_000_000),
			decimal.NewFromFloat(0.01),
			decimal.NewFromFloat(0.2),
		),
	}
}

func TestReserve_Validate(t *testing.T) {
	t.Run("valid reserve passes", func(t *testing.T) {
		require.NoError(t, validReserve().Validate())
	})

	t.Run("empty id rejected", func(t *testing.T) {
		r := validReserve()
		r.ID = ""
		assert.ErrorIs(t, r.Validate(), errors.ErrInvalidReserveConfig)
	})

	t.Run("zero price rejected", func(t *testing.T) {
		r := validReserve()
		r.Price = decimal.Zero
		assert.ErrorIs(t, r.Validate(), errors.ErrInvalidReserveConfig)
	})

	t.Run("threshold below loan-to-value rejected", func(t *testing.T) {
		r := validReserve()
		r.LiquidationThreshold = decimal.NewFromFloat(0.5)
		assert.ErrorIs(t, r.Validate(), errors.ErrInvalidReserveConfig)
	})

	t.Run("threshold above one rejected", func(t *testing.T) {
		r := validReserve()
		r.LiquidationThreshold = decimal.NewFromFloat(1.1)
		assert.ErrorIs(t, r.Validate(), errors.ErrInvalidReserveConfig)
	})

	t.Run("negative bonus rejected", func(t *testing.T) {
		r := validReserve()
		r.LiquidationBonus = decimal.NewFromFloat(-0.05)
		assert.ErrorIs(t, r.Validate(), errors.ErrInvalidReserveConfig)
	})
}

func TestDepthCurve_Validate(t *testing.T) {
	t.Run("zero depth rejected", func(t *testing.T) {
		c := NewDepthCurve(decimal.Zero, decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.2))
		assert.ErrorIs(t, c.Validate("ETH"), errors.ErrInvalidReserveConfig)
	})

	t.Run("reference slippage of one rejected", func(t *testing.T) {
		c := NewDepthCurve(decimal.NewFromInt(1000), decimal.NewFromInt(1), decimal.NewFromFloat(0.2))
		assert.ErrorIs(t, c.Validate("ETH"), errors.ErrInvalidReserveConfig)
	})

	t.Run("stress factor above one rejected", func(t *testing.T) {
		c := NewDepthCurve(decimal.NewFromInt(1000), decimal.NewFromFloat(0.01), decimal.NewFromFloat(1.5))
		assert.ErrorIs(t, c.Validate("ETH"), errors.ErrInvalidReserveConfig)
	})

	t.Run("available depth is stress-adjusted", func(t *testing.T) {
		c := NewDepthCurve(decimal.NewFromInt(2_000_000), decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.2))
		assert.True(t, c.AvailableUSD().Equal(decimal.NewFromInt(400_000)),
			"available = %s", c.AvailableUSD())
	})
}

func TestReserve_SetPrice(t *testing.T) {
	r := validReserve()

	require.NoError(t, r.SetPrice(decimal.NewFromInt(1400)))
	assert.True(t, r.Price.Equal(decimal.NewFromInt(1400)))

	assert.ErrorIs(t, r.SetPrice(decimal.Zero), errors.ErrInvalidReserveConfig)
	assert.ErrorIs(t, r.SetPrice(decimal.NewFromInt(-1)), errors.ErrInvalidReserveConfig)
	assert.True(t, r.Price.Equal(decimal.NewFromInt(1400)), "rejected update must not change price")
}

func TestReserve_ApplyShock(t *testing.T) {
	t.Run("drops price by fraction", func(t *testing.T) {
		r := validReserve()
		require.NoError(t, r.ApplyShock(decimal.NewFromFloat(0.30)))
		assert.True(t, r.Price.Equal(decimal.NewFromInt(1400)), "price = %s", r.Price)
	})

	t.Run("zero shock keeps price", func(t *testing.T) {
		r := validReserve()
		require.NoError(t, r.ApplyShock(decimal.Zero))
		assert.True(t, r.Price.Equal(decimal.NewFromInt(2000)))
	})

	t.Run("full wipeout rejected", func(t *testing.T) {
		r := validReserve()
		assert.ErrorIs(t, r.ApplyShock(decimal.NewFromInt(1)), errors.ErrInvalidScenarioConfig)
	})

	t.Run("negative magnitude rejected", func(t *testing.T) {
		r := validReserve()
		assert.ErrorIs(t, r.ApplyShock(decimal.NewFromFloat(-0.1)), errors.ErrInvalidScenarioConfig)
	})
}

func TestBook(t *testing.T) {
	book := Book{
		"ETH":  validReserve(),
		"USDC": {ID: "USDC", Price: decimal.NewFromInt(1)},
	}

	t.Run("get known reserve", func(t *testing.T) {
		r, err := book.Get("ETH")
		require.NoError(t, err)
		assert.Equal(t, "ETH", r.ID)
	})

	t.Run("get unknown reserve", func(t *testing.T) {
		_, err := book.Get("DOGE")
		assert.ErrorIs(t, err, errors.ErrReserveNotFound)
	})

	t.Run("ids are sorted", func(t *testing.T) {
		assert.Equal(t, []string{"ETH", "USDC"}, book.IDs())
	})

	t.Run("clone is deep", func(t *testing.T) {
		clone := book.Clone()
		require.NoError(t, clone["ETH"].SetPrice(decimal.NewFromInt(1)))
		assert.True(t, book["ETH"].Price.Equal(decimal.NewFromInt(2000)),
			"mutating the clone must not touch the original")
	})
}
