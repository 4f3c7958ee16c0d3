package scenario

import (
	"sort"

	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
	"maelstrom/pkg/errors"
)

// Config holds the parameters of one stress run
type Config struct {
	// Shocks maps reserve ID to the fractional price drop applied at time
	// zero (0.30 = -30%)
	Shocks map[string]decimal.Decimal

	// CloseFactor is the maximum fraction of a position's debt liquidatable
	// in a single action
	CloseFactor decimal.Decimal

	// MaxPasses bounds the cascade loop against oscillation
	MaxPasses int

	// SlippageEpsilon terminates the cascade once a full pass moves prices by
	// less than this aggregate fraction
	SlippageEpsilon decimal.Decimal

	// RankPolicy names the candidate ordering policy
	RankPolicy string
}

// DefaultConfig returns the standard stress parameters
func DefaultConfig() Config {
	return Config{
		Shocks:          make(map[string]decimal.Decimal),
		CloseFactor:     decimal.NewFromFloat(0.5),
		MaxPasses:       50,
		SlippageEpsilon: decimal.NewFromFloat(0.0001),
		RankPolicy:      "largest_debt",
	}
}

// WithShock sets the price drop for a reserve (builder style)
func (c Config) WithShock(reserveID string, magnitude decimal.Decimal) Config {
	if c.Shocks == nil {
		c.Shocks = make(map[string]decimal.Decimal)
	}
	c.Shocks[reserveID] = magnitude
	return c
}

// ShockedReserves returns shocked reserve IDs in deterministic order
func (c Config) ShockedReserves() []string {
	ids := make([]string, 0, len(c.Shocks))
	for id := range c.Shocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate fails fast on parameters a run must not start with
func (c Config) Validate() error {
	one := decimal.NewFromInt(1)
	if !c.CloseFactor.IsPositive() || c.CloseFactor.GreaterThan(one) {
		return errors.Wrapf(errors.ErrInvalidScenarioConfig, "close factor %s outside (0, 1]", c.CloseFactor)
	}
	if c.MaxPasses <= 0 {
		return errors.Wrapf(errors.ErrInvalidScenarioConfig, "max passes %d must be positive", c.MaxPasses)
	}
	if c.SlippageEpsilon.IsNegative() {
		return errors.Wrapf(errors.ErrInvalidScenarioConfig, "slippage epsilon %s must be >= 0", c.SlippageEpsilon)
	}
	for _, id := range c.ShockedReserves() {
		mag := c.Shocks[id]
		if mag.IsNegative() || mag.GreaterThanOrEqual(one) {
			return errors.Wrapf(errors.ErrInvalidScenarioConfig, "shock %s for %s outside [0, 1)", mag, id)
		}
	}
	return nil
}

// Snapshot is the in-memory input to one scenario run: the reserve book and
// all borrower positions, as materialized by an external collector.
type Snapshot struct {
	Reserves  reserve.Book
	Positions []*position.Position
}

// Clone deep-copies the snapshot so a run never mutates shared inputs
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Reserves:  s.Reserves.Clone(),
		Positions: make([]*position.Position, len(s.Positions)),
	}
	for i, p := range s.Positions {
		c.Positions[i] = p.Clone()
	}
	return c
}
