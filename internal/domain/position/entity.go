package position

import (
	"sort"

	"github.com/shopspring/decimal"

	"maelstrom/pkg/errors"
)

// Status tracks a position through a liquidation cascade
type Status string

const (
	StatusActive              Status = "active"
	StatusPartiallyLiquidated Status = "partially_liquidated"
	StatusLiquidated          Status = "liquidated"
	StatusInsolvent           Status = "insolvent"
)

// Terminal reports whether the position can take no further liquidation
func (s Status) Terminal() bool {
	return s == StatusLiquidated || s == StatusInsolvent
}

// Holding is a supplied collateral balance. Only holdings with Enabled set
// count toward the health factor.
type Holding struct {
	Amount  decimal.Decimal
	Enabled bool
}

// Position is one borrower's multi-asset collateral and debt balances
type Position struct {
	UserID     string
	Collateral map[string]Holding
	Debt       map[string]decimal.Decimal
	Status     Status

	// Illiquid marks a position whose collateral market was exhausted while
	// it was still liquidatable. Counted once toward unresolved risk.
	Illiquid bool
}

// New creates an empty active position for a user
func New(userID string) *Position {
	return &Position{
		UserID:     userID,
		Collateral: make(map[string]Holding),
		Debt:       make(map[string]decimal.Decimal),
		Status:     StatusActive,
	}
}

// WithCollateral adds an enabled collateral holding (builder style)
func (p *Position) WithCollateral(reserveID string, amount decimal.Decimal) *Position {
	p.Collateral[reserveID] = Holding{Amount: amount, Enabled: true}
	return p
}

// WithDisabledCollateral adds a holding that does not count toward health
func (p *Position) WithDisabledCollateral(reserveID string, amount decimal.Decimal) *Position {
	p.Collateral[reserveID] = Holding{Amount: amount, Enabled: false}
	return p
}

// WithDebt adds a borrowed balance (builder style)
func (p *Position) WithDebt(reserveID string, amount decimal.Decimal) *Position {
	p.Debt[reserveID] = amount
	return p
}

// Validate rejects malformed balances. A malformed position is excluded from
// a run rather than aborting it.
func (p *Position) Validate() error {
	if p.UserID == "" {
		return errors.Wrap(errors.ErrMalformedPosition, "empty user id")
	}
	for _, id := range p.CollateralIDs() {
		if p.Collateral[id].Amount.IsNegative() {
			return errors.Wrapf(errors.ErrMalformedPosition,
				"user %s: negative collateral %s in %s", p.UserID, p.Collateral[id].Amount, id)
		}
	}
	for _, id := range p.DebtIDs() {
		if p.Debt[id].IsNegative() {
			return errors.Wrapf(errors.ErrMalformedPosition,
				"user %s: negative debt %s in %s", p.UserID, p.Debt[id], id)
		}
	}
	return nil
}

// CollateralIDs returns collateral reserve IDs in deterministic order
func (p *Position) CollateralIDs() []string {
	ids := make([]string, 0, len(p.Collateral))
	for id := range p.Collateral {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DebtIDs returns debt reserve IDs in deterministic order
func (p *Position) DebtIDs() []string {
	ids := make([]string, 0, len(p.Debt))
	for id := range p.Debt {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasDebt reports whether any borrowed balance remains
func (p *Position) HasDebt() bool {
	for _, amount := range p.Debt {
		if amount.IsPositive() {
			return true
		}
	}
	return false
}

// HasEnabledCollateral reports whether any health-eligible collateral remains
func (p *Position) HasEnabledCollateral() bool {
	for _, h := range p.Collateral {
		if h.Enabled && h.Amount.IsPositive() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the position
func (p *Position) Clone() *Position {
	c := New(p.UserID)
	c.Status = p.Status
	c.Illiquid = p.Illiquid
	for id, h := range p.Collateral {
		c.Collateral[id] = h
	}
	for id, amount := range p.Debt {
		c.Debt[id] = amount
	}
	return c
}
