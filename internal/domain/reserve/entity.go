package reserve

import (
	"sort"

	"github.com/shopspring/decimal"

	"maelstrom/pkg/errors"
)

// Reserve represents a tradable asset known to the lending market, with the
// risk parameters needed to evaluate borrower solvency and the depth curve
// used to model price impact of collateral sales.
type Reserve struct {
	ID    string
	Price decimal.Decimal

	// Risk parameters, fractions in [0, 1]
	LiquidationThreshold decimal.Decimal
	LoanToValue          decimal.Decimal
	LiquidationBonus     decimal.Decimal

	Decimals int32

	Depth DepthCurve
}

// Validate fails fast on inconsistent risk parameters
func (r *Reserve) Validate() error {
	if r.ID == "" {
		return errors.Wrap(errors.ErrInvalidReserveConfig, "empty reserve id")
	}
	if !r.Price.IsPositive() {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: price must be positive, got %s", r.ID, r.Price)
	}
	if r.LoanToValue.IsNegative() {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: loan-to-value must be >= 0, got %s", r.ID, r.LoanToValue)
	}
	if r.LiquidationThreshold.LessThan(r.LoanToValue) {
		return errors.Wrapf(errors.ErrInvalidReserveConfig,
			"%s: liquidation threshold %s below loan-to-value %s", r.ID, r.LiquidationThreshold, r.LoanToValue)
	}
	if r.LiquidationThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: liquidation threshold above 1", r.ID)
	}
	if r.LiquidationBonus.IsNegative() {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: liquidation bonus must be >= 0, got %s", r.ID, r.LiquidationBonus)
	}
	return r.Depth.Validate(r.ID)
}

// SetPrice updates the reserve price. A non-positive price is rejected so the
// invariant price > 0 holds at all times.
func (r *Reserve) SetPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: price update to %s rejected", r.ID, p)
	}
	r.Price = p
	return nil
}

// ApplyShock drops the price by the given fraction (0.30 = -30%)
func (r *Reserve) ApplyShock(magnitude decimal.Decimal) error {
	one := decimal.NewFromInt(1)
	if magnitude.IsNegative() || magnitude.GreaterThanOrEqual(one) {
		return errors.Wrapf(errors.ErrInvalidScenarioConfig, "%s: shock magnitude %s outside [0, 1)", r.ID, magnitude)
	}
	return r.SetPrice(r.Price.Mul(one.Sub(magnitude)))
}

// Clone returns a deep copy of the reserve
func (r *Reserve) Clone() *Reserve {
	c := *r
	return &c
}

// Book is the set of reserves visible to one scenario run, keyed by reserve ID
type Book map[string]*Reserve

// Get returns a reserve or ErrReserveNotFound
func (b Book) Get(id string) (*Reserve, error) {
	r, ok := b[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrReserveNotFound, "reserve %q", id)
	}
	return r, nil
}

// IDs returns reserve identifiers in deterministic (lexicographic) order
func (b Book) IDs() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every reserve in the book
func (b Book) Validate() error {
	for _, id := range b.IDs() {
		if err := b[id].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the book
func (b Book) Clone() Book {
	c := make(Book, len(b))
	for id, r := range b {
		c[id] = r.Clone()
	}
	return c
}
