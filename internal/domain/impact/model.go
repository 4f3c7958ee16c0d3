package impact

import (
	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/reserve"
)

// Result of pushing a sell volume into a reserve's market.
// Slippage is the fraction of price lost; NewPrice = old price x (1 - Slippage).
// Exhausted signals total liquidity exhaustion: the sale does not execute and
// the price is left unchanged. It is a reported condition, not an error.
type Result struct {
	Slippage  decimal.Decimal
	NewPrice  decimal.Decimal
	Exhausted bool
}

// Model maps a sell volume onto realized slippage given a reserve's depth
// curve. Implementations must be deterministic and stateless: cumulative
// volume tracking across a cascade is the caller's responsibility and is fed
// in through cumulativeSoldUSD.
type Model interface {
	Sell(r *reserve.Reserve, cumulativeSoldUSD, sellUSD decimal.Decimal) (Result, error)
}

// Linear is the conservative default impact model: slippage grows linearly
// with volume up to the available (stress-adjusted) depth, then linearly with
// the curve's penalty multiplier beyond it.
type Linear struct{}

// NewLinear creates the default linear impact model
func NewLinear() *Linear {
	return &Linear{}
}

// Sell computes the slippage of selling sellUSD into the reserve's market
// after cumulativeSoldUSD has already been absorbed in this stress window.
func (m *Linear) Sell(r *reserve.Reserve, cumulativeSoldUSD, sellUSD decimal.Decimal) (Result, error) {
	one := decimal.NewFromInt(1)

	if !sellUSD.IsPositive() {
		return Result{Slippage: decimal.Zero, NewPrice: r.Price}, nil
	}

	available := r.Depth.AvailableUSD()
	remaining := available.Sub(cumulativeSoldUSD)
	if !remaining.IsPositive() {
		return Result{Slippage: one, NewPrice: r.Price, Exhausted: true}, nil
	}

	// Portion absorbed within remaining depth at the reference rate
	within := decimal.Min(sellUSD, remaining)
	slippage := within.Div(available).Mul(r.Depth.ReferenceSlippage)

	// Escalating penalty beyond available depth
	if excess := sellUSD.Sub(remaining); excess.IsPositive() {
		slippage = slippage.Add(
			excess.Div(available).Mul(r.Depth.ReferenceSlippage).Mul(r.Depth.PenaltyMultiplier),
		)
	}

	if slippage.GreaterThanOrEqual(one) {
		return Result{Slippage: one, NewPrice: r.Price, Exhausted: true}, nil
	}

	return Result{
		Slippage: slippage,
		NewPrice: r.Price.Mul(one.Sub(slippage)),
	}, nil
}
