package health

import (
	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
)

// Classification of a position against the liquidation boundary
type Classification string

const (
	Safe         Classification = "safe"
	Liquidatable Classification = "liquidatable"
)

// Result is a point-in-time solvency evaluation of one position.
// Factor is meaningless when Infinite is set (zero total debt).
type Result struct {
	Factor   decimal.Decimal
	Infinite bool

	Classification Classification

	// InsolventIfLiquidated is set when even a full seizure of the dominant
	// collateral at bonus price cannot cover the repaid debt, so bad debt is
	// guaranteed for this position regardless of liquidator behavior.
	InsolventIfLiquidated bool

	CollateralUSD         decimal.Decimal // enabled collateral, unweighted
	WeightedCollateralUSD decimal.Decimal // enabled collateral x liquidation threshold
	DebtUSD               decimal.Decimal

	// Dominant reserves: the largest USD-value enabled collateral holding and
	// the largest USD-value debt holding, ties broken by lexicographic
	// reserve ID. Empty when the position holds none.
	DominantCollateral string
	DominantDebt       string
}

// Liquidatable reports whether the position crossed the liquidation boundary
func (r Result) Liquidatable() bool {
	return r.Classification == Liquidatable
}

// Evaluate computes the health factor of a position at current prices:
//
//	HF = sum(enabled collateral x price x liquidation threshold) / sum(debt x price)
//
// A position with zero total debt is safe by construction, with the factor
// marked infinite rather than dividing by zero. Evaluate is a pure function
// of the position's balances and the book's prices.
func Evaluate(pos *position.Position, book reserve.Book) (Result, error) {
	res := Result{Classification: Safe}

	for _, id := range pos.CollateralIDs() {
		h := pos.Collateral[id]
		if !h.Enabled || !h.Amount.IsPositive() {
			continue
		}
		r, err := book.Get(id)
		if err != nil {
			return Result{}, err
		}
		value := h.Amount.Mul(r.Price)
		res.CollateralUSD = res.CollateralUSD.Add(value)
		res.WeightedCollateralUSD = res.WeightedCollateralUSD.Add(value.Mul(r.LiquidationThreshold))
		if res.DominantCollateral == "" || value.GreaterThan(dominantValue(pos, book, res.DominantCollateral)) {
			res.DominantCollateral = id
		}
	}

	for _, id := range pos.DebtIDs() {
		amount := pos.Debt[id]
		if !amount.IsPositive() {
			continue
		}
		r, err := book.Get(id)
		if err != nil {
			return Result{}, err
		}
		value := amount.Mul(r.Price)
		res.DebtUSD = res.DebtUSD.Add(value)
		if res.DominantDebt == "" || value.GreaterThan(debtValue(pos, book, res.DominantDebt)) {
			res.DominantDebt = id
		}
	}

	if !res.DebtUSD.IsPositive() {
		res.Infinite = true
		return res, nil
	}

	res.Factor = res.WeightedCollateralUSD.Div(res.DebtUSD)

	one := decimal.NewFromInt(1)
	if res.Factor.LessThan(one) {
		res.Classification = Liquidatable

		if res.DominantCollateral != "" {
			r, err := book.Get(res.DominantCollateral)
			if err != nil {
				return Result{}, err
			}
			// HF < 1 / (1 + bonus) means full seizure cannot cover the repay
			boundary := one.Div(one.Add(r.LiquidationBonus))
			if res.Factor.LessThan(boundary) {
				res.InsolventIfLiquidated = true
			}
		}
	}

	return res, nil
}

func dominantValue(pos *position.Position, book reserve.Book, id string) decimal.Decimal {
	h := pos.Collateral[id]
	r, ok := book[id]
	if !ok {
		return decimal.Zero
	}
	return h.Amount.Mul(r.Price)
}

func debtValue(pos *position.Position, book reserve.Book, id string) decimal.Decimal {
	r, ok := book[id]
	if !ok {
		return decimal.Zero
	}
	return pos.Debt[id].Mul(r.Price)
}
