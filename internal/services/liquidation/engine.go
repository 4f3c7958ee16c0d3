package liquidation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/health"
	"maelstrom/internal/domain/impact"
	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
	"maelstrom/internal/domain/scenario"
	"maelstrom/pkg/logger"
)

// Engine executes single liquidations and drives the cascade loop. It owns no
// state of its own: all run state lives on the scenario.CascadeState so the
// engine can serve concurrent scenario runs.
type Engine struct {
	impact impact.Model
	rank   RankPolicy
	log    *logger.Logger
	now    func() time.Time
}

// NewEngine creates a liquidation engine with the given impact model and
// candidate ordering policy
func NewEngine(model impact.Model, rank RankPolicy, log *logger.Logger) *Engine {
	return &Engine{
		impact: model,
		rank:   rank,
		log:    log.With("component", "liquidation_engine"),
		now:    time.Now,
	}
}

// Liquidate performs one liquidation action against a position at current
// book prices. It is a no-op (nil event) when the position is not
// liquidatable or holds no seizable collateral.
//
// The repay amount is min(closeFactor x total debt value, the amount that
// restores the health factor to 1.0 on the dominant collateral/debt pair).
// The seize amount is the repay value grossed up by the liquidation bonus,
// capped at the position's available dominant collateral; a binding cap
// records residual bad debt on the event.
func (e *Engine) Liquidate(pos *position.Position, book reserve.Book, closeFactor decimal.Decimal) (*scenario.LiquidationEvent, error) {
	res, err := health.Evaluate(pos, book)
	if err != nil {
		return nil, err
	}
	if !res.Liquidatable() || res.DominantCollateral == "" {
		return nil, nil
	}

	col, err := book.Get(res.DominantCollateral)
	if err != nil {
		return nil, err
	}
	deb, err := book.Get(res.DominantDebt)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	gross := one.Add(col.LiquidationBonus)

	// Repay value: close-factor cap, tightened to the amount that restores
	// HF = 1 when such an amount exists on this pair
	repayUSD := res.DebtUSD.Mul(closeFactor)
	if denom := one.Sub(col.LiquidationThreshold.Mul(gross)); denom.IsPositive() {
		restore := res.DebtUSD.Sub(res.WeightedCollateralUSD).Div(denom)
		if restore.IsPositive() && restore.LessThan(repayUSD) {
			repayUSD = restore
		}
	}
	// Cannot repay more than the dominant debt holding
	if holdingUSD := pos.Debt[res.DominantDebt].Mul(deb.Price); repayUSD.GreaterThan(holdingUSD) {
		repayUSD = holdingUSD
	}
	if !repayUSD.IsPositive() {
		return nil, nil
	}

	seizeUSD := repayUSD.Mul(gross)
	seizeAmount := seizeUSD.Div(col.Price)
	available := pos.Collateral[res.DominantCollateral].Amount

	ev := &scenario.LiquidationEvent{
		ID:                uuid.New(),
		UserID:            pos.UserID,
		DebtReserve:       res.DominantDebt,
		DebtPrice:         deb.Price,
		CollateralReserve: res.DominantCollateral,
		CollateralPrice:   col.Price,
		Timestamp:         e.now().UTC(),
	}

	if seizeAmount.GreaterThan(available) {
		// Cap binds: take all dominant collateral, cover what it can
		seizedUSD := available.Mul(col.Price)
		effectiveRepayUSD := seizedUSD.Div(gross)

		ev.CollateralSeizedAmount = available
		ev.CollateralSeizedUSD = seizedUSD
		ev.DebtRepaidUSD = effectiveRepayUSD
		ev.DebtRepaidAmount = effectiveRepayUSD.Div(deb.Price)
		ev.BonusUSD = seizedUSD.Sub(effectiveRepayUSD)
		ev.ResidualBadDebt = true

		holding := pos.Collateral[res.DominantCollateral]
		holding.Amount = decimal.Zero
		pos.Collateral[res.DominantCollateral] = holding

		if !pos.HasEnabledCollateral() {
			// Nothing left to seize: the uncovered remainder is bad debt and
			// the debt is written off the book
			badDebt := res.DebtUSD.Sub(effectiveRepayUSD)
			if badDebt.IsNegative() {
				badDebt = decimal.Zero
			}
			ev.BadDebtUSD = badDebt
			for id := range pos.Debt {
				pos.Debt[id] = decimal.Zero
			}
			pos.Status = position.StatusInsolvent
		} else {
			ev.BadDebtUSD = repayUSD.Sub(effectiveRepayUSD)
			e.repayDebt(pos, res.DominantDebt, effectiveRepayUSD.Div(deb.Price))
			pos.Status = position.StatusPartiallyLiquidated
		}

		return ev, nil
	}

	// Normal liquidation
	ev.CollateralSeizedAmount = seizeAmount
	ev.CollateralSeizedUSD = seizeUSD
	ev.DebtRepaidUSD = repayUSD
	ev.DebtRepaidAmount = repayUSD.Div(deb.Price)
	ev.BonusUSD = repayUSD.Mul(col.LiquidationBonus)
	ev.BadDebtUSD = decimal.Zero

	holding := pos.Collateral[res.DominantCollateral]
	holding.Amount = holding.Amount.Sub(seizeAmount)
	pos.Collateral[res.DominantCollateral] = holding
	e.repayDebt(pos, res.DominantDebt, ev.DebtRepaidAmount)

	if pos.HasDebt() {
		pos.Status = position.StatusPartiallyLiquidated
	} else {
		pos.Status = position.StatusLiquidated
	}

	return ev, nil
}

// repayDebt decrements a debt balance, flooring at zero against rounding
func (e *Engine) repayDebt(pos *position.Position, reserveID string, amount decimal.Decimal) {
	remaining := pos.Debt[reserveID].Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	pos.Debt[reserveID] = remaining
}

// RunCascade drives the full liquidation cascade over the run state:
// the shock is applied once, then passes of select/liquidate/propagate repeat
// until no candidate remains, price impact becomes negligible, or the pass
// cap is hit. Each liquidation's price effect is applied before the next
// candidate is evaluated, so the loop is strictly sequential.
func (e *Engine) RunCascade(st *scenario.CascadeState) error {
	rank := e.rank
	if st.Config.RankPolicy != "" {
		policy, err := PolicyByName(st.Config.RankPolicy)
		if err != nil {
			return err
		}
		rank = policy
	}

	for _, id := range st.Config.ShockedReserves() {
		r, err := st.Book.Get(id)
		if err != nil {
			return err
		}
		prev := r.Price
		if err := r.ApplyShock(st.Config.Shocks[id]); err != nil {
			return err
		}
		e.log.Infow("shock applied", "run_id", st.RunID, "reserve", id,
			"magnitude", st.Config.Shocks[id].String(), "price_before", prev.String(), "price_after", r.Price.String())
	}
	st.SnapshotStage("post_shock")

	for pass := 1; pass <= st.Config.MaxPasses; pass++ {
		st.Passes = pass
		st.ResetPass()

		candidates, err := e.selectCandidates(st, rank)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			st.Converged = true
			break
		}

		passSlippage := decimal.Zero
		liquidated := 0

		for _, cand := range candidates {
			pos := cand.Position
			if st.Processed[pos.UserID] || pos.Status.Terminal() {
				continue
			}

			// Re-evaluate at current prices: earlier liquidations in this
			// pass may have moved the book
			res, err := health.Evaluate(pos, st.Book)
			if err != nil {
				return err
			}
			if !res.Liquidatable() {
				continue
			}
			if res.DominantCollateral == "" {
				e.writeOff(st, pos, res)
				continue
			}
			if st.IlliquidReserves[res.DominantCollateral] {
				e.markUnresolved(st, pos, res)
				continue
			}

			ev, err := e.Liquidate(pos, st.Book, st.Config.CloseFactor)
			if err != nil {
				return err
			}
			if ev == nil {
				continue
			}
			ev.Pass = pass
			ev.Sequence = len(st.Events) + 1
			st.Events = append(st.Events, ev)
			st.BadDebtUSD = st.BadDebtUSD.Add(ev.BadDebtUSD)
			st.Processed[pos.UserID] = true
			liquidated++

			slip, err := e.propagate(st, ev)
			if err != nil {
				return err
			}
			passSlippage = passSlippage.Add(slip)
		}

		st.SnapshotStage(fmt.Sprintf("pass_%d", pass))
		e.log.Infow("cascade pass complete", "run_id", st.RunID, "pass", pass,
			"liquidations", liquidated, "pass_slippage", passSlippage.String(),
			"bad_debt_usd", st.BadDebtUSD.StringFixed(2))

		if liquidated == 0 {
			// Remaining candidates are blocked (illiquid markets) or turned
			// out healthy on re-evaluation; the loop cannot progress
			st.Converged = true
			break
		}
		if passSlippage.LessThan(st.Config.SlippageEpsilon) {
			// Price feedback is dead; close-factor repayments shrink debt
			// monotonically from here
			st.Converged = true
			break
		}
	}

	if !st.Converged {
		st.Warn(fmt.Sprintf("cascade did not converge within %d passes", st.Config.MaxPasses))
	}
	return nil
}

// selectCandidates evaluates every non-terminal position at current prices
// and returns the liquidatable set in policy order
func (e *Engine) selectCandidates(st *scenario.CascadeState, rank RankPolicy) ([]Candidate, error) {
	candidates := make([]Candidate, 0)
	for _, pos := range st.Positions {
		if pos.Status.Terminal() || !pos.HasDebt() {
			continue
		}
		// An exhausted market's price is frozen and other prices never rise,
		// so a flagged position's dominant pair cannot migrate to a liquid
		// reserve. Keeping it out of the set counts its risk exactly once.
		if pos.Illiquid {
			continue
		}
		res, err := health.Evaluate(pos, st.Book)
		if err != nil {
			return nil, err
		}
		if res.Liquidatable() {
			candidates = append(candidates, Candidate{Position: pos, Health: res})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rank.Less(candidates[i], candidates[j])
	})
	return candidates, nil
}

// propagate reports the seized collateral as a market sale and applies the
// resulting price move to the shared book before the next candidate is
// evaluated. Exhausted depth marks the reserve illiquid instead of moving
// the price.
func (e *Engine) propagate(st *scenario.CascadeState, ev *scenario.LiquidationEvent) (decimal.Decimal, error) {
	r, err := st.Book.Get(ev.CollateralReserve)
	if err != nil {
		return decimal.Zero, err
	}

	sold := st.VolumeByReserve[ev.CollateralReserve]
	imp, err := e.impact.Sell(r, sold, ev.CollateralSeizedUSD)
	if err != nil {
		return decimal.Zero, err
	}

	if imp.Exhausted {
		st.IlliquidReserves[ev.CollateralReserve] = true
		st.Warn(fmt.Sprintf("market depth exhausted for %s after %s USD sold", ev.CollateralReserve,
			sold.StringFixed(0)))
		e.log.Warnw("market depth exhausted", "run_id", st.RunID, "reserve", ev.CollateralReserve)
		return decimal.Zero, nil
	}

	// Only executed sales consume depth; an exhausted sale moves nothing
	st.VolumeByReserve[ev.CollateralReserve] = sold.Add(ev.CollateralSeizedUSD)

	if err := r.SetPrice(imp.NewPrice); err != nil {
		return decimal.Zero, err
	}
	return imp.Slippage, nil
}

// writeOff handles a liquidatable position with no seizable collateral: the
// whole remaining debt is bad debt and is written off the book
func (e *Engine) writeOff(st *scenario.CascadeState, pos *position.Position, res health.Result) {
	st.BadDebtUSD = st.BadDebtUSD.Add(res.DebtUSD)
	for id := range pos.Debt {
		pos.Debt[id] = decimal.Zero
	}
	pos.Status = position.StatusInsolvent
	st.Warn(fmt.Sprintf("user %s: no seizable collateral, %s USD written off as bad debt",
		pos.UserID, res.DebtUSD.StringFixed(2)))
}

// markUnresolved records a position that stayed liquidatable while its
// collateral market was illiquid. Counted once per position.
func (e *Engine) markUnresolved(st *scenario.CascadeState, pos *position.Position, res health.Result) {
	if pos.Illiquid {
		return
	}
	pos.Illiquid = true
	st.UnresolvedRiskUSD = st.UnresolvedRiskUSD.Add(res.DebtUSD)
	st.Warn(fmt.Sprintf("user %s: could not be liquidated, market for %s illiquid",
		pos.UserID, res.DominantCollateral))
}
