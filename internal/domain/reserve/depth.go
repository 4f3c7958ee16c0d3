package reserve

import (
	"github.com/shopspring/decimal"

	"maelstrom/pkg/errors"
)

// DepthCurve describes how much sell volume a reserve's market can absorb.
// DepthUSD is the volume absorbable at ReferenceSlippage under normal
// conditions; during stress only StressFactor of it is available. Volume
// beyond the available depth is penalised linearly with PenaltyMultiplier.
type DepthCurve struct {
	DepthUSD          decimal.Decimal
	ReferenceSlippage decimal.Decimal
	StressFactor      decimal.Decimal
	PenaltyMultiplier decimal.Decimal
}

// NewDepthCurve builds a curve with the conservative linear-penalty default
func NewDepthCurve(depthUSD, referenceSlippage, stressFactor decimal.Decimal) DepthCurve {
	return DepthCurve{
		DepthUSD:          depthUSD,
		ReferenceSlippage: referenceSlippage,
		StressFactor:      stressFactor,
		PenaltyMultiplier: decimal.NewFromInt(3),
	}
}

// AvailableUSD returns the depth available under the stress assumption
func (c DepthCurve) AvailableUSD() decimal.Decimal {
	return c.DepthUSD.Mul(c.StressFactor)
}

// Validate fails fast on unusable depth parameters
func (c DepthCurve) Validate(reserveID string) error {
	one := decimal.NewFromInt(1)
	if !c.DepthUSD.IsPositive() {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: depth must be positive, got %s", reserveID, c.DepthUSD)
	}
	if !c.ReferenceSlippage.IsPositive() || c.ReferenceSlippage.GreaterThanOrEqual(one) {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: reference slippage %s outside (0, 1)", reserveID, c.ReferenceSlippage)
	}
	if !c.StressFactor.IsPositive() || c.StressFactor.GreaterThan(one) {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: stress factor %s outside (0, 1]", reserveID, c.StressFactor)
	}
	if c.PenaltyMultiplier.LessThan(one) {
		return errors.Wrapf(errors.ErrInvalidReserveConfig, "%s: penalty multiplier %s below 1", reserveID, c.PenaltyMultiplier)
	}
	return nil
}
