package scenario

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiquidationEvent is the immutable record of one liquidation action.
// Created by the liquidation engine, never mutated afterwards.
type LiquidationEvent struct {
	ID       uuid.UUID `json:"id"`
	Pass     int       `json:"pass"`
	Sequence int       `json:"sequence"`
	UserID   string    `json:"user_id"`

	DebtReserve      string          `json:"debt_reserve"`
	DebtRepaidAmount decimal.Decimal `json:"debt_repaid_amount"`
	DebtRepaidUSD    decimal.Decimal `json:"debt_repaid_usd"`
	DebtPrice        decimal.Decimal `json:"debt_price"`

	CollateralReserve      string          `json:"collateral_reserve"`
	CollateralSeizedAmount decimal.Decimal `json:"collateral_seized_amount"`
	CollateralSeizedUSD    decimal.Decimal `json:"collateral_seized_usd"`
	CollateralPrice        decimal.Decimal `json:"collateral_price"`

	BonusUSD decimal.Decimal `json:"bonus_usd"`

	// ResidualBadDebt is set when the collateral cap bound and the seized
	// value could not cover the intended repay
	ResidualBadDebt bool            `json:"residual_bad_debt"`
	BadDebtUSD      decimal.Decimal `json:"bad_debt_usd"`

	Timestamp time.Time `json:"timestamp"`
}
