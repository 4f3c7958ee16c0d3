package portfolio

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"maelstrom/internal/domain/position"
	"maelstrom/internal/domain/reserve"
	"maelstrom/internal/domain/scenario"
	"maelstrom/pkg/errors"
	"maelstrom/pkg/logger"
)

// Config drives synthetic borrower generation
type Config struct {
	NumUsers           int
	WhaleConcentration float64 // top fraction of users generated as whales
	Seed               int64
	CollateralReserve  string
	DebtReserve        string
}

// Generator produces a deterministic synthetic borrower book: a small whale
// tier with large, conservatively levered positions, and a retail tier with
// exponentially distributed holdings and a wide leverage spread.
type Generator struct {
	cfg Config
	log *logger.Logger
}

// NewGenerator creates a portfolio generator
func NewGenerator(cfg Config, log *logger.Logger) *Generator {
	return &Generator{cfg: cfg, log: log.With("component", "portfolio_generator")}
}

// Generate builds positions against the given book. Debt is derived from a
// sampled target health factor:
//
//	debt = collateral value x liquidation threshold / target HF
//
// The same seed always yields the same book.
func (g *Generator) Generate(book reserve.Book) ([]*position.Position, error) {
	col, err := book.Get(g.cfg.CollateralReserve)
	if err != nil {
		return nil, err
	}
	deb, err := book.Get(g.cfg.DebtReserve)
	if err != nil {
		return nil, err
	}
	if g.cfg.NumUsers <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidScenarioConfig, "num users %d must be positive", g.cfg.NumUsers)
	}

	rng := rand.New(rand.NewSource(g.cfg.Seed))
	whales := int(float64(g.cfg.NumUsers) * g.cfg.WhaleConcentration)

	positions := make([]*position.Position, 0, g.cfg.NumUsers)
	for i := 0; i < g.cfg.NumUsers; i++ {
		var amount, targetHF float64
		if i < whales {
			amount = 1000 + rng.Float64()*9000
			targetHF = 1.2 + rng.Float64()*0.6
		} else {
			amount = rng.ExpFloat64() * 10
			targetHF = 1.01 + rng.Float64()*0.99
		}

		collateral := decimal.NewFromFloat(amount)
		collateralUSD := collateral.Mul(col.Price)
		debtUSD := collateralUSD.Mul(col.LiquidationThreshold).Div(decimal.NewFromFloat(targetHF))

		pos := position.New(fmt.Sprintf("user-%04d", i)).
			WithCollateral(col.ID, collateral).
			WithDebt(deb.ID, debtUSD.Div(deb.Price))
		positions = append(positions, pos)
	}

	g.log.Infow("synthetic portfolio generated",
		"users", g.cfg.NumUsers, "whales", whales, "seed", g.cfg.Seed)
	return positions, nil
}

// Snapshot generates a full scenario snapshot against the book
func (g *Generator) Snapshot(book reserve.Book) (*scenario.Snapshot, error) {
	positions, err := g.Generate(book)
	if err != nil {
		return nil, err
	}
	return &scenario.Snapshot{Reserves: book, Positions: positions}, nil
}

// DefaultBook builds the standard two-reserve book used for synthetic runs:
// a volatile collateral asset and a stable debt asset.
func DefaultBook(startPrice, depthUSD, stressFactor float64) reserve.Book {
	return reserve.Book{
		"ETH": {
			ID:                   "ETH",
			Price:                decimal.NewFromFloat(startPrice),
			LiquidationThreshold: decimal.NewFromFloat(0.825),
			LoanToValue:          decimal.NewFromFloat(0.80),
			LiquidationBonus:     decimal.NewFromFloat(0.05),
			Decimals:             18,
			Depth: reserve.NewDepthCurve(
				decimal.NewFromFloat(depthUSD),
				decimal.NewFromFloat(0.01),
				decimal.NewFromFloat(stressFactor),
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
				decimal.NewFromFloat(depthUSD*20),
				decimal.NewFromFloat(0.01),
				decimal.NewFromInt(1),
			),
		},
	}
}
