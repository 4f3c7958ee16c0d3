package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"maelstrom/internal/domain/position"
	"maelstrom/internal/services/portfolio"
	"maelstrom/pkg/logger"
)

// snapshotFile is the on-disk form of a generated portfolio
type snapshotFile struct {
	Reserves  []reserveJSON  `json:"reserves"`
	Positions []positionJSON `json:"positions"`
}

type reserveJSON struct {
	ID                   string          `json:"id"`
	Price                decimal.Decimal `json:"price"`
	LiquidationThreshold decimal.Decimal `json:"liquidation_threshold"`
	LoanToValue          decimal.Decimal `json:"loan_to_value"`
	LiquidationBonus     decimal.Decimal `json:"liquidation_bonus"`
	Decimals             int32           `json:"decimals"`
	DepthUSD             decimal.Decimal `json:"depth_usd"`
}

type positionJSON struct {
	UserID     string                     `json:"user_id"`
	Collateral map[string]decimal.Decimal `json:"collateral"`
	Debt       map[string]decimal.Decimal `json:"debt"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	numUsers := flag.Int("users", 1000, "Number of borrowers to generate")
	whalePct := flag.Float64("whales", 0.01, "Fraction of users generated as whales")
	seed := flag.Int64("seed", 42, "Random seed")
	startPrice := flag.Float64("price", 2000, "Starting collateral price in USD")
	depth := flag.Float64("depth", 2000000, "Collateral market depth in USD")
	stress := flag.Float64("stress", 0.2, "Stressed fraction of normal depth")
	out := flag.String("out", "", "Output file (default: stdout)")
	flag.Parse()

	zapLogger, _ := zap.NewDevelopment()
	log := &logger.Logger{SugaredLogger: zapLogger.Sugar()}

	book := portfolio.DefaultBook(*startPrice, *depth, *stress)
	gen := portfolio.NewGenerator(portfolio.Config{
		NumUsers:           *numUsers,
		WhaleConcentration: *whalePct,
		Seed:               *seed,
		CollateralReserve:  "ETH",
		DebtReserve:        "USDC",
	}, log)

	snap, err := gen.Snapshot(book)
	if err != nil {
		log.Errorw("Generation failed", "error", err)
		os.Exit(1)
	}

	file := snapshotFile{}
	for _, id := range snap.Reserves.IDs() {
		res := snap.Reserves[id]
		file.Reserves = append(file.Reserves, reserveJSON{
			ID:                   res.ID,
			Price:                res.Price,
			LiquidationThreshold: res.LiquidationThreshold,
			LoanToValue:          res.LoanToValue,
			LiquidationBonus:     res.LiquidationBonus,
			Decimals:             res.Decimals,
			DepthUSD:             res.Depth.DepthUSD,
		})
	}
	for _, pos := range snap.Positions {
		file.Positions = append(file.Positions, toPositionJSON(pos))
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.Errorw("Marshal failed", "error", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Errorw("Write failed", "file", *out, "error", err)
		os.Exit(1)
	}
	log.Infow("Portfolio written", "file", *out, "positions", len(file.Positions))
}

func toPositionJSON(pos *position.Position) positionJSON {
	p := positionJSON{
		UserID:     pos.UserID,
		Collateral: make(map[string]decimal.Decimal),
		Debt:       make(map[string]decimal.Decimal),
	}
	for _, id := range pos.CollateralIDs() {
		p.Collateral[id] = pos.Collateral[id].Amount
	}
	for _, id := range pos.DebtIDs() {
		p.Debt[id] = pos.Debt[id]
	}
	return p
}
