package main

import (
	"context"
	"flag"

	"maelstrom/internal/adapters/config"
	"maelstrom/internal/adapters/postgres"
	pgrepo "maelstrom/internal/repository/postgres"
	"maelstrom/internal/services/portfolio"
	"maelstrom/pkg/logger"
)

// Seeds Postgres with a synthetic snapshot so the simulator can run with
// SNAPSHOT_SOURCE=postgres against realistic data.
func main() {
	dryRun := flag.Bool("dry-run", false, "Generate the snapshot without writing to the database")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infow("Starting seeder",
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
		"users", cfg.Portfolio.NumUsers,
	)

	book := portfolio.DefaultBook(
		cfg.Portfolio.StartPrice,
		cfg.Portfolio.MarketDepthUSD,
		cfg.Scenario.DepthStress,
	)
	gen := portfolio.NewGenerator(portfolio.Config{
		NumUsers:           cfg.Portfolio.NumUsers,
		WhaleConcentration: cfg.Portfolio.WhaleConcentration,
		Seed:               cfg.Portfolio.Seed,
		CollateralReserve:  "ETH",
		DebtReserve:        "USDC",
	}, log)

	snap, err := gen.Snapshot(book)
	if err != nil {
		log.Fatalf("Failed to generate snapshot: %v", err)
	}

	if *dryRun {
		log.Infow("Dry-run: snapshot generated, nothing written",
			"reserves", len(snap.Reserves), "positions", len(snap.Positions))
		return
	}

	client, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	repo := pgrepo.NewSnapshotRepository(client.DB())
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}

	log.Infow("Snapshot seeded",
		"reserves", len(snap.Reserves), "positions", len(snap.Positions))
}
