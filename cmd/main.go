package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"maelstrom/internal/adapters/clickhouse"
	"maelstrom/internal/adapters/config"
	"maelstrom/internal/adapters/errors/noop"
	"maelstrom/internal/adapters/errors/sentry"
	"maelstrom/internal/adapters/kafka"
	"maelstrom/internal/adapters/postgres"
	"maelstrom/internal/domain/impact"
	"maelstrom/internal/domain/scenario"
	"maelstrom/internal/events"
	"maelstrom/internal/metrics"
	chrepo "maelstrom/internal/repository/clickhouse"
	pgrepo "maelstrom/internal/repository/postgres"
	"maelstrom/internal/services/liquidation"
	"maelstrom/internal/services/portfolio"
	scenarioservice "maelstrom/internal/services/scenario"
	"maelstrom/pkg/errors"
	"maelstrom/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	if cfg.Metrics.Enabled {
		metrics.Register()
		go func() {
			log.Infof("Metrics listening on :%d", cfg.Metrics.Port)
			if err := metrics.Serve(cfg.Metrics.Port); err != nil {
				log.Warnf("Metrics server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	snap, cleanup, err := loadSnapshot(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	defer cleanup()

	service, err := initService(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize scenario service: %v", err)
	}

	sink, publisher, outCleanup := initOutputs(cfg, log)
	defer outCleanup()

	if cfg.Sweep.Enabled {
		err = runSweep(ctx, cfg, service, snap, log)
	} else {
		err = runSingle(ctx, cfg, service, snap, sink, publisher, log)
	}
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	if err := errorTracker.Flush(context.Background()); err != nil {
		log.Warnf("Error tracker flush failed: %v", err)
	}
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// loadSnapshot builds the run input either synthetically or from Postgres
func loadSnapshot(ctx context.Context, cfg *config.Config, log *logger.Logger) (*scenario.Snapshot, func(), error) {
	noopCleanup := func() {}

	switch cfg.Snapshot.Source {
	case "postgres":
		client, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, noopCleanup, err
		}
		repo := pgrepo.NewSnapshotRepository(client.DB())
		snap, err := repo.LoadSnapshot(ctx)
		if err != nil {
			client.Close()
			return nil, noopCleanup, err
		}
		log.Infow("Snapshot loaded from Postgres",
			"reserves", len(snap.Reserves), "positions", len(snap.Positions))
		return snap, func() { client.Close() }, nil

	default: // synthetic
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
		return snap, noopCleanup, err
	}
}

// initService wires the impact model, ranking policy and cascade engine
func initService(cfg *config.Config, log *logger.Logger) (*scenarioservice.Service, error) {
	policy, err := liquidation.PolicyByName("")
	if err != nil {
		return nil, err
	}

	engine := liquidation.NewEngine(impact.NewLinear(), policy, log)
	service := scenarioservice.NewService(engine, log,
		scenarioservice.WithSweepWorkers(cfg.Sweep.Workers),
		scenarioservice.WithSweepStartRate(cfg.Sweep.StartRate),
	)
	return service, nil
}

// initOutputs wires the optional ClickHouse sink and Kafka publisher
func initOutputs(cfg *config.Config, log *logger.Logger) (scenario.ResultSink, scenario.ResultPublisher, func()) {
	var sink scenario.ResultSink
	var publisher scenario.ResultPublisher
	cleanups := []func(){}

	if cfg.ClickHouse.Enabled {
		client, err := clickhouse.NewClient(cfg.ClickHouse)
		if err != nil {
			log.Warnf("ClickHouse unavailable, results will not be persisted: %v", err)
		} else {
			sink = chrepo.NewScenarioRepository(client.Conn())
			cleanups = append(cleanups, func() { client.Close() })
			log.Info("ClickHouse result sink enabled")
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		publisher = events.NewPublisher(producer)
		cleanups = append(cleanups, func() { producer.Close() })
		log.Info("Kafka result publisher enabled")
	}

	return sink, publisher, func() {
		for _, fn := range cleanups {
			fn()
		}
	}
}

// scenarioConfig translates env configuration into a run config
func scenarioConfig(cfg *config.Config, magnitude float64) scenario.Config {
	run := scenario.DefaultConfig().
		WithShock(cfg.Scenario.ShockReserve, decimal.NewFromFloat(magnitude))
	run.CloseFactor = decimal.NewFromFloat(cfg.Scenario.CloseFactor)
	run.MaxPasses = cfg.Scenario.MaxPasses
	run.SlippageEpsilon = decimal.NewFromFloat(cfg.Scenario.SlippageEpsilon)
	return run
}

// runSingle executes one scenario and fans the result out to sink/publisher
func runSingle(
	ctx context.Context,
	cfg *config.Config,
	service *scenarioservice.Service,
	snap *scenario.Snapshot,
	sink scenario.ResultSink,
	publisher scenario.ResultPublisher,
	log *logger.Logger,
) error {
	result, err := service.Run(ctx, snap, scenarioConfig(cfg, cfg.Scenario.ShockMagnitude))
	if err != nil {
		return err
	}

	logSummary(result, log)

	if sink != nil {
		if err := sink.SaveResult(ctx, result); err != nil {
			log.Errorf("Failed to persist result: %v", err)
		}
	}
	if publisher != nil {
		if err := publisher.PublishScenarioCompleted(ctx, result); err != nil {
			log.Errorf("Failed to publish result: %v", err)
		}
	}
	return nil
}

// runSweep executes the shock magnitude grid and logs one summary line per run
func runSweep(
	ctx context.Context,
	cfg *config.Config,
	service *scenarioservice.Service,
	snap *scenario.Snapshot,
	log *logger.Logger,
) error {
	var cfgs []scenario.Config
	for m := cfg.Sweep.MagnitudeFrom; m <= cfg.Sweep.MagnitudeTo+1e-9; m += cfg.Sweep.MagnitudeStep {
		cfgs = append(cfgs, scenarioConfig(cfg, m))
	}

	log.Infof("Sweeping %d shock magnitudes on %s", len(cfgs), cfg.Scenario.ShockReserve)

	results, err := service.Sweep(ctx, snap, cfgs)
	if err != nil {
		return err
	}

	for i, result := range results {
		shock := cfgs[i].Shocks[cfg.Scenario.ShockReserve]
		log.Infof("shock=%s%%: %d liquidated, volume $%s, bad debt $%s, status=%s",
			shock.Mul(decimal.NewFromInt(100)).StringFixed(0),
			result.LiquidatedPositions,
			humanize.CommafWithDigits(result.LiquidatedVolumeUSD.InexactFloat64(), 0),
			humanize.CommafWithDigits(result.BadDebtUSD.InexactFloat64(), 0),
			result.RiskStatus,
		)
	}
	return nil
}

// logSummary prints a human readable digest of one run
func logSummary(result *scenario.Result, log *logger.Logger) {
	status := "converged"
	if !result.Converged {
		status = "pass cap reached"
	}

	log.Infof("Run %s finished: %s after %d passes", result.RunID, status, result.Passes)
	log.Infof("Liquidated %d positions, %d events, volume $%s (%s%% of TVL)",
		result.LiquidatedPositions,
		len(result.Events),
		humanize.CommafWithDigits(result.LiquidatedVolumeUSD.InexactFloat64(), 0),
		result.LiquidatedPctOfTVL.Mul(decimal.NewFromInt(100)).StringFixed(2),
	)
	log.Infof("Bad debt $%s, unresolved risk $%s, risk status: %s",
		humanize.CommafWithDigits(result.BadDebtUSD.InexactFloat64(), 0),
		humanize.CommafWithDigits(result.UnresolvedRiskUSD.InexactFloat64(), 0),
		result.RiskStatus,
	)
	for id, price := range result.FinalPrices {
		log.Infof("Final price %s: $%s", id, price.StringFixed(2))
	}
	for _, warning := range result.Warnings {
		log.Warnf("Run warning: %s", warning)
	}
}
