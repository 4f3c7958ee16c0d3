package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"maelstrom/pkg/errors"
)

type Config struct {
	App           AppConfig
	Scenario      ScenarioConfig
	Portfolio     PortfolioConfig
	Sweep         SweepConfig
	Snapshot      SnapshotConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"maelstrom"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ScenarioConfig holds the default stress-run parameters. Individual runs may
// override these through scenario.Config.
type ScenarioConfig struct {
	ShockReserve    string  `envconfig:"SCENARIO_SHOCK_RESERVE" default:"ETH"`
	ShockMagnitude  float64 `envconfig:"SCENARIO_SHOCK_MAGNITUDE" default:"0.30"`
	CloseFactor     float64 `envconfig:"SCENARIO_CLOSE_FACTOR" default:"0.5"`
	MaxPasses       int     `envconfig:"SCENARIO_MAX_PASSES" default:"50"`
	SlippageEpsilon float64 `envconfig:"SCENARIO_SLIPPAGE_EPSILON" default:"0.0001"`
	DepthStress     float64 `envconfig:"SCENARIO_DEPTH_STRESS" default:"0.2"`
}

// PortfolioConfig drives synthetic borrower generation when no snapshot
// source is configured.
type PortfolioConfig struct {
	NumUsers           int     `envconfig:"PORTFOLIO_NUM_USERS" default:"1000"`
	WhaleConcentration float64 `envconfig:"PORTFOLIO_WHALE_CONCENTRATION" default:"0.01"`
	StartPrice         float64 `envconfig:"PORTFOLIO_START_PRICE" default:"2000"`
	MarketDepthUSD     float64 `envconfig:"PORTFOLIO_MARKET_DEPTH_USD" default:"2000000"`
	Seed               int64   `envconfig:"PORTFOLIO_SEED" default:"42"`
}

// SweepConfig drives the shock-magnitude sweep mode. When enabled, the run
// executes the same snapshot across [MagnitudeFrom, MagnitudeTo] in
// MagnitudeStep increments instead of a single shock.
type SweepConfig struct {
	Enabled       bool    `envconfig:"SWEEP_ENABLED" default:"false"`
	MagnitudeFrom float64 `envconfig:"SWEEP_MAGNITUDE_FROM" default:"0.05"`
	MagnitudeTo   float64 `envconfig:"SWEEP_MAGNITUDE_TO" default:"0.60"`
	MagnitudeStep float64 `envconfig:"SWEEP_MAGNITUDE_STEP" default:"0.05"`
	Workers       int     `envconfig:"SWEEP_WORKERS" default:"4"`
	StartRate     float64 `envconfig:"SWEEP_START_RATE" default:"0"` // runs/second, 0 = unlimited
}

type SnapshotConfig struct {
	Source string `envconfig:"SNAPSHOT_SOURCE" default:"synthetic"` // synthetic, postgres
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"maelstrom"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"maelstrom"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"stress"`
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
	Port    int  `envconfig:"METRICS_PORT" default:"9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables (and .env if present)
func Load() (*Config, error) {
	// .env is optional, environment variables take precedence
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on configuration a run must not start with
func (c *Config) Validate() error {
	if c.Scenario.ShockMagnitude < 0 || c.Scenario.ShockMagnitude >= 1 {
		return errors.NewValidationError("SCENARIO_SHOCK_MAGNITUDE", "must be in [0, 1)", c.Scenario.ShockMagnitude)
	}
	if c.Scenario.CloseFactor <= 0 || c.Scenario.CloseFactor > 1 {
		return errors.NewValidationError("SCENARIO_CLOSE_FACTOR", "must be in (0, 1]", c.Scenario.CloseFactor)
	}
	if c.Scenario.MaxPasses <= 0 {
		return errors.NewValidationError("SCENARIO_MAX_PASSES", "must be positive", c.Scenario.MaxPasses)
	}
	if c.Scenario.DepthStress <= 0 || c.Scenario.DepthStress > 1 {
		return errors.NewValidationError("SCENARIO_DEPTH_STRESS", "must be in (0, 1]", c.Scenario.DepthStress)
	}
	if c.Snapshot.Source != "synthetic" && c.Snapshot.Source != "postgres" {
		return errors.NewValidationError("SNAPSHOT_SOURCE", "must be synthetic or postgres", c.Snapshot.Source)
	}
	if c.Sweep.Workers <= 0 {
		return errors.NewValidationError("SWEEP_WORKERS", "must be positive", c.Sweep.Workers)
	}
	if c.Sweep.Enabled {
		if c.Sweep.MagnitudeStep <= 0 {
			return errors.NewValidationError("SWEEP_MAGNITUDE_STEP", "must be positive", c.Sweep.MagnitudeStep)
		}
		if c.Sweep.MagnitudeFrom < 0 || c.Sweep.MagnitudeTo >= 1 || c.Sweep.MagnitudeFrom > c.Sweep.MagnitudeTo {
			return errors.NewValidationError("SWEEP_MAGNITUDE_FROM", "range must satisfy 0 <= from <= to < 1",
				fmt.Sprintf("[%v, %v]", c.Sweep.MagnitudeFrom, c.Sweep.MagnitudeTo))
		}
	}
	if c.Portfolio.MarketDepthUSD <= 0 {
		return errors.NewValidationError("PORTFOLIO_MARKET_DEPTH_USD", "must be positive", c.Portfolio.MarketDepthUSD)
	}
	return nil
}
