package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"maelstrom/internal/adapters/kafka"
	"maelstrom/internal/domain/scenario"
	"maelstrom/pkg/logger"
)

const TopicScenarioCompleted = "maelstrom.scenario.completed"

var _ scenario.ResultPublisher = (*Publisher)(nil)

// Publisher emits scenario lifecycle events to Kafka
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "events_publisher"),
	}
}

// ScenarioCompletedEvent is the wire payload for a finished run. It carries
// the summary only, not the full event log.
type ScenarioCompletedEvent struct {
	RunID               string                     `json:"run_id"`
	StartedAt           time.Time                  `json:"started_at"`
	FinishedAt          time.Time                  `json:"finished_at"`
	Converged           bool                       `json:"converged"`
	Passes              int                        `json:"passes"`
	LiquidatedPositions int                        `json:"liquidated_positions"`
	LiquidatedVolumeUSD decimal.Decimal            `json:"liquidated_volume_usd"`
	BadDebtUSD          decimal.Decimal            `json:"bad_debt_usd"`
	UnresolvedRiskUSD   decimal.Decimal            `json:"unresolved_risk_usd"`
	LiquidatedPctOfTVL  decimal.Decimal            `json:"liquidated_pct_of_tvl"`
	FinalPrices         map[string]decimal.Decimal `json:"final_prices"`
	RiskStatus          string                     `json:"risk_status"`
}

// PublishScenarioCompleted sends the run summary keyed by run ID
func (p *Publisher) PublishScenarioCompleted(ctx context.Context, result *scenario.Result) error {
	event := ScenarioCompletedEvent{
		RunID:               result.RunID.String(),
		StartedAt:           result.StartedAt,
		FinishedAt:          result.FinishedAt,
		Converged:           result.Converged,
		Passes:              result.Passes,
		LiquidatedPositions: result.LiquidatedPositions,
		LiquidatedVolumeUSD: result.LiquidatedVolumeUSD,
		BadDebtUSD:          result.BadDebtUSD,
		UnresolvedRiskUSD:   result.UnresolvedRiskUSD,
		LiquidatedPctOfTVL:  result.LiquidatedPctOfTVL,
		FinalPrices:         result.FinalPrices,
		RiskStatus:          string(result.RiskStatus),
	}

	if err := p.producer.Publish(ctx, TopicScenarioCompleted, result.RunID.String(), event); err != nil {
		return err
	}

	p.log.Infow("Published scenario completed event",
		"run_id", result.RunID.String(),
		"risk_status", result.RiskStatus,
	)
	return nil
}
