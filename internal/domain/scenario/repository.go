package scenario

import (
	"context"
)

// SnapshotRepository loads a position/reserve snapshot materialized by an
// external collector
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// ResultSink persists a finished scenario result for analytics
type ResultSink interface {
	SaveResult(ctx context.Context, result *Result) error
}

// ResultPublisher announces a finished scenario result to downstream
// consumers
type ResultPublisher interface {
	PublishScenarioCompleted(ctx context.Context, result *Result) error
}
