package liquidation

import (
	"maelstrom/internal/domain/health"
	"maelstrom/internal/domain/position"
	"maelstrom/pkg/errors"
)

// Candidate pairs a liquidatable position with its health evaluation at
// selection time
type Candidate struct {
	Position *position.Position
	Health   health.Result
}

// RankPolicy orders liquidation candidates within a cascade pass. The order
// is a behavioral model of liquidators and changes outcomes, so it is
// swappable rather than hard-coded.
type RankPolicy interface {
	Name() string
	Less(a, b Candidate) bool
}

// LargestDebtFirst models "most profitable first": candidates are processed
// in descending order of liquidatable debt value. Ties break on user ID to
// keep runs byte-identical.
type LargestDebtFirst struct{}

func (LargestDebtFirst) Name() string { return "largest_debt" }

func (LargestDebtFirst) Less(a, b Candidate) bool {
	if !a.Health.DebtUSD.Equal(b.Health.DebtUSD) {
		return a.Health.DebtUSD.GreaterThan(b.Health.DebtUSD)
	}
	return a.Position.UserID < b.Position.UserID
}

// RiskiestFirst processes the lowest health factor first, modeling
// liquidators racing for positions closest to insolvency
type RiskiestFirst struct{}

func (RiskiestFirst) Name() string { return "riskiest_first" }

func (RiskiestFirst) Less(a, b Candidate) bool {
	if !a.Health.Factor.Equal(b.Health.Factor) {
		return a.Health.Factor.LessThan(b.Health.Factor)
	}
	return a.Position.UserID < b.Position.UserID
}

// PolicyByName resolves a configured policy name
func PolicyByName(name string) (RankPolicy, error) {
	switch name {
	case "", "largest_debt":
		return LargestDebtFirst{}, nil
	case "riskiest_first":
		return RiskiestFirst{}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidScenarioConfig, "unknown rank policy %q", name)
	}
}
