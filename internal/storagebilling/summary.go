package storagebilling

import (
	"fmt"

	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
)

// Summary is the observable result of a billing run.
type Summary struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// NewSummary returns an empty summary whose error list encodes as [].
func NewSummary() Summary {
	return Summary{Errors: []string{}}
}

// RevaluationResult reports what the revaluation pass did.
type RevaluationResult struct {
	Skipped bool `json:"skipped"`
	Updated int  `json:"updated"`
	Failed  int  `json:"failed"`
}

type outcome string

const (
	outcomeSuccess outcome = metrics.OutcomeSuccess
	outcomeFailed  outcome = metrics.OutcomeFailed
	outcomeSkipped outcome = metrics.OutcomeSkipped
)

type customerResult struct {
	outcome outcome
	err     error
}

func (s *Summary) add(batch CustomerBatch, res customerResult) {
	switch res.outcome {
	case outcomeSuccess:
		s.Success++
	case outcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
		msg := "unknown error"
		if res.err != nil {
			msg = res.err.Error()
		}
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", batch.CustomerID(), msg))
	}
}
