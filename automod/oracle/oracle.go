// Clients for the external content classification service ("oracle") which produces per-category scores.
package oracle

import (
	"context"
	"slices"

	"github.com/galaxyguard/warden/automod/scoring"
)

type Result struct {
	// the oracle's own overall verdict; informational only
	Flagged bool `json:"flagged"`
	// the oracle's own per-category verdicts; informational only
	Categories map[string]bool `json:"categories,omitempty"`
	// per-category scores, in the order the oracle reported them
	Scores scoring.ScoreMap `json:"scores"`
}

type Oracle interface {
	Classify(ctx context.Context, text string) (*Result, error)
}

// Oracle returning fixed scores for every input. Used in tests and for offline operation.
type Static struct {
	// nil is passed through as a result without scores, which the engine rejects
	Scores scoring.ScoreMap
	// if set, returned instead of a result
	Err error
}

var _ Oracle = (*Static)(nil)

func (s *Static) Classify(ctx context.Context, text string) (*Result, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return &Result{Scores: slices.Clone(s.Scores)}, nil
}

// Adapter for using a plain function as an Oracle.
type Func func(ctx context.Context, text string) (*Result, error)

func (f Func) Classify(ctx context.Context, text string) (*Result, error) {
	return f(ctx, text)
}
