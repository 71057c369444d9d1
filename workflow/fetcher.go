package workflow

import (
	"context"

	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// Fetcher retrieves the final analysis result for a session
type Fetcher struct {
	transport Transport
	state     *State
}

// NewFetcher creates a result fetcher
func NewFetcher(t Transport, state *State) *Fetcher {
	return &Fetcher{transport: t, state: state}
}

// Fetch loads the result for t's document. It reports whether the result was
// applied; a result that arrives after the session moved on is dropped and
// is not an error. On failure the previously displayed result is kept.
func (f *Fetcher) Fetch(ctx context.Context, t Ticket) (bool, error) {
	ctx = logger.WithDocument(ctx, t.DocumentID)

	if !f.state.beginFetch(t) {
		return false, nil
	}

	result, err := f.transport.Result(ctx, t.DocumentID)
	if err != nil {
		if f.state.failResult(t) {
			logger.Warn(ctx, "result fetch failed", "error", err)
			return false, err
		}
		logger.Debug(ctx, "discarding stale result failure", "error", err)
		return false, nil
	}

	if !f.state.applyResult(t, result) {
		logger.Debug(ctx, "discarding stale result", "result_document_id", result.DocumentID)
		return false, nil
	}
	logger.Info(ctx, "result applied",
		"clauses", len(result.Clauses),
		"overall_risk_score", result.OverallRiskScore,
	)
	return true, nil
}
