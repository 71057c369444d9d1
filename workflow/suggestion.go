package workflow

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// SuggestionManager runs per-clause improvement requests. Requests for the
// same clause share one call; different clauses run independently.
type SuggestionManager struct {
	transport Transport
	state     *State
	group     singleflight.Group
}

// NewSuggestionManager creates a suggestion manager
func NewSuggestionManager(t Transport, state *State) *SuggestionManager {
	return &SuggestionManager{transport: t, state: state}
}

// Request returns an improvement for the clause. A caller arriving while the
// same clause is loading waits for that call instead of issuing another.
func (m *SuggestionManager) Request(ctx context.Context, clauseID, clauseText string) (*model.ClauseImprovement, error) {
	if strings.TrimSpace(clauseID) == "" {
		return nil, &model.ValidationError{Field: "clause_id", Reason: "clause id is required", Message: model.MsgSuggestFailed}
	}
	documentID, ok := m.state.liveDocument()
	if !ok {
		return nil, model.ErrNoDocument
	}
	ctx = logger.WithDocument(ctx, documentID)

	v, err, shared := m.group.Do(documentID+"/"+clauseID, func() (any, error) {
		if !m.state.beginSuggestion(documentID, clauseID) {
			return nil, model.ErrNoDocument
		}

		// The call belongs to every waiter, so one caller going away must
		// not abort it.
		imp, err := m.transport.Suggest(context.WithoutCancel(ctx), documentID, clauseID, clauseText)
		if err == nil && imp.ClauseID == "" {
			imp.ClauseID = clauseID
		}
		if !m.state.finishSuggestion(documentID, clauseID, imp, err) {
			logger.Debug(ctx, "discarding stale suggestion", "clause_id", clauseID)
		}
		return imp, err
	})
	if err != nil {
		logger.Warn(ctx, "suggestion failed", "clause_id", clauseID, "error", err)
		return nil, err
	}
	if shared {
		logger.Debug(ctx, "suggestion shared with in-flight request", "clause_id", clauseID)
	}
	return v.(*model.ClauseImprovement), nil
}
