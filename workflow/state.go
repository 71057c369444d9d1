package workflow

import (
	"context"
	"sync"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// Ticket identifies the session a task was issued for. A task may only
// mutate State while its ticket is still current.
type Ticket struct {
	Generation uint64
	DocumentID string
}

type clauseState struct {
	improvement *model.ClauseImprovement
	loading     bool
	failed      bool
}

// State is the session container shared by all workflow components. Each
// component owns a subset of fields; every mutation goes through a method
// that checks the caller's ticket or document id against the current one.
type State struct {
	mu sync.RWMutex

	generation   uint64
	phase        model.Phase
	documentID   string
	contractType string
	upload       *model.Upload
	failedOp     model.Op

	status    *model.StatusSnapshot
	result    *model.AnalysisResult
	loading   bool
	resultErr bool

	suggestions    map[string]*clauseState
	suggestionsDoc string

	exporting bool
	exportErr bool
}

// NewState returns an idle session
func NewState() *State {
	return &State{
		phase:       model.PhaseIdle,
		suggestions: make(map[string]*clauseState),
	}
}

// Phase returns the current phase
func (s *State) Phase() model.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// DocumentID returns the current document id, empty before upload succeeds
func (s *State) DocumentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentID
}

// Ticket returns the ticket for the current session
func (s *State) Ticket() Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Ticket{Generation: s.generation, DocumentID: s.documentID}
}

// Current reports whether t still identifies the live session
func (s *State) Current(t Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current(t)
}

func (s *State) current(t Ticket) bool {
	return t.Generation == s.generation && t.DocumentID == s.documentID
}

// transition must be called with the lock held
func (s *State) transition(to model.Phase) error {
	if !s.phase.CanTransition(to) {
		return &model.TransitionError{From: s.phase, To: to, Reason: "not an edge of the session machine"}
	}
	logger.Info(logger.WithDocument(context.Background(), s.documentID), "session phase changed",
		"from", s.phase,
		"to", to,
		"generation", s.generation,
	)
	s.phase = to
	return nil
}

// beginUpload starts a new session for u. Data of the previous session stays
// visible until the new one resolves.
func (s *State) beginUpload(u model.Upload, contractType string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == model.PhaseUploading {
		return Ticket{}, model.ErrBusy
	}
	if err := s.transition(model.PhaseUploading); err != nil {
		return Ticket{}, err
	}

	s.generation++
	s.documentID = ""
	s.contractType = contractType
	s.upload = &u
	s.failedOp = ""
	s.status = nil
	s.loading = false
	s.resultErr = false
	s.exportErr = false
	for _, cs := range s.suggestions {
		cs.loading = false
	}
	return Ticket{Generation: s.generation}, nil
}

// assignDocument records the id returned by a successful upload and moves
// the session into analyzing.
func (s *State) assignDocument(t Ticket, documentID string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) || s.phase != model.PhaseUploading {
		return Ticket{}, false
	}
	s.documentID = documentID
	if err := s.transition(model.PhaseAnalyzing); err != nil {
		return Ticket{}, false
	}
	return Ticket{Generation: s.generation, DocumentID: documentID}, true
}

// failUpload moves an uploading session to error. No document id is kept.
func (s *State) failUpload(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) || s.phase != model.PhaseUploading {
		return false
	}
	s.failedOp = model.OpUpload
	return s.transition(model.PhaseError) == nil
}

// retryTarget describes what a retry should resubmit
type retryTarget struct {
	upload       model.Upload
	contractType string
	documentID   string
}

func (s *State) retryTarget() (retryTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.phase != model.PhaseError || s.upload == nil {
		return retryTarget{}, model.ErrNothingToRetry
	}
	return retryTarget{upload: *s.upload, contractType: s.contractType, documentID: s.documentID}, nil
}

// reenterAnalyzing re-arms analysis for the stored document without
// re-uploading it.
func (s *State) reenterAnalyzing(documentID string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.documentID == "" || s.documentID != documentID {
		return Ticket{}, model.ErrNoDocument
	}
	if err := s.transition(model.PhaseAnalyzing); err != nil {
		return Ticket{}, err
	}
	s.generation++
	s.failedOp = ""
	s.status = nil
	return Ticket{Generation: s.generation, DocumentID: s.documentID}, nil
}

func (s *State) contractTypeFor(t Ticket) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contractType, s.current(t)
}

// applyStatus overwrites the snapshot when it belongs to the live analyzing
// session. Anything else is dropped.
func (s *State) applyStatus(t Ticket, snap model.StatusSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) || s.phase != model.PhaseAnalyzing || snap.DocumentID != s.documentID {
		return false
	}
	s.status = &snap
	return true
}

// completeAnalysis moves analyzing -> done. Only the first caller for a
// given ticket gets true.
func (s *State) completeAnalysis(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) || s.phase != model.PhaseAnalyzing {
		return false
	}
	return s.transition(model.PhaseDone) == nil
}

// failAnalysis moves analyzing -> error, keeping the document id so a retry
// skips the upload.
func (s *State) failAnalysis(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) || s.phase != model.PhaseAnalyzing {
		return false
	}
	s.failedOp = model.OpAnalyze
	return s.transition(model.PhaseError) == nil
}

func (s *State) beginFetch(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		return false
	}
	s.loading = true
	return true
}

// applyResult stores a fetched result. Suggestions are dropped when the
// result belongs to a different document than the one they were made for.
func (s *State) applyResult(t Ticket, r *model.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		return false
	}
	if r.DocumentID != "" && r.DocumentID != s.documentID {
		s.loading = false
		return false
	}
	s.suggestionsFor(s.documentID)
	if r.DocumentID == "" {
		r.DocumentID = s.documentID
	}
	s.result = r
	s.loading = false
	s.resultErr = false
	return true
}

// failResult flags the fetch failure and leaves the displayed result alone
func (s *State) failResult(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(t) {
		return false
	}
	s.loading = false
	s.resultErr = true
	return true
}

// liveDocument returns the document id of a finished session
func (s *State) liveDocument() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.phase != model.PhaseDone || s.documentID == "" {
		return "", false
	}
	return s.documentID, true
}

// suggestionsFor resets the suggestion map when it belongs to another
// document. Must be called with the lock held.
func (s *State) suggestionsFor(documentID string) map[string]*clauseState {
	if s.suggestionsDoc != documentID {
		s.suggestions = make(map[string]*clauseState)
		s.suggestionsDoc = documentID
	}
	return s.suggestions
}

func (s *State) clause(clauseID string) *clauseState {
	m := s.suggestionsFor(s.documentID)
	cs, ok := m[clauseID]
	if !ok {
		cs = &clauseState{}
		m[clauseID] = cs
	}
	return cs
}

func (s *State) beginSuggestion(documentID, clauseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if documentID != s.documentID {
		return false
	}
	cs := s.clause(clauseID)
	cs.loading = true
	cs.failed = false
	return true
}

func (s *State) finishSuggestion(documentID, clauseID string, imp *model.ClauseImprovement, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if documentID != s.documentID {
		return false
	}
	cs := s.clause(clauseID)
	cs.loading = false
	if err != nil {
		cs.failed = true
		return true
	}
	cs.improvement = imp
	return true
}

// Suggestion returns the stored improvement for a clause, if any
func (s *State) Suggestion(clauseID string) (*model.ClauseImprovement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.suggestions[clauseID]
	if !ok || cs.improvement == nil {
		return nil, false
	}
	return cs.improvement, true
}

// beginExport reserves the export slot for a finished session
func (s *State) beginExport() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exporting {
		return "", model.ErrExportInFlight
	}
	switch s.phase {
	case model.PhaseUploading, model.PhaseAnalyzing:
		return "", model.ErrBusy
	case model.PhaseDone:
	default:
		return "", model.ErrNoDocument
	}
	if s.documentID == "" {
		return "", model.ErrNoDocument
	}
	s.exporting = true
	s.exportErr = false
	return s.documentID, nil
}

// finishExport always clears the in-flight flag; the failure flag is only
// recorded for the document the export was made for.
func (s *State) finishExport(documentID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exporting = false
	if documentID == s.documentID {
		s.exportErr = err != nil
	}
}

// View returns a copy of the session for the presentation layer
func (s *State) View() model.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := model.SessionView{
		Phase:        s.phase,
		DocumentID:   s.documentID,
		ContractType: s.contractType,
		FailedStep:   s.failedOp,
		Loading:      s.loading,
		Exporting:    s.exporting,
		Suggestions:  make(map[string]model.SuggestionView, len(s.suggestions)),
	}
	if s.upload != nil {
		view.Filename = s.upload.Filename
	}
	if s.phase == model.PhaseError {
		view.Error = model.MsgWorkflowFailed
	}
	if s.status != nil {
		view.Status = model.NewStatusView(*s.status)
	}
	if s.result != nil {
		view.Result = model.NewResultView(s.result)
	}
	if s.resultErr {
		view.ResultError = model.MsgResultFailed
	}
	if s.exportErr {
		view.ExportError = model.MsgExportFailed
	}
	for id, cs := range s.suggestions {
		sv := model.SuggestionView{Improvement: cs.improvement, Loading: cs.loading}
		if cs.failed {
			sv.Error = model.MsgSuggestFailed
		}
		view.Suggestions[id] = sv
	}
	return view
}
