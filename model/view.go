package model

import "math"

// SessionView is a read-only copy of the session handed to the presentation
// layer.
type SessionView struct {
	Phase        Phase                     `json:"phase"`
	DocumentID   string                    `json:"document_id,omitempty"`
	ContractType string                    `json:"contract_type"`
	Filename     string                    `json:"filename,omitempty"`
	Status       *StatusView               `json:"status,omitempty"`
	Result       *ResultView               `json:"result,omitempty"`
	Suggestions  map[string]SuggestionView `json:"suggestions"`
	Error        string                    `json:"error,omitempty"`
	FailedStep   Op                        `json:"failed_step,omitempty"`
	ResultError  string                    `json:"result_error,omitempty"`
	ExportError  string                    `json:"export_error,omitempty"`
	Loading      bool                      `json:"loading"`
	Exporting    bool                      `json:"exporting"`
}

// StatusView decorates a snapshot with its label and pipeline position
type StatusView struct {
	StatusSnapshot
	Label      string `json:"label"`
	StageIndex int    `json:"stage_index"`
	StageCount int    `json:"stage_count"`
}

// NewStatusView builds the view for a snapshot
func NewStatusView(s StatusSnapshot) *StatusView {
	return &StatusView{
		StatusSnapshot: s,
		Label:          s.Label(),
		StageIndex:     s.Stage.Index(),
		StageCount:     len(Stages),
	}
}

// ResultView decorates a result with display-clamped values
type ResultView struct {
	AnalysisResult
	DisplayScore int          `json:"display_score"`
	DisplayLevel RiskLevel    `json:"display_level"`
	DisplayLabel string       `json:"display_label"`
	Clauses      []ClauseView `json:"clauses"`
}

// ClauseView decorates a clause for display
type ClauseView struct {
	Clause
	DisplayScore int    `json:"display_score"`
	Tone         string `json:"tone"`
	Label        string `json:"label"`
}

// NewResultView builds the view for a result, keeping the service's clause order
func NewResultView(r *AnalysisResult) *ResultView {
	level := r.DisplayLevel()
	view := &ResultView{
		AnalysisResult: *r,
		DisplayScore:   r.DisplayScore(),
		DisplayLevel:   level,
		DisplayLabel:   level.Label(),
		Clauses:        make([]ClauseView, 0, len(r.Clauses)),
	}
	for _, c := range r.Clauses {
		view.Clauses = append(view.Clauses, NewClauseView(c))
	}
	return view
}

// NewClauseView builds the view for one clause
func NewClauseView(c Clause) ClauseView {
	return ClauseView{
		Clause:       c,
		DisplayScore: int(math.Round(ClampScore(c.Risk.Score))),
		Tone:         c.Risk.Level.Tone(),
		Label:        c.Risk.Level.Label(),
	}
}

// SuggestionView is the per-clause suggestion state
type SuggestionView struct {
	Improvement *ClauseImprovement `json:"improvement,omitempty"`
	Loading     bool               `json:"loading"`
	Error       string             `json:"error,omitempty"`
}
