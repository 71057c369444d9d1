package model

import (
	"math"
	"sort"
)

// RiskLevel is the service's clause classification. It is an open string:
// values outside low/medium/high are kept as received and rendered as low.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Normalize maps unrecognized levels to RiskLow.
func (l RiskLevel) Normalize() RiskLevel {
	switch l {
	case RiskHigh, RiskMedium:
		return l
	default:
		return RiskLow
	}
}

// Tone returns the presentation tone for the level.
func (l RiskLevel) Tone() string {
	switch l.Normalize() {
	case RiskHigh:
		return "danger"
	case RiskMedium:
		return "warning"
	default:
		return "safe"
	}
}

// ClauseRisk is the risk assessment attached to a clause
type ClauseRisk struct {
	Score       float64   `json:"score"`
	Level       RiskLevel `json:"level"`
	Explanation string    `json:"explanation"`
}

// Clause represents one analyzed contract clause
type Clause struct {
	ID        string     `json:"id"`
	RawText   string     `json:"raw_text"`
	Summary   string     `json:"summary,omitempty"`
	Category  string     `json:"category,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	Risk      ClauseRisk `json:"risk"`
}

// AnalysisResult is the final structured report for a document. It is never
// mutated after it has been received.
type AnalysisResult struct {
	DocumentID       string    `json:"document_id"`
	Clauses          []Clause  `json:"clauses"`
	OverallRiskScore float64   `json:"overall_risk_score"`
	OverallRiskLevel RiskLevel `json:"overall_risk_level,omitempty"`
	ContractType     string    `json:"contract_type,omitempty"`
	AutoContractType string    `json:"auto_contract_type,omitempty"`
	CreatedAt        string    `json:"created_at,omitempty"`
}

// ClampScore limits a score to [0,100] for display.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DisplayScore returns the clamped, rounded overall score
func (r *AnalysisResult) DisplayScore() int {
	return int(math.Round(ClampScore(r.OverallRiskScore)))
}

// DisplayLevel classifies the clamped overall score. The service's own
// level wins when it is a recognized value.
func (r *AnalysisResult) DisplayLevel() RiskLevel {
	switch r.OverallRiskLevel {
	case RiskHigh, RiskMedium, RiskLow:
		return r.OverallRiskLevel
	}
	return LevelForScore(float64(r.DisplayScore()))
}

// LevelForScore applies the 75/50 thresholds.
func LevelForScore(score float64) RiskLevel {
	score = ClampScore(score)
	switch {
	case score >= 75:
		return RiskHigh
	case score >= 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

// SortedByRisk returns a copy of the clauses ordered by risk score. The
// stored order is left untouched.
func (r *AnalysisResult) SortedByRisk(desc bool) []Clause {
	out := make([]Clause, len(r.Clauses))
	copy(out, r.Clauses)
	sort.SliceStable(out, func(i, j int) bool {
		left := ClampScore(out[i].Risk.Score)
		right := ClampScore(out[j].Risk.Score)
		if desc {
			return left > right
		}
		return left < right
	})
	return out
}

// ClauseImprovement is a suggested rewrite for a single clause
type ClauseImprovement struct {
	ClauseID   string   `json:"clauseId"`
	Suggestion string   `json:"suggestion"`
	Rationale  string   `json:"rationale"`
	RiskDelta  *float64 `json:"risk_delta,omitempty"`
}
