package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{130, 100},
		{-5, 0},
		{0, 0},
		{100, 100},
		{42.5, 42.5},
	}

	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAnalysisResultDisplayScore(t *testing.T) {
	high := &AnalysisResult{OverallRiskScore: 130}
	if high.DisplayScore() != 100 {
		t.Errorf("Expected 100, got %d", high.DisplayScore())
	}
	if high.DisplayLevel() != RiskHigh {
		t.Errorf("Expected high, got %s", high.DisplayLevel())
	}

	low := &AnalysisResult{OverallRiskScore: -5}
	if low.DisplayScore() != 0 {
		t.Errorf("Expected 0, got %d", low.DisplayScore())
	}

	medium := &AnalysisResult{OverallRiskScore: 61.4}
	if medium.DisplayLevel() != RiskMedium {
		t.Errorf("Expected medium, got %s", medium.DisplayLevel())
	}

	// A recognized service level wins over the threshold
	declared := &AnalysisResult{OverallRiskScore: 10, OverallRiskLevel: RiskHigh}
	if declared.DisplayLevel() != RiskHigh {
		t.Errorf("Expected declared level high, got %s", declared.DisplayLevel())
	}
}

func TestRiskLevelDegradesGracefully(t *testing.T) {
	tests := []struct {
		level RiskLevel
		tone  string
		label string
	}{
		{RiskHigh, "danger", "위험"},
		{RiskMedium, "warning", "주의"},
		{RiskLow, "safe", "낮음"},
		{"critical", "safe", "낮음"},
		{"", "safe", "낮음"},
	}

	for _, tt := range tests {
		if tt.level.Tone() != tt.tone {
			t.Errorf("Tone(%q) = %s, want %s", tt.level, tt.level.Tone(), tt.tone)
		}
		if tt.level.Label() != tt.label {
			t.Errorf("Label(%q) = %s, want %s", tt.level, tt.level.Label(), tt.label)
		}
	}
}

func TestSortedByRiskKeepsStoredOrder(t *testing.T) {
	result := &AnalysisResult{Clauses: []Clause{
		{ID: "c1", Risk: ClauseRisk{Score: 20}},
		{ID: "c2", Risk: ClauseRisk{Score: 90}},
		{ID: "c3", Risk: ClauseRisk{Score: 55}},
	}}

	desc := result.SortedByRisk(true)
	if desc[0].ID != "c2" || desc[1].ID != "c3" || desc[2].ID != "c1" {
		t.Errorf("Unexpected desc order: %v", []string{desc[0].ID, desc[1].ID, desc[2].ID})
	}
	asc := result.SortedByRisk(false)
	if asc[0].ID != "c1" || asc[2].ID != "c2" {
		t.Errorf("Unexpected asc order: %v", []string{asc[0].ID, asc[1].ID, asc[2].ID})
	}
	if result.Clauses[0].ID != "c1" || result.Clauses[1].ID != "c2" {
		t.Error("Expected stored clause order to be unchanged")
	}
}

func TestAnalysisResultDecode(t *testing.T) {
	body := `{
		"document_id": "doc_1",
		"clauses": [{"id": "c1", "raw_text": "text", "risk": {"score": 80, "level": "high", "explanation": "why"}}],
		"overall_risk_score": 72.5,
		"contract_type": "lease",
		"created_at": "2024-05-01T10:00:00.123456"
	}`

	var result AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if result.DocumentID != "doc_1" || len(result.Clauses) != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if result.Clauses[0].Risk.Level != RiskHigh {
		t.Errorf("Expected high, got %s", result.Clauses[0].Risk.Level)
	}
}

func TestPhaseTransitions(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhaseIdle, PhaseUploading},
		{PhaseUploading, PhaseAnalyzing},
		{PhaseUploading, PhaseError},
		{PhaseAnalyzing, PhaseDone},
		{PhaseAnalyzing, PhaseError},
		{PhaseAnalyzing, PhaseUploading},
		{PhaseDone, PhaseUploading},
		{PhaseError, PhaseUploading},
		{PhaseError, PhaseAnalyzing},
	}
	for _, tt := range allowed {
		if !tt.from.CanTransition(tt.to) {
			t.Errorf("Expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to Phase }{
		{PhaseAnalyzing, PhaseIdle},
		{PhaseIdle, PhaseAnalyzing},
		{PhaseIdle, PhaseDone},
		{PhaseUploading, PhaseDone},
		{PhaseUploading, PhaseUploading},
		{PhaseDone, PhaseIdle},
		{PhaseDone, PhaseAnalyzing},
	}
	for _, tt := range denied {
		if tt.from.CanTransition(tt.to) {
			t.Errorf("Expected %s -> %s to be denied", tt.from, tt.to)
		}
	}
}

func TestStageVocabulary(t *testing.T) {
	expected := []Stage{"extract", "split", "llm", "risk", "done"}
	for i, stage := range expected {
		if stage.Index() != i {
			t.Errorf("Expected %s at %d, got %d", stage, i, stage.Index())
		}
	}
	if Stage("ocr").Index() != -1 {
		t.Error("Expected unknown stage index -1")
	}

	unknown := StatusSnapshot{Stage: "ocr"}
	if unknown.Label() != "분석 진행 중" {
		t.Errorf("Expected generic fallback, got %s", unknown.Label())
	}
	withMessage := StatusSnapshot{Stage: StageLLM, Message: "3/5 clauses"}
	if withMessage.Label() != "3/5 clauses" {
		t.Errorf("Expected message override, got %s", withMessage.Label())
	}
}

func TestParseReportFormat(t *testing.T) {
	if f, err := ParseReportFormat(""); err != nil || f != ReportPDF {
		t.Errorf("Expected pdf default, got %s, %v", f, err)
	}
	if f, err := ParseReportFormat("MD"); err != nil || f != ReportMarkdown {
		t.Errorf("Expected md, got %s, %v", f, err)
	}

	_, err := ParseReportFormat("docx")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if verr.Field != "format" {
		t.Errorf("Expected field format, got %s", verr.Field)
	}
}

func TestTransportErrorOp(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&TransportError{Op: OpAnalyze, DocumentID: "doc_1", Err: cause})

	if FailedOp(err) != OpAnalyze {
		t.Errorf("Expected analyze, got %s", FailedOp(err))
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be unwrapped")
	}
	if FailedOp(errors.New("plain")) != "" {
		t.Error("Expected empty op for plain error")
	}
}

func TestTransitionError(t *testing.T) {
	err := error(&TransitionError{From: PhaseDone, To: PhaseAnalyzing, Reason: "not an edge"})

	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatal("Expected errors.As to find TransitionError")
	}
	if terr.From != PhaseDone || terr.To != PhaseAnalyzing {
		t.Errorf("Unexpected edge %s->%s", terr.From, terr.To)
	}
	if got := err.Error(); got != "phase transition [done->analyzing]: not an edge" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestNewResultView(t *testing.T) {
	result := &AnalysisResult{
		DocumentID:       "doc_1",
		OverallRiskScore: 130,
		Clauses: []Clause{
			{ID: "c1", Risk: ClauseRisk{Score: -5, Level: "unknown"}},
		},
	}

	view := NewResultView(result)
	if view.DisplayScore != 100 {
		t.Errorf("Expected 100, got %d", view.DisplayScore)
	}
	if view.Clauses[0].DisplayScore != 0 || view.Clauses[0].Tone != "safe" {
		t.Errorf("Unexpected clause view: %+v", view.Clauses[0])
	}
	if result.OverallRiskScore != 130 {
		t.Error("Expected source result to be unchanged")
	}
}
