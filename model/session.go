package model

import (
	"io"
	"path/filepath"
	"strings"
)

// Phase is the lifecycle position of a document session
type Phase string

// Phase constants
const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseAnalyzing Phase = "analyzing"
	PhaseDone      Phase = "done"
	PhaseError     Phase = "error"
)

// phaseEdges lists every legal transition. Entering uploading from
// analyzing, done or error always starts a new session; error -> analyzing
// is the retry path for a document that is already stored.
var phaseEdges = map[Phase][]Phase{
	PhaseIdle:      {PhaseUploading},
	PhaseUploading: {PhaseAnalyzing, PhaseError},
	PhaseAnalyzing: {PhaseDone, PhaseError, PhaseUploading},
	PhaseDone:      {PhaseUploading},
	PhaseError:     {PhaseUploading, PhaseAnalyzing},
}

// CanTransition reports whether p -> to is an edge of the phase machine
func (p Phase) CanTransition(to Phase) bool {
	for _, next := range phaseEdges[p] {
		if next == to {
			return true
		}
	}
	return false
}

// Stage is a named step of the remote analysis pipeline
type Stage string

// Stage constants, in pipeline order
const (
	StageExtract Stage = "extract"
	StageSplit   Stage = "split"
	StageLLM     Stage = "llm"
	StageRisk    Stage = "risk"
	StageDone    Stage = "done"
)

// Stages is the fixed stage vocabulary in order
var Stages = []Stage{StageExtract, StageSplit, StageLLM, StageRisk, StageDone}

// Index returns the position of the stage in Stages, or -1 if unknown
func (s Stage) Index() int {
	for i, known := range Stages {
		if known == s {
			return i
		}
	}
	return -1
}

// StatusSnapshot is a transient progress sample for a document
type StatusSnapshot struct {
	DocumentID string  `json:"document_id"`
	Stage      Stage   `json:"stage"`
	Progress   float64 `json:"progress"`
	Message    string  `json:"message"`
}

// Label returns the human-readable text for the snapshot. A non-empty
// message takes precedence over the stage label.
func (s *StatusSnapshot) Label() string {
	if strings.TrimSpace(s.Message) != "" {
		return s.Message
	}
	return StageLabel(s.Stage)
}

// Upload is a file selected for submission. Data is retained by the session
// so a failed upload can be re-submitted unchanged.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Extension returns the lower-case extension without the dot
func (u Upload) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), ".")
}

// Size returns the file size in bytes
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// ReportFormat selects the exported artifact type
type ReportFormat string

// ReportFormat constants
const (
	ReportPDF      ReportFormat = "pdf"
	ReportMarkdown ReportFormat = "md"
)

// ParseReportFormat maps a query value to a format, defaulting to PDF
func ParseReportFormat(v string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "pdf":
		return ReportPDF, nil
	case "md", "markdown":
		return ReportMarkdown, nil
	default:
		return "", &ValidationError{Field: "format", Reason: "unsupported report format " + v, Message: MsgUnsupportedFormat}
	}
}

// DefaultFilename is used when the artifact's content type is ambiguous
func (f ReportFormat) DefaultFilename() string {
	if f == ReportMarkdown {
		return "report.md"
	}
	return "report.pdf"
}

// Report is a binary artifact returned by the service. Body must be closed
// by whoever receives it.
type Report struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string // from Content-Disposition, may be empty
	Size        int64  // -1 when unknown
}
