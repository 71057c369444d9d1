package workflow

import (
	"context"

	"github.com/jangwonii/contract-gaurdian/model"
)

// Transport is the analysis service as seen by the workflow. Every method
// returns a *model.TransportError on failure.
type Transport interface {
	Upload(ctx context.Context, upload model.Upload) (string, error)
	Analyze(ctx context.Context, documentID, contractType string) (*model.AnalysisResult, error)
	Status(ctx context.Context, documentID string) (*model.StatusSnapshot, error)
	Result(ctx context.Context, documentID string) (*model.AnalysisResult, error)
	Report(ctx context.Context, documentID string, format model.ReportFormat) (*model.Report, error)
	Suggest(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error)
}
