package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jangwonii/contract-gaurdian/model"
)

var errNetwork = errors.New("network unreachable")

// fakeTransport is a programmable analysis service. Unset hooks behave like
// a healthy service that finishes immediately.
type fakeTransport struct {
	mu          sync.Mutex
	calls       map[model.Op]int
	statusCalls map[string]int
	uploads     []model.Upload
	contracts   []string

	uploadFn  func(ctx context.Context, n int, u model.Upload) (string, error)
	analyzeFn func(ctx context.Context, documentID, contractType string) (*model.AnalysisResult, error)
	statusFn  func(ctx context.Context, documentID string, n int) (*model.StatusSnapshot, error)
	resultFn  func(ctx context.Context, documentID string) (*model.AnalysisResult, error)
	reportFn  func(ctx context.Context, documentID string, format model.ReportFormat) (*model.Report, error)
	suggestFn func(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		calls:       make(map[model.Op]int),
		statusCalls: make(map[string]int),
	}
}

func (f *fakeTransport) record(op model.Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.calls[op]
}

func (f *fakeTransport) count(op model.Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeTransport) statusCount(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[documentID]
}

func (f *fakeTransport) Upload(ctx context.Context, u model.Upload) (string, error) {
	n := f.record(model.OpUpload)
	f.mu.Lock()
	f.uploads = append(f.uploads, u)
	f.mu.Unlock()
	if f.uploadFn != nil {
		return f.uploadFn(ctx, n, u)
	}
	return fmt.Sprintf("doc_%d", n), nil
}

func (f *fakeTransport) Analyze(ctx context.Context, documentID, contractType string) (*model.AnalysisResult, error) {
	f.record(model.OpAnalyze)
	f.mu.Lock()
	f.contracts = append(f.contracts, contractType)
	f.mu.Unlock()
	if f.analyzeFn != nil {
		return f.analyzeFn(ctx, documentID, contractType)
	}
	return sampleResult(documentID, 3), nil
}

func (f *fakeTransport) Status(ctx context.Context, documentID string) (*model.StatusSnapshot, error) {
	f.record(model.OpStatus)
	f.mu.Lock()
	f.statusCalls[documentID]++
	n := f.statusCalls[documentID]
	f.mu.Unlock()
	if f.statusFn != nil {
		return f.statusFn(ctx, documentID, n)
	}
	return &model.StatusSnapshot{DocumentID: documentID, Stage: model.StageDone, Progress: 100}, nil
}

func (f *fakeTransport) Result(ctx context.Context, documentID string) (*model.AnalysisResult, error) {
	f.record(model.OpResult)
	if f.resultFn != nil {
		return f.resultFn(ctx, documentID)
	}
	return sampleResult(documentID, 5), nil
}

func (f *fakeTransport) Report(ctx context.Context, documentID string, format model.ReportFormat) (*model.Report, error) {
	f.record(model.OpReport)
	if f.reportFn != nil {
		return f.reportFn(ctx, documentID, format)
	}
	return &model.Report{
		Body:        io.NopCloser(strings.NewReader("# report")),
		ContentType: "text/markdown; charset=utf-8",
		Size:        -1,
	}, nil
}

func (f *fakeTransport) Suggest(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error) {
	f.record(model.OpSuggest)
	if f.suggestFn != nil {
		return f.suggestFn(ctx, documentID, clauseID, clauseText)
	}
	return &model.ClauseImprovement{ClauseID: clauseID, Suggestion: "rewrite of " + clauseText, Rationale: "clearer"}, nil
}

func sampleResult(documentID string, clauses int) *model.AnalysisResult {
	r := &model.AnalysisResult{DocumentID: documentID, OverallRiskScore: 64}
	for i := 1; i <= clauses; i++ {
		r.Clauses = append(r.Clauses, model.Clause{
			ID:      fmt.Sprintf("c%d", i),
			RawText: fmt.Sprintf("clause %d", i),
			Risk:    model.ClauseRisk{Score: float64(i * 15), Level: model.RiskMedium},
		})
	}
	return r
}

func pdfUpload(name string) model.Upload {
	return model.Upload{Filename: name, ContentType: "application/pdf", Data: []byte("%PDF-1.7 test")}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PollInterval = 5 * time.Millisecond
	return opts
}

func newTestController(t *testing.T, ft *fakeTransport) *Controller {
	t.Helper()
	opts := testOptions()
	opts.TempDir = t.TempDir()
	c := NewController(context.Background(), ft, opts)
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", msg)
}
