package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jangwonii/contract-gaurdian/model"
)

func doneController(t *testing.T, ft *fakeTransport) *Controller {
	t.Helper()
	c := newTestController(t, ft)
	if _, err := c.Submit(context.Background(), pdfUpload("contract.pdf"), "lease"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitFor(t, "result", func() bool { return c.View().Result != nil })
	return c
}

func TestSuggestionBeforeDone(t *testing.T) {
	c := newTestController(t, newFakeTransport())

	_, err := c.RequestSuggestion(context.Background(), "c1", "text")
	if !errors.Is(err, model.ErrNoDocument) {
		t.Errorf("Expected ErrNoDocument, got %v", err)
	}
}

func TestSuggestionRequiresClauseID(t *testing.T) {
	c := doneController(t, newFakeTransport())

	_, err := c.RequestSuggestion(context.Background(), " ", "text")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestSuggestionDeduplicatesSameClause(t *testing.T) {
	ft := newFakeTransport()
	release := make(chan struct{})
	ft.suggestFn = func(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error) {
		<-release
		return &model.ClauseImprovement{ClauseID: clauseID, Suggestion: "better"}, nil
	}
	c := doneController(t, ft)

	var wg sync.WaitGroup
	results := make([]*model.ClauseImprovement, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			imp, err := c.RequestSuggestion(context.Background(), "c1", "clause 1")
			if err != nil {
				t.Errorf("Request %d failed: %v", i, err)
				return
			}
			results[i] = imp
		}(i)
	}

	waitFor(t, "loading", func() bool { return c.View().Suggestions["c1"].Loading })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := ft.count(model.OpSuggest); n != 1 {
		t.Errorf("Expected one call for the same clause, got %d", n)
	}
	for i, imp := range results {
		if imp == nil || imp.Suggestion != "better" {
			t.Errorf("Request %d: unexpected improvement %+v", i, imp)
		}
	}
	view := c.View().Suggestions["c1"]
	if view.Loading || view.Improvement == nil {
		t.Errorf("Expected stored improvement, got %+v", view)
	}
}

func TestSuggestionsForDifferentClausesRunConcurrently(t *testing.T) {
	ft := newFakeTransport()
	release := make(chan struct{})
	ft.suggestFn = func(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error) {
		if clauseID == "c1" {
			<-release
		}
		return &model.ClauseImprovement{ClauseID: clauseID, Suggestion: "fix " + clauseID}, nil
	}
	c := doneController(t, ft)

	slow := make(chan error, 1)
	go func() {
		_, err := c.RequestSuggestion(context.Background(), "c1", "clause 1")
		slow <- err
	}()
	waitFor(t, "c1 loading", func() bool { return c.View().Suggestions["c1"].Loading })

	imp, err := c.RequestSuggestion(context.Background(), "c2", "clause 2")
	if err != nil {
		t.Fatalf("c2 failed: %v", err)
	}
	if imp.Suggestion != "fix c2" {
		t.Errorf("Unexpected c2 suggestion: %s", imp.Suggestion)
	}
	if !c.View().Suggestions["c1"].Loading {
		t.Error("Expected c1 to still be loading while c2 finished")
	}

	close(release)
	if err := <-slow; err != nil {
		t.Fatalf("c1 failed: %v", err)
	}
	if n := ft.count(model.OpSuggest); n != 2 {
		t.Errorf("Expected two calls, got %d", n)
	}
}

func TestSuggestionRerequestOverwrites(t *testing.T) {
	ft := newFakeTransport()
	var n int
	var mu sync.Mutex
	ft.suggestFn = func(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error) {
		mu.Lock()
		n++
		text := []string{"first", "second"}[n-1]
		mu.Unlock()
		return &model.ClauseImprovement{Suggestion: text}, nil
	}
	c := doneController(t, ft)

	for range 2 {
		if _, err := c.RequestSuggestion(context.Background(), "c3", "clause 3"); err != nil {
			t.Fatal(err)
		}
	}

	imp, ok := c.State().Suggestion("c3")
	if !ok {
		t.Fatal("Expected stored suggestion")
	}
	if imp.Suggestion != "second" {
		t.Errorf("Expected latest suggestion, got %s", imp.Suggestion)
	}
	if imp.ClauseID != "c3" {
		t.Errorf("Expected clause id filled in, got %q", imp.ClauseID)
	}
}

func TestSuggestionFailureIsolatedToClause(t *testing.T) {
	ft := newFakeTransport()
	ft.suggestFn = func(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error) {
		if clauseID == "c1" {
			return nil, &model.TransportError{Op: model.OpSuggest, DocumentID: documentID, StatusCode: 502}
		}
		return &model.ClauseImprovement{ClauseID: clauseID, Suggestion: "ok"}, nil
	}
	c := doneController(t, ft)

	if _, err := c.RequestSuggestion(context.Background(), "c1", "clause 1"); model.FailedOp(err) != model.OpSuggest {
		t.Errorf("Expected suggest failure, got %v", err)
	}
	if _, err := c.RequestSuggestion(context.Background(), "c2", "clause 2"); err != nil {
		t.Fatal(err)
	}

	view := c.View()
	if view.Suggestions["c1"].Error != model.MsgSuggestFailed {
		t.Errorf("Expected c1 error, got %+v", view.Suggestions["c1"])
	}
	if view.Suggestions["c2"].Error != "" || view.Suggestions["c2"].Improvement == nil {
		t.Errorf("Expected c2 untouched by c1 failure, got %+v", view.Suggestions["c2"])
	}
	if view.Phase != model.PhaseDone || view.Result == nil {
		t.Error("Expected session unaffected by a suggestion failure")
	}
}

func TestSuggestionsResetForNewDocument(t *testing.T) {
	ft := newFakeTransport()
	c := doneController(t, ft)
	if _, err := c.RequestSuggestion(context.Background(), "c1", "clause 1"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Submit(context.Background(), pdfUpload("next.pdf"), ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second result", func() bool {
		v := c.View()
		return v.Result != nil && v.Result.DocumentID == "doc_2"
	})
	if _, err := c.RequestSuggestion(context.Background(), "c2", "clause 2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.View().Suggestions["c1"]; ok {
		t.Error("Expected suggestions of the previous document to be gone")
	}
}
