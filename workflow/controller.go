// Package workflow orchestrates one document session against the analysis
// service: upload, analysis trigger, status polling, result retrieval,
// per-clause suggestions and report export.
//
// All session data lives in State. Components never share variables; each
// mutation carries the Ticket (or document id) it was issued for and is
// dropped when that no longer matches the live session.
package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// Options configures a Controller
type Options struct {
	PollInterval        time.Duration
	Limits              Limits
	DefaultContractType string
	TempDir             string
}

// DefaultOptions returns the stock configuration
func DefaultOptions() Options {
	return Options{
		PollInterval:        DefaultPollInterval,
		Limits:              DefaultLimits(),
		DefaultContractType: DefaultContractType,
	}
}

// Controller drives a single session and is what the presentation layer
// holds on to.
type Controller struct {
	state       *State
	uploader    *Uploader
	poller      *Poller
	fetcher     *Fetcher
	suggestions *SuggestionManager
	exporter    *Exporter

	defaultContractType string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	poll   *PollHandle
	closed bool
}

// NewController creates a controller. Values carried by ctx (request id,
// username) tag background work; its cancellation does not stop it, Close does.
func NewController(ctx context.Context, t Transport, opts Options) *Controller {
	state := NewState()
	if opts.DefaultContractType == "" {
		opts.DefaultContractType = DefaultContractType
	}
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &Controller{
		state:               state,
		uploader:            NewUploader(t, state, opts.Limits),
		poller:              NewPoller(t, state, opts.PollInterval),
		fetcher:             NewFetcher(t, state),
		suggestions:         NewSuggestionManager(t, state),
		exporter:            NewExporter(t, state, opts.TempDir),
		defaultContractType: opts.DefaultContractType,
		ctx:                 base,
		cancel:              cancel,
	}
}

// State exposes the session container
func (c *Controller) State() *State {
	return c.state
}

// View returns a snapshot of the session
func (c *Controller) View() model.SessionView {
	return c.state.View()
}

// Submit validates and uploads a file as a new session, then starts analysis
// in the background. It returns once the upload has resolved.
func (c *Controller) Submit(ctx context.Context, upload model.Upload, contractType string) (string, error) {
	if c.isClosed() {
		return "", model.ErrClosed
	}
	if err := c.uploader.Validate(upload); err != nil {
		return "", err
	}
	contractType = strings.TrimSpace(contractType)
	if contractType == "" {
		contractType = c.defaultContractType
	}
	return c.submit(ctx, upload, contractType)
}

func (c *Controller) submit(ctx context.Context, upload model.Upload, contractType string) (string, error) {
	t, err := c.state.beginUpload(upload, contractType)
	if err != nil {
		return "", err
	}
	// The previous session's documentId is gone, so its loop can no longer
	// apply anything; stop it before a new one can start.
	c.stopPolling(true)

	t, err = c.uploader.Submit(ctx, t, upload)
	if err != nil {
		return "", err
	}
	c.startAnalysis(t)
	return t.DocumentID, nil
}

// Retry resumes a failed session. Without a document id the retained file
// is uploaded again; otherwise only the analysis trigger is re-issued.
func (c *Controller) Retry(ctx context.Context) error {
	if c.isClosed() {
		return model.ErrClosed
	}
	target, err := c.state.retryTarget()
	if err != nil {
		return err
	}
	if target.documentID == "" {
		logger.Info(ctx, "retrying upload", "filename", target.upload.Filename)
		_, err := c.submit(ctx, target.upload, target.contractType)
		return err
	}

	t, err := c.state.reenterAnalyzing(target.documentID)
	if err != nil {
		return err
	}
	logger.Info(logger.WithDocument(ctx, t.DocumentID), "retrying analysis trigger")
	c.startAnalysis(t)
	return nil
}

// Refresh re-fetches the result of the current document
func (c *Controller) Refresh(ctx context.Context) error {
	if c.isClosed() {
		return model.ErrClosed
	}
	switch c.state.Phase() {
	case model.PhaseUploading, model.PhaseAnalyzing:
		return model.ErrBusy
	}
	t := c.state.Ticket()
	if t.DocumentID == "" {
		return model.ErrNoDocument
	}
	_, err := c.fetcher.Fetch(ctx, t)
	return err
}

// RequestSuggestion asks for an improvement of one clause
func (c *Controller) RequestSuggestion(ctx context.Context, clauseID, clauseText string) (*model.ClauseImprovement, error) {
	if c.isClosed() {
		return nil, model.ErrClosed
	}
	return c.suggestions.Request(ctx, clauseID, clauseText)
}

// Export downloads the report in format and hands it to saver
func (c *Controller) Export(ctx context.Context, format model.ReportFormat, saver Saver) (*Exported, error) {
	if c.isClosed() {
		return nil, model.ErrClosed
	}
	return c.exporter.Export(ctx, format, saver)
}

// Close detaches the consumer: polling stops, background tasks are
// cancelled and Close waits for them to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stopPolling(true)
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// startAnalysis runs the poller and the trigger for an analyzing ticket.
// Whichever of them observes completion first moves the session to done and
// schedules the single result fetch for that transition. The previous loop
// has fully exited before the new one issues its first query, so it must not
// be called from a polling loop.
func (c *Controller) startAnalysis(t Ticket) {
	c.mu.Lock()
	for c.poll != nil {
		h := c.poll
		c.poll = nil
		c.mu.Unlock()
		h.Stop()
		<-h.Done()
		c.mu.Lock()
	}
	if c.closed || !c.state.Current(t) {
		c.mu.Unlock()
		return
	}
	c.poll = c.poller.Start(c.ctx, t, c.onStageDone)
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		done, err := c.uploader.Trigger(c.ctx, t)
		if err != nil {
			c.stopPollingFor(t)
			return
		}
		if done {
			c.finished(t)
		}
	}()
}

// onStageDone runs in the poller goroutine after a "done" stage was applied
func (c *Controller) onStageDone(t Ticket) {
	if c.state.completeAnalysis(t) {
		c.finished(t)
	}
}

func (c *Controller) finished(t Ticket) {
	c.stopPollingFor(t)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.fetcher.Fetch(c.ctx, t)
	}()
}

// stopPolling stops the active loop. With wait set it blocks until the loop
// goroutine has exited; it must not be called that way from the loop itself.
func (c *Controller) stopPolling(wait bool) {
	c.mu.Lock()
	h := c.poll
	c.poll = nil
	c.mu.Unlock()

	if h == nil {
		return
	}
	h.Stop()
	if wait {
		<-h.Done()
	}
}

// stopPollingFor stops the loop only if it still belongs to t. The handle is
// kept so the next start or stop can wait for the loop to exit; this may run
// on the loop goroutine itself, where waiting would deadlock.
func (c *Controller) stopPollingFor(t Ticket) {
	c.mu.Lock()
	h := c.poll
	c.mu.Unlock()

	if h == nil || h.Ticket != t {
		return
	}
	h.Stop()
}
