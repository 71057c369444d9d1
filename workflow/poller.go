package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// DefaultPollInterval is the status sampling cadence
const DefaultPollInterval = 1200 * time.Millisecond

// Poller samples analysis progress for the live session
type Poller struct {
	transport Transport
	state     *State
	interval  time.Duration
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(t Transport, state *State, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{transport: t, state: state, interval: interval}
}

// PollHandle controls one running polling loop
type PollHandle struct {
	Ticket Ticket

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the loop. It does not wait; use Done for that. Safe to call
// more than once and from inside the loop's own callbacks.
func (h *PollHandle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

// Done is closed once the loop has exited
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Start launches the loop for t. The first query is issued immediately and
// the next one only after the previous response has been handled, so at most
// one query is outstanding. onDone runs in the loop goroutine when a "done"
// stage is applied; the loop exits right after.
func (p *Poller) Start(ctx context.Context, t Ticket, onDone func(Ticket)) *PollHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{Ticket: t, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer h.Stop()
		p.run(logger.WithDocument(ctx, t.DocumentID), t, onDone)
	}()
	return h
}

func (p *Poller) run(ctx context.Context, t Ticket, onDone func(Ticket)) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !p.active(t) {
			logger.Debug(ctx, "polling stopped, session moved on")
			return
		}

		finished := p.poll(ctx, t, attempt)
		if ctx.Err() != nil {
			return
		}
		if finished {
			if onDone != nil {
				onDone(t)
			}
			return
		}
		timer.Reset(p.interval)
	}
}

func (p *Poller) active(t Ticket) bool {
	return p.state.Current(t) && p.state.Phase() == model.PhaseAnalyzing
}

// poll issues one status query and reports whether a "done" stage was applied
func (p *Poller) poll(ctx context.Context, t Ticket, attempt int) bool {
	snap, err := p.transport.Status(ctx, t.DocumentID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn(ctx, "status poll failed", "attempt", attempt, "error", err)
		}
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	if !p.state.applyStatus(t, *snap) {
		logger.Debug(ctx, "discarding stale status",
			"echoed_document_id", snap.DocumentID,
			"stage", snap.Stage,
		)
		return false
	}
	logger.Debug(ctx, "status applied", "attempt", attempt, "stage", snap.Stage, "progress", snap.Progress)
	return snap.Stage == model.StageDone
}
