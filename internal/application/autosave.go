package application

import (
	"context"
	"sync"
	"time"

	"driverhub/internal/identity"
	"driverhub/pkg/types"

	"github.com/sirupsen/logrus"
)

// Autosaver coalesces rapid draft edits into single writes with a trailing
// debounce: every edit reschedules the timer, and only the quiet period
// after the last edit triggers the save. Submission cancels the pending
// timer first so a stale draft can never race past the final record.
type Autosaver struct {
	delay  time.Duration
	save   func(ctx context.Context, ident *identity.Identity, draft *types.Application) error
	logger *logrus.Logger

	mu      sync.Mutex
	closed  bool
	pending map[string]*pendingDraft
}

type pendingDraft struct {
	timer *time.Timer
	ident *identity.Identity
	draft *types.Application
}

func NewAutosaver(delay time.Duration, save func(ctx context.Context, ident *identity.Identity, draft *types.Application) error, logger *logrus.Logger) *Autosaver {
	return &Autosaver{
		delay:   delay,
		save:    save,
		logger:  logger,
		pending: make(map[string]*pendingDraft),
	}
}

// Queue records the latest draft state for an applicant and restarts their
// debounce window.
func (a *Autosaver) Queue(ident *identity.Identity, draft *types.Application) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	id := ident.ID
	if entry, ok := a.pending[id]; ok {
		entry.ident = ident
		entry.draft = draft
		entry.timer.Reset(a.delay)
		return
	}

	entry := &pendingDraft{ident: ident, draft: draft}
	entry.timer = time.AfterFunc(a.delay, func() {
		a.fire(id)
	})
	a.pending[id] = entry
}

// Cancel drops any pending save for the applicant. Called before final
// submission and on logout.
func (a *Autosaver) Cancel(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry, ok := a.pending[id]; ok {
		entry.timer.Stop()
		delete(a.pending, id)
	}
}

// Close stops every pending timer. Queued drafts are dropped, not flushed;
// an auto-save is best-effort by nature.
func (a *Autosaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for id, entry := range a.pending {
		entry.timer.Stop()
		delete(a.pending, id)
	}
}

func (a *Autosaver) fire(id string) {
	a.mu.Lock()
	entry, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.save(ctx, entry.ident, entry.draft); err != nil {
		// Draft saves are best-effort; the applicant's form state is still
		// in their hands and the next edit retries.
		a.logger.WithError(err).WithField("application_id", id).Warn("failed to auto-save draft")
	}
}
