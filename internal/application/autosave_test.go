package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"driverhub/internal/identity"
	"driverhub/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedDraft struct {
	ident *identity.Identity
	draft *types.Application
}

type saveRecorder struct {
	mu    sync.Mutex
	saves []savedDraft
}

func (r *saveRecorder) save(ctx context.Context, ident *identity.Identity, draft *types.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, savedDraft{ident: ident, draft: draft})
	return nil
}

func (r *saveRecorder) snapshot() []savedDraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]savedDraft, len(r.saves))
	copy(out, r.saves)
	return out
}

func (r *saveRecorder) waitFor(t *testing.T, n int) []savedDraft {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if saves := r.snapshot(); len(saves) >= n {
			return saves
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d saves, got %d", n, len(r.snapshot()))
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestAutosaver_CoalescesRapidEdits(t *testing.T) {
	rec := &saveRecorder{}
	saver := NewAutosaver(30*time.Millisecond, rec.save, quietLogger())
	defer saver.Close()

	ident := anonIdent("u1")
	for _, name := range []string{"A", "Al", "Ale", "Alex"} {
		saver.Queue(ident, &types.Application{FirstName: name})
		time.Sleep(5 * time.Millisecond)
	}

	saves := rec.waitFor(t, 1)
	require.Len(t, saves, 1, "one save per quiet period")
	assert.Equal(t, "Alex", saves[0].draft.FirstName, "the last edit wins")

	// No stragglers after the window.
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestAutosaver_IndependentWindowsPerApplicant(t *testing.T) {
	rec := &saveRecorder{}
	saver := NewAutosaver(20*time.Millisecond, rec.save, quietLogger())
	defer saver.Close()

	saver.Queue(anonIdent("u1"), &types.Application{FirstName: "Alex"})
	saver.Queue(anonIdent("u2"), &types.Application{FirstName: "Bobbie"})

	saves := rec.waitFor(t, 2)
	ids := map[string]bool{}
	for _, s := range saves {
		ids[s.ident.ID] = true
	}
	assert.True(t, ids["u1"])
	assert.True(t, ids["u2"])
}

func TestAutosaver_CancelDropsPendingSave(t *testing.T) {
	rec := &saveRecorder{}
	saver := NewAutosaver(20*time.Millisecond, rec.save, quietLogger())
	defer saver.Close()

	saver.Queue(anonIdent("u1"), &types.Application{FirstName: "Alex"})
	saver.Cancel("u1")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "cancelled drafts never reach storage")
}

func TestAutosaver_CloseStopsEverything(t *testing.T) {
	rec := &saveRecorder{}
	saver := NewAutosaver(20*time.Millisecond, rec.save, quietLogger())

	saver.Queue(anonIdent("u1"), &types.Application{FirstName: "Alex"})
	saver.Close()

	// Queue after close is a no-op.
	saver.Queue(anonIdent("u2"), &types.Application{FirstName: "Bobbie"})

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}
