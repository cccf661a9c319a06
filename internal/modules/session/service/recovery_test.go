package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mccall/internal/modules/session/domain"
	"mccall/internal/platform/logging"
)

type recoveryFixture struct {
	clock    *stepClock
	active   *memoryActiveStore
	sessions *memorySessionStore
	index    *memoryIndex
	svc      *RecoveryService
}

func newRecoveryFixture(catalog staticCatalog) recoveryFixture {
	f := recoveryFixture{
		clock:    newStepClock(),
		active:   &memoryActiveStore{},
		sessions: &memorySessionStore{},
		index:    newMemoryIndex(),
	}
	archive := NewSessionService(f.sessions, f.index, nil)
	f.svc = NewRecoveryService(f.clock, f.active, catalog, archive, logging.Discard())
	return f
}

func TestRecoveryUpdatesAreNoOpsWithoutSnapshot(t *testing.T) {
	t.Parallel()
	f := newRecoveryFixture(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.MarkPaused(ctx))
	require.NoError(t, f.svc.MarkResumed(ctx))
	require.NoError(t, f.svc.MarkMuted(ctx))
	require.NoError(t, f.svc.UpdateActiveStep(ctx, focusRoutine().Steps[1], true, nil))
	assert.Zero(t, f.active.saves)

	_, _, ok, err := f.svc.RecoverOnStartup(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoveryPauseIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newRecoveryFixture(nil)
	ctx := context.Background()
	r := focusRoutine()

	require.NoError(t, f.svc.Start(ctx, "session_1", r.ID, f.clock.Now(), r.Steps[0], false))
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.MarkPaused(ctx))
	pausedAt := *f.active.snapshot.PausedAt
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.MarkPaused(ctx))
	assert.Equal(t, pausedAt, *f.active.snapshot.PausedAt)

	require.NoError(t, f.svc.MarkResumed(ctx))
	assert.Nil(t, f.active.snapshot.PausedAt)
}

func TestRecoverFromPausedSnapshot(t *testing.T) {
	t.Parallel()
	r := focusRoutine()
	f := newRecoveryFixture(staticCatalog{r})
	ctx := context.Background()
	startedAt := f.clock.Now()

	require.NoError(t, f.svc.Start(ctx, "session_1", r.ID, startedAt, r.Steps[0], false))
	f.clock.Advance(25 * time.Minute)
	completed := []domain.StepRun{{StepID: "work", PlannedSeconds: 1500, ActualSeconds: 1500, StartedAt: startedAt, EndedAt: f.clock.Now(), Result: domain.ResultCompleted}}
	require.NoError(t, f.svc.UpdateActiveStep(ctx, r.Steps[1], true, completed))
	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.svc.MarkPaused(ctx))
	require.NoError(t, f.svc.MarkMuted(ctx))
	f.clock.Advance(3 * time.Hour)

	session, path, ok, err := f.svc.RecoverOnStartup(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sessions/session_1.md", path)
	assert.True(t, session.Recovered)
	assert.True(t, session.MutedDuringSession)
	assert.Equal(t, "Focus", session.RoutineName)
	assert.Equal(t, startedAt.Add(27*time.Minute), session.EndedAt)

	require.Len(t, session.StepRuns, 2)
	last := session.StepRuns[1]
	assert.Equal(t, "break", last.StepID)
	assert.Equal(t, domain.ResultAborted, last.Result)
	assert.Equal(t, 300, last.PlannedSeconds)
	assert.Equal(t, 120, last.ActualSeconds)
	assert.True(t, last.SoundPlayed)

	assert.Equal(t, domain.Totals{TotalSeconds: 1620, WorkSeconds: 1500, BreakSeconds: 120}, session.Totals)
	assert.Nil(t, f.active.snapshot)
	assert.Contains(t, f.index.rows, "session_1")
}

func TestRecoverWithUnknownRoutineCountsAllAsWork(t *testing.T) {
	t.Parallel()
	f := newRecoveryFixture(staticCatalog{})
	ctx := context.Background()
	r := focusRoutine()

	require.NoError(t, f.svc.Start(ctx, "session_2", "gone", f.clock.Now(), r.Steps[1], false))
	f.clock.Advance(90 * time.Second)

	session, _, ok, err := f.svc.RecoverOnStartup(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, session.StepRuns, 1)
	assert.Zero(t, session.StepRuns[0].PlannedSeconds)
	assert.Equal(t, domain.Totals{TotalSeconds: 90, WorkSeconds: 90}, session.Totals)
}

func TestRecoverClampsClockGoingBackwards(t *testing.T) {
	t.Parallel()
	r := focusRoutine()
	f := newRecoveryFixture(staticCatalog{r})
	ctx := context.Background()

	require.NoError(t, f.svc.Start(ctx, "session_3", r.ID, f.clock.Now(), r.Steps[0], false))
	f.clock.Advance(-time.Hour)

	session, _, ok, err := f.svc.RecoverOnStartup(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, session.Totals.TotalSeconds)
	assert.Zero(t, session.StepRuns[0].ActualSeconds)
}

func TestRecoverSkipsStepFinalizedAtGate(t *testing.T) {
	t.Parallel()
	r := focusRoutine()
	f := newRecoveryFixture(staticCatalog{r})
	ctx := context.Background()
	startedAt := f.clock.Now()

	require.NoError(t, f.svc.Start(ctx, "session_4", r.ID, startedAt, r.Steps[0], false))
	f.clock.Advance(25 * time.Minute)
	runs := []domain.StepRun{{StepID: "work", PlannedSeconds: 1500, ActualSeconds: 1500, StartedAt: startedAt, EndedAt: f.clock.Now(), Result: domain.ResultCompleted}}
	require.NoError(t, f.svc.SyncRuns(ctx, runs, true))
	f.clock.Advance(10 * time.Minute)

	session, _, ok, err := f.svc.RecoverOnStartup(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, session.StepRuns, 1)
	assert.Equal(t, domain.ResultCompleted, session.StepRuns[0].Result)
	assert.Equal(t, 2100, session.Totals.TotalSeconds)
	assert.Equal(t, 2100, session.Totals.WorkSeconds)
}

type brokenIndex struct{ *memoryIndex }

func (brokenIndex) Upsert(context.Context, domain.Session, string) error {
	return errors.New("database is locked")
}

func TestRecoverClearsSnapshotWhenOnlyIndexFails(t *testing.T) {
	t.Parallel()
	clock := newStepClock()
	active := &memoryActiveStore{}
	notes := &memorySessionStore{}
	archive := NewSessionService(notes, brokenIndex{newMemoryIndex()}, nil)
	svc := NewRecoveryService(clock, active, staticCatalog{focusRoutine()}, archive, logging.Discard())
	ctx := context.Background()
	r := focusRoutine()

	require.NoError(t, svc.Start(ctx, "session_1", r.ID, clock.Now(), r.Steps[0], false))
	clock.Advance(5 * time.Minute)

	_, path, ok, err := svc.RecoverOnStartup(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sessions/session_1.md", path)
	assert.Len(t, notes.saved, 1)
	assert.Nil(t, active.snapshot)
}
