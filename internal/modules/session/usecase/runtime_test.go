package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	routine "mccall/internal/modules/routine/domain"
	routinedto "mccall/internal/modules/routine/dto"
	sessionadapter "mccall/internal/modules/session/adapter/out"
	"mccall/internal/modules/session/domain"
	"mccall/internal/modules/session/dto"
	sessionin "mccall/internal/modules/session/port/in"
	sessionout "mccall/internal/modules/session/port/out"
	"mccall/internal/modules/session/service"
	"mccall/internal/modules/session/usecase"
	sounddomain "mccall/internal/modules/sound/domain"
	soundservice "mccall/internal/modules/sound/service"
	soundusecase "mccall/internal/modules/sound/usecase"
	timerservice "mccall/internal/modules/timer/service"
	timerusecase "mccall/internal/modules/timer/usecase"
	apperrors "mccall/internal/platform/errors"
	"mccall/internal/platform/logging"
	"mccall/internal/platform/tx"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceID struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceID) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return "session_" + string(rune('0'+s.next))
}

type fakeRoutines struct {
	routines []routine.Routine
}

func (f fakeRoutines) ListRoutines(context.Context) ([]routinedto.RoutineOutput, error) {
	return nil, nil
}

func (f fakeRoutines) GetRoutine(context.Context, string) (routinedto.RoutineDetailOutput, error) {
	return routinedto.RoutineDetailOutput{}, nil
}

func (f fakeRoutines) ImportRoutine(context.Context, routinedto.ImportInput) (routinedto.RoutineOutput, error) {
	return routinedto.RoutineOutput{}, nil
}

func (f fakeRoutines) Resolve(_ context.Context, id string) (routine.Routine, error) {
	for _, r := range f.routines {
		if r.ID == id {
			return r, nil
		}
	}
	return routine.Routine{}, apperrors.ErrNotFound
}

func (f fakeRoutines) Load(context.Context) ([]routine.Routine, error) {
	return f.routines, nil
}

type recordingPlayer struct {
	mu   sync.Mutex
	err  error
	cues []sounddomain.Cue
}

func (p *recordingPlayer) Play(_ context.Context, cue sounddomain.Cue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cues = append(p.cues, cue)
	return p.err
}

type fixture struct {
	dir     string
	clock   *testClock
	ids     *sequenceID
	player  *recordingPlayer
	active  sessionout.ActiveSessionStore
	notes   sessionout.SessionStore
	runtime sessionin.Usecase
}

func promptRoutine() routine.Routine {
	return routine.Routine{
		ID:   "focus",
		Name: "Focus",
		Steps: []routine.Step{
			{ID: "work", Label: "Work", DurationSeconds: 60, SoundOverride: routine.OverrideInherit, CheckIn: routine.CheckInConfig{Mode: routine.CheckInPrompt, PromptTitle: "Done?", PromptTimeoutSeconds: 10}},
			{ID: "rest", Label: "Rest", DurationSeconds: 30, SoundOverride: routine.OverrideInherit, CountAsBreak: true},
		},
		Repeat:       routine.Count(1),
		SoundDefault: routine.SoundOn,
		SoundScheme:  routine.SchemeEndDifferent,
	}
}

func gateRoutine() routine.Routine {
	r := promptRoutine()
	r.ID = "gated"
	r.Name = "Gated"
	r.Steps[0].CheckIn = routine.CheckInConfig{Mode: routine.CheckInGate}
	return r
}

// soloRoutine repeats one prompt step whose prompt never expires on its own.
func soloRoutine() routine.Routine {
	return routine.Routine{
		ID:   "solo",
		Name: "Solo",
		Steps: []routine.Step{
			{ID: "stretch", Label: "Stretch", DurationSeconds: 10, SoundOverride: routine.OverrideInherit, CheckIn: routine.CheckInConfig{Mode: routine.CheckInPrompt, PromptTitle: "Stretched?"}},
		},
		Repeat:       routine.Count(3),
		SoundDefault: routine.SoundOn,
		SoundScheme:  routine.SchemeEndDifferent,
	}
}

func timeboxRoutine() routine.Routine {
	return routine.Routine{
		ID:   "timebox",
		Name: "Timebox",
		Steps: []routine.Step{
			{ID: "a", Label: "A", DurationSeconds: 60, SoundOverride: routine.OverrideInherit},
			{ID: "b", Label: "B", DurationSeconds: 60, SoundOverride: routine.OverrideInherit, CheckIn: routine.CheckInConfig{Mode: routine.CheckInGate}},
		},
		Repeat:       routine.ForDuration(100),
		SoundDefault: routine.SoundOn,
		SoundScheme:  routine.SchemeEndDifferent,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:    t.TempDir(),
		clock:  &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		ids:    &sequenceID{},
		player: &recordingPlayer{},
	}
	f.active = sessionadapter.NewFileActiveSessionStore(filepath.Join(f.dir, "active-session.json"))
	f.notes = sessionadapter.NewVaultSessionStore(filepath.Join(f.dir, "sessions"))
	f.runtime = f.boot(t)
	return f
}

// boot wires a fresh process over the same data directory.
func (f *fixture) boot(t *testing.T) sessionin.Usecase {
	t.Helper()
	db, err := sessionadapter.OpenSQLite(filepath.Join(f.dir, "mccall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	index, err := sessionadapter.NewSQLiteSessionIndex(db)
	require.NoError(t, err)

	logger := logging.Discard()
	routines := fakeRoutines{routines: []routine.Routine{promptRoutine(), gateRoutine(), soloRoutine(), timeboxRoutine()}}
	sessions := service.NewSessionService(f.notes, index, tx.NewSQLManager(db))
	return usecase.NewRuntime(usecase.Deps{
		Timer:    timerusecase.NewInteractor(timerservice.NewTimerService(f.clock)),
		Routines: routines,
		Sound:    soundusecase.NewInteractor(soundservice.NewAudioManager(f.player, f.clock, logger)),
		Tracker:  service.NewTracker(f.clock, f.ids),
		Recovery: service.NewRecoveryService(f.clock, f.active, routines, sessions, logger),
		Sessions: sessions,
		Clock:    f.clock,
		Logger:   logger,
	})
}

func kinds(events []dto.Event) []dto.EventKind {
	out := make([]dto.EventKind, 0, len(events))
	for _, event := range events {
		out = append(out, event.Kind)
	}
	return out
}

func onlySession(t *testing.T, f *fixture) domain.Session {
	t.Helper()
	stored, err := f.notes.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	return stored[0].Session
}

func TestRuntimeRunsRoutineToCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	update, err := f.runtime.Start(ctx, "focus")
	require.NoError(t, err)
	assert.True(t, update.State.Running)
	assert.Equal(t, "Work", update.State.StepLabel)
	assert.Equal(t, "session_1", update.State.SessionID)
	snapshot, err := f.active.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "work", snapshot.CurrentStepID)

	f.clock.Advance(60 * time.Second)
	update, err = f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dto.EventKind{dto.EventCheckInRequested, dto.EventStepStarted}, kinds(update.Events))
	require.NotNil(t, update.Events[0].CheckIn)
	assert.Equal(t, "Done?", update.Events[0].CheckIn.Title)
	assert.False(t, update.Events[0].CheckIn.Blocking)
	assert.Equal(t, "Rest", update.State.StepLabel)

	snapshot, err = f.active.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rest", snapshot.CurrentStepID)
	assert.True(t, snapshot.CurrentStepSoundPlayed)
	require.Len(t, snapshot.CompletedRuns, 1)

	f.clock.Advance(4 * time.Second)
	_, err = f.runtime.Respond(ctx, "done")
	require.NoError(t, err)

	f.clock.Advance(26 * time.Second)
	update, err = f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, update.State.Running)
	assert.Contains(t, kinds(update.Events), dto.EventSessionSaved)

	_, err = f.active.LoadActive(ctx)
	require.ErrorIs(t, err, apperrors.ErrNoActiveSession)
	assert.Equal(t, []sounddomain.Cue{sounddomain.CueStep, sounddomain.CueEnd}, f.player.cues)

	session := onlySession(t, f)
	assert.Equal(t, domain.Totals{TotalSeconds: 90, WorkSeconds: 60, BreakSeconds: 30, Cycles: 1, CheckInDone: 1}, session.Totals)
	require.Len(t, session.StepRuns, 2)
	assert.Equal(t, int64(4000), session.StepRuns[0].CheckIn.ResponseMS)
	assert.True(t, session.StepRuns[1].SoundPlayed)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stats, err := f.runtime.Stats(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 1, stats.Cycles)
	assert.Equal(t, 1, stats.CheckInDone)
}

func TestRuntimeGateFinalizesStepOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "gated")
	require.NoError(t, err)
	f.clock.Advance(60 * time.Second)
	update, err := f.runtime.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, []dto.EventKind{dto.EventCheckInRequested}, kinds(update.Events))
	assert.True(t, update.Events[0].CheckIn.Blocking)
	require.NotNil(t, update.State.AwaitingCheckIn)

	snapshot, err := f.active.LoadActive(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.CurrentStepFinalized)
	require.Len(t, snapshot.CompletedRuns, 1)

	f.clock.Advance(5 * time.Minute)
	_, err = f.runtime.Tick(ctx)
	require.NoError(t, err)

	update, err = f.runtime.Skip(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Rest", update.State.StepLabel)
	assert.Nil(t, update.State.AwaitingCheckIn)

	f.clock.Advance(10 * time.Second)
	_, err = f.runtime.Stop(ctx)
	require.NoError(t, err)

	session := onlySession(t, f)
	require.Len(t, session.StepRuns, 2)
	work := session.StepRuns[0]
	assert.Equal(t, domain.ResultCompleted, work.Result)
	assert.Equal(t, 60, work.ActualSeconds)
	require.NotNil(t, work.CheckIn)
	assert.Equal(t, routine.CheckInGate, work.CheckIn.Mode)
	assert.Equal(t, routine.ChoiceSkip, work.CheckIn.Choice)
	rest := session.StepRuns[1]
	assert.Equal(t, domain.ResultAborted, rest.Result)
	assert.Equal(t, 10, rest.ActualSeconds)
	assert.Equal(t, 1, session.Totals.CheckInSkip)
	assert.Zero(t, session.Totals.Cycles)
}

func TestRuntimeTimeoutStaysOnRunThatAskedIt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "solo")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)
	_, err = f.runtime.Tick(ctx)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	update, err := f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dto.EventKind{dto.EventCheckInTimedOut, dto.EventCheckInRequested, dto.EventStepStarted}, kinds(update.Events))

	_, err = f.runtime.Respond(ctx, "done")
	require.NoError(t, err)
	_, err = f.runtime.Stop(ctx)
	require.NoError(t, err)

	session := onlySession(t, f)
	require.Len(t, session.StepRuns, 3)
	first := session.StepRuns[0].CheckIn
	require.NotNil(t, first)
	assert.True(t, first.TimedOut)
	assert.Empty(t, first.Choice)
	second := session.StepRuns[1].CheckIn
	require.NotNil(t, second)
	assert.False(t, second.TimedOut)
	assert.Equal(t, routine.ChoiceDone, second.Choice)
	assert.Equal(t, domain.ResultAborted, session.StepRuns[2].Result)
	assert.Equal(t, 1, session.Totals.CheckInDone)
	assert.Equal(t, 1, session.Totals.CheckInSkip)
	assert.Equal(t, 2, session.Totals.Cycles)
}

func TestRuntimeDurationLimitAbortsUnfinishedStep(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "timebox")
	require.NoError(t, err)
	f.clock.Advance(60 * time.Second)
	update, err := f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", update.State.StepLabel)

	f.clock.Advance(40 * time.Second)
	update, err = f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, update.State.Running)
	assert.NotContains(t, kinds(update.Events), dto.EventCheckInRequested)
	assert.Contains(t, kinds(update.Events), dto.EventSessionSaved)

	session := onlySession(t, f)
	require.Len(t, session.StepRuns, 2)
	assert.Equal(t, domain.ResultCompleted, session.StepRuns[0].Result)
	b := session.StepRuns[1]
	assert.Equal(t, domain.ResultAborted, b.Result)
	assert.Equal(t, 40, b.ActualSeconds)
	assert.Equal(t, 60, b.PlannedSeconds)
	assert.Nil(t, b.CheckIn)
	assert.Equal(t, 100, session.Totals.TotalSeconds)
	assert.Zero(t, session.Totals.Cycles)
}

func TestRuntimeSkipRecordsElapsedTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "focus")
	require.NoError(t, err)
	f.clock.Advance(20 * time.Second)
	_, err = f.runtime.Pause(ctx)
	require.NoError(t, err)
	snapshot, err := f.active.LoadActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot.PausedAt)

	f.clock.Advance(time.Hour)
	update, err := f.runtime.Skip(ctx)
	require.NoError(t, err)
	assert.True(t, update.State.Paused)
	assert.NotContains(t, kinds(update.Events), dto.EventCheckInRequested)

	snapshot, err = f.active.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rest", snapshot.CurrentStepID)
	assert.NotNil(t, snapshot.PausedAt)

	_, err = f.runtime.Stop(ctx)
	require.NoError(t, err)
	session := onlySession(t, f)
	require.Len(t, session.StepRuns, 2)
	assert.Equal(t, domain.ResultSkipped, session.StepRuns[0].Result)
	assert.Equal(t, 20, session.StepRuns[0].ActualSeconds)
	assert.Nil(t, session.StepRuns[0].CheckIn)
	assert.Equal(t, 0, session.StepRuns[1].ActualSeconds)
}

func TestRuntimeMuteMarksSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "focus")
	require.NoError(t, err)
	update := f.runtime.ToggleMute(ctx)
	assert.True(t, update.State.Muted)
	snapshot, err := f.active.LoadActive(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.MutedDuringSession)

	f.clock.Advance(60 * time.Second)
	_, err = f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.player.cues)

	_, err = f.runtime.Stop(ctx)
	require.NoError(t, err)
	session := onlySession(t, f)
	assert.True(t, session.MutedDuringSession)
	assert.False(t, session.StepRuns[1].SoundPlayed)
}

func TestRuntimeSoundFailureNotifiedOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.player.err = errors.New("no device")

	_, err := f.runtime.Start(ctx, "focus")
	require.NoError(t, err)
	f.clock.Advance(60 * time.Second)
	update, err := f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.Contains(t, kinds(update.Events), dto.EventSoundFailed)

	f.clock.Advance(30 * time.Second)
	update, err = f.runtime.Tick(ctx)
	require.NoError(t, err)
	assert.NotContains(t, kinds(update.Events), dto.EventSoundFailed)
}

func TestRuntimeRecoversAfterCrash(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "focus")
	require.NoError(t, err)
	f.clock.Advance(45 * time.Second)

	restarted := f.boot(t)
	out, err := restarted.Recover(ctx)
	require.NoError(t, err)
	assert.True(t, out.Recovered)
	assert.Equal(t, "session_1", out.SessionID)
	assert.Equal(t, 45, out.TotalSeconds)
	_, err = os.Stat(out.Path)
	require.NoError(t, err)

	session := onlySession(t, f)
	assert.True(t, session.Recovered)
	require.Len(t, session.StepRuns, 1)
	assert.Equal(t, domain.ResultAborted, session.StepRuns[0].Result)

	again, err := restarted.Recover(ctx)
	require.NoError(t, err)
	assert.False(t, again.Recovered)
}

func TestRuntimeRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runtime.Start(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.runtime.Start(ctx, "focus")
	require.NoError(t, err)
	_, err = f.runtime.Respond(ctx, "maybe")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.runtime.Start(ctx, "focus")
	require.ErrorIs(t, err, apperrors.ErrAlreadyRunning)
}

func TestRuntimeRunLoopStopsWhenRoutineCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := f.runtime.Start(ctx, "focus")
	require.NoError(t, err)

	updates := 0
	err = f.runtime.Run(ctx, time.Millisecond, func(dto.Update) {
		updates++
		f.clock.Advance(time.Minute)
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, updates, 2)
	assert.False(t, f.runtime.State(ctx).Running)
	onlySession(t, f)
}
