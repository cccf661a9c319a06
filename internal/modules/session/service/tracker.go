package service

import (
	"sync"
	"time"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/session/domain"
	"mccall/internal/platform/clock"
	"mccall/internal/platform/id"
)

// Tracker turns timer transitions into a session record. Only one session is
// tracked at a time; calls made without an active session are ignored.
type Tracker struct {
	mu     sync.Mutex
	clock  clock.Clock
	idGen  id.Generator
	active *activeSession
}

type activeSession struct {
	id        string
	routine   routine.Routine
	startedAt time.Time
	current   *openStep
	runs      []domain.StepRun
	muted     bool
}

type openStep struct {
	stepID      string
	startedAt   time.Time
	soundPlayed bool
}

func NewTracker(clock clock.Clock, idGen id.Generator) *Tracker {
	return &Tracker{clock: clock, idGen: idGen}
}

// StartSession replaces any session in progress and opens first.
func (t *Tracker) StartSession(r routine.Routine, first routine.Step, muted bool) (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	r.Steps = append([]routine.Step(nil), r.Steps...)
	t.active = &activeSession{
		id:        t.idGen.New(),
		routine:   r,
		startedAt: now,
		current:   &openStep{stepID: first.ID, startedAt: now},
		muted:     muted,
	}
	return t.active.id, now
}

func (t *Tracker) StartStep(step routine.Step, soundPlayed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return
	}
	t.active.current = &openStep{stepID: step.ID, startedAt: t.clock.Now(), soundPlayed: soundPlayed}
}

// FinalizeCurrentStep closes the open step when its id matches stepID.
func (t *Tracker) FinalizeCurrentStep(stepID string, result domain.StepRunResult, actualSeconds int, endedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.active.current == nil || t.active.current.stepID != stepID {
		return
	}
	current := t.active.current
	t.active.current = nil

	run := domain.StepRun{
		StepID:        current.stepID,
		ActualSeconds: actualSeconds,
		StartedAt:     current.startedAt,
		EndedAt:       endedAt,
		Result:        result,
		SoundPlayed:   current.soundPlayed,
	}
	if step, ok := t.active.routine.StepByID(stepID); ok {
		run.PlannedSeconds = step.DurationSeconds
		mode := step.CheckIn.EffectiveMode()
		if result == domain.ResultCompleted && mode != routine.CheckInOff {
			run.CheckIn = &domain.CheckInResult{Mode: mode}
		}
	}
	t.active.runs = append(t.active.runs, run)
}

func (t *Tracker) RecordCheckInResponse(stepID string, choice routine.CheckInChoice, respondedAt time.Time, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := t.latestCheckIn(stepID)
	if result == nil {
		return
	}
	result.Choice = choice
	result.RespondedAt = respondedAt
	result.ResponseMS = latency.Milliseconds()
	result.TimedOut = false
}

// RecordCheckInTimeout never overrides a recorded choice.
func (t *Tracker) RecordCheckInTimeout(stepID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := t.latestCheckIn(stepID)
	if result == nil || result.Choice != "" {
		return
	}
	result.RespondedAt = time.Time{}
	result.ResponseMS = 0
	result.TimedOut = true
}

func (t *Tracker) MarkMuted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		t.active.muted = true
	}
}

// Runs returns a copy of the finalized runs of the session in progress.
func (t *Tracker) Runs() []domain.StepRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return nil
	}
	return cloneRuns(t.active.runs)
}

func (t *Tracker) ActiveSessionID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return "", false
	}
	return t.active.id, true
}

// FinishSession closes the session and computes its totals. An open step is
// dropped; callers finalize it first.
func (t *Tracker) FinishSession(endedAt time.Time) (domain.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return domain.Session{}, false
	}
	active := t.active
	t.active = nil
	return domain.Session{
		ID:                 active.id,
		RoutineID:          active.routine.ID,
		RoutineName:        active.routine.Name,
		StartedAt:          active.startedAt,
		EndedAt:            endedAt,
		StepRuns:           active.runs,
		Totals:             domain.ComputeTotals(active.routine, active.runs),
		MutedDuringSession: active.muted,
	}, true
}

// latestCheckIn finds the check-in slot of the most recent run of stepID,
// creating it when missing. Steps without check-ins yield nil.
func (t *Tracker) latestCheckIn(stepID string) *domain.CheckInResult {
	if t.active == nil {
		return nil
	}
	step, ok := t.active.routine.StepByID(stepID)
	if !ok {
		return nil
	}
	mode := step.CheckIn.EffectiveMode()
	if mode == routine.CheckInOff {
		return nil
	}
	for i := len(t.active.runs) - 1; i >= 0; i-- {
		run := &t.active.runs[i]
		if run.StepID != stepID {
			continue
		}
		if run.CheckIn == nil {
			run.CheckIn = &domain.CheckInResult{}
		}
		run.CheckIn.Mode = mode
		return run.CheckIn
	}
	return nil
}

func cloneRuns(runs []domain.StepRun) []domain.StepRun {
	out := make([]domain.StepRun, len(runs))
	for i, run := range runs {
		if run.CheckIn != nil {
			checkIn := *run.CheckIn
			run.CheckIn = &checkIn
		}
		out[i] = run
	}
	return out
}
