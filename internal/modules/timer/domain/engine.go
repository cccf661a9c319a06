package domain

import (
	"time"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/platform/clock"
	apperrors "mccall/internal/platform/errors"
)

type AdvanceKind int

const (
	NoChange AdvanceKind = iota
	StepAdvanced
	RoutineCompleted
)

func (k AdvanceKind) String() string {
	switch k {
	case StepAdvanced:
		return "step_advanced"
	case RoutineCompleted:
		return "routine_completed"
	default:
		return "no_change"
	}
}

// AdvanceResult reports the transition an engine operation caused. StepIndex is
// only meaningful for StepAdvanced.
type AdvanceResult struct {
	Kind      AdvanceKind
	StepIndex int
}

type CheckInEvent struct {
	StepIndex int
	Config    routine.CheckInConfig
	Blocking  bool
}

// CheckInOutcome is the engine's view of the most recent check-in. Choice is
// empty and RespondedAt zero when the prompt timed out.
type CheckInOutcome struct {
	Mode        routine.CheckInMode
	Choice      routine.CheckInChoice
	RespondedAt time.Time
	Latency     time.Duration
	TimedOut    bool
}

type PendingCheckIn struct {
	Mode        routine.CheckInMode
	StepIndex   int
	RequestedAt time.Time
	Timeout     time.Duration
}

// Engine sequences the steps of one routine. It is not safe for concurrent
// use; callers serialize access.
type Engine struct {
	clock clock.Clock

	routine          *routine.Routine
	index            int
	stepStartedAt    time.Time
	sessionStartedAt time.Time
	paused           bool
	pausedAt         time.Time
	stepPaused       time.Duration
	sessionPaused    time.Duration
	cycles           int
	pending          *PendingCheckIn
	lastCheckIn      *CheckInOutcome

	stepChanged    *int
	checkInEvent   *CheckInEvent
	checkInTimeout *int
}

// NewEngine builds an idle engine. The clock must carry monotonic readings.
func NewEngine(c clock.Clock) *Engine {
	return &Engine{clock: c}
}

func (e *Engine) IsRunning() bool {
	return e.routine != nil
}

func (e *Engine) IsPaused() bool {
	return e.routine != nil && e.paused
}

func (e *Engine) Routine() (routine.Routine, bool) {
	if e.routine == nil {
		return routine.Routine{}, false
	}
	return *e.routine, true
}

func (e *Engine) CurrentStepIndex() (int, bool) {
	if e.routine == nil {
		return 0, false
	}
	return e.index, true
}

func (e *Engine) CurrentStep() (routine.Step, bool) {
	return e.StepAt(e.index)
}

func (e *Engine) StepAt(index int) (routine.Step, bool) {
	if e.routine == nil || index < 0 || index >= len(e.routine.Steps) {
		return routine.Step{}, false
	}
	return e.routine.Steps[index], true
}

func (e *Engine) CyclesCompleted() int {
	return e.cycles
}

func (e *Engine) PendingCheckIn() (PendingCheckIn, bool) {
	if e.pending == nil {
		return PendingCheckIn{}, false
	}
	return *e.pending, true
}

func (e *Engine) LastCheckIn() (CheckInOutcome, bool) {
	if e.lastCheckIn == nil {
		return CheckInOutcome{}, false
	}
	return *e.lastCheckIn, true
}

func (e *Engine) Start(r routine.Routine) error {
	if e.routine != nil {
		return apperrors.ErrAlreadyRunning
	}
	if err := r.Validate(); err != nil {
		return err
	}
	r.Steps = append([]routine.Step(nil), r.Steps...)
	now := e.clock.Now()
	e.reset()
	e.routine = &r
	e.stepStartedAt = now
	e.sessionStartedAt = now
	e.lastCheckIn = nil
	first := 0
	e.stepChanged = &first
	return nil
}

func (e *Engine) Pause() error {
	if e.routine == nil {
		return apperrors.ErrNotRunning
	}
	if e.paused {
		return apperrors.ErrAlreadyPaused
	}
	e.paused = true
	e.pausedAt = e.clock.Now()
	return nil
}

func (e *Engine) Resume() error {
	if e.routine == nil {
		return apperrors.ErrNotRunning
	}
	if !e.paused {
		return apperrors.ErrNotPaused
	}
	held := saturatingSub(e.clock.Now(), e.pausedAt)
	e.stepPaused += held
	e.sessionPaused += held
	e.paused = false
	e.pausedAt = time.Time{}
	return nil
}

// Stop forgets the last check-in outcome as well; completion keeps it so the
// response that finished a routine can still be read.
func (e *Engine) Stop() error {
	if e.routine == nil {
		return apperrors.ErrNotRunning
	}
	e.reset()
	e.lastCheckIn = nil
	return nil
}

// RemainingTime is frozen while paused and never negative.
func (e *Engine) RemainingTime() (time.Duration, error) {
	if e.routine == nil {
		return 0, apperrors.ErrNotRunning
	}
	step, ok := e.CurrentStep()
	if !ok {
		return 0, apperrors.InvalidRoutine("step index out of bounds")
	}
	elapsed := e.elapsedInStep(e.effectiveNow())
	if elapsed >= step.Duration() {
		return 0, nil
	}
	return step.Duration() - elapsed, nil
}

// AdvanceIfNeeded is called on every heartbeat tick.
func (e *Engine) AdvanceIfNeeded() (AdvanceResult, error) {
	if e.routine == nil {
		return AdvanceResult{}, apperrors.ErrNotRunning
	}
	if e.paused {
		return AdvanceResult{Kind: NoChange}, nil
	}
	now := e.clock.Now()
	e.expirePrompt(now)
	if e.pending != nil && e.pending.Mode == routine.CheckInGate {
		return AdvanceResult{Kind: NoChange}, nil
	}
	if e.durationLimitReached(now) {
		e.reset()
		return AdvanceResult{Kind: RoutineCompleted}, nil
	}
	step, ok := e.CurrentStep()
	if !ok {
		e.reset()
		return AdvanceResult{}, apperrors.InvalidRoutine("step index out of bounds")
	}
	elapsed := e.elapsedInStep(now)
	if elapsed < step.Duration() {
		return AdvanceResult{Kind: NoChange}, nil
	}
	return e.completeStep(e.index, step, elapsed-step.Duration(), now)
}

// SkipCurrentStep answers a gate on the current step with skip, otherwise
// moves to the next step keeping the pause state.
func (e *Engine) SkipCurrentStep() (AdvanceResult, error) {
	if e.routine == nil {
		return AdvanceResult{}, apperrors.ErrNotRunning
	}
	if e.pending != nil && e.pending.Mode == routine.CheckInGate && e.pending.StepIndex == e.index {
		return e.RespondToCheckIn(routine.ChoiceSkip)
	}
	return e.advanceKeepingPause(e.index, e.clock.Now())
}

func (e *Engine) RespondToCheckIn(choice routine.CheckInChoice) (AdvanceResult, error) {
	if e.routine == nil {
		return AdvanceResult{}, apperrors.ErrNotRunning
	}
	if e.pending == nil {
		return AdvanceResult{}, apperrors.InvalidRoutine("no check-in awaiting response")
	}
	now := e.clock.Now()
	pending := *e.pending
	e.pending = nil
	e.checkInEvent = nil
	e.lastCheckIn = &CheckInOutcome{
		Mode:        pending.Mode,
		Choice:      choice,
		RespondedAt: now,
		Latency:     saturatingSub(now, pending.RequestedAt),
	}
	if pending.Mode == routine.CheckInGate {
		return e.advanceKeepingPause(pending.StepIndex, now)
	}
	return AdvanceResult{Kind: NoChange}, nil
}

// TakeStepChanged returns the index of the step entered since the last call.
func (e *Engine) TakeStepChanged() (int, bool) {
	return takeIndex(&e.stepChanged)
}

func (e *Engine) TakeCheckInEvent() (CheckInEvent, bool) {
	if e.checkInEvent == nil {
		return CheckInEvent{}, false
	}
	event := *e.checkInEvent
	e.checkInEvent = nil
	return event, true
}

// TakeCheckInTimeout returns the step index whose prompt expired unanswered.
func (e *Engine) TakeCheckInTimeout() (int, bool) {
	return takeIndex(&e.checkInTimeout)
}

func (e *Engine) completeStep(index int, step routine.Step, overflow time.Duration, now time.Time) (AdvanceResult, error) {
	cfg := step.CheckIn
	switch cfg.EffectiveMode() {
	case routine.CheckInPrompt:
		e.timeOutOpenPrompt()
		e.pending = &PendingCheckIn{Mode: routine.CheckInPrompt, StepIndex: index, RequestedAt: now, Timeout: cfg.PromptTimeout()}
		e.checkInEvent = &CheckInEvent{StepIndex: index, Config: cfg}
		return e.advanceFrom(index, overflow, now)
	case routine.CheckInGate:
		e.timeOutOpenPrompt()
		e.pending = &PendingCheckIn{Mode: routine.CheckInGate, StepIndex: index, RequestedAt: now}
		e.checkInEvent = &CheckInEvent{StepIndex: index, Config: cfg, Blocking: true}
		return AdvanceResult{Kind: NoChange}, nil
	default:
		return e.advanceFrom(index, overflow, now)
	}
}

// advanceFrom moves past index, consuming overflow across as many following
// steps as it covers. Whole cycles are skipped arithmetically so the walk is
// bounded by the step count.
func (e *Engine) advanceFrom(index int, overflow time.Duration, now time.Time) (AdvanceResult, error) {
	steps := e.routine.Steps
	repeat := e.routine.Repeat
	cycleLen := e.routine.CycleDuration()
	cycles := e.cycles
	for {
		if index+1 < len(steps) {
			index++
		} else {
			cycles++
			if e.repeatExhausted(cycles, now) {
				e.reset()
				return AdvanceResult{Kind: RoutineCompleted}, nil
			}
			index = 0
			if cycleLen > 0 && overflow >= cycleLen {
				whole := int(overflow / cycleLen)
				if repeat.Kind == routine.RepeatCount && cycles+whole >= repeat.Count {
					e.reset()
					return AdvanceResult{Kind: RoutineCompleted}, nil
				}
				cycles += whole
				overflow -= time.Duration(whole) * cycleLen
			}
		}
		if index >= len(steps) {
			e.reset()
			return AdvanceResult{}, apperrors.InvalidRoutine("step index out of bounds")
		}
		if overflow < steps[index].Duration() {
			break
		}
		overflow -= steps[index].Duration()
	}

	e.index = index
	e.stepStartedAt = now.Add(-overflow)
	e.stepPaused = 0
	e.paused = false
	e.pausedAt = time.Time{}
	e.cycles = cycles
	landed := index
	e.stepChanged = &landed
	return AdvanceResult{Kind: StepAdvanced, StepIndex: index}, nil
}

func (e *Engine) advanceKeepingPause(index int, now time.Time) (AdvanceResult, error) {
	wasPaused := e.paused
	anchor := now
	if wasPaused {
		anchor = e.pausedAt
	}
	result, err := e.advanceFrom(index, 0, anchor)
	if err != nil {
		return result, err
	}
	if result.Kind == StepAdvanced && wasPaused {
		e.paused = true
		e.pausedAt = anchor
	}
	return result, nil
}

func (e *Engine) repeatExhausted(cycles int, now time.Time) bool {
	switch e.routine.Repeat.Kind {
	case routine.RepeatCount:
		return cycles >= e.routine.Repeat.Count
	case routine.RepeatDuration:
		return e.sessionElapsed(now) >= e.routine.Repeat.Limit()
	default:
		return false
	}
}

func (e *Engine) durationLimitReached(now time.Time) bool {
	if e.routine.Repeat.Kind != routine.RepeatDuration {
		return false
	}
	return e.sessionElapsed(now) >= e.routine.Repeat.Limit()
}

func (e *Engine) expirePrompt(now time.Time) {
	p := e.pending
	if p == nil || p.Mode != routine.CheckInPrompt || p.Timeout <= 0 {
		return
	}
	if saturatingSub(now, p.RequestedAt) < p.Timeout {
		return
	}
	e.pending = nil
	e.markPromptTimedOut(p.StepIndex)
}

// timeOutOpenPrompt closes a still-open prompt before a new check-in replaces it.
func (e *Engine) timeOutOpenPrompt() {
	if e.pending == nil || e.pending.Mode != routine.CheckInPrompt {
		return
	}
	index := e.pending.StepIndex
	e.pending = nil
	e.markPromptTimedOut(index)
}

func (e *Engine) markPromptTimedOut(index int) {
	e.checkInTimeout = &index
	e.lastCheckIn = &CheckInOutcome{Mode: routine.CheckInPrompt, TimedOut: true}
}

func (e *Engine) elapsedInStep(now time.Time) time.Duration {
	elapsed := saturatingSub(now, e.stepStartedAt) - e.stepPaused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (e *Engine) sessionElapsed(now time.Time) time.Duration {
	elapsed := saturatingSub(now, e.sessionStartedAt) - e.sessionPaused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (e *Engine) effectiveNow() time.Time {
	if e.paused {
		return e.pausedAt
	}
	return e.clock.Now()
}

func (e *Engine) reset() {
	e.routine = nil
	e.index = 0
	e.stepStartedAt = time.Time{}
	e.sessionStartedAt = time.Time{}
	e.paused = false
	e.pausedAt = time.Time{}
	e.stepPaused = 0
	e.sessionPaused = 0
	e.cycles = 0
	e.pending = nil
	e.stepChanged = nil
	e.checkInEvent = nil
	e.checkInTimeout = nil
}

func takeIndex(slot **int) (int, bool) {
	if *slot == nil {
		return 0, false
	}
	value := **slot
	*slot = nil
	return value, true
}

func saturatingSub(later, earlier time.Time) time.Duration {
	d := later.Sub(earlier)
	if d < 0 {
		return 0
	}
	return d
}
