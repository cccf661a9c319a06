package dto

import (
	"time"

	routine "mccall/internal/modules/routine/domain"
	timerdomain "mccall/internal/modules/timer/domain"
)

type StepSnapshot struct {
	Index     int
	Step      routine.Step
	Remaining time.Duration
}

// Elapsed is the part of the planned duration already spent, never above it.
func (s StepSnapshot) Elapsed() time.Duration {
	elapsed := s.Step.Duration() - s.Remaining
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

type CheckInRequest struct {
	Step     routine.Step
	Index    int
	Config   routine.CheckInConfig
	Blocking bool
}

// Transition is captured under the engine lock: the step before the operation,
// the step after it and whatever the engine queued for delivery.
type Transition struct {
	Result        timerdomain.AdvanceResult
	Routine       routine.Routine
	Before        *StepSnapshot
	After         *StepSnapshot
	PendingBefore *timerdomain.PendingCheckIn
	Paused        bool
	StepChanged   bool
	CheckIn       *CheckInRequest
	TimedOut      *routine.Step
	Response      *timerdomain.CheckInOutcome
}

func (t Transition) Completed() bool {
	return t.Result.Kind == timerdomain.RoutineCompleted
}

// GateWasPending reports whether the step before the operation was held by a gate.
func (t Transition) GateWasPending() bool {
	return t.PendingBefore != nil && t.PendingBefore.Mode == routine.CheckInGate &&
		t.Before != nil && t.PendingBefore.StepIndex == t.Before.Index
}

type State struct {
	Running         bool
	Paused          bool
	RoutineID       string
	RoutineName     string
	StepCount       int
	StepIndex       int
	Step            routine.Step
	Remaining       time.Duration
	Cycles          int
	AwaitingCheckIn *CheckInRequest
}
