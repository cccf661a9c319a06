package domain

import "time"

// ActiveSnapshot is the durable record of the run in progress. It is written
// after every relevant transition and removed when the run ends.
type ActiveSnapshot struct {
	SessionID              string     `json:"sessionId"`
	RoutineID              string     `json:"routineId"`
	StartedAt              time.Time  `json:"startedAt"`
	CurrentStepID          string     `json:"currentStepId"`
	CurrentStepStartedAt   time.Time  `json:"currentStepStartedAt"`
	CurrentStepSoundPlayed bool       `json:"currentStepSoundPlayed"`
	// CurrentStepFinalized is set while a gate holds a step whose run is
	// already in CompletedRuns.
	CurrentStepFinalized   bool       `json:"currentStepFinalized,omitempty"`
	PausedAt               *time.Time `json:"pausedAt,omitempty"`
	MutedDuringSession     bool       `json:"mutedDuringSession"`
	CompletedRuns          []StepRun  `json:"completedRuns,omitempty"`
}
