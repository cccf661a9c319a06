package dto

import "time"

type EventKind string

const (
	EventStepStarted      EventKind = "stepStarted"
	EventCheckInRequested EventKind = "checkInRequested"
	EventCheckInTimedOut  EventKind = "checkInTimedOut"
	EventSoundFailed      EventKind = "soundFailed"
	EventSessionSaved     EventKind = "sessionSaved"
	EventPersistFailed    EventKind = "persistFailed"
)

// Event is something a driver should surface to the user.
type Event struct {
	Kind      EventKind
	StepLabel string
	CheckIn   *CheckInPrompt
	Path      string
	Detail    string
}

type CheckInPrompt struct {
	StepID    string
	StepLabel string
	Mode      string
	Title     string
	Body      string
	Blocking  bool
	Timeout   time.Duration
}

type RunState struct {
	Running         bool
	Paused          bool
	Muted           bool
	SessionID       string
	RoutineID       string
	RoutineName     string
	StepIndex       int
	StepCount       int
	StepLabel       string
	Instruction     string
	CountAsBreak    bool
	Planned         time.Duration
	Remaining       time.Duration
	Cycles          int
	AwaitingCheckIn *CheckInPrompt
}

// Progress is the finished fraction of the current step in [0, 1].
func (s RunState) Progress() float64 {
	if s.Planned <= 0 {
		return 0
	}
	done := float64(s.Planned-s.Remaining) / float64(s.Planned)
	switch {
	case done < 0:
		return 0
	case done > 1:
		return 1
	default:
		return done
	}
}

type Update struct {
	State  RunState
	Events []Event
}

type StatsOutput struct {
	From         time.Time
	To           time.Time
	Sessions     int
	Cycles       int
	TotalSeconds int
	WorkSeconds  int
	BreakSeconds int
	CheckInDone  int
	CheckInSkip  int
	MuteRate     float64
}

type RecoverOutput struct {
	Recovered    bool
	SessionID    string
	RoutineName  string
	Path         string
	TotalSeconds int
}
