package domain

import (
	"time"

	routine "mccall/internal/modules/routine/domain"
)

type Event string

const (
	EventStepTransition   Event = "stepTransition"
	EventRoutineCompleted Event = "routineCompleted"
)

type Reason string

const (
	ReasonPlayed           Reason = "played"
	ReasonMuted            Reason = "muted"
	ReasonSettingDisabled  Reason = "settingDisabled"
	ReasonPlaybackDisabled Reason = "playbackDisabled"
	ReasonPlaybackFailed   Reason = "playbackFailed"
)

// Cue names the sound a player should emit.
type Cue string

const (
	CueStep Cue = "step"
	CueEnd  Cue = "end"
)

// EffectiveSetting resolves a step override against the routine default.
func EffectiveSetting(routineDefault routine.SoundSetting, override routine.SoundOverride) routine.SoundSetting {
	switch override {
	case routine.OverrideOn:
		return routine.SoundOn
	case routine.OverrideOff:
		return routine.SoundOff
	default:
		if routineDefault == "" {
			return routine.SoundOn
		}
		return routineDefault
	}
}

// CueFor picks the cue for event. Only the endDifferent scheme gives routine
// completion its own sound.
func CueFor(scheme routine.SoundScheme, event Event) Cue {
	if scheme == routine.SchemeEndDifferent && event == EventRoutineCompleted {
		return CueEnd
	}
	return CueStep
}

type Record struct {
	RoutineID string
	StepID    string
	Event     Event
	Cue       Cue
	Played    bool
	Reason    Reason
	At        time.Time
}
