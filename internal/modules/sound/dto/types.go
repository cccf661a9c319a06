package dto

import (
	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/sound/domain"
)

type PlayInput struct {
	RoutineID string
	StepID    string
	Default   routine.SoundSetting
	Override  routine.SoundOverride
	Scheme    routine.SoundScheme
	Event     domain.Event
}

type PlayOutput struct {
	Played bool
	Reason domain.Reason
	Cue    domain.Cue
	// NotifyFailure is set on the first failure after a successful playback.
	NotifyFailure bool
}

// ProbeInput requests a cue with sound forced on, for checking the player.
func ProbeInput(completed bool) PlayInput {
	event := domain.EventStepTransition
	if completed {
		event = domain.EventRoutineCompleted
	}
	return PlayInput{
		Default:  routine.SoundOn,
		Override: routine.OverrideOn,
		Scheme:   routine.SchemeEndDifferent,
		Event:    event,
	}
}
