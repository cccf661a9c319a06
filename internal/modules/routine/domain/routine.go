package domain

import (
	"fmt"
	"time"

	apperrors "mccall/internal/platform/errors"
)

type RepeatKind string

const (
	RepeatInfinite RepeatKind = "infinite"
	RepeatCount    RepeatKind = "count"
	RepeatDuration RepeatKind = "duration"
)

// RepeatMode decides what happens when the last step of a cycle completes.
// Count is read for RepeatCount, TotalSeconds for RepeatDuration.
type RepeatMode struct {
	Kind         RepeatKind `yaml:"type" json:"type"`
	Count        int        `yaml:"value,omitempty" json:"value,omitempty"`
	TotalSeconds int        `yaml:"total_seconds,omitempty" json:"totalSeconds,omitempty"`
}

func Infinite() RepeatMode { return RepeatMode{Kind: RepeatInfinite} }

func Count(n int) RepeatMode { return RepeatMode{Kind: RepeatCount, Count: n} }

func ForDuration(totalSeconds int) RepeatMode {
	return RepeatMode{Kind: RepeatDuration, TotalSeconds: totalSeconds}
}

func (m RepeatMode) Limit() time.Duration {
	return time.Duration(m.TotalSeconds) * time.Second
}

func (m RepeatMode) String() string {
	switch m.Kind {
	case RepeatCount:
		return fmt.Sprintf("count(%d)", m.Count)
	case RepeatDuration:
		return fmt.Sprintf("duration(%s)", m.Limit())
	default:
		return string(RepeatInfinite)
	}
}

type CheckInMode string

const (
	CheckInOff    CheckInMode = "off"
	CheckInPrompt CheckInMode = "prompt"
	CheckInGate   CheckInMode = "gate"
)

type CheckInChoice string

const (
	ChoiceDone CheckInChoice = "done"
	ChoiceSkip CheckInChoice = "skip"
)

func ParseChoice(raw string) (CheckInChoice, error) {
	switch CheckInChoice(raw) {
	case ChoiceDone, ChoiceSkip:
		return CheckInChoice(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown check-in choice %q", apperrors.ErrInvalidInput, raw)
	}
}

type CheckInConfig struct {
	Mode                 CheckInMode `yaml:"mode" json:"mode"`
	PromptTitle          string      `yaml:"prompt_title,omitempty" json:"promptTitle,omitempty"`
	PromptBody           string      `yaml:"prompt_body,omitempty" json:"promptBody,omitempty"`
	PromptTimeoutSeconds int         `yaml:"prompt_timeout_seconds,omitempty" json:"promptTimeoutSeconds,omitempty"`
}

// PromptTimeout reports the expiry window of a prompt; zero means it never expires.
func (c CheckInConfig) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutSeconds) * time.Second
}

func (c CheckInConfig) EffectiveMode() CheckInMode {
	if c.Mode == "" {
		return CheckInOff
	}
	return c.Mode
}

type SoundSetting string

const (
	SoundOn  SoundSetting = "on"
	SoundOff SoundSetting = "off"
)

type SoundOverride string

const (
	OverrideInherit SoundOverride = "inherit"
	OverrideOn      SoundOverride = "on"
	OverrideOff     SoundOverride = "off"
)

type SoundScheme string

const (
	SchemeDefault      SoundScheme = "default"
	SchemeEndDifferent SoundScheme = "endDifferent"
)

type Step struct {
	ID              string        `yaml:"id" json:"id"`
	Label           string        `yaml:"label" json:"label"`
	DurationSeconds int           `yaml:"duration_seconds" json:"durationSeconds"`
	Instruction     string        `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	SoundOverride   SoundOverride `yaml:"sound_override,omitempty" json:"soundOverride,omitempty"`
	CountAsBreak    bool          `yaml:"count_as_break,omitempty" json:"countAsBreak,omitempty"`
	CheckIn         CheckInConfig `yaml:"check_in" json:"checkIn"`
}

func (s Step) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

type Routine struct {
	ID           string       `yaml:"id" json:"id"`
	Name         string       `yaml:"name" json:"name"`
	Steps        []Step       `yaml:"steps" json:"steps"`
	Repeat       RepeatMode   `yaml:"repeat" json:"repeatMode"`
	SoundDefault SoundSetting `yaml:"sound_default,omitempty" json:"soundDefault,omitempty"`
	SoundScheme  SoundScheme  `yaml:"sound_scheme,omitempty" json:"soundScheme,omitempty"`
}

// Validate rejects routines the timer cannot run. The returned error unwraps to
// apperrors.ErrInvalidRoutine.
func (r Routine) Validate() error {
	if len(r.Steps) == 0 {
		return apperrors.InvalidRoutine("routine must have at least one step")
	}
	for _, step := range r.Steps {
		if step.DurationSeconds < 1 {
			return apperrors.InvalidRoutine("step duration must be at least 1 second")
		}
		switch step.CheckIn.EffectiveMode() {
		case CheckInOff, CheckInPrompt, CheckInGate:
		default:
			return apperrors.InvalidRoutine(fmt.Sprintf("unknown check-in mode %q", step.CheckIn.Mode))
		}
		if step.CheckIn.PromptTimeoutSeconds < 0 {
			return apperrors.InvalidRoutine("prompt timeout must not be negative")
		}
	}
	switch r.Repeat.Kind {
	case RepeatInfinite, "":
	case RepeatCount:
		if r.Repeat.Count < 1 {
			return apperrors.InvalidRoutine("repeat count must be at least 1")
		}
	case RepeatDuration:
		if r.Repeat.TotalSeconds < 1 {
			return apperrors.InvalidRoutine("repeat duration must be at least 1 second")
		}
	default:
		return apperrors.InvalidRoutine(fmt.Sprintf("unknown repeat mode %q", r.Repeat.Kind))
	}
	return nil
}

// CycleDuration is the planned length of one pass over every step.
func (r Routine) CycleDuration() time.Duration {
	var total time.Duration
	for _, step := range r.Steps {
		total += step.Duration()
	}
	return total
}

func (r Routine) StepByID(stepID string) (Step, bool) {
	for _, step := range r.Steps {
		if step.ID == stepID {
			return step, true
		}
	}
	return Step{}, false
}

func (r Routine) LastStepID() string {
	if len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[len(r.Steps)-1].ID
}

// Normalize fills optional enum fields with their defaults.
func (r Routine) Normalize() Routine {
	if r.Repeat.Kind == "" {
		r.Repeat.Kind = RepeatInfinite
	}
	if r.SoundDefault == "" {
		r.SoundDefault = SoundOn
	}
	if r.SoundScheme == "" {
		r.SoundScheme = SchemeDefault
	}
	steps := make([]Step, len(r.Steps))
	for i, step := range r.Steps {
		if step.SoundOverride == "" {
			step.SoundOverride = OverrideInherit
		}
		step.CheckIn.Mode = step.CheckIn.EffectiveMode()
		steps[i] = step
	}
	r.Steps = steps
	return r
}

// DefaultRoutine is seeded into an empty routine file.
func DefaultRoutine() Routine {
	return Routine{
		ID:   "focus",
		Name: "Focus",
		Steps: []Step{
			{
				ID:              "focus-work",
				Label:           "Work",
				DurationSeconds: 25 * 60,
				Instruction:     "Single task. Close everything else.",
				SoundOverride:   OverrideInherit,
				CheckIn: CheckInConfig{
					Mode:                 CheckInPrompt,
					PromptTitle:          "Check in",
					PromptBody:           "Did you stay on task?",
					PromptTimeoutSeconds: 60,
				},
			},
			{
				ID:              "focus-break",
				Label:           "Break",
				DurationSeconds: 5 * 60,
				Instruction:     "Stand up and stretch.",
				SoundOverride:   OverrideInherit,
				CountAsBreak:    true,
				CheckIn:         CheckInConfig{Mode: CheckInOff},
			},
		},
		Repeat:       Count(4),
		SoundDefault: SoundOn,
		SoundScheme:  SchemeEndDifferent,
	}
}
