package service

import (
	"context"
	"log/slog"
	"sync"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/sound/domain"
	"mccall/internal/modules/sound/dto"
	soundout "mccall/internal/modules/sound/port/out"
	"mccall/internal/platform/clock"
)

// AudioManager decides whether a cue plays and remembers the global mute.
// A nil player means playback is disabled.
type AudioManager struct {
	mu              sync.Mutex
	player          soundout.Player
	clock           clock.Clock
	logger          *slog.Logger
	muted           bool
	failureNotified bool
}

func NewAudioManager(player soundout.Player, clock clock.Clock, logger *slog.Logger) *AudioManager {
	return &AudioManager{player: player, clock: clock, logger: logger}
}

func (m *AudioManager) IsMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *AudioManager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *AudioManager) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = !m.muted
	return m.muted
}

// Play runs the player outside the lock so a slow player never blocks mute
// toggles.
func (m *AudioManager) Play(ctx context.Context, input dto.PlayInput) dto.PlayOutput {
	record := domain.Record{
		RoutineID: input.RoutineID,
		StepID:    input.StepID,
		Event:     input.Event,
		Cue:       domain.CueFor(input.Scheme, input.Event),
		At:        m.clock.Now(),
	}

	m.mu.Lock()
	muted := m.muted
	m.mu.Unlock()

	switch {
	case muted:
		record.Reason = domain.ReasonMuted
	case domain.EffectiveSetting(input.Default, input.Override) == routine.SoundOff:
		record.Reason = domain.ReasonSettingDisabled
	case m.player == nil:
		record.Reason = domain.ReasonPlaybackDisabled
	default:
		if err := m.player.Play(ctx, record.Cue); err != nil {
			record.Reason = domain.ReasonPlaybackFailed
			m.logger.Warn("sound playback failed",
				slog.String("cue", string(record.Cue)),
				slog.String("step_id", record.StepID),
				slog.Any("err", err),
			)
		} else {
			record.Played = true
			record.Reason = domain.ReasonPlayed
		}
	}

	m.logger.Debug("sound event",
		slog.String("event", string(record.Event)),
		slog.String("routine_id", record.RoutineID),
		slog.String("step_id", record.StepID),
		slog.String("reason", string(record.Reason)),
	)
	return dto.PlayOutput{
		Played:        record.Played,
		Reason:        record.Reason,
		Cue:           record.Cue,
		NotifyFailure: m.shouldNotifyFailure(record.Reason),
	}
}

// shouldNotifyFailure reports the first failure once; a successful playback
// re-arms it.
func (m *AudioManager) shouldNotifyFailure(reason domain.Reason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch reason {
	case domain.ReasonPlayed:
		m.failureNotified = false
		return false
	case domain.ReasonPlaybackFailed:
		if m.failureNotified {
			return false
		}
		m.failureNotified = true
		return true
	default:
		return false
	}
}
