package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/session/domain"
	sessionout "mccall/internal/modules/session/port/out"
	"mccall/internal/platform/clock"
	apperrors "mccall/internal/platform/errors"
)

// RecoveryService owns the single active-session snapshot. Updates made while
// no snapshot exists are no-ops.
type RecoveryService struct {
	mu       sync.Mutex
	clock    clock.Clock
	store    sessionout.ActiveSessionStore
	routines sessionout.RoutineCatalog
	sessions *SessionService
	logger   *slog.Logger
}

func NewRecoveryService(clock clock.Clock, store sessionout.ActiveSessionStore, routines sessionout.RoutineCatalog, sessions *SessionService, logger *slog.Logger) *RecoveryService {
	return &RecoveryService{clock: clock, store: store, routines: routines, sessions: sessions, logger: logger}
}

func (s *RecoveryService) Start(ctx context.Context, sessionID, routineID string, startedAt time.Time, first routine.Step, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.SaveActive(ctx, domain.ActiveSnapshot{
		SessionID:            sessionID,
		RoutineID:            routineID,
		StartedAt:            startedAt,
		CurrentStepID:        first.ID,
		CurrentStepStartedAt: startedAt,
		MutedDuringSession:   muted,
	})
}

// UpdateActiveStep records the step just entered together with the runs
// finalized so far, and clears any pause.
func (s *RecoveryService) UpdateActiveStep(ctx context.Context, step routine.Step, soundPlayed bool, runs []domain.StepRun) error {
	now := s.clock.Now()
	return s.mutate(ctx, func(snapshot *domain.ActiveSnapshot) bool {
		snapshot.CurrentStepID = step.ID
		snapshot.CurrentStepStartedAt = now
		snapshot.CurrentStepSoundPlayed = soundPlayed
		snapshot.CurrentStepFinalized = false
		snapshot.PausedAt = nil
		snapshot.CompletedRuns = runs
		return true
	})
}

// SyncRuns refreshes the finalized runs without moving the current step.
// currentFinalized marks the current step as already recorded.
func (s *RecoveryService) SyncRuns(ctx context.Context, runs []domain.StepRun, currentFinalized bool) error {
	return s.mutate(ctx, func(snapshot *domain.ActiveSnapshot) bool {
		snapshot.CompletedRuns = runs
		snapshot.CurrentStepFinalized = snapshot.CurrentStepFinalized || currentFinalized
		return true
	})
}

func (s *RecoveryService) MarkPaused(ctx context.Context) error {
	now := s.clock.Now()
	return s.mutate(ctx, func(snapshot *domain.ActiveSnapshot) bool {
		if snapshot.PausedAt != nil {
			return false
		}
		snapshot.PausedAt = &now
		return true
	})
}

func (s *RecoveryService) MarkResumed(ctx context.Context) error {
	return s.mutate(ctx, func(snapshot *domain.ActiveSnapshot) bool {
		if snapshot.PausedAt == nil {
			return false
		}
		snapshot.PausedAt = nil
		return true
	})
}

func (s *RecoveryService) MarkMuted(ctx context.Context) error {
	return s.mutate(ctx, func(snapshot *domain.ActiveSnapshot) bool {
		if snapshot.MutedDuringSession {
			return false
		}
		snapshot.MutedDuringSession = true
		return true
	})
}

func (s *RecoveryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.ClearActive(ctx)
}

// RecoverOnStartup turns a leftover snapshot into an archived session whose
// last run is aborted, then deletes the snapshot. A step already finalized
// while waiting on a gate is not recorded twice. ok is false when there was
// nothing to recover.
func (s *RecoveryService) RecoverOnStartup(ctx context.Context) (session domain.Session, path string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.store.LoadActive(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoActiveSession) {
			return domain.Session{}, "", false, nil
		}
		return domain.Session{}, "", false, err
	}

	end := s.clock.Now()
	if snapshot.PausedAt != nil {
		end = *snapshot.PausedAt
	}
	total := domain.Seconds(end.Sub(snapshot.StartedAt))
	stepSeconds := min(domain.Seconds(end.Sub(snapshot.CurrentStepStartedAt)), total)

	r := s.lookupRoutine(ctx, snapshot.RoutineID)
	runs := append([]domain.StepRun(nil), snapshot.CompletedRuns...)
	if !snapshot.CurrentStepFinalized {
		aborted := domain.StepRun{
			StepID:        snapshot.CurrentStepID,
			ActualSeconds: stepSeconds,
			StartedAt:     snapshot.CurrentStepStartedAt,
			EndedAt:       end,
			Result:        domain.ResultAborted,
			SoundPlayed:   snapshot.CurrentStepSoundPlayed,
		}
		if step, found := r.StepByID(snapshot.CurrentStepID); found {
			aborted.PlannedSeconds = step.DurationSeconds
		}
		runs = append(runs, aborted)
	}

	totals := domain.ComputeTotals(r, runs)
	totals.TotalSeconds = total
	if total > totals.WorkSeconds+totals.BreakSeconds {
		totals.WorkSeconds = total - totals.BreakSeconds
	}

	session = domain.Session{
		ID:                 snapshot.SessionID,
		RoutineID:          snapshot.RoutineID,
		RoutineName:        r.Name,
		StartedAt:          snapshot.StartedAt,
		EndedAt:            end,
		StepRuns:           runs,
		Totals:             totals,
		MutedDuringSession: snapshot.MutedDuringSession,
		Recovered:          true,
	}
	path, err = s.sessions.Archive(ctx, session)
	if err != nil && path == "" {
		return domain.Session{}, "", false, err
	}
	if err != nil {
		// The note is written; reindex repairs the index later.
		s.logger.Warn("index recovered session", slog.String("session_id", session.ID), slog.Any("err", err))
	}
	if err := s.store.ClearActive(ctx); err != nil {
		return session, path, true, err
	}
	return session, path, true, nil
}

// lookupRoutine is best-effort: a missing routine leaves planned durations at
// zero and counts all time as work.
func (s *RecoveryService) lookupRoutine(ctx context.Context, routineID string) routine.Routine {
	fallback := routine.Routine{ID: routineID}
	if s.routines == nil {
		return fallback
	}
	routines, err := s.routines.Load(ctx)
	if err != nil {
		s.logger.Warn("load routines for recovery", slog.String("routine_id", routineID), slog.Any("err", err))
		return fallback
	}
	for _, r := range routines {
		if r.ID == routineID {
			return r
		}
	}
	return fallback
}

func (s *RecoveryService) mutate(ctx context.Context, fn func(*domain.ActiveSnapshot) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.store.LoadActive(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	if !fn(&snapshot) {
		return nil
	}
	return s.store.SaveActive(ctx, snapshot)
}
