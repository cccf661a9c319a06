package service

import (
	"sync"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/timer/domain"
	"mccall/internal/modules/timer/dto"
	"mccall/internal/platform/clock"
)

// TimerService owns the single engine instance. Every operation runs under one
// lock and returns a Transition so callers can do I/O after it is released.
type TimerService struct {
	mu     sync.Mutex
	engine *domain.Engine
}

func NewTimerService(c clock.Clock) *TimerService {
	return &TimerService{engine: domain.NewEngine(c)}
}

func (s *TimerService) Start(r routine.Routine) (dto.Transition, error) {
	return s.apply(func(e *domain.Engine) (domain.AdvanceResult, error) {
		if err := e.Start(r); err != nil {
			return domain.AdvanceResult{}, err
		}
		return domain.AdvanceResult{Kind: domain.StepAdvanced, StepIndex: 0}, nil
	})
}

func (s *TimerService) Pause() (dto.Transition, error) {
	return s.apply(func(e *domain.Engine) (domain.AdvanceResult, error) {
		return domain.AdvanceResult{Kind: domain.NoChange}, e.Pause()
	})
}

func (s *TimerService) Resume() (dto.Transition, error) {
	return s.apply(func(e *domain.Engine) (domain.AdvanceResult, error) {
		return domain.AdvanceResult{Kind: domain.NoChange}, e.Resume()
	})
}

func (s *TimerService) Stop() (dto.Transition, error) {
	return s.apply(func(e *domain.Engine) (domain.AdvanceResult, error) {
		return domain.AdvanceResult{Kind: domain.NoChange}, e.Stop()
	})
}

func (s *TimerService) Skip() (dto.Transition, error) {
	return s.applyAnswering(func(e *domain.Engine) (domain.AdvanceResult, error) {
		return e.SkipCurrentStep()
	}, dto.Transition.GateWasPending)
}

func (s *TimerService) Respond(choice routine.CheckInChoice) (dto.Transition, error) {
	return s.applyAnswering(func(e *domain.Engine) (domain.AdvanceResult, error) {
		return e.RespondToCheckIn(choice)
	}, func(dto.Transition) bool { return true })
}

func (s *TimerService) Tick() (dto.Transition, error) {
	return s.apply(func(e *domain.Engine) (domain.AdvanceResult, error) {
		return e.AdvanceIfNeeded()
	})
}

func (s *TimerService) State() dto.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.engine.Routine()
	if !ok {
		return dto.State{}
	}
	state := dto.State{
		Running:     true,
		Paused:      s.engine.IsPaused(),
		RoutineID:   r.ID,
		RoutineName: r.Name,
		StepCount:   len(r.Steps),
		Cycles:      s.engine.CyclesCompleted(),
	}
	if snap := snapshot(s.engine); snap != nil {
		state.StepIndex = snap.Index
		state.Step = snap.Step
		state.Remaining = snap.Remaining
	}
	if pending, ok := s.engine.PendingCheckIn(); ok && pending.Mode == routine.CheckInGate {
		if step, ok := s.engine.StepAt(pending.StepIndex); ok {
			state.AwaitingCheckIn = &dto.CheckInRequest{Step: step, Index: pending.StepIndex, Config: step.CheckIn, Blocking: true}
		}
	}
	return state
}

func (s *TimerService) apply(op func(*domain.Engine) (domain.AdvanceResult, error)) (dto.Transition, error) {
	return s.applyAnswering(op, nil)
}

// applyAnswering runs op under the lock. answered tells whether op responded
// to a check-in, in which case the outcome is attached to the transition.
func (s *TimerService) applyAnswering(op func(*domain.Engine) (domain.AdvanceResult, error), answered func(dto.Transition) bool) (dto.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := snapshot(s.engine)
	var pendingBefore *domain.PendingCheckIn
	if pending, ok := s.engine.PendingCheckIn(); ok {
		pendingBefore = &pending
	}
	routineBefore, _ := s.engine.Routine()

	result, err := op(s.engine)
	if err != nil {
		return dto.Transition{}, err
	}

	t := dto.Transition{
		Result:        result,
		Routine:       routineBefore,
		Before:        before,
		After:         snapshot(s.engine),
		PendingBefore: pendingBefore,
		Paused:        s.engine.IsPaused(),
	}
	if current, ok := s.engine.Routine(); ok {
		t.Routine = current
	}
	stepAt := func(index int) (routine.Step, bool) {
		if index < 0 || index >= len(t.Routine.Steps) {
			return routine.Step{}, false
		}
		return t.Routine.Steps[index], true
	}
	if _, ok := s.engine.TakeStepChanged(); ok {
		t.StepChanged = true
	}
	if event, ok := s.engine.TakeCheckInEvent(); ok {
		if step, ok := stepAt(event.StepIndex); ok {
			t.CheckIn = &dto.CheckInRequest{Step: step, Index: event.StepIndex, Config: event.Config, Blocking: event.Blocking}
		}
	}
	if index, ok := s.engine.TakeCheckInTimeout(); ok {
		if step, ok := stepAt(index); ok {
			t.TimedOut = &step
		}
	}
	if answered != nil && answered(t) {
		if outcome, ok := s.engine.LastCheckIn(); ok && !outcome.TimedOut {
			t.Response = &outcome
		}
	}
	return t, nil
}

func snapshot(e *domain.Engine) *dto.StepSnapshot {
	index, ok := e.CurrentStepIndex()
	if !ok {
		return nil
	}
	step, ok := e.StepAt(index)
	if !ok {
		return nil
	}
	remaining, err := e.RemainingTime()
	if err != nil {
		return nil
	}
	return &dto.StepSnapshot{Index: index, Step: step, Remaining: remaining}
}
