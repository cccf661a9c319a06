package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	routinedomain "mccall/internal/modules/routine/domain"
	routinein "mccall/internal/modules/routine/port/in"
	"mccall/internal/modules/session/domain"
	"mccall/internal/modules/session/dto"
	sessionin "mccall/internal/modules/session/port/in"
	"mccall/internal/modules/session/service"
	sounddomain "mccall/internal/modules/sound/domain"
	sounddto "mccall/internal/modules/sound/dto"
	soundin "mccall/internal/modules/sound/port/in"
	timerdto "mccall/internal/modules/timer/dto"
	timerin "mccall/internal/modules/timer/port/in"
	"mccall/internal/platform/clock"
	apperrors "mccall/internal/platform/errors"
)

// Runtime forwards every timer transition to the tracker, the recovery
// snapshot and the sound player. Timer calls return before any of that I/O
// starts. Drivers issue one operation at a time.
type Runtime struct {
	timer    timerin.Usecase
	routines routinein.Usecase
	sound    soundin.Usecase
	tracker  *service.Tracker
	recovery *service.RecoveryService
	sessions *service.SessionService
	clock    clock.Clock
	logger   *slog.Logger
}

type Deps struct {
	Timer    timerin.Usecase
	Routines routinein.Usecase
	Sound    soundin.Usecase
	Tracker  *service.Tracker
	Recovery *service.RecoveryService
	Sessions *service.SessionService
	Clock    clock.Clock
	Logger   *slog.Logger
}

func NewRuntime(deps Deps) sessionin.Usecase {
	return &Runtime{
		timer:    deps.Timer,
		routines: deps.Routines,
		sound:    deps.Sound,
		tracker:  deps.Tracker,
		recovery: deps.Recovery,
		sessions: deps.Sessions,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

type operation int

const (
	opTick operation = iota
	opSkip
	opRespond
)

func (r *Runtime) Start(ctx context.Context, routineID string) (dto.Update, error) {
	def, err := r.routines.Resolve(ctx, routineID)
	if err != nil {
		return dto.Update{}, err
	}
	t, err := r.timer.Start(ctx, def)
	if err != nil {
		return dto.Update{}, err
	}
	if t.After == nil {
		return dto.Update{}, fmt.Errorf("start %s: timer has no current step", routineID)
	}
	first := t.After.Step
	muted := r.sound.IsMuted()
	sessionID, startedAt := r.tracker.StartSession(t.Routine, first, muted)

	update := dto.Update{}
	if err := r.recovery.Start(ctx, sessionID, t.Routine.ID, startedAt, first, muted); err != nil {
		r.persistFailed(&update, "save recovery snapshot", err)
	}
	r.logger.Info("routine started",
		slog.String("session_id", sessionID),
		slog.String("routine_id", t.Routine.ID),
		slog.String("step_id", first.ID),
	)
	update.Events = append(update.Events, dto.Event{Kind: dto.EventStepStarted, StepLabel: first.Label})
	update.State = r.State(ctx)
	return update, nil
}

func (r *Runtime) Pause(ctx context.Context) (dto.Update, error) {
	if _, err := r.timer.Pause(ctx); err != nil {
		return dto.Update{}, err
	}
	update := dto.Update{}
	if err := r.recovery.MarkPaused(ctx); err != nil {
		r.persistFailed(&update, "mark snapshot paused", err)
	}
	update.State = r.State(ctx)
	return update, nil
}

func (r *Runtime) Resume(ctx context.Context) (dto.Update, error) {
	if _, err := r.timer.Resume(ctx); err != nil {
		return dto.Update{}, err
	}
	update := dto.Update{}
	if err := r.recovery.MarkResumed(ctx); err != nil {
		r.persistFailed(&update, "mark snapshot resumed", err)
	}
	update.State = r.State(ctx)
	return update, nil
}

// Stop aborts the current step and archives what ran so far.
func (r *Runtime) Stop(ctx context.Context) (dto.Update, error) {
	t, err := r.timer.Stop(ctx)
	if err != nil {
		return dto.Update{}, err
	}
	now := r.clock.Now()
	update := dto.Update{}
	if t.Before != nil {
		r.tracker.FinalizeCurrentStep(t.Before.Step.ID, domain.ResultAborted, domain.Seconds(t.Before.Elapsed()), now)
	}
	r.finish(ctx, now, &update)
	update.State = r.State(ctx)
	return update, nil
}

func (r *Runtime) Skip(ctx context.Context) (dto.Update, error) {
	t, err := r.timer.Skip(ctx)
	if err != nil {
		return dto.Update{}, err
	}
	return r.handle(ctx, t, opSkip), nil
}

func (r *Runtime) Respond(ctx context.Context, choice string) (dto.Update, error) {
	parsed, err := routinedomain.ParseChoice(choice)
	if err != nil {
		return dto.Update{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	t, err := r.timer.Respond(ctx, parsed)
	if err != nil {
		return dto.Update{}, err
	}
	return r.handle(ctx, t, opRespond), nil
}

func (r *Runtime) Tick(ctx context.Context) (dto.Update, error) {
	t, err := r.timer.Tick(ctx)
	if err != nil {
		return dto.Update{}, err
	}
	return r.handle(ctx, t, opTick), nil
}

// ToggleMute flips the global mute. Muting while a run is active marks the
// session and its snapshot as muted.
func (r *Runtime) ToggleMute(ctx context.Context) dto.Update {
	muted := r.sound.ToggleMute()
	update := dto.Update{}
	if muted {
		if _, active := r.tracker.ActiveSessionID(); active {
			r.tracker.MarkMuted()
			if err := r.recovery.MarkMuted(ctx); err != nil {
				r.persistFailed(&update, "mark snapshot muted", err)
			}
		}
	}
	update.State = r.State(ctx)
	return update
}

func (r *Runtime) State(ctx context.Context) dto.RunState {
	state := r.timer.State(ctx)
	out := dto.RunState{
		Running:      state.Running,
		Paused:       state.Paused,
		Muted:        r.sound.IsMuted(),
		RoutineID:    state.RoutineID,
		RoutineName:  state.RoutineName,
		StepIndex:    state.StepIndex,
		StepCount:    state.StepCount,
		StepLabel:    state.Step.Label,
		Instruction:  state.Step.Instruction,
		CountAsBreak: state.Step.CountAsBreak,
		Planned:      state.Step.Duration(),
		Remaining:    state.Remaining,
		Cycles:       state.Cycles,
	}
	if id, ok := r.tracker.ActiveSessionID(); ok {
		out.SessionID = id
	}
	if state.AwaitingCheckIn != nil {
		out.AwaitingCheckIn = checkInPrompt(*state.AwaitingCheckIn)
	}
	return out
}

func (r *Runtime) Run(ctx context.Context, interval time.Duration, onUpdate func(dto.Update)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", apperrors.ErrInvalidInput)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			update, err := r.Tick(ctx)
			if errors.Is(err, apperrors.ErrNotRunning) {
				return nil
			}
			if err != nil {
				return err
			}
			if onUpdate != nil {
				onUpdate(update)
			}
			if !update.State.Running {
				return nil
			}
		}
	}
}

func (r *Runtime) Recover(ctx context.Context) (dto.RecoverOutput, error) {
	session, path, ok, err := r.recovery.RecoverOnStartup(ctx)
	if err != nil {
		return dto.RecoverOutput{}, err
	}
	if !ok {
		return dto.RecoverOutput{}, nil
	}
	r.logger.Warn("recovered interrupted session",
		slog.String("session_id", session.ID),
		slog.String("routine_id", session.RoutineID),
		slog.String("path", path),
	)
	return dto.RecoverOutput{
		Recovered:    true,
		SessionID:    session.ID,
		RoutineName:  session.RoutineName,
		Path:         path,
		TotalSeconds: session.Totals.TotalSeconds,
	}, nil
}

func (r *Runtime) Stats(ctx context.Context, from, to time.Time) (dto.StatsOutput, error) {
	stats, err := r.sessions.Stats(ctx, from, to)
	if err != nil {
		return dto.StatsOutput{}, err
	}
	return dto.StatsOutput{
		From:         from,
		To:           to,
		Sessions:     stats.Sessions,
		Cycles:       stats.Cycles,
		TotalSeconds: stats.TotalSeconds,
		WorkSeconds:  stats.WorkSeconds,
		BreakSeconds: stats.BreakSeconds,
		CheckInDone:  stats.CheckInDone,
		CheckInSkip:  stats.CheckInSkip,
		MuteRate:     stats.MuteRate,
	}, nil
}

func (r *Runtime) Reindex(ctx context.Context) (int, error) {
	return r.sessions.Reindex(ctx)
}

// handle applies a tick, skip or respond transition. Sounds play first so
// the run that starts records whether its cue was heard.
func (r *Runtime) handle(ctx context.Context, t timerdto.Transition, op operation) dto.Update {
	update := dto.Update{}
	soundPlayed := false
	switch {
	case t.Completed():
		r.play(ctx, t.Routine, nil, sounddomain.EventRoutineCompleted, &update)
	case t.StepChanged && t.After != nil:
		soundPlayed = r.play(ctx, t.Routine, &t.After.Step, sounddomain.EventStepTransition, &update)
	}

	now := r.clock.Now()
	gateOpened := t.CheckIn != nil && t.CheckIn.Blocking
	changed := false
	// The expired prompt belongs to a run finalized earlier; record it before
	// a new run of the same step becomes the latest.
	if t.TimedOut != nil {
		r.tracker.RecordCheckInTimeout(t.TimedOut.ID)
		update.Events = append(update.Events, dto.Event{Kind: dto.EventCheckInTimedOut, StepLabel: t.TimedOut.Label})
		changed = true
	}
	if t.Before != nil {
		switch {
		case op == opSkip && !t.GateWasPending():
			r.tracker.FinalizeCurrentStep(t.Before.Step.ID, domain.ResultSkipped, domain.Seconds(t.Before.Elapsed()), now)
			changed = true
		case op == opTick && t.Completed() && t.Before.Remaining > 0 && !t.GateWasPending():
			// Cut short by the duration limit.
			r.tracker.FinalizeCurrentStep(t.Before.Step.ID, domain.ResultAborted, domain.Seconds(t.Before.Elapsed()), now)
			changed = true
		case op == opTick && (t.StepChanged || t.Completed() || gateOpened):
			r.tracker.FinalizeCurrentStep(t.Before.Step.ID, domain.ResultCompleted, domain.Seconds(t.Before.Elapsed()), now)
			changed = true
		case t.GateWasPending():
			// Normally finalized when the gate opened; a no-op then.
			r.tracker.FinalizeCurrentStep(t.Before.Step.ID, domain.ResultCompleted, domain.Seconds(t.Before.Elapsed()), now)
		}
	}
	if t.Response != nil && t.PendingBefore != nil {
		if step, ok := stepAt(t.Routine, t.PendingBefore.StepIndex); ok {
			r.tracker.RecordCheckInResponse(step.ID, t.Response.Choice, now, t.Response.Latency)
			changed = true
		}
	}
	if t.CheckIn != nil {
		update.Events = append(update.Events, dto.Event{
			Kind:      dto.EventCheckInRequested,
			StepLabel: t.CheckIn.Step.Label,
			CheckIn:   checkInPrompt(*t.CheckIn),
		})
	}

	switch {
	case t.Completed():
		r.finish(ctx, now, &update)
	case t.StepChanged && t.After != nil:
		r.tracker.StartStep(t.After.Step, soundPlayed)
		if err := r.recovery.UpdateActiveStep(ctx, t.After.Step, soundPlayed, r.tracker.Runs()); err != nil {
			r.persistFailed(&update, "update recovery snapshot", err)
		}
		if t.Paused {
			if err := r.recovery.MarkPaused(ctx); err != nil {
				r.persistFailed(&update, "mark snapshot paused", err)
			}
		}
		update.Events = append(update.Events, dto.Event{Kind: dto.EventStepStarted, StepLabel: t.After.Step.Label})
	case changed:
		if err := r.recovery.SyncRuns(ctx, r.tracker.Runs(), gateOpened); err != nil {
			r.persistFailed(&update, "sync recovery snapshot", err)
		}
	}
	update.State = r.State(ctx)
	return update
}

// finish archives the tracked session and drops the snapshot. Archive
// failures keep the snapshot so the next start can recover it.
func (r *Runtime) finish(ctx context.Context, now time.Time, update *dto.Update) {
	session, ok := r.tracker.FinishSession(now)
	if !ok {
		return
	}
	path, err := r.sessions.Archive(ctx, session)
	if err != nil && path == "" {
		r.persistFailed(update, "archive session", err)
		return
	}
	if err != nil {
		r.persistFailed(update, "index session", err)
	}
	if err := r.recovery.Clear(ctx); err != nil {
		r.persistFailed(update, "clear recovery snapshot", err)
	}
	r.logger.Info("session saved",
		slog.String("session_id", session.ID),
		slog.String("path", path),
		slog.Int("total_seconds", session.Totals.TotalSeconds),
		slog.Int("cycles", session.Totals.Cycles),
	)
	update.Events = append(update.Events, dto.Event{Kind: dto.EventSessionSaved, Path: path})
}

func (r *Runtime) play(ctx context.Context, def routinedomain.Routine, step *routinedomain.Step, event sounddomain.Event, update *dto.Update) bool {
	input := sounddto.PlayInput{
		RoutineID: def.ID,
		Default:   def.SoundDefault,
		Override:  routinedomain.OverrideInherit,
		Scheme:    def.SoundScheme,
		Event:     event,
	}
	if step != nil {
		input.StepID = step.ID
		input.Override = step.SoundOverride
	}
	out := r.sound.Play(ctx, input)
	if out.NotifyFailure {
		update.Events = append(update.Events, dto.Event{Kind: dto.EventSoundFailed, Detail: "sound could not be played; continuing with visual cues"})
	}
	return out.Played
}

func (r *Runtime) persistFailed(update *dto.Update, action string, err error) {
	r.logger.Error(action, slog.Any("err", err))
	update.Events = append(update.Events, dto.Event{Kind: dto.EventPersistFailed, Detail: fmt.Sprintf("%s: %v", action, err)})
}

func stepAt(def routinedomain.Routine, index int) (routinedomain.Step, bool) {
	if index < 0 || index >= len(def.Steps) {
		return routinedomain.Step{}, false
	}
	return def.Steps[index], true
}

func checkInPrompt(req timerdto.CheckInRequest) *dto.CheckInPrompt {
	return &dto.CheckInPrompt{
		StepID:    req.Step.ID,
		StepLabel: req.Step.Label,
		Mode:      string(req.Config.EffectiveMode()),
		Title:     req.Config.PromptTitle,
		Body:      req.Config.PromptBody,
		Blocking:  req.Blocking,
		Timeout:   req.Config.PromptTimeout(),
	}
}
