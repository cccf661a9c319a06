package in

import (
	"context"
	"fmt"
	"time"

	sessiondto "mccall/internal/modules/session/dto"
	sessionin "mccall/internal/modules/session/port/in"
)

const dateLayout = "2006-01-02"

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, routineID string) (sessiondto.Update, error) {
	return h.usecase.Start(ctx, routineID)
}

func (h CLIHandler) Pause(ctx context.Context) (sessiondto.Update, error) {
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) Resume(ctx context.Context) (sessiondto.Update, error) {
	return h.usecase.Resume(ctx)
}

// TogglePause resumes a paused run and pauses a running one.
func (h CLIHandler) TogglePause(ctx context.Context) (sessiondto.Update, error) {
	if h.usecase.State(ctx).Paused {
		return h.usecase.Resume(ctx)
	}
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) Stop(ctx context.Context) (sessiondto.Update, error) {
	return h.usecase.Stop(ctx)
}

func (h CLIHandler) Skip(ctx context.Context) (sessiondto.Update, error) {
	return h.usecase.Skip(ctx)
}

func (h CLIHandler) Respond(ctx context.Context, choice string) (sessiondto.Update, error) {
	return h.usecase.Respond(ctx, choice)
}

func (h CLIHandler) Tick(ctx context.Context) (sessiondto.Update, error) {
	return h.usecase.Tick(ctx)
}

func (h CLIHandler) ToggleMute(ctx context.Context) sessiondto.Update {
	return h.usecase.ToggleMute(ctx)
}

func (h CLIHandler) State(ctx context.Context) sessiondto.RunState {
	return h.usecase.State(ctx)
}

func (h CLIHandler) Run(ctx context.Context, interval time.Duration, onUpdate func(sessiondto.Update)) error {
	return h.usecase.Run(ctx, interval, onUpdate)
}

func (h CLIHandler) Recover(ctx context.Context) (sessiondto.RecoverOutput, error) {
	return h.usecase.Recover(ctx)
}

// Stats parses inclusive local calendar dates; the range covers the whole
// of the last day.
func (h CLIHandler) Stats(ctx context.Context, from, to string) (sessiondto.StatsOutput, error) {
	start, err := time.ParseInLocation(dateLayout, from, time.Local)
	if err != nil {
		return sessiondto.StatsOutput{}, fmt.Errorf("parse --from: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, to, time.Local)
	if err != nil {
		return sessiondto.StatsOutput{}, fmt.Errorf("parse --to: %w", err)
	}
	return h.usecase.Stats(ctx, start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

func (h CLIHandler) Reindex(ctx context.Context) (int, error) {
	return h.usecase.Reindex(ctx)
}
