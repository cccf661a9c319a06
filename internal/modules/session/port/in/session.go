package in

import (
	"context"
	"time"

	"mccall/internal/modules/session/dto"
)

// Usecase drives a routine run and keeps its session record and recovery
// snapshot in step with the timer.
type Usecase interface {
	Start(ctx context.Context, routineID string) (dto.Update, error)
	Pause(ctx context.Context) (dto.Update, error)
	Resume(ctx context.Context) (dto.Update, error)
	Stop(ctx context.Context) (dto.Update, error)
	Skip(ctx context.Context) (dto.Update, error)
	Respond(ctx context.Context, choice string) (dto.Update, error)
	Tick(ctx context.Context) (dto.Update, error)
	ToggleMute(ctx context.Context) dto.Update
	State(ctx context.Context) dto.RunState
	// Run ticks every interval until ctx is done or the run ends.
	Run(ctx context.Context, interval time.Duration, onUpdate func(dto.Update)) error
	Recover(ctx context.Context) (dto.RecoverOutput, error)
	Stats(ctx context.Context, from, to time.Time) (dto.StatsOutput, error)
	Reindex(ctx context.Context) (int, error)
}
