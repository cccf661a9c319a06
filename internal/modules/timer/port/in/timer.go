package in

import (
	"context"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/timer/dto"
)

type Usecase interface {
	Start(ctx context.Context, r routine.Routine) (dto.Transition, error)
	Pause(ctx context.Context) (dto.Transition, error)
	Resume(ctx context.Context) (dto.Transition, error)
	Stop(ctx context.Context) (dto.Transition, error)
	Skip(ctx context.Context) (dto.Transition, error)
	Respond(ctx context.Context, choice routine.CheckInChoice) (dto.Transition, error)
	Tick(ctx context.Context) (dto.Transition, error)
	State(ctx context.Context) dto.State
}
