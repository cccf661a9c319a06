package in

import (
	"context"

	"mccall/internal/modules/routine/domain"
	"mccall/internal/modules/routine/dto"
)

type Usecase interface {
	ListRoutines(ctx context.Context) ([]dto.RoutineOutput, error)
	GetRoutine(ctx context.Context, id string) (dto.RoutineDetailOutput, error)
	ImportRoutine(ctx context.Context, input dto.ImportInput) (dto.RoutineOutput, error)
	// Resolve returns the runnable definition for the timer.
	Resolve(ctx context.Context, id string) (domain.Routine, error)
	// Load returns every stored definition.
	Load(ctx context.Context) ([]domain.Routine, error)
}
