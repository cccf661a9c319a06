package out

import (
	"context"

	"mccall/internal/modules/routine/domain"
)

type RoutineStore interface {
	Load(ctx context.Context) ([]domain.Routine, error)
	Save(ctx context.Context, routines []domain.Routine) error
}
