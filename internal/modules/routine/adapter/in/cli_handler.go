package in

import (
	"context"
	"fmt"
	"os"

	"mccall/internal/modules/routine/dto"
	routinein "mccall/internal/modules/routine/port/in"
)

type CLIHandler struct {
	usecase routinein.Usecase
}

func NewCLIHandler(usecase routinein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]dto.RoutineOutput, error) {
	return h.usecase.ListRoutines(ctx)
}

func (h CLIHandler) Show(ctx context.Context, id string) (dto.RoutineDetailOutput, error) {
	return h.usecase.GetRoutine(ctx, id)
}

func (h CLIHandler) Import(ctx context.Context, path string) (dto.RoutineOutput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dto.RoutineOutput{}, fmt.Errorf("read routine file: %w", err)
	}
	return h.usecase.ImportRoutine(ctx, dto.ImportInput{Raw: raw})
}
