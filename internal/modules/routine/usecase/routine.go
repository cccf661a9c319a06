package usecase

import (
	"context"
	"fmt"

	"mccall/internal/modules/routine/domain"
	"mccall/internal/modules/routine/dto"
	routinein "mccall/internal/modules/routine/port/in"
	"mccall/internal/modules/routine/service"
)

type Interactor struct {
	svc *service.RoutineService
}

func NewInteractor(svc *service.RoutineService) routinein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) ListRoutines(ctx context.Context) ([]dto.RoutineOutput, error) {
	routines, err := i.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RoutineOutput, 0, len(routines))
	for _, routine := range routines {
		out = append(out, toOutput(routine))
	}
	return out, nil
}

func (i *Interactor) GetRoutine(ctx context.Context, id string) (dto.RoutineDetailOutput, error) {
	routine, err := i.svc.Get(ctx, id)
	if err != nil {
		return dto.RoutineDetailOutput{}, err
	}
	steps := make([]dto.StepOutput, 0, len(routine.Steps))
	for _, step := range routine.Steps {
		checkIn := string(step.CheckIn.EffectiveMode())
		if step.CheckIn.Mode == domain.CheckInPrompt && step.CheckIn.PromptTimeoutSeconds > 0 {
			checkIn = fmt.Sprintf("%s (%ds)", checkIn, step.CheckIn.PromptTimeoutSeconds)
		}
		steps = append(steps, dto.StepOutput{
			ID:              step.ID,
			Label:           step.Label,
			DurationSeconds: step.DurationSeconds,
			Instruction:     step.Instruction,
			CheckIn:         checkIn,
			CountAsBreak:    step.CountAsBreak,
			Sound:           string(step.SoundOverride),
		})
	}
	return dto.RoutineDetailOutput{
		RoutineOutput: toOutput(routine),
		SoundDefault:  string(routine.SoundDefault),
		SoundScheme:   string(routine.SoundScheme),
		Steps:         steps,
	}, nil
}

func (i *Interactor) ImportRoutine(ctx context.Context, input dto.ImportInput) (dto.RoutineOutput, error) {
	routine, err := i.svc.Import(ctx, input.Raw)
	if err != nil {
		return dto.RoutineOutput{}, err
	}
	return toOutput(routine), nil
}

func (i *Interactor) Resolve(ctx context.Context, id string) (domain.Routine, error) {
	return i.svc.Get(ctx, id)
}

func (i *Interactor) Load(ctx context.Context) ([]domain.Routine, error) {
	return i.svc.List(ctx)
}

func toOutput(routine domain.Routine) dto.RoutineOutput {
	return dto.RoutineOutput{
		ID:          routine.ID,
		Name:        routine.Name,
		StepCount:   len(routine.Steps),
		CycleSeconds: int(routine.CycleDuration().Seconds()),
		Repeat:      routine.Repeat.String(),
	}
}
