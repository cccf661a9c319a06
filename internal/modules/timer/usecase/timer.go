package usecase

import (
	"context"

	routine "mccall/internal/modules/routine/domain"
	"mccall/internal/modules/timer/dto"
	timerin "mccall/internal/modules/timer/port/in"
	"mccall/internal/modules/timer/service"
)

type Interactor struct {
	svc *service.TimerService
}

func NewInteractor(svc *service.TimerService) timerin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Start(_ context.Context, r routine.Routine) (dto.Transition, error) {
	return i.svc.Start(r)
}

func (i *Interactor) Pause(context.Context) (dto.Transition, error) {
	return i.svc.Pause()
}

func (i *Interactor) Resume(context.Context) (dto.Transition, error) {
	return i.svc.Resume()
}

func (i *Interactor) Stop(context.Context) (dto.Transition, error) {
	return i.svc.Stop()
}

func (i *Interactor) Skip(context.Context) (dto.Transition, error) {
	return i.svc.Skip()
}

func (i *Interactor) Respond(_ context.Context, choice routine.CheckInChoice) (dto.Transition, error) {
	return i.svc.Respond(choice)
}

func (i *Interactor) Tick(context.Context) (dto.Transition, error) {
	return i.svc.Tick()
}

func (i *Interactor) State(context.Context) dto.State {
	return i.svc.State()
}
