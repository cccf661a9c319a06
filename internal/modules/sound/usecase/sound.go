package usecase

import (
	"context"

	"mccall/internal/modules/sound/dto"
	soundin "mccall/internal/modules/sound/port/in"
	"mccall/internal/modules/sound/service"
)

type Interactor struct {
	svc *service.AudioManager
}

func NewInteractor(svc *service.AudioManager) soundin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Play(ctx context.Context, input dto.PlayInput) dto.PlayOutput {
	return i.svc.Play(ctx, input)
}

func (i *Interactor) IsMuted() bool {
	return i.svc.IsMuted()
}

func (i *Interactor) SetMuted(muted bool) {
	i.svc.SetMuted(muted)
}

func (i *Interactor) ToggleMute() bool {
	return i.svc.ToggleMute()
}
