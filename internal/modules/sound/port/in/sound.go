package in

import (
	"context"

	"mccall/internal/modules/sound/dto"
)

type Usecase interface {
	Play(ctx context.Context, input dto.PlayInput) dto.PlayOutput
	IsMuted() bool
	SetMuted(muted bool)
	ToggleMute() bool
}
