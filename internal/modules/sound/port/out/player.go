package out

import (
	"context"

	"mccall/internal/modules/sound/domain"
)

type Player interface {
	Play(ctx context.Context, cue domain.Cue) error
}
