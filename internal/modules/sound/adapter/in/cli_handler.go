package in

import (
	"context"

	"mccall/internal/modules/sound/dto"
	soundin "mccall/internal/modules/sound/port/in"
)

type CLIHandler struct {
	usecase soundin.Usecase
}

func NewCLIHandler(usecase soundin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Test plays a cue through the configured player regardless of routine
// settings. Global mute still applies.
func (h CLIHandler) Test(ctx context.Context, completed bool) dto.PlayOutput {
	return h.usecase.Play(ctx, dto.ProbeInput(completed))
}
