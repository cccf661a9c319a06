package out

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"mccall/internal/modules/sound/domain"
	soundout "mccall/internal/modules/sound/port/out"
)

const cuePlaceholder = "{cue}"

// CommandPlayer runs an external program per cue, e.g.
// ["paplay", "/usr/share/sounds/{cue}.oga"].
type CommandPlayer struct {
	argv []string
}

func NewCommandPlayer(argv []string) (soundout.Player, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("sound command is empty")
	}
	return &CommandPlayer{argv: append([]string(nil), argv...)}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, cue domain.Cue) error {
	args := make([]string, len(p.argv))
	for i, arg := range p.argv {
		args[i] = strings.ReplaceAll(arg, cuePlaceholder, string(cue))
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("run %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
