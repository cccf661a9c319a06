package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mccall/internal/ui/theme"
)

// PaletteSubmitMsg is emitted when the user confirms a command.
type PaletteSubmitMsg struct{ Input string }

// PaletteCancelMsg is emitted when the user presses esc.
type PaletteCancelMsg struct{}

// Scope is the run state a command applies to.
type Scope int

const (
	ScopeAlways Scope = iota
	ScopeIdle
	ScopeRunning
	ScopeCheckIn
)

// RunContext is what the palette knows about the run when it opens.
type RunContext struct {
	Running         bool
	AwaitingCheckIn bool
}

type Command struct {
	Name  string
	Args  string
	Help  string
	Scope Scope
}

// Available reports whether c can be issued in ctx. The string is the reason
// when it cannot.
func (c Command) Available(ctx RunContext) (bool, string) {
	switch c.Scope {
	case ScopeIdle:
		if ctx.Running {
			return false, "stop the current routine first"
		}
	case ScopeRunning:
		if !ctx.Running {
			return false, "no routine running"
		}
	case ScopeCheckIn:
		if !ctx.AwaitingCheckIn {
			return false, "no check-in pending"
		}
	}
	return true, ""
}

func (c Command) usage() string {
	if c.Args == "" {
		return c.Name
	}
	return c.Name + " " + c.Args
}

// Commands must stay in sync with the switch in app/model.go executePalette.
var Commands = []Command{
	{Name: "routine:start", Args: "<id>", Help: "start a routine", Scope: ScopeIdle},
	{Name: "routine:reload", Help: "reload routines.yaml", Scope: ScopeIdle},
	{Name: "session:pause", Help: "pause or resume", Scope: ScopeRunning},
	{Name: "session:skip", Help: "skip the current step", Scope: ScopeRunning},
	{Name: "session:stop", Help: "stop and save", Scope: ScopeRunning},
	{Name: "checkin:done", Help: "answer the check-in", Scope: ScopeCheckIn},
	{Name: "checkin:skip", Help: "dismiss the check-in", Scope: ScopeCheckIn},
	{Name: "sound:mute", Help: "toggle mute", Scope: ScopeAlways},
}

func LookupCommand(name string) (Command, bool) {
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

const maxSuggestions = 5

var (
	paletteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().Foreground(theme.Text)
	hintStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
)

// Palette is a command-palette overlay backed by bubbles/textinput. It only
// suggests commands that fit the run state it was opened in.
type Palette struct {
	input   textinput.Model
	visible bool
	width   int
	ctx     RunContext
}

func NewPalette() Palette {
	ti := textinput.New()
	ti.Placeholder = "type a command, tab completes"
	ti.CharLimit = 256
	return Palette{input: ti}
}

func (p Palette) Visible() bool { return p.visible }

// Open shows the palette for ctx with an empty input.
func (p *Palette) Open(ctx RunContext) tea.Cmd {
	p.visible = true
	p.ctx = ctx
	p.input.SetValue("")
	return p.input.Focus()
}

func (p *Palette) SetWidth(w int) { p.width = w }

// Suggestions lists the available commands whose name starts with the first
// word typed so far.
func (p Palette) Suggestions() []Command {
	prefix := ""
	if fields := strings.Fields(strings.ToLower(p.input.Value())); len(fields) > 0 {
		prefix = fields[0]
	}
	var out []Command
	for _, c := range Commands {
		if ok, _ := c.Available(p.ctx); !ok {
			continue
		}
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			p.visible = false
			p.input.Blur()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case "enter":
			val := strings.TrimSpace(p.input.Value())
			p.visible = false
			p.input.Blur()
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: val} }
		case "tab":
			p.complete()
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

// complete fills in the first suggestion, leaving room for its argument.
func (p *Palette) complete() {
	suggestions := p.Suggestions()
	if len(suggestions) == 0 {
		return
	}
	value := suggestions[0].Name
	if suggestions[0].Args != "" {
		value += " "
	}
	p.input.SetValue(value)
	p.input.CursorEnd()
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	suggestions := p.Suggestions()
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Command Palette") + "\n")
	sb.WriteString(": " + p.input.View() + "\n")
	if len(suggestions) > 0 {
		sb.WriteString("\n")
		for _, c := range suggestions {
			sb.WriteString(nameStyle.Render(fmt.Sprintf("  %-20s", c.usage())) + hintStyle.Render(c.Help) + "\n")
		}
	} else {
		sb.WriteString("\n" + hintStyle.Render("  no matching command") + "\n")
	}

	w := p.width
	if w < 20 {
		w = 64
	}
	return paletteStyle.Width(w - 2).Render(sb.String())
}
