package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	routinedto "mccall/internal/modules/routine/dto"
	sessiondto "mccall/internal/modules/session/dto"
	apperrors "mccall/internal/platform/errors"
	"mccall/internal/ui/components"
	"mccall/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type sessionPort interface {
	Start(ctx context.Context, routineID string) (sessiondto.Update, error)
	TogglePause(ctx context.Context) (sessiondto.Update, error)
	Stop(ctx context.Context) (sessiondto.Update, error)
	Skip(ctx context.Context) (sessiondto.Update, error)
	Respond(ctx context.Context, choice string) (sessiondto.Update, error)
	Tick(ctx context.Context) (sessiondto.Update, error)
	ToggleMute(ctx context.Context) sessiondto.Update
	Recover(ctx context.Context) (sessiondto.RecoverOutput, error)
}

type routinePort interface {
	List(ctx context.Context) ([]routinedto.RoutineOutput, error)
}

// ─── async messages ───────────────────────────────────────────────────────────

type recoveredMsg struct {
	out sessiondto.RecoverOutput
	err error
}

type routinesLoadedMsg struct {
	routines []routinedto.RoutineOutput
	err      error
}

type updateMsg struct {
	action string
	update sessiondto.Update
	err    error
}

type tickMsg time.Time

type sessionCall func(context.Context) (sessiondto.Update, error)

type pendingAction struct {
	action string
	call   sessionCall
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Start   key.Binding
	Pause   key.Binding
	Skip    key.Binding
	Stop    key.Binding
	Done    key.Binding
	Dismiss key.Binding
	Mute    key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "select routine")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↑/↓", "select routine")),
		Start:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start routine")),
		Pause:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
		Skip:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip step")),
		Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Done:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "check-in done")),
		Dismiss: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "check-in skip")),
		Mute:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Skip, k.Mute, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Start},
		{k.Pause, k.Skip, k.Stop},
		{k.Done, k.Dismiss, k.Mute},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model drives one routine run. Timer state lives behind sessionPort; the
// model only keeps the last snapshot it was handed. Session calls run one at a
// time: keys pressed while a call is in flight are queued and ticks dropped.
type Model struct {
	session  sessionPort
	routines routinePort
	interval time.Duration

	autoStart string
	list      []routinedto.RoutineOutput
	cursor    int

	state    sessiondto.RunState
	inFlight bool
	queue    []pendingAction
	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	bar      progress.Model
	status   string
	width    int
	height   int
}

func NewModel(session sessionPort, routines routinePort, autoStart string, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{
		session:   session,
		routines:  routines,
		interval:  interval,
		autoStart: autoStart,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		status:    "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.recoverCmd(), m.tickCmd())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.bar.Width = max(min(m.width-8, 72), 10)

	case recoveredMsg:
		switch {
		case msg.err != nil:
			m.status = "recovery: " + msg.err.Error()
		case msg.out.Recovered:
			m.status = fmt.Sprintf("recovered %s (%s) → %s",
				msg.out.RoutineName, formatSeconds(msg.out.TotalSeconds), msg.out.Path)
		}
		if m.autoStart != "" {
			return m.dispatch("start", m.startCall(m.autoStart))
		}
		return m, m.loadRoutinesCmd()

	case routinesLoadedMsg:
		if msg.err != nil {
			m.status = "routines: " + msg.err.Error()
			return m, nil
		}
		m.list = msg.routines
		m.cursor = 0

	case tickMsg:
		next := m.tickCmd()
		if !m.state.Running || m.state.Paused || m.inFlight {
			return m, next
		}
		m2, cmd := m.dispatch("tick", m.session.Tick)
		return m2, tea.Batch(next, cmd)

	case updateMsg:
		return m.applyUpdate(msg)

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.state.Running {
			return m, tea.Sequence(m.actionCmd("stop", m.session.Stop), tea.Quit)
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Palette):
		return m, m.palette.Open(m.runContext())
	case key.Matches(msg, m.keys.Mute):
		return m.dispatch("mute", m.muteCall())
	}

	if !m.state.Running {
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.list)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Start):
			if len(m.list) == 0 {
				m.status = "no routines"
				return m, nil
			}
			return m.dispatch("start", m.startCall(m.list[m.cursor].ID))
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Pause):
		return m.dispatch("pause", m.session.TogglePause)
	case key.Matches(msg, m.keys.Skip):
		return m.dispatch("skip", m.session.Skip)
	case key.Matches(msg, m.keys.Stop):
		return m.dispatch("stop", m.session.Stop)
	case key.Matches(msg, m.keys.Done):
		return m.dispatch("check-in", m.respondCall("done"))
	case key.Matches(msg, m.keys.Dismiss):
		return m.dispatch("check-in", m.respondCall("skip"))
	}
	return m, nil
}

// dispatch runs call now, or queues it behind the call in flight.
func (m Model) dispatch(action string, call sessionCall) (Model, tea.Cmd) {
	if m.inFlight {
		m.queue = append(m.queue, pendingAction{action: action, call: call})
		return m, nil
	}
	m.inFlight = true
	return m, m.actionCmd(action, call)
}

func (m Model) applyUpdate(msg updateMsg) (tea.Model, tea.Cmd) {
	m.inFlight = false
	var cmds []tea.Cmd
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		var cmd tea.Cmd
		m, cmd = m.dispatch(next.action, next.call)
		cmds = append(cmds, cmd)
	}

	switch {
	case msg.err != nil && errors.Is(msg.err, apperrors.ErrNotRunning) && msg.action == "tick":
	case msg.err != nil:
		m.status = msg.action + ": " + msg.err.Error()
	default:
		wasRunning := m.state.Running
		m.state = msg.update.State
		for _, event := range msg.update.Events {
			if line := describeEvent(event); line != "" {
				m.status = line
			}
		}
		if wasRunning && !m.state.Running {
			cmds = append(cmds, m.loadRoutinesCmd())
		}
	}
	return m, tea.Batch(cmds...)
}

func describeEvent(event sessiondto.Event) string {
	switch event.Kind {
	case sessiondto.EventStepStarted:
		return "step: " + event.StepLabel
	case sessiondto.EventCheckInRequested:
		if event.CheckIn == nil {
			return "check-in: " + event.StepLabel
		}
		return "check-in: " + event.CheckIn.Title
	case sessiondto.EventCheckInTimedOut:
		return "check-in timed out: " + event.StepLabel
	case sessiondto.EventSoundFailed:
		return theme.Alert.Render("sound unavailable: " + event.Detail)
	case sessiondto.EventSessionSaved:
		return "session saved → " + event.Path
	case sessiondto.EventPersistFailed:
		return "save failed: " + event.Detail
	}
	return ""
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.state.Running:
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.renderRun())
	default:
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.renderPicker())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (m Model) renderHeader() string {
	title := "mccall"
	if m.state.Running {
		title += "  " + theme.Muted.Render("│") + "  " + theme.Title.Render(m.state.RoutineName)
	}
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(title) + "\n"
}

func (m Model) renderPicker() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Routines") + "\n\n")
	if len(m.list) == 0 {
		sb.WriteString(theme.Muted.Render("no routines loaded"))
		return theme.Pane.Render(sb.String())
	}
	for i, r := range m.list {
		line := fmt.Sprintf("%s  %d steps · %s · %s", r.Name, r.StepCount, formatSeconds(r.CycleSeconds), r.Repeat)
		if i == m.cursor {
			sb.WriteString(theme.Hot.Render("▸ "+line) + "\n")
		} else {
			sb.WriteString("  " + line + "\n")
		}
	}
	return theme.PaneActive.Render(strings.TrimRight(sb.String(), "\n"))
}

func (m Model) renderRun() string {
	s := m.state
	var sb strings.Builder
	kind := "work"
	if s.CountAsBreak {
		kind = "break"
	}
	sb.WriteString(theme.Title.Render(s.StepLabel) + "  " +
		theme.Muted.Render(fmt.Sprintf("step %d/%d · %s · cycle %d", s.StepIndex+1, s.StepCount, kind, s.Cycles+1)) + "\n\n")
	face := theme.WorkClock
	if s.CountAsBreak {
		face = theme.BreakClock
	}
	sb.WriteString(face.Render(formatDuration(s.Remaining)) + "\n\n")
	sb.WriteString(m.bar.ViewAs(s.Progress()) + "\n")
	if s.Instruction != "" {
		sb.WriteString("\n" + s.Instruction + "\n")
	}
	if s.AwaitingCheckIn != nil {
		prompt := s.AwaitingCheckIn
		sb.WriteString("\n" + theme.Alert.Render(prompt.Title) + "\n")
		if prompt.Body != "" {
			sb.WriteString(prompt.Body + "\n")
		}
		sb.WriteString(theme.Muted.Render("d: done  n: skip"))
	}
	var flags []string
	if s.Paused {
		flags = append(flags, "paused")
	}
	if s.Muted {
		flags = append(flags, "muted")
	}
	if len(flags) > 0 {
		sb.WriteString("\n" + theme.Muted.Render(strings.Join(flags, " · ")))
	}
	style := theme.PaneActive
	if s.CountAsBreak {
		style = theme.PaneBreak
	}
	if s.Paused {
		style = theme.Pane
	}
	return style.Render(strings.TrimRight(sb.String(), "\n"))
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := theme.Muted.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(input) == "" {
		return m, nil
	}
	parts := strings.Fields(input)
	command, ok := components.LookupCommand(parts[0])
	if !ok {
		m.status = "unknown command: " + parts[0]
		return m, nil
	}
	if ok, reason := command.Available(m.runContext()); !ok {
		m.status = command.Name + ": " + reason
		return m, nil
	}

	switch command.Name {
	case "routine:start":
		if len(parts) < 2 {
			m.status = "usage: routine:start <id>"
			return m, nil
		}
		return m.dispatch("start", m.startCall(parts[1]))
	case "routine:reload":
		return m, m.loadRoutinesCmd()
	case "session:pause":
		return m.dispatch("pause", m.session.TogglePause)
	case "session:skip":
		return m.dispatch("skip", m.session.Skip)
	case "session:stop":
		return m.dispatch("stop", m.session.Stop)
	case "checkin:done":
		return m.dispatch("check-in", m.respondCall("done"))
	case "checkin:skip":
		return m.dispatch("check-in", m.respondCall("skip"))
	case "sound:mute":
		return m.dispatch("mute", m.muteCall())
	}
	return m, nil
}

func (m Model) runContext() components.RunContext {
	return components.RunContext{
		Running:         m.state.Running,
		AwaitingCheckIn: m.state.AwaitingCheckIn != nil,
	}
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) recoverCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.session.Recover(context.Background())
		return recoveredMsg{out: out, err: err}
	}
}

func (m Model) loadRoutinesCmd() tea.Cmd {
	return func() tea.Msg {
		routines, err := m.routines.List(context.Background())
		return routinesLoadedMsg{routines: routines, err: err}
	}
}

func (m Model) startCall(routineID string) sessionCall {
	return func(ctx context.Context) (sessiondto.Update, error) {
		return m.session.Start(ctx, routineID)
	}
}

func (m Model) respondCall(choice string) sessionCall {
	return func(ctx context.Context) (sessiondto.Update, error) {
		return m.session.Respond(ctx, choice)
	}
}

func (m Model) muteCall() sessionCall {
	return func(ctx context.Context) (sessiondto.Update, error) {
		return m.session.ToggleMute(ctx), nil
	}
}

func (m Model) actionCmd(action string, call sessionCall) tea.Cmd {
	return func() tea.Msg {
		update, err := call(context.Background())
		return updateMsg{action: action, update: update, err: err}
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func formatSeconds(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}
