package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	routineinadapter "mccall/internal/modules/routine/adapter/in"
	routineoutadapter "mccall/internal/modules/routine/adapter/out"
	routineservice "mccall/internal/modules/routine/service"
	routineusecase "mccall/internal/modules/routine/usecase"
	sessioninadapter "mccall/internal/modules/session/adapter/in"
	sessionoutadapter "mccall/internal/modules/session/adapter/out"
	sessionservice "mccall/internal/modules/session/service"
	sessionusecase "mccall/internal/modules/session/usecase"
	soundinadapter "mccall/internal/modules/sound/adapter/in"
	soundoutadapter "mccall/internal/modules/sound/adapter/out"
	soundout "mccall/internal/modules/sound/port/out"
	soundservice "mccall/internal/modules/sound/service"
	soundusecase "mccall/internal/modules/sound/usecase"
	timerservice "mccall/internal/modules/timer/service"
	timerusecase "mccall/internal/modules/timer/usecase"
	"mccall/internal/platform/clock"
	"mccall/internal/platform/config"
	"mccall/internal/platform/id"
	"mccall/internal/platform/tx"
	uiapp "mccall/internal/ui/app"
)

type App struct {
	RoutineCLI routineinadapter.CLIHandler
	SessionCLI sessioninadapter.CLIHandler
	SoundCLI   soundinadapter.CLIHandler

	db     *sql.DB
	player *soundoutadapter.GRPCPlayer
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	wall := clock.SystemClock{}

	routineUC := routineusecase.NewInteractor(routineservice.NewRoutineService(
		id.TypeID{Prefix: "routine"},
		routineoutadapter.NewYAMLRoutineStore(cfg.RoutinesPath),
	))

	app := &App{}
	player, err := newPlayer(cfg, app)
	if err != nil {
		return nil, err
	}
	soundUC := soundusecase.NewInteractor(soundservice.NewAudioManager(player, wall, logger.With("module", "sound")))

	db, err := sessionoutadapter.OpenSQLite(cfg.DBPath)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.db = db
	index, err := sessionoutadapter.NewSQLiteSessionIndex(db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("new session index: %w", err)
	}
	sessionLogger := logger.With("module", "session")
	sessions := sessionservice.NewSessionService(
		sessionoutadapter.NewVaultSessionStore(cfg.SessionsDir),
		index,
		tx.NewSQLManager(db),
	)
	recovery := sessionservice.NewRecoveryService(
		wall,
		sessionoutadapter.NewFileActiveSessionStore(cfg.ActivePath),
		routineUC,
		sessions,
		sessionLogger,
	)
	sessionUC := sessionusecase.NewRuntime(sessionusecase.Deps{
		Timer:    timerusecase.NewInteractor(timerservice.NewTimerService(clock.MonotonicClock{})),
		Routines: routineUC,
		Sound:    soundUC,
		Tracker:  sessionservice.NewTracker(wall, id.TypeID{Prefix: "session"}),
		Recovery: recovery,
		Sessions: sessions,
		Clock:    wall,
		Logger:   sessionLogger,
	})

	app.RoutineCLI = routineinadapter.NewCLIHandler(routineUC)
	app.SessionCLI = sessioninadapter.NewCLIHandler(sessionUC)
	app.SoundCLI = soundinadapter.NewCLIHandler(soundUC)
	return app, nil
}

// newPlayer returns nil when playback is disabled; the audio manager reports
// that as playbackDisabled.
func newPlayer(cfg config.Config, app *App) (soundout.Player, error) {
	switch cfg.Sound.Player {
	case config.SoundPlayerCommand:
		player, err := soundoutadapter.NewCommandPlayer(cfg.Sound.Command)
		if err != nil {
			return nil, fmt.Errorf("new command player: %w", err)
		}
		return player, nil
	case config.SoundPlayerPlugin:
		app.player = soundoutadapter.NewGRPCPlayer(cfg.Sound.Plugin)
		return app.player, nil
	default:
		return nil, nil
	}
}

// Close releases the database and stops the sound plugin if one was started.
func (a *App) Close() {
	if a.player != nil {
		a.player.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func RunTUI(cfg config.Config, app *App, routineID string) error {
	model := uiapp.NewModel(app.SessionCLI, app.RoutineCLI, routineID, cfg.TickInterval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
