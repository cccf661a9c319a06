package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mccall/internal/bootstrap"
	sessiondto "mccall/internal/modules/session/dto"
	"mccall/internal/platform/config"
	apperrors "mccall/internal/platform/errors"
	"mccall/internal/platform/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	dataDir   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "mccall",
		Short:         "Routine timer with check-ins and session history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", defaultDataDir(), "directory holding routines, sessions and the index")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides config.yaml)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "text|json (overrides config.yaml)")

	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newRoutineCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newReindexCmd(opts))
	root.AddCommand(newRecoverCmd(opts))
	root.AddCommand(newSoundCmd(opts))
	return root
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".mccall"
	}
	return filepath.Join(dir, "mccall")
}

func loadApp(opts globalOptions, logOutput io.Writer) (*bootstrap.App, config.Config, error) {
	cfg, err := config.Load(opts.dataDir)
	if err != nil {
		return nil, config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	logger, err := logging.New(logOutput, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, config.Config{}, err
	}
	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return app, cfg, nil
}

func newTUICmd(opts *globalOptions) *cobra.Command {
	var routineID string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the routine timer in the terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			// The alternate screen owns the terminal; logs go to a file.
			logFile, err := os.OpenFile(filepath.Join(opts.dataDir, "mccall.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()

			app, cfg, err := loadApp(*opts, logFile)
			if err != nil {
				return err
			}
			defer app.Close()
			return bootstrap.RunTUI(cfg, app, routineID)
		},
	}
	cmd.Flags().StringVar(&routineID, "routine", "", "start this routine right away")
	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var routineID string
	var noInput bool
	cmd := &cobra.Command{
		Use:   "run --routine <id>",
		Short: "Run a routine headless, reading single-letter commands from stdin",
		Long: "Run a routine headless. Commands on stdin, one per line:\n" +
			"  p pause/resume   s skip step   x stop\n" +
			"  d check-in done  n check-in skip   m mute",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(routineID) == "" {
				return fmt.Errorf("--routine is required")
			}
			app, cfg, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := &console{w: cmd.OutOrStdout()}

			recovered, err := app.SessionCLI.Recover(ctx)
			if err != nil {
				return err
			}
			out.recovered(recovered)

			update, err := app.SessionCLI.Start(ctx, routineID)
			if err != nil {
				return err
			}
			out.update(update)

			if noInput {
				err = app.SessionCLI.Run(ctx, cfg.TickInterval, out.update)
			} else {
				err = drive(ctx, app.SessionCLI, cfg.TickInterval, readLines(cmd.InOrStdin()), out)
			}
			if errors.Is(err, context.Canceled) {
				update, stopErr := app.SessionCLI.Stop(context.Background())
				if stopErr != nil && !errors.Is(stopErr, apperrors.ErrNotRunning) {
					return stopErr
				}
				out.update(update)
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&routineID, "routine", "", "routine id")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "ignore stdin; stop with SIGINT")
	return cmd
}

type sessionControls interface {
	TogglePause(ctx context.Context) (sessiondto.Update, error)
	Skip(ctx context.Context) (sessiondto.Update, error)
	Stop(ctx context.Context) (sessiondto.Update, error)
	Respond(ctx context.Context, choice string) (sessiondto.Update, error)
	Tick(ctx context.Context) (sessiondto.Update, error)
	ToggleMute(ctx context.Context) sessiondto.Update
}

// drive ticks the session and applies stdin commands on one goroutine, so a
// command never races the bookkeeping of a tick.
func drive(ctx context.Context, session sessionControls, interval time.Duration, lines <-chan string, out *console) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var (
			update sessiondto.Update
			err    error
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			update, err = session.Tick(ctx)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotRunning) {
					return nil
				}
				return err
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			update, err = apply(ctx, session, line)
			if err != nil {
				out.line("error: " + err.Error())
				continue
			}
		}
		out.update(update)
		if !update.State.Running {
			return nil
		}
	}
}

func apply(ctx context.Context, session sessionControls, command string) (sessiondto.Update, error) {
	switch strings.TrimSpace(command) {
	case "p", "":
		return session.TogglePause(ctx)
	case "s":
		return session.Skip(ctx)
	case "x":
		return session.Stop(ctx)
	case "d":
		return session.Respond(ctx, "done")
	case "n":
		return session.Respond(ctx, "skip")
	case "m":
		return session.ToggleMute(ctx), nil
	default:
		return sessiondto.Update{}, fmt.Errorf("unknown command %q (p s x d n m)", command)
	}
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

type console struct {
	w      io.Writer
	paused bool
	muted  bool
}

func (c *console) line(text string) {
	_, _ = fmt.Fprintln(c.w, text)
}

func (c *console) recovered(out sessiondto.RecoverOutput) {
	if !out.Recovered {
		return
	}
	c.line(fmt.Sprintf("recovered interrupted session %s (%s, %s) note=%s",
		out.SessionID, out.RoutineName, seconds(out.TotalSeconds), out.Path))
}

func (c *console) update(update sessiondto.Update) {
	for _, event := range update.Events {
		switch event.Kind {
		case sessiondto.EventStepStarted:
			s := update.State
			_, _ = fmt.Fprintf(c.w, "▶ %s (%d/%d) %s\n", event.StepLabel, s.StepIndex+1, s.StepCount, s.Remaining.Round(time.Second))
			if s.Instruction != "" {
				_, _ = fmt.Fprintf(c.w, "  %s\n", s.Instruction)
			}
		case sessiondto.EventCheckInRequested:
			prompt := event.CheckIn
			if prompt == nil {
				continue
			}
			hint := "d done, n skip"
			if prompt.Blocking {
				hint += "; waiting"
			}
			_, _ = fmt.Fprintf(c.w, "? %s %s [%s]\n", prompt.Title, prompt.Body, hint)
		case sessiondto.EventCheckInTimedOut:
			_, _ = fmt.Fprintf(c.w, "  check-in for %s timed out\n", event.StepLabel)
		case sessiondto.EventSoundFailed:
			_, _ = fmt.Fprintf(c.w, "! %s\n", event.Detail)
		case sessiondto.EventSessionSaved:
			_, _ = fmt.Fprintf(c.w, "■ session saved note=%s\n", event.Path)
		case sessiondto.EventPersistFailed:
			_, _ = fmt.Fprintf(c.w, "! %s\n", event.Detail)
		}
	}
	s := update.State
	if s.Running && s.Paused != c.paused {
		if s.Paused {
			_, _ = fmt.Fprintf(c.w, "⏸ paused at %s\n", s.Remaining.Round(time.Second))
		} else {
			_, _ = fmt.Fprintln(c.w, "▶ resumed")
		}
	}
	if s.Muted != c.muted {
		_, _ = fmt.Fprintf(c.w, "  muted=%t\n", s.Muted)
	}
	c.paused = s.Paused
	c.muted = s.Muted
}

func newRoutineCmd(opts *globalOptions) *cobra.Command {
	routine := &cobra.Command{Use: "routine", Short: "Routine definitions"}

	routine.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List routines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			routines, err := app.RoutineCLI.List(context.Background())
			if err != nil {
				return err
			}
			if len(routines) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no routines")
				return nil
			}
			for _, r := range routines {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tsteps=%d cycle=%s repeat=%s\n",
					r.ID, r.Name, r.StepCount, time.Duration(r.CycleSeconds)*time.Second, r.Repeat)
			}
			return nil
		},
	})

	routine.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a routine and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			r, err := app.RoutineCLI.Show(context.Background(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s (%s) repeat=%s sound=%s scheme=%s\n", r.Name, r.ID, r.Repeat, r.SoundDefault, r.SoundScheme)
			for i, step := range r.Steps {
				kind := "work"
				if step.CountAsBreak {
					kind = "break"
				}
				_, _ = fmt.Fprintf(w, "%2d. %-16s %8s %-5s checkin=%s sound=%s\n",
					i+1, step.Label, time.Duration(step.DurationSeconds)*time.Second, kind, step.CheckIn, step.Sound)
				if step.Instruction != "" {
					_, _ = fmt.Fprintf(w, "    %s\n", step.Instruction)
				}
			}
			return nil
		},
	})

	routine.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Validate a routine file and add it, replacing one with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			r, err := app.RoutineCLI.Import(context.Background(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s) steps=%d\n", r.Name, r.ID, r.StepCount)
			return nil
		},
	})
	return routine
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize archived sessions between two dates (inclusive)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			today := time.Now().Format("2006-01-02")
			if from == "" {
				from = today
			}
			if to == "" {
				to = today
			}
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			out, err := app.SessionCLI.Stats(context.Background(), from, to)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s … %s\n", from, to)
			_, _ = fmt.Fprintf(w, "sessions=%d cycles=%d\n", out.Sessions, out.Cycles)
			_, _ = fmt.Fprintf(w, "total=%s work=%s break=%s\n",
				seconds(out.TotalSeconds), seconds(out.WorkSeconds), seconds(out.BreakSeconds))
			_, _ = fmt.Fprintf(w, "check-ins done=%d skipped=%d mute-rate=%.0f%%\n", out.CheckInDone, out.CheckInSkip, out.MuteRate*100)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	return cmd
}

func newReindexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the SQLite session index from the session notes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			count, err := app.SessionCLI.Reindex(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reindex completed: %d sessions\n", count)
			return nil
		},
	}
}

func newRecoverCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Archive a session left behind by a crash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			out, err := app.SessionCLI.Recover(context.Background())
			if err != nil {
				return err
			}
			if !out.Recovered {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "nothing to recover")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recovered %s (%s, %s) note=%s\n",
				out.SessionID, out.RoutineName, seconds(out.TotalSeconds), out.Path)
			return nil
		},
	}
}

func newSoundCmd(opts *globalOptions) *cobra.Command {
	sound := &cobra.Command{Use: "sound", Short: "Sound player checks"}

	var end bool
	test := &cobra.Command{
		Use:   "test",
		Short: "Play a cue through the configured player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			out := app.SoundCLI.Test(context.Background(), end)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cue=%s played=%t reason=%s\n", out.Cue, out.Played, out.Reason)
			if !out.Played {
				return fmt.Errorf("cue %s was not played: %s", out.Cue, out.Reason)
			}
			return nil
		},
	}
	test.Flags().BoolVar(&end, "end", false, "play the routine-completed cue")
	sound.AddCommand(test)
	return sound
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
