// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-poll-history lists the polls of a Matrix room, split into
// active and past polls, with live vote counts.
//
// Three sources:
//
// Matrix (default): pages backwards through the room's history on the
// configured homeserver and follows /sync for new polls and votes.
// Authenticates with a token file, or prompts for the password.
//
// File (--file): reads room events from a JSONL file, one client-event
// per line, and watches it for appended events via inotify.
//
// Demo (--demo): a fixed set of polls plus simulated room activity.
// No homeserver required.
//
// On a terminal the history is shown in an interactive TUI. With
// --plain, or when stdout is not a terminal, the selected segment is
// loaded to completion, printed once, and the command exits; a failed
// fetch exits with status 1 after printing what did load.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/pollhistory/lib/clock"
	"github.com/bureau-foundation/pollhistory/lib/config"
	"github.com/bureau-foundation/pollhistory/lib/poll"
	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
	"github.com/bureau-foundation/pollhistory/lib/pollui"
	"github.com/bureau-foundation/pollhistory/lib/ref"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var commandErr *commandError
		if errors.As(err, &commandErr) && commandErr.hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", commandErr.hint)
		}
		os.Exit(1)
	}
}

// flags holds the parsed command line.
type flags struct {
	configPath   string
	homeserver   string
	userID       string
	tokenFile    string
	room         string
	filePath     string
	demo         bool
	demoInterval time.Duration
	plain        bool
	details      bool
	segment      string
	pageSize     int
	chainPages   int
	windowDays   int
	logLevel     string
	logOutput    string
	timeout      time.Duration
}

func (f *flags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&f.homeserver, "homeserver", "", "homeserver URL (overrides matrix.homeserver)")
	flagSet.StringVar(&f.userID, "user", "", "viewing user ID, e.g. @alice:example.org (overrides matrix.user_id)")
	flagSet.StringVar(&f.tokenFile, "token-file", "", "file holding the access token (overrides matrix.token_file)")
	flagSet.StringVar(&f.room, "room", "", "room ID or alias (overrides matrix.room)")
	flagSet.StringVar(&f.filePath, "file", "", "read room events from a JSONL file instead of a homeserver")
	flagSet.BoolVar(&f.demo, "demo", false, "show built-in demo polls instead of a homeserver")
	flagSet.DurationVar(&f.demoInterval, "demo-interval", 3*time.Second, "interval between simulated events in --demo mode")
	flagSet.BoolVar(&f.plain, "plain", false, "print the history once instead of starting the TUI")
	flagSet.BoolVar(&f.details, "details", false, "include answers and results in --plain output")
	flagSet.StringVar(&f.segment, "segment", "active", "initial segment: active or past")
	flagSet.IntVar(&f.pageSize, "page-size", 0, "events per history page (overrides history.page_size)")
	flagSet.IntVar(&f.chainPages, "chain-pages", 0, "pages loaded per request cycle, 0 for unlimited (overrides history.chain_pages)")
	flagSet.IntVar(&f.windowDays, "window-days", 0, "days of history to load, 0 for all (overrides history.window_days)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, or error (overrides log.level)")
	flagSet.StringVar(&f.logOutput, "log-output", "", "write JSON log records to this file (overrides log.file)")
	flagSet.DurationVar(&f.timeout, "timeout", 2*time.Minute, "how long --plain waits for history to load")
	flagSet.BoolP("help", "h", false, "show help")
}

func run(args []string, stdout, stderr io.Writer) error {
	var parsed flags
	flagSet := pflag.NewFlagSet("bureau-poll-history", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	parsed.register(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return invalid("unexpected argument: %s", rest[0])
	}
	if parsed.demo && parsed.filePath != "" {
		return invalid("--demo and --file are mutually exclusive")
	}

	cfg, err := loadConfig(parsed.configPath)
	if err != nil {
		return err
	}
	parsed.apply(flagSet, cfg)
	if err := cfg.Validate(); err != nil {
		return invalid("invalid configuration: %w", err)
	}

	segment, err := poll.ParseSegment(parsed.segment)
	if err != nil {
		return invalid("--segment: %w", err)
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return invalid("%w", err)
	}

	plain := parsed.plain || !isTerminal(stdout)

	var handlers fanoutHandler
	var tuiHandler *pollui.LogHandler
	if plain {
		handlers = append(handlers, consoleHandler(stderr, cfg.Log.Format, level))
	} else {
		// Stderr would corrupt the alt-screen; warnings go to the
		// status bar instead.
		tuiHandler = pollui.NewLogHandler(slog.LevelWarn)
		handlers = append(handlers, tuiHandler)
	}
	if cfg.Log.File != "" {
		if err := cfg.EnsureLogDir(); err != nil {
			return err
		}
		fileHandler, closeFile, err := openFileLogHandler(cfg.Log.File, level)
		if err != nil {
			return invalid("cannot open log file %s: %w", cfg.Log.File, err)
		}
		defer closeFile()
		handlers = append(handlers, fileHandler)
	}
	logger := slog.New(handlers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	source, closeSource, err := openSource(ctx, &parsed, cfg, plain, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	runner, err := pollhistory.StartRunner(ctx, pollhistory.RunnerConfig{
		Source: source,
		Options: pollhistory.Options{
			Segment:    segment,
			ChainPages: cfg.History.ChainPages,
			PageDelay:  cfg.History.PageDelay,
			Logger:     logger,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer runner.Close()

	if plain {
		return runPlain(ctx, runner, stdout, parsed.details, parsed.timeout, logger)
	}

	program := tea.NewProgram(pollui.NewModel(runner, nil), tea.WithAltScreen(), tea.WithContext(ctx))
	tuiHandler.SetProgram(program)
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// loadConfig loads the --config file, else the file named by the
// environment, else the defaults.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, invalid("loading config: %w", err)
		}
		return cfg, nil
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err := config.Load()
		if err != nil {
			return nil, invalid("loading config: %w", err)
		}
		return cfg, nil
	default:
		return config.Default(), nil
	}
}

// apply overrides configuration values with the flags that were set.
func (f *flags) apply(flagSet *pflag.FlagSet, cfg *config.Config) {
	if f.homeserver != "" {
		cfg.Matrix.Homeserver = f.homeserver
	}
	if f.userID != "" {
		cfg.Matrix.UserID = f.userID
	}
	if f.tokenFile != "" {
		cfg.Matrix.TokenFile = f.tokenFile
	}
	if f.room != "" {
		cfg.Matrix.Room = f.room
	}
	if flagSet.Changed("page-size") {
		cfg.History.PageSize = f.pageSize
	}
	if flagSet.Changed("chain-pages") {
		cfg.History.ChainPages = f.chainPages
	}
	if flagSet.Changed("window-days") {
		cfg.History.WindowDays = f.windowDays
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logOutput != "" {
		cfg.Log.File = f.logOutput
	}
}

// openSource builds the poll source selected by the flags. The
// returned cleanup releases it.
func openSource(ctx context.Context, parsed *flags, cfg *config.Config, plain bool, logger *slog.Logger) (pollsource.Source, func(), error) {
	switch {
	case parsed.demo:
		source := pollsource.NewMock()
		if plain {
			return source, func() {}, nil
		}
		demoContext, demoCancel := context.WithCancel(ctx)
		go pollsource.RunDemo(demoContext, source, clock.Real(), parsed.demoInterval, logger)
		return source, demoCancel, nil

	case parsed.filePath != "":
		var viewer ref.UserID
		if cfg.Matrix.UserID != "" {
			viewer, _ = ref.ParseUserID(cfg.Matrix.UserID)
		}
		source, err := pollsource.NewFileSource(pollsource.FileConfig{
			Path:     parsed.filePath,
			Viewer:   viewer,
			PageSize: cfg.History.PageSize,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, invalid("cannot load events from %s: %w", parsed.filePath, err).
				withHint("Check that the file exists and holds one Matrix client-event JSON object per line.")
		}
		return source, func() {}, nil

	default:
		session, roomID, err := connectMatrix(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		source, err := pollsource.NewMatrixSource(pollsource.MatrixConfig{
			Session:       session,
			RoomID:        roomID,
			PageSize:      cfg.History.PageSize,
			HistoryWindow: cfg.HistoryWindow(),
			Logger:        logger,
		})
		if err != nil {
			session.Close()
			return nil, nil, err
		}
		return source, func() { session.Close() }, nil
	}
}

// runPlain waits for the selected segment to settle and prints it. A
// failed fetch prints the partial history with the error banner and
// exits 1.
func runPlain(ctx context.Context, runner *pollhistory.Runner, stdout io.Writer, details bool, timeout time.Duration, logger *slog.Logger) error {
	settleContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snapshot, settleErr := pollui.Settle(settleContext, runner)
	adapter := pollui.NewAdapter(runner, nil)
	view, _ := adapter.Apply(snapshot)

	fetchFailed := false
	switch {
	case settleErr == nil:
	case errors.Is(settleErr, context.DeadlineExceeded), errors.Is(settleErr, context.Canceled), errors.Is(settleErr, pollui.ErrHostStopped):
		logger.Warn("poll history did not finish loading", "error", settleErr)
		fetchFailed = true
	default:
		view = adapter.Fail(settleErr)
		fetchFailed = true
	}

	if err := pollui.RenderPlain(stdout, view, pollui.PlainOptions{Details: details}); err != nil {
		return err
	}
	if fetchFailed {
		return &exitError{code: 1}
	}
	return nil
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func printHelp(writer io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(writer, `bureau-poll-history: browse the polls of a Matrix room.

Polls are split into active and past polls. On a terminal the history
opens in an interactive viewer; with --plain, or when stdout is not a
terminal, the selected segment is loaded, printed once, and the
command exits with status 1 if a fetch failed.

Configuration is read from --config, else from $%s, else
defaults are used. Flags override configuration values.

Usage:
  bureau-poll-history [flags]

Examples:
  # Browse a room with settings from a config file
  bureau-poll-history --config ~/.config/bureau/polls.yaml

  # Print past polls with their results
  bureau-poll-history --room '#team:example.org' --segment past --plain --details

  # Replay exported room events
  bureau-poll-history --file room-events.jsonl

  # Try the viewer without a homeserver
  bureau-poll-history --demo

Flags:
`, config.EnvironmentVariable)
	flagSet.SetOutput(writer)
	flagSet.PrintDefaults()
}
