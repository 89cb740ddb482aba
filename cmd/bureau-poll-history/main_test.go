// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pollhistory/lib/config"
	"github.com/bureau-foundation/pollhistory/lib/pollhistory"
	"github.com/bureau-foundation/pollhistory/lib/pollsource"
)

// runCommand runs the command with no config in the environment.
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunDemoPlain(t *testing.T) {
	stdout, stderr, err := runCommand(t, "--demo", "--plain")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	if !strings.HasPrefix(stdout, "Active polls (10)\n") {
		t.Errorf("output should start with the active heading:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Do you like the active poll number 1?") {
		t.Errorf("output missing first active poll:\n%s", stdout)
	}
	if strings.Contains(stdout, "past poll") {
		t.Errorf("active segment should not list past polls:\n%s", stdout)
	}
}

func TestRunDemoPastDetails(t *testing.T) {
	stdout, stderr, err := runCommand(t, "--demo", "--plain", "--segment", "past", "--details")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	for _, want := range []string{"Past polls (10)", "Final result based on 3 votes", "Yes, of course!", "2 votes (67%)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunFilePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.jsonl")
	start := map[string]any{
		"event_id":         "$p1",
		"type":             "m.poll.start",
		"sender":           "@alice:example.org",
		"origin_server_ts": time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		"content": map[string]any{
			"m.poll": map[string]any{
				"kind":           "m.disclosed",
				"max_selections": 1,
				"question":       map[string]any{"m.text": []any{map[string]any{"body": "Pizza or tacos?"}}},
				"answers": []any{
					map[string]any{"m.id": "pizza", "m.text": []any{map[string]any{"body": "Pizza"}}},
					map[string]any{"m.id": "tacos", "m.text": []any{map[string]any{"body": "Tacos"}}},
				},
			},
		},
	}
	line, err := json.Marshal(start)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(line, '\n'), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := runCommand(t, "--file", path, "--plain", "--user", "@bob:example.org")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "Active polls (1)") || !strings.Contains(stdout, "Pizza or tacos?") {
		t.Errorf("output = %q", stdout)
	}
}

func TestRunMissingFile(t *testing.T) {
	_, _, err := runCommand(t, "--file", filepath.Join(t.TempDir(), "absent.jsonl"), "--plain")
	var commandErr *commandError
	if !errors.As(err, &commandErr) {
		t.Fatalf("error = %v, want commandError", err)
	}
	if commandErr.hint == "" {
		t.Error("missing file error should carry a hint")
	}
}

func TestRunRequiresMatrixSettings(t *testing.T) {
	_, _, err := runCommand(t, "--plain")
	if err == nil || !strings.Contains(err.Error(), "matrix.homeserver is required") {
		t.Errorf("error = %v, want missing homeserver", err)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	for _, test := range []struct {
		name string
		args []string
		want string
	}{
		{"segment", []string{"--demo", "--plain", "--segment", "upcoming"}, "--segment"},
		{"argument", []string{"--demo", "extra"}, "unexpected argument"},
		{"exclusive", []string{"--demo", "--file", "x.jsonl"}, "mutually exclusive"},
		{"page size", []string{"--demo", "--page-size", "0"}, "history.page_size"},
		{"user", []string{"--demo", "--user", "bob"}, "matrix.user_id"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := runCommand(t, test.args...)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %v, want it to mention %q", err, test.want)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	_, stderr, err := runCommand(t, "--help")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "Usage:") || !strings.Contains(stderr, "--segment") {
		t.Errorf("help output = %q", stderr)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polls.yaml")
	content := `
matrix:
  homeserver: https://matrix.example.org
  user_id: "@alice:example.org"
  room: "#team:example.org"
history:
  page_size: 20
  chain_pages: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	var parsed flags
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	parsed.register(flagSet)
	if err := flagSet.Parse([]string{"--room", "!abc:example.org", "--chain-pages", "0", "--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}
	parsed.apply(flagSet, cfg)

	if cfg.Matrix.Room != "!abc:example.org" {
		t.Errorf("room = %q", cfg.Matrix.Room)
	}
	if cfg.Matrix.Homeserver != "https://matrix.example.org" {
		t.Errorf("homeserver = %q, config value should survive", cfg.Matrix.Homeserver)
	}
	if cfg.History.PageSize != 20 {
		t.Errorf("page size = %d, unset flag should not override", cfg.History.PageSize)
	}
	if cfg.History.ChainPages != 0 {
		t.Errorf("chain pages = %d, explicit zero flag should override", cfg.History.ChainPages)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestRunPlainFailureExitsOne(t *testing.T) {
	source := pollsource.NewScripted(pollsource.StepFailure(errors.New("homeserver unavailable")))
	runner, err := pollhistory.StartRunner(context.Background(), pollhistory.RunnerConfig{
		Source:  source,
		Options: pollhistory.Options{PageDelay: -1},
	})
	if err != nil {
		t.Fatalf("StartRunner: %v", err)
	}
	defer runner.Close()

	var stdout bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	err = runPlain(context.Background(), runner, &stdout, false, 5*time.Second, logger)

	var exit *exitError
	if !errors.As(err, &exit) || exit.ExitCode() != 1 {
		t.Fatalf("error = %v, want exit code 1", err)
	}
	if !strings.Contains(stdout.String(), "Poll history could not be loaded") {
		t.Errorf("output should report the failure:\n%s", stdout.String())
	}
}

func TestFanoutHandler(t *testing.T) {
	var verbose, quiet bytes.Buffer
	logger := slog.New(fanoutHandler{
		slog.NewJSONHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}).With("room", "!abc:example.org")

	logger.Debug("page fetched")
	logger.Warn("fetch failed")

	if got := strings.Count(verbose.String(), "\n"); got != 2 {
		t.Errorf("debug handler got %d records, want 2", got)
	}
	if got := strings.Count(quiet.String(), "\n"); got != 1 {
		t.Errorf("warn handler got %d records, want 1", got)
	}
	if !strings.Contains(quiet.String(), `"room":"!abc:example.org"`) {
		t.Errorf("attrs should reach every handler: %s", quiet.String())
	}
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buffer bytes.Buffer
	slog.New(consoleHandler(&buffer, config.FormatAuto, slog.LevelInfo)).Info("hello")
	if !strings.HasPrefix(buffer.String(), "{") {
		t.Errorf("auto on a non-terminal should log JSON, got %q", buffer.String())
	}
	buffer.Reset()
	slog.New(consoleHandler(&buffer, config.FormatText, slog.LevelInfo)).Info("hello")
	if !strings.Contains(buffer.String(), "msg=hello") {
		t.Errorf("text format output = %q", buffer.String())
	}
}
