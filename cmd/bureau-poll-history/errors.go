// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "fmt"

// exitError signals a non-zero exit code without printing an extra
// error message. Plain mode returns it after the rendered output
// already reports the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// ExitCode returns the exit code. main checks for this interface to
// tell a handled non-zero exit from an error to display.
func (e *exitError) ExitCode() int {
	return e.code
}

// commandError is an error with an optional hint printed on its own
// line after the message.
type commandError struct {
	err  error
	hint string
}

func (e *commandError) Error() string { return e.err.Error() }

func (e *commandError) Unwrap() error { return e.err }

// withHint attaches a remediation hint.
func (e *commandError) withHint(hint string) *commandError {
	e.hint = hint
	return e
}

// invalid reports bad flags or configuration.
func invalid(format string, args ...any) *commandError {
	return &commandError{err: fmt.Errorf(format, args...)}
}
