// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
)

// Startup error classes. Steady-state loop failures are never returned with
// one of these; they are logged and the loop carries on.
var (
	ErrConfig           = errors.New("invalid configuration")
	ErrProtocolSetup    = errors.New("irc setup failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Errors returned by ParseCommand.
var (
	ErrEmptyCommand       = errors.New("empty command")
	ErrEmbeddedLineBreak  = errors.New("command contains a line break or NUL byte")
	ErrMissingCommandName = errors.New("command name missing")
)

// Process exit codes for fatal startup errors.
const (
	ExitSetupFailure = 1
	ExitStoreFailure = 2
)

// ExitCode maps an error returned from startup or Bridge.Run to the process
// exit status. A nil error maps to 0.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrStoreUnavailable):
		return ExitStoreFailure
	default:
		return ExitSetupFailure
	}
}
