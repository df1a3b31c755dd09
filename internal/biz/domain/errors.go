package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by start while a session is active
	ErrAlreadyRunning = errors.New("bot is already running")
	// ErrInvalidCredentials is returned for a malformed credential payload
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConnection wraps gateway connect or listen failures
	ErrConnection = errors.New("connection failed")
	// ErrNoCredentials is returned by restart when nothing was stored
	ErrNoCredentials = errors.New("no previous credentials available for restart")
	// ErrNotConnected is returned by send while there is no active connection
	ErrNotConnected = errors.New("bot is not connected")
	// ErrNotFound is returned by lookups by id
	ErrNotFound = errors.New("not found")
	// ErrAuthentication is returned by gateways that reject credentials
	ErrAuthentication = errors.New("authentication failed")
)

// CommandExecutionError wraps a failure raised by a command handler
type CommandExecutionError struct {
	Command string
	Err     error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *CommandExecutionError) Unwrap() error {
	return e.Err
}
