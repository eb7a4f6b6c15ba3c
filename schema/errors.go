package schema

import "errors"

var (
	// ErrInvalidServer indicates an empty or malformed server identifier.
	ErrInvalidServer = errors.New("invalid server id")
	// ErrEmptyCommand indicates the command text was empty or whitespace.
	ErrEmptyCommand = errors.New("empty command")
	// ErrCommandBusy indicates a command is already in flight.
	ErrCommandBusy = errors.New("command already running")
	// ErrUnknownPowerAction indicates an unsupported power action.
	ErrUnknownPowerAction = errors.New("unknown power action")
	// ErrNoCredential indicates no bearer credential could be resolved.
	ErrNoCredential = errors.New("no credential available")
	// ErrUnknownCompression indicates an unsupported export compression.
	ErrUnknownCompression = errors.New("unknown export compression")
)
