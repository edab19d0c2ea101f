package core

import "errors"

var (
	// ErrConfiguration is returned when the source or target settings are unusable
	ErrConfiguration = errors.New("invalid configuration")
	// ErrTargetUnavailable is returned when the target directory cannot be created
	ErrTargetUnavailable = errors.New("target directory unavailable")
	// ErrParse is returned when an input file is not a readable MIME message
	ErrParse = errors.New("failed to parse message")
	// ErrNotFound is returned by a Ledger when no entry exists for a file
	ErrNotFound = errors.New("ledger entry not found")
)
