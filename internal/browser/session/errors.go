package session

import "errors"

var (
	// ErrNavigationTimeout is returned when a navigation or load wait runs out of time.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrInteractionTimeout is returned when a click, fill, type or press runs out of time.
	ErrInteractionTimeout = errors.New("interaction timed out")
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("session is closed")
)
