package orchestrator

import "errors"

// Caller misuse. Surfaced synchronously, never retried.
var (
	ErrSessionActive    = errors.New("a session is already active")
	ErrNoSession        = errors.New("no active session")
	ErrNotConnected     = errors.New("not connected: join a meeting first")
	ErrNotRunning       = errors.New("automation is not running")
	ErrActionInProgress = errors.New("an action of this kind is already in progress")
	ErrQueueFull        = errors.New("worker queue is full")
	ErrShuttingDown     = errors.New("orchestrator is shutting down")
)
