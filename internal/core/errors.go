package core

import "errors"

var (
	// ErrDataUnavailable aborts the current tick; the next tick retries
	// from scratch.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientFunds rejects an entry that would overdraw the
	// simulated balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrExecutionFailure leaves the state machine in its pre-transition
	// state; the signal is re-evaluated next tick.
	ErrExecutionFailure = errors.New("order execution failed")

	// ErrPersistenceFailure marks a closed trade that could not be logged.
	// The position is still cleared; statistics will be understated.
	ErrPersistenceFailure = errors.New("trade persistence failed")

	ErrAlreadyRunning = errors.New("engine already running")
	ErrNotRunning     = errors.New("engine not running")
)
