package ledger

import "errors"

// Sentinel errors for ledger operations.
var (
	// ErrDuplicateMint is returned by Open when the mint already has an
	// open position or an admission in flight.
	ErrDuplicateMint = errors.New("position already open for mint")

	// ErrNoPosition is returned when the mint has no open position.
	ErrNoPosition = errors.New("no open position for mint")

	// ErrExitPending is returned when the executor reported queued or
	// failed for an exit order. The position stays OPEN and the exit
	// must be retried or resolved manually.
	ErrExitPending = errors.New("exit order not confirmed")

	// ErrEntryRejected is returned when the executor did not fill the
	// entry order. No position is created.
	ErrEntryRejected = errors.New("entry order not filled")
)
