package repository

import "errors"

var (
	// ErrDBNotReady is returned when a repository is used before a
	// database handle has been injected.
	ErrDBNotReady = errors.New("database not ready")

	// ErrStaleConversation is returned by conversation mutations when the
	// row no longer matches the state the caller read: either another
	// mutation changed the left-flags in between, or the conversation was
	// torn down entirely.
	ErrStaleConversation = errors.New("conversation state is stale")
)
