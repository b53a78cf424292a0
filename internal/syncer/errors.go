package syncer

import "errors"

var (
	// ErrSyncInProgress is returned when a run for the same mailbox is active
	ErrSyncInProgress = errors.New("a sync is already running for this mailbox")

	// ErrReauthRequired is returned when the mailbox credentials were rejected
	ErrReauthRequired = errors.New("mailbox needs reauthorization")

	// ErrConfiguration is returned when the sync log or lock backend cannot be used
	ErrConfiguration = errors.New("sync configuration error")

	// ErrMailboxUnavailable is returned when candidate emails could not be fetched
	ErrMailboxUnavailable = errors.New("mailbox unavailable")

	// ErrRunTimeout is returned, with a partial summary, when the run deadline passes
	ErrRunTimeout = errors.New("sync run timed out")
)
