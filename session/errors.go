package session

import "errors"

var (
	// ErrRequestNotFound is returned when an operation references a
	// request id that is not in the live queue, either because it never
	// existed or because it already reached a terminal state.
	ErrRequestNotFound = errors.New("pending request not found")

	// ErrPasswordRequired is returned when a signing approval targets a
	// locked key pair and no password was supplied. The pending request
	// survives; the caller is expected to retry with a password.
	ErrPasswordRequired = errors.New("password needed to unlock the " +
		"account")

	// ErrOriginDenied is returned when an origin that was explicitly
	// marked not-allowed attempts a gated operation.
	ErrOriginDenied = errors.New("origin is not allowed to access " +
		"accounts")

	// ErrCancelled is the rejection reason of a request the user (or a
	// disconnecting transport) cancelled.
	ErrCancelled = errors.New("request was cancelled")

	// ErrTooManyPendingRequests is returned when enqueueing would exceed
	// the per-kind pending request bound. This protects the daemon from
	// unbounded memory growth caused by a hostile page spamming
	// requests.
	ErrTooManyPendingRequests = errors.New("too many pending requests")

	// ErrStateShuttingDown is returned for operations arriving while the
	// session state is shutting down.
	ErrStateShuttingDown = errors.New("session state shutting down")
)
