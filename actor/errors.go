package actor

import "errors"

// Error taxonomy from spec §7. The engine does not wrap these values: an
// exit reason is exactly the error handed to Quit or fail (ErrUserExit when
// Quit gets nil), so a custom reason does not compare true against any of
// the kinds below.
var (
	// ErrActorNotFound is returned when a target actor cannot be resolved
	// locally or through any registered transport.
	ErrActorNotFound = errors.New("actor not found")

	// ErrUserExit marks termination via an explicit quit(reason) call.
	ErrUserExit = errors.New("user exit")
	// ErrKilled marks termination from an exit envelope carrying the kill
	// sentinel; always fatal, bypassing the user exit handler.
	ErrKilled = errors.New("killed")
	// ErrUnhandledException marks termination after user code panicked and
	// no exception mapper translated the panic into a different reason.
	ErrUnhandledException = errors.New("unhandled exception")
	// ErrUnexpectedMessage marks a message the default handler declined.
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrUnexpectedResponse marks a response whose payload did not match
	// the stored handler's expected type.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrRequestTimeout marks a pending multiplexed response whose
	// duration elapsed before an answer arrived.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrQueueClosed is returned to a sender whose request was enqueued
	// after the target's mailbox was closed.
	ErrQueueClosed = errors.New("queue closed")

	// ErrCircuitOpen is returned by Ask when the target's circuit breaker
	// is open and is rejecting requests.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrDegradedToAsync marks a synchronous call degraded to an
	// asynchronous one. No function in this package returns it; Ask has
	// no degradation mode.
	ErrDegradedToAsync = errors.New("sync degraded to async")
)

// KillReason is the sentinel exit reason that forces unconditional
// termination regardless of any installed exit handler (spec §4.3).
var KillReason error = ErrKilled
