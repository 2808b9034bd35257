package bridge

import "errors"

var (
	// ErrNotFound is returned for an index with no registered channel.
	ErrNotFound = errors.New("channel index not registered")
	// ErrResourceExhausted is returned when the suspend-inhibit token
	// cannot be created on a first open.
	ErrResourceExhausted = errors.New("suspend inhibit token unavailable")
	// ErrProtocolInconsistency marks a read that returned fewer bytes than
	// the channel reported available. It is logged and counted, never
	// returned to callers.
	ErrProtocolInconsistency = errors.New("channel read returned less than reported available")
	// ErrShutdown is returned by Open after Shutdown.
	ErrShutdown = errors.New("bridge is shut down")
	// ErrNilSink is returned by Open without a sink.
	ErrNilSink = errors.New("sink is nil")
	// ErrUnknownEvent is returned by Notify for an unrecognised event kind.
	ErrUnknownEvent = errors.New("unknown channel event")
)
