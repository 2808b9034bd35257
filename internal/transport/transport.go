package transport

import "errors"

var (
	// ErrNotFound is returned by Open for a channel name the peer does not expose.
	ErrNotFound = errors.New("channel not found")
	// ErrClosed is returned by operations on a closed channel.
	ErrClosed = errors.New("channel closed")
)

// EventKind tags an asynchronous channel notification.
type EventKind int

const (
	// EventDataAvailable means inbound bytes are waiting to be read.
	EventDataAvailable EventKind = iota + 1
	// EventPeerClosed means the remote side went away.
	EventPeerClosed
)

// String returns the string representation of the event
func (k EventKind) String() string {
	switch k {
	case EventDataAvailable:
		return "data"
	case EventPeerClosed:
		return "peer-closed"
	default:
		return "unknown"
	}
}

// Notifier receives channel events. Transports call it from their own
// goroutines and must not hold channel locks while doing so; implementations
// must return promptly and never block.
type Notifier func(kind EventKind)

// Transport opens named channels to the peer processor.
type Transport interface {
	// Open attaches to a named channel. notify receives events until the
	// returned channel is closed.
	Open(name string, notify Notifier) (Channel, error)
}

// Channel is an open, flow-controlled, bidirectional channel handle. None of
// the methods block waiting for the peer.
type Channel interface {
	// ReadAvailable reports how many bytes the next Read can return. For
	// packet channels it is the size of the next packet.
	ReadAvailable() int
	// Read copies up to len(p) inbound bytes into p.
	Read(p []byte) (int, error)
	// WriteAvailable reports how many bytes the peer can currently accept.
	WriteAvailable() int
	// Write forwards p to the peer. Callers clamp p to WriteAvailable first.
	Write(p []byte) (int, error)
	// Kick asks the transport to re-deliver a pending notification. It is
	// used when a kept-open channel is reactivated.
	Kick() error
	// Close detaches from the channel; no notifications follow.
	Close() error
}
