package loopback

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// Mode selects byte-stream or packet semantics for an endpoint.
type Mode int

const (
	// ModeStream delivers inbound bytes as a continuous stream.
	ModeStream Mode = iota
	// ModePacket preserves packet boundaries: ReadAvailable is the size of
	// the next packet and each Read consumes exactly one packet.
	ModePacket
)

const (
	defaultCapacity      = 8 * 1024
	defaultWriteCapacity = 8 * 1024
)

// Options configures a declared endpoint.
type Options struct {
	Mode Mode
	// Capacity bounds the inbound bytes the peer can queue.
	Capacity int
	// WriteCapacity is the initial free space on the peer's receive side.
	WriteCapacity int
}

// Transport is an in-process channel transport. Channels must be declared
// before they can be opened; the peer side of each is scripted through Peer.
type Transport struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// New creates an empty loopback transport.
func New() *Transport {
	return &Transport{
		endpoints: make(map[string]*endpoint),
	}
}

// Declare creates (or returns the existing) endpoint for name.
func (t *Transport) Declare(name string, opts Options) *Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ep, ok := t.endpoints[name]; ok {
		return &Peer{ep: ep}
	}

	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.WriteCapacity <= 0 {
		opts.WriteCapacity = defaultWriteCapacity
	}

	ep := &endpoint{
		name:     name,
		opts:     opts,
		writeCap: opts.WriteCapacity,
	}
	t.endpoints[name] = ep
	return &Peer{ep: ep}
}

// Peer returns the peer side of a declared endpoint.
func (t *Transport) Peer(name string) (*Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ep, ok := t.endpoints[name]
	if !ok {
		return nil, false
	}
	return &Peer{ep: ep}, true
}

// Open implements transport.Transport.
func (t *Transport) Open(name string, notify transport.Notifier) (transport.Channel, error) {
	t.mu.Lock()
	ep, ok := t.endpoints[name]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, name)
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.handle != nil {
		return nil, fmt.Errorf("loopback channel %s already open", name)
	}

	h := &handle{ep: ep}
	ep.handle = h
	ep.notify = notify
	ep.opens++
	return h, nil
}

// endpoint is one named channel. Its inbound queue outlives individual
// opens, the way a shared-memory FIFO does.
type endpoint struct {
	name string
	opts Options

	mu         sync.Mutex
	inbound    [][]byte
	inboundLen int
	received   []byte
	packets    [][]byte
	writeCap   int
	shortRead  int
	handle     *handle
	notify     transport.Notifier
	opens      int
	kicks      int
}

// fire calls the current notifier outside the endpoint lock.
func (ep *endpoint) fire(kind transport.EventKind) {
	ep.mu.Lock()
	notify := ep.notify
	ep.mu.Unlock()

	if notify != nil {
		notify(kind)
	}
}

// handle is the bridge side of an open endpoint.
type handle struct {
	ep *endpoint
}

func (h *handle) ReadAvailable() int {
	ep := h.ep
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.handle != h || len(ep.inbound) == 0 {
		return 0
	}
	if ep.opts.Mode == ModePacket {
		return len(ep.inbound[0])
	}
	return ep.inboundLen
}

func (h *handle) Read(p []byte) (int, error) {
	ep := h.ep
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.handle != h {
		return 0, transport.ErrClosed
	}

	want := len(p)
	if ep.shortRead > 0 {
		want -= ep.shortRead
		if want < 0 {
			want = 0
		}
		ep.shortRead = 0
	}

	if ep.opts.Mode == ModePacket {
		if len(ep.inbound) == 0 {
			return 0, nil
		}
		pkt := ep.inbound[0]
		n := copy(p[:want], pkt)
		// The unread tail of a packet is dropped.
		ep.inbound = ep.inbound[1:]
		ep.inboundLen -= len(pkt)
		return n, nil
	}

	n := 0
	for n < want && len(ep.inbound) > 0 {
		chunk := ep.inbound[0]
		c := copy(p[n:want], chunk)
		n += c
		if c == len(chunk) {
			ep.inbound = ep.inbound[1:]
		} else {
			ep.inbound[0] = chunk[c:]
		}
	}
	ep.inboundLen -= n
	return n, nil
}

func (h *handle) WriteAvailable() int {
	ep := h.ep
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.handle != h {
		return 0
	}
	return ep.writeCap
}

func (h *handle) Write(p []byte) (int, error) {
	ep := h.ep
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.handle != h {
		return 0, transport.ErrClosed
	}

	if ep.opts.Mode == ModePacket {
		if len(p) > ep.writeCap {
			return 0, nil
		}
		ep.packets = append(ep.packets, append([]byte(nil), p...))
	}

	n := len(p)
	if n > ep.writeCap {
		n = ep.writeCap
	}
	ep.received = append(ep.received, p[:n]...)
	ep.writeCap -= n
	return n, nil
}

func (h *handle) Kick() error {
	ep := h.ep
	ep.mu.Lock()
	if ep.handle != h {
		ep.mu.Unlock()
		return transport.ErrClosed
	}
	ep.kicks++
	pending := len(ep.inbound) > 0
	ep.mu.Unlock()

	if pending {
		ep.fire(transport.EventDataAvailable)
	}
	return nil
}

func (h *handle) Close() error {
	ep := h.ep
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.handle != h {
		return transport.ErrClosed
	}
	ep.handle = nil
	ep.notify = nil
	return nil
}

var _ transport.Transport = (*Transport)(nil)
var _ transport.Channel = (*handle)(nil)
