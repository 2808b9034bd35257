package loopback

import (
	"errors"

	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// ErrPeerFull is returned when the inbound queue cannot take a packet.
var ErrPeerFull = errors.New("loopback inbound queue full")

// Peer is the remote side of a loopback endpoint.
type Peer struct {
	ep *endpoint
}

// Name returns the channel name.
func (p *Peer) Name() string {
	return p.ep.name
}

// Send queues inbound bytes for the bridge and raises EventDataAvailable.
// Stream endpoints accept as much as fits; packet endpoints accept the whole
// packet or nothing.
func (p *Peer) Send(data []byte) (int, error) {
	ep := p.ep
	ep.mu.Lock()
	room := ep.opts.Capacity - ep.inboundLen
	n := len(data)
	if ep.opts.Mode == ModePacket {
		if n > room {
			ep.mu.Unlock()
			return 0, ErrPeerFull
		}
	} else if n > room {
		n = room
	}
	if n > 0 {
		ep.inbound = append(ep.inbound, append([]byte(nil), data[:n]...))
		ep.inboundLen += n
	}
	ep.mu.Unlock()

	if n > 0 {
		ep.fire(transport.EventDataAvailable)
	}
	return n, nil
}

// Pending returns the number of queued inbound bytes.
func (p *Peer) Pending() int {
	p.ep.mu.Lock()
	defer p.ep.mu.Unlock()
	return p.ep.inboundLen
}

// Received returns a copy of every byte the bridge has written.
func (p *Peer) Received() []byte {
	p.ep.mu.Lock()
	defer p.ep.mu.Unlock()
	return append([]byte(nil), p.ep.received...)
}

// Packets returns the packets written to a packet endpoint.
func (p *Peer) Packets() [][]byte {
	p.ep.mu.Lock()
	defer p.ep.mu.Unlock()

	out := make([][]byte, len(p.ep.packets))
	for i, pkt := range p.ep.packets {
		out[i] = append([]byte(nil), pkt...)
	}
	return out
}

// Consume drains the written bytes and frees the same amount of write
// capacity, as if the peer had processed them.
func (p *Peer) Consume() []byte {
	ep := p.ep
	ep.mu.Lock()
	defer ep.mu.Unlock()

	out := ep.received
	ep.received = nil
	ep.packets = nil
	ep.writeCap += len(out)
	return out
}

// SetWriteCapacity overrides the free space the bridge sees.
func (p *Peer) SetWriteCapacity(n int) {
	p.ep.mu.Lock()
	p.ep.writeCap = n
	p.ep.mu.Unlock()
}

// InjectShortRead makes the next Read return n bytes fewer than asked.
// The bytes not returned stay queued.
func (p *Peer) InjectShortRead(n int) {
	p.ep.mu.Lock()
	p.ep.shortRead = n
	p.ep.mu.Unlock()
}

// Notify raises an arbitrary event on the open handle.
func (p *Peer) Notify(kind transport.EventKind) {
	p.ep.fire(kind)
}

// Hangup raises EventPeerClosed. Queued data is left in place.
func (p *Peer) Hangup() {
	p.ep.fire(transport.EventPeerClosed)
}

// IsOpen reports whether the bridge holds the channel open.
func (p *Peer) IsOpen() bool {
	p.ep.mu.Lock()
	defer p.ep.mu.Unlock()
	return p.ep.handle != nil
}

// Opens returns how many times the channel was opened.
func (p *Peer) Opens() int {
	p.ep.mu.Lock()
	defer p.ep.mu.Unlock()
	return p.ep.opens
}

// Kicks returns how many times an open handle was kicked.
func (p *Peer) Kicks() int {
	p.ep.mu.Lock()
	defer p.ep.mu.Unlock()
	return p.ep.kicks
}
