package bridge

import (
	"fmt"

	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// Write forwards at most WriteAvailable bytes of p and returns how many were
// accepted. It never blocks; the caller retries the rest, typically after
// the sink's Wakeup.
func (b *Bridge) Write(index int, p []byte) (int, error) {
	inst, err := b.lookup(index)
	if err != nil {
		return 0, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.channel == nil {
		return 0, transport.ErrClosed
	}

	n := inst.channel.WriteAvailable()
	if n > len(p) {
		n = len(p)
	}
	if n <= 0 {
		return 0, nil
	}

	written, err := inst.channel.Write(p[:n])
	if written > 0 {
		inst.txBytes += uint64(written)
		b.metrics.RecordTx(inst.desc.Name, written, n < len(p))
	}
	if err != nil {
		return written, fmt.Errorf("write %s: %w", inst.desc.Name, err)
	}
	return written, nil
}

// ReadAvailable reports the inbound bytes waiting on index, or 0 when the
// channel is not open.
func (b *Bridge) ReadAvailable(index int) int {
	return b.query(index, transport.Channel.ReadAvailable)
}

// WriteAvailable reports how many bytes Write would accept right now, or 0
// when the channel is not open.
func (b *Bridge) WriteAvailable(index int) int {
	return b.query(index, transport.Channel.WriteAvailable)
}

func (b *Bridge) query(index int, fn func(transport.Channel) int) int {
	inst, ok := b.byIndex[index]
	if !ok {
		return 0
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.channel == nil {
		return 0
	}
	return fn(inst.channel)
}
