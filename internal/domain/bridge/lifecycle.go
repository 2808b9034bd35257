package bridge

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/chanbridge/internal/shared/id"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// Open attaches sink to the channel at index. The first opener acquires the
// suspend-inhibit token and the transport channel; later openers share the
// sink that is already attached.
func (b *Bridge) Open(index int, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}
	inst, err := b.lookup(index)
	if err != nil {
		return err
	}

	inst.lifecycle.Lock()
	defer inst.lifecycle.Unlock()

	if b.shutdown.Load() {
		return ErrShutdown
	}

	name := inst.desc.Name

	inst.mu.Lock()
	if inst.openCount > 0 {
		inst.openCount++
		count := inst.openCount
		inst.mu.Unlock()

		b.metrics.RecordOpen(name, monitoring.ResultShared)
		b.channelLogger(inst).Debug("channel opened", zap.Int("open_count", count))
		return nil
	}
	inst.mu.Unlock()

	tok, err := b.inhibitor.Acquire(name)
	if err != nil {
		b.metrics.RecordOpen(name, monitoring.ResultExhausted)
		return fmt.Errorf("%w: %s: %v", ErrResourceExhausted, name, err)
	}

	ch, reused, err := b.acquireChannel(inst)
	if err != nil {
		tok.Release()
		b.metrics.RecordOpen(name, openResult(err))
		b.channelLogger(inst).Warn("channel open failed", zap.Error(err))
		return err
	}

	attach := id.NewAttachID()

	inst.mu.Lock()
	inst.channel = ch
	inst.sink = sink
	inst.token = tok
	inst.openCount = 1
	inst.attach = attach
	inst.hungUp = false
	inst.mu.Unlock()

	b.metrics.RecordOpen(name, monitoring.ResultOK)
	b.metrics.IncOpenInstances()
	b.channelLogger(inst).Info("channel attached",
		zap.String("attach_id", attach.String()),
		zap.Bool("reactivated", reused))

	// Data that arrived before the sink was attached found no channel and
	// was left queued; drain it now.
	b.queue.Schedule(index)
	return nil
}

// acquireChannel reactivates a parked channel or opens a new one through
// the per-channel breaker. Callers hold inst.lifecycle.
func (b *Bridge) acquireChannel(inst *instance) (transport.Channel, bool, error) {
	inst.mu.Lock()
	parked := inst.parked
	inst.parked = nil
	inst.mu.Unlock()

	if parked != nil {
		err := parked.Kick()
		if err == nil {
			return parked, true, nil
		}
		b.channelLogger(inst).Warn("parked channel unusable, reopening", zap.Error(err))
		_ = parked.Close()
	}

	notify := func(kind transport.EventKind) {
		b.dispatch(inst, kind)
	}

	breaker := b.breakers.Get(inst.desc.Name)
	ch, err := resilience.Do(breaker, func() (transport.Channel, error) {
		return b.transport.Open(inst.desc.Name, notify)
	})
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", inst.desc.Name, err)
	}
	return ch, false, nil
}

// Close drops one reference. It waits for any running pump first; the last
// close detaches the sink, releases the inhibit token and closes (or parks)
// the channel. Closing an instance that is not open is a no-op.
func (b *Bridge) Close(index int) error {
	inst, err := b.lookup(index)
	if err != nil {
		return err
	}

	inst.lifecycle.Lock()
	defer inst.lifecycle.Unlock()

	b.queue.Flush(index)

	inst.mu.Lock()
	if inst.openCount == 0 {
		inst.mu.Unlock()
		return nil
	}

	inst.openCount--
	if inst.openCount > 0 {
		count := inst.openCount
		inst.mu.Unlock()

		b.metrics.RecordClose(inst.desc.Name)
		b.channelLogger(inst).Debug("channel closed", zap.Int("open_count", count))
		return nil
	}

	// The sink goes first so nothing reaches it once the channel is gone.
	inst.sink = nil
	ch, tok, attach := inst.channel, inst.token, inst.attach
	inst.channel = nil
	inst.token = nil
	if inst.keepOpen {
		inst.parked = ch
		ch = nil
	}
	inst.mu.Unlock()

	// A pump scheduled since the first flush may still hold the old sink.
	b.queue.Flush(index)

	tok.Release()
	b.metrics.RecordClose(inst.desc.Name)
	b.metrics.DecOpenInstances()

	log := b.channelLogger(inst).With(zap.String("attach_id", attach.String()))
	if ch == nil {
		log.Info("channel detached", zap.Bool("parked", true))
		return nil
	}
	if err := ch.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
		log.Warn("channel close failed", zap.Error(err))
	}
	log.Info("channel detached", zap.Bool("parked", false))
	return nil
}

func openResult(err error) string {
	switch {
	case errors.Is(err, transport.ErrNotFound):
		return monitoring.ResultNotFound
	default:
		return monitoring.ResultError
	}
}
