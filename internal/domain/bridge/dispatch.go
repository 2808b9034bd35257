package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// Notify is the event entry point for channel index. Transports reach it
// through the notifier installed at open; it is exported for transports
// that deliver events out of band and for tests.
func (b *Bridge) Notify(index int, kind transport.EventKind) error {
	inst, err := b.lookup(index)
	if err != nil {
		return err
	}
	if kind != transport.EventDataAvailable && kind != transport.EventPeerClosed {
		return fmt.Errorf("%w: %d", ErrUnknownEvent, kind)
	}
	b.dispatch(inst, kind)
	return nil
}

// dispatch never blocks: data events only schedule the pump, and a peer
// close only signals the sink.
func (b *Bridge) dispatch(inst *instance, kind transport.EventKind) {
	switch kind {
	case transport.EventDataAvailable:
		b.queue.Schedule(inst.desc.Index)

	case transport.EventPeerClosed:
		inst.mu.Lock()
		sink := inst.sink
		fire := sink != nil && !inst.hungUp
		if fire {
			inst.hungUp = true
		}
		inst.mu.Unlock()

		if !fire {
			return
		}
		b.metrics.RecordHangup(inst.desc.Name)
		b.channelLogger(inst).Info("peer closed channel")
		sink.Hangup()

	default:
		b.channelLogger(inst).Debug("ignoring channel event", zap.Stringer("event", kind))
	}
}

// Unthrottle re-arms the pump for index. Sinks call it when they leave the
// throttled state; it schedules a run even without a new data event.
func (b *Bridge) Unthrottle(index int) error {
	inst, err := b.lookup(index)
	if err != nil {
		return err
	}
	b.queue.Schedule(inst.desc.Index)
	return nil
}
