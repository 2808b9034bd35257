package bridge

import (
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/chanbridge/internal/shared/id"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// pump drains the channel into the sink until the channel is empty, the
// sink throttles, or the channel goes away. The workqueue guarantees one
// run per instance at a time.
func (b *Bridge) pump(inst *instance) {
	inst.mu.Lock()
	sink := inst.sink
	attach := inst.attach
	inst.pumpRuns++
	inst.mu.Unlock()

	if sink == nil {
		return
	}

	timer := monitoring.NewTimer(b.metrics, inst.desc.Name)
	defer timer.Stop()

	for {
		if sink.IsThrottled() {
			b.metrics.RecordThrottleStop(inst.desc.Name)
			break
		}

		n, more := b.transfer(inst, sink, attach)
		if n > 0 {
			b.metrics.RecordRx(inst.desc.Name, n)
		}
		if !more {
			break
		}
	}

	sink.Wakeup()
}

// transfer performs one locked read-and-deliver step. It returns the bytes
// delivered and whether the pump should keep going.
func (b *Bridge) transfer(inst *instance, sink Sink, attach id.AttachID) (int, bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.channel == nil || inst.attach != attach {
		return 0, false
	}

	avail := inst.channel.ReadAvailable()
	if avail <= 0 {
		return 0, false
	}

	want := avail
	if want > len(inst.scratch) {
		want = len(inst.scratch)
	}

	got, err := inst.channel.Read(inst.scratch[:want])
	if err != nil {
		if !errors.Is(err, transport.ErrClosed) {
			b.channelLogger(inst).Warn("channel read failed", zap.Error(err))
		}
		return 0, false
	}
	if got < want {
		inst.faults++
		b.reportFault(inst, want, got)
	}
	if got <= 0 {
		return 0, false
	}

	sink.Deliver(inst.scratch[:got])
	inst.token.Extend(b.cfg.InhibitWindow)
	inst.rxBytes += uint64(got)
	return got, true
}

func (b *Bridge) reportFault(inst *instance, want, got int) {
	b.metrics.RecordProtocolFault(inst.desc.Name)
	if !b.faultLog.Allow() {
		return
	}
	b.channelLogger(inst).Error("short channel read",
		zap.Error(ErrProtocolInconsistency),
		zap.Int("available", want),
		zap.Int("read", got))
}
