package terminal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// ErrDeviceClosed is returned when attaching a closed device.
var ErrDeviceClosed = errors.New("device closed")

// DeviceOptions tunes a Device.
type DeviceOptions struct {
	// HighWater throttles the channel once this many bytes wait for the port.
	HighWater int
	// LowWater unthrottles once the backlog drains to this many bytes.
	LowWater int
	// Retry bounds how long unaccepted input waits for a Wakeup.
	Retry time.Duration
	Logger *logging.Logger
}

// Device bridges one channel to a Port. It implements bridge.Sink.
type Device struct {
	index int
	name  string
	port  Port
	br    Bridge
	opts  DeviceOptions
	log   *logging.Logger

	out       *Buffer
	outReady  chan struct{}
	wake      chan struct{}
	throttled atomic.Bool

	// hungUp is set from the transport notification path and never takes mu.
	hungUp atomic.Bool

	mu       sync.Mutex
	attached bool
	closed   bool

	rxBytes atomic.Uint64
	txBytes atomic.Uint64

	done  chan struct{}
	loops conc.WaitGroup
}

// NewDevice creates a device and starts its port loops. It is not attached
// to the bridge until Attach.
func NewDevice(index int, name string, port Port, br Bridge, opts DeviceOptions) *Device {
	if opts.HighWater <= 0 {
		opts.HighWater = 64 * 1024
	}
	if opts.LowWater < 0 || opts.LowWater >= opts.HighWater {
		opts.LowWater = opts.HighWater / 4
	}
	if opts.Retry <= 0 {
		opts.Retry = 50 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Device{
		index:    index,
		name:     name,
		port:     port,
		br:       br,
		opts:     opts,
		log:      logger.Named("device").ForChannel(index, name),
		out:      NewBuffer(opts.HighWater),
		outReady: make(chan struct{}, 1),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	d.loops.Go(d.writeLoop)
	d.loops.Go(d.readLoop)
	return d
}

// Index returns the channel index.
func (d *Device) Index() int { return d.index }

// Attach opens the channel on the bridge with this device as its sink.
func (d *Device) Attach() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDeviceClosed
	}
	if d.attached {
		return nil
	}
	d.hungUp.Store(false)
	if err := d.br.Open(d.index, d); err != nil {
		return err
	}
	d.attached = true
	d.log.Info("device attached")
	return nil
}

// Detach closes the channel on the bridge. It is a no-op when detached.
func (d *Device) Detach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detachLocked()
}

func (d *Device) detachLocked() error {
	if !d.attached {
		return nil
	}
	d.attached = false
	if err := d.br.Close(d.index); err != nil {
		return err
	}
	d.log.Info("device detached")
	return nil
}

// Close detaches, closes the port and waits for the port loops.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	err := d.detachLocked()
	d.mu.Unlock()

	close(d.done)
	if cerr := d.port.Close(); err == nil {
		err = cerr
	}
	d.loops.Wait()
	return err
}

// Info returns a snapshot of the device state.
func (d *Device) Info() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DeviceInfo{
		Index:     d.index,
		Name:      d.name,
		Attached:  d.attached,
		HungUp:    d.hungUp.Load(),
		Throttled: d.throttled.Load(),
		Buffered:  d.out.Len(),
		RxBytes:   d.rxBytes.Load(),
		TxBytes:   d.txBytes.Load(),
	}
}

// Deliver implements bridge.Sink.
func (d *Device) Deliver(p []byte) {
	d.out.Write(p)
	d.rxBytes.Add(uint64(len(p)))
	if d.out.Len() >= d.opts.HighWater {
		d.throttled.Store(true)
	}
	signal(d.outReady)
}

// IsThrottled implements bridge.Sink.
func (d *Device) IsThrottled() bool {
	return d.throttled.Load()
}

// Wakeup implements bridge.Sink.
func (d *Device) Wakeup() {
	signal(d.wake)
}

// Hangup implements bridge.Sink. The detach runs on its own goroutine
// because Hangup is called from the transport's notification path.
func (d *Device) Hangup() {
	d.hungUp.Store(true)
	d.log.Info("peer hung up")
	go func() {
		if err := d.Detach(); err != nil {
			d.log.Warn("detach after hangup failed", zap.Error(err))
		}
	}()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// writeLoop moves buffered channel output to the port.
func (d *Device) writeLoop() {
	buf := make([]byte, 4096)
	for {
		select {
		case <-d.done:
			return
		case <-d.outReady:
		}

		for {
			n := d.out.Read(buf)
			if n == 0 {
				break
			}
			if _, err := d.port.Write(buf[:n]); err != nil {
				d.log.Debug("port write failed", zap.Error(err))
				return
			}

			if d.out.Len() <= d.opts.LowWater && d.throttled.CompareAndSwap(true, false) {
				if err := d.br.Unthrottle(d.index); err != nil {
					d.log.Warn("unthrottle failed", zap.Error(err))
				}
			}
		}
	}
}

// readLoop forwards port input to the channel, holding back whatever the
// channel cannot take until a Wakeup or the retry interval.
func (d *Device) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := d.port.Read(buf)
		if err != nil {
			return
		}

		pending := buf[:n]
		for len(pending) > 0 {
			w, err := d.br.Write(d.index, pending)
			d.txBytes.Add(uint64(w))
			pending = pending[w:]
			if err != nil {
				if !errors.Is(err, transport.ErrClosed) {
					d.log.Warn("channel write failed", zap.Error(err))
				}
				// Input typed while detached is dropped, as a closed line would.
				break
			}
			if len(pending) == 0 {
				break
			}

			select {
			case <-d.done:
				return
			case <-d.wake:
			case <-time.After(d.opts.Retry):
			}
		}
	}
}

var _ bridge.Sink = (*Device)(nil)
