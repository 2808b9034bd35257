package bridge

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/wakelock"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/workqueue"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// Bridge exposes every registered channel as a reference-counted stream.
type Bridge struct {
	cfg       Config
	transport transport.Transport
	inhibitor wakelock.Inhibitor
	queue     *workqueue.Queue
	breakers  *resilience.Group
	faultLog  *rate.Limiter
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	// instances is in registry order; byIndex maps device index to slot.
	instances []*instance
	byIndex   map[int]*instance

	shutdown atomic.Bool
}

// New builds the instance table from reg and starts the pump workers. reg
// is activated, so its table can no longer be replaced.
func New(reg *registry.Registry, tr transport.Transport, inhibitor wakelock.Inhibitor, cfg Config) (*Bridge, error) {
	cfg = cfg.withDefaults()
	reg.Activate()

	b := &Bridge{
		cfg:       cfg,
		transport: tr,
		inhibitor: inhibitor,
		faultLog:  rate.NewLimiter(cfg.FaultLogRate, 1),
		logger:    logging.NewNop(),
		metrics:   monitoring.NewMetrics(),
		byIndex:   make(map[int]*instance),
	}

	b.queue = workqueue.New(cfg.Workers, workqueue.WithPanicHandler(func(key int, recovered interface{}) {
		b.logger.Error("pump panicked", zap.Int("channel", key), zap.Any("panic", recovered))
	}))

	b.breakers = resilience.NewGroup(resilience.Settings{
		Threshold: cfg.OpenFailures,
		Cooldown:  cfg.OpenCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			b.logger.Warn("open breaker state changed",
				zap.String("channel_name", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
			b.metrics.RecordBreakerTransition(name, to.String())
		},
	})

	for _, desc := range reg.Descriptors() {
		inst := newInstance(desc, cfg.BufferSize, cfg.KeepOpen)
		if err := b.queue.Register(desc.Index, func() { b.pump(inst) }); err != nil {
			b.queue.Close()
			return nil, fmt.Errorf("register pump for %s: %w", desc.Name, err)
		}
		b.instances = append(b.instances, inst)
		b.byIndex[desc.Index] = inst
	}

	return b, nil
}

// WithLogger sets the logger. Call before the first Open.
func (b *Bridge) WithLogger(logger *logging.Logger) *Bridge {
	b.logger = logger.Named("bridge")
	return b
}

// WithMetrics sets the metrics collector. Call before the first Open.
func (b *Bridge) WithMetrics(metrics *monitoring.Metrics) *Bridge {
	b.metrics = metrics
	return b
}

// Metrics returns the collector in use.
func (b *Bridge) Metrics() *monitoring.Metrics {
	return b.metrics
}

// Config returns the effective configuration.
func (b *Bridge) Config() Config {
	return b.cfg
}

// Indices returns the registered indices in registry order.
func (b *Bridge) Indices() []int {
	out := make([]int, len(b.instances))
	for i, inst := range b.instances {
		out[i] = inst.desc.Index
	}
	return out
}

// Descriptor returns the descriptor registered at index.
func (b *Bridge) Descriptor(index int) (registry.ChannelDescriptor, bool) {
	inst, ok := b.byIndex[index]
	if !ok {
		return registry.ChannelDescriptor{}, false
	}
	return inst.desc, true
}

// Status returns the state of one instance.
func (b *Bridge) Status(index int) (ChannelStatus, error) {
	inst, err := b.lookup(index)
	if err != nil {
		return ChannelStatus{}, err
	}
	s := inst.status()
	s.Breaker = b.breakers.Get(inst.desc.Name).State().String()
	return s, nil
}

// Snapshot returns the state of every instance in registry order.
func (b *Bridge) Snapshot() []ChannelStatus {
	out := make([]ChannelStatus, 0, len(b.instances))
	for _, inst := range b.instances {
		s := inst.status()
		s.Breaker = b.breakers.Get(inst.desc.Name).State().String()
		out = append(out, s)
	}
	return out
}

// Shutdown force-closes every instance, including parked channels, and
// stops the pump workers. Sinks are detached without a hangup.
func (b *Bridge) Shutdown() error {
	if !b.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	var errs error
	for _, inst := range b.instances {
		errs = multierr.Append(errs, b.teardown(inst))
	}
	b.queue.Close()

	b.logger.Info("bridge shut down", zap.Int("channels", len(b.instances)))
	return errs
}

func (b *Bridge) teardown(inst *instance) error {
	inst.lifecycle.Lock()
	defer inst.lifecycle.Unlock()

	b.queue.Flush(inst.desc.Index)

	inst.mu.Lock()
	ch, parked, tok := inst.channel, inst.parked, inst.token
	wasOpen := inst.openCount > 0
	inst.sink = nil
	inst.channel = nil
	inst.parked = nil
	inst.token = nil
	inst.openCount = 0
	inst.mu.Unlock()

	if wasOpen {
		b.metrics.DecOpenInstances()
	}
	if tok != nil {
		tok.Release()
	}

	var errs error
	for _, c := range []transport.Channel{ch, parked} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", inst.desc.Name, err))
		}
	}
	return errs
}

func (b *Bridge) lookup(index int) (*instance, error) {
	inst, ok := b.byIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, index)
	}
	return inst, nil
}

func (b *Bridge) channelLogger(inst *instance) *logging.Logger {
	return b.logger.ForChannel(inst.desc.Index, inst.desc.Name)
}
