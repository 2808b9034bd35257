package bridge

import (
	"sync"

	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/wakelock"
	"github.com/GriffinCanCode/chanbridge/internal/shared/id"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// instance is the per-index state record. Slots are created once by New and
// live until the process exits.
//
// Invariant (under mu): openCount == 0 iff channel == nil iff token == nil.
type instance struct {
	desc     registry.ChannelDescriptor
	keepOpen bool

	// lifecycle serialises Open and Close and is the only lock held across
	// transport Open, Kick and Close.
	lifecycle sync.Mutex

	mu        sync.Mutex
	channel   transport.Channel
	parked    transport.Channel
	sink      Sink
	openCount int
	token     wakelock.Token
	attach    id.AttachID
	hungUp    bool

	// scratch is only touched by the pump while mu is held.
	scratch []byte

	rxBytes  uint64
	txBytes  uint64
	faults   uint64
	pumpRuns uint64
}

func newInstance(desc registry.ChannelDescriptor, bufferSize int, keepOpen bool) *instance {
	return &instance{
		desc:     desc,
		keepOpen: keepOpen || desc.KeepOpen,
		scratch:  make([]byte, bufferSize),
	}
}

// ChannelStatus is a point-in-time view of one instance.
type ChannelStatus struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	KeepOpen       bool   `json:"keep_open"`
	OpenCount      int    `json:"open_count"`
	Open           bool   `json:"open"`
	Parked         bool   `json:"parked"`
	AttachID       string `json:"attach_id,omitempty"`
	HungUp         bool   `json:"hung_up"`
	ReadAvailable  int    `json:"read_available"`
	WriteAvailable int    `json:"write_available"`
	RxBytes        uint64 `json:"rx_bytes"`
	TxBytes        uint64 `json:"tx_bytes"`
	ProtocolFaults uint64 `json:"protocol_faults"`
	PumpRuns       uint64 `json:"pump_runs"`
	Breaker        string `json:"breaker"`
}

func (inst *instance) status() ChannelStatus {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	s := ChannelStatus{
		Index:          inst.desc.Index,
		Name:           inst.desc.Name,
		KeepOpen:       inst.keepOpen,
		OpenCount:      inst.openCount,
		Open:           inst.channel != nil,
		Parked:         inst.parked != nil,
		AttachID:       inst.attach.String(),
		HungUp:         inst.hungUp,
		RxBytes:        inst.rxBytes,
		TxBytes:        inst.txBytes,
		ProtocolFaults: inst.faults,
		PumpRuns:       inst.pumpRuns,
	}
	if inst.channel != nil {
		s.ReadAvailable = inst.channel.ReadAvailable()
		s.WriteAvailable = inst.channel.WriteAvailable()
	}
	return s
}
