package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrRegistryActive  = errors.New("channel registry already active")
	ErrDuplicateIndex  = errors.New("duplicate channel index")
	ErrIndexOutOfRange = errors.New("channel index out of range")
	ErrEmptyName       = errors.New("channel name is empty")
)

// DefaultMaxChannels is the table size used when none is configured.
const DefaultMaxChannels = 32

// ChannelDescriptor maps a device index to a named transport channel.
type ChannelDescriptor struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	// KeepOpen leaves the transport channel open after the last close so a
	// later open reactivates it instead of reopening it.
	KeepOpen bool `json:"keep_open"`
}

// DefaultChannels returns the stock channel table.
func DefaultChannels() []ChannelDescriptor {
	return []ChannelDescriptor{
		{Index: 0, Name: "SMD_DS"},
		{Index: 27, Name: "SMD_GPSNMEA"},
	}
}

// WinCEChannels returns the stock table plus the channels exposed by
// WinCE-based modem firmware.
func WinCEChannels() []ChannelDescriptor {
	return []ChannelDescriptor{
		{Index: 0, Name: "SMD_DS"},
		{Index: 1, Name: "SMD_DIAG"},
		{Index: 7, Name: "SMD_DATA1"},
		{Index: 27, Name: "SMD_GPSNMEA"},
	}
}

// WithKeepOpen returns a copy of descs with KeepOpen set on every entry.
func WithKeepOpen(descs []ChannelDescriptor, keepOpen bool) []ChannelDescriptor {
	out := make([]ChannelDescriptor, len(descs))
	for i, d := range descs {
		d.KeepOpen = keepOpen
		out[i] = d
	}
	return out
}

// Registry is the channel table. It can be replaced as a whole until it is
// activated; after that it is read-only.
type Registry struct {
	mu          sync.RWMutex
	maxChannels int
	descriptors []ChannelDescriptor
	byIndex     map[int]ChannelDescriptor
	active      bool
}

// New creates a registry holding the default channel table.
func New(maxChannels int) *Registry {
	if maxChannels <= 0 {
		maxChannels = DefaultMaxChannels
	}
	r := &Registry{maxChannels: maxChannels}
	// The stock table always fits the default bound.
	_ = r.set(DefaultChannels())
	return r
}

// Replace swaps in a new channel table.
func (r *Registry) Replace(descs []ChannelDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrRegistryActive
	}
	return r.set(descs)
}

func (r *Registry) set(descs []ChannelDescriptor) error {
	if err := Validate(descs, r.maxChannels); err != nil {
		return err
	}

	byIndex := make(map[int]ChannelDescriptor, len(descs))
	for _, d := range descs {
		byIndex[d.Index] = d
	}

	r.descriptors = append([]ChannelDescriptor(nil), descs...)
	r.byIndex = byIndex
	return nil
}

// Activate freezes the table.
func (r *Registry) Activate() {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
}

// Active reports whether the table is frozen.
func (r *Registry) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// MaxChannels returns the fixed upper bound on indices.
func (r *Registry) MaxChannels() int {
	return r.maxChannels
}

// Lookup returns the descriptor registered at index.
func (r *Registry) Lookup(index int) (ChannelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byIndex[index]
	return d, ok
}

// Descriptors returns the table in registration order.
func (r *Registry) Descriptors() []ChannelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]ChannelDescriptor(nil), r.descriptors...)
}

// Indices returns the registered indices in ascending order.
func (r *Registry) Indices() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, 0, len(r.byIndex))
	for idx := range r.byIndex {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Validate checks a channel table against a table size.
func Validate(descs []ChannelDescriptor, maxChannels int) error {
	seen := make(map[int]string, len(descs))
	for _, d := range descs {
		if d.Index < 0 || d.Index >= maxChannels {
			return fmt.Errorf("%w: %d (max %d)", ErrIndexOutOfRange, d.Index, maxChannels)
		}
		if d.Name == "" {
			return fmt.Errorf("%w: index %d", ErrEmptyName, d.Index)
		}
		if prev, dup := seen[d.Index]; dup {
			return fmt.Errorf("%w: %d used by %q and %q", ErrDuplicateIndex, d.Index, prev, d.Name)
		}
		seen[d.Index] = d.Name
	}
	return nil
}
