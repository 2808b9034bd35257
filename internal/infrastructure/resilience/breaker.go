package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many probes while half-open")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// Threshold is the number of consecutive failures that trips the breaker
	Threshold uint32
	// Cooldown is how long the breaker stays open before probing again
	Cooldown time.Duration
	// MaxProbes is the number of attempts allowed while half-open
	MaxProbes uint32
	// Interval clears the failure counts periodically while closed; zero
	// keeps them until the next success
	Interval time.Duration
	// OnStateChange is called whenever the state changes, outside any lock
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker fails calls fast after repeated failures
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.MaxProbes == 0 {
		settings.MaxProbes = 1
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
	if settings.Interval > 0 {
		b.expiry = time.Now().Add(settings.Interval)
	}
	return b
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, change := b.currentState(time.Now())
	b.mu.Unlock()

	b.notify(change)
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Reset forces the breaker closed and clears its counts
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.setState(StateClosed, time.Now())
	b.counts = Counts{}
	b.mu.Unlock()

	b.notify(change)
}

// Execute runs fn if the breaker accepts it and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	_, err := Do(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do runs fn through b and returns its result.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	generation, err := b.beforeRequest()
	if err != nil {
		return zero, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterRequest(generation, false)
			panic(e)
		}
	}()

	result, err := fn()
	b.afterRequest(generation, err == nil)
	return result, err
}

// transition is a pending OnStateChange callback
type transition struct {
	from, to State
	changed  bool
}

func (b *Breaker) notify(t transition) {
	if t.changed && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, t.from, t.to)
	}
}

// beforeRequest is called before a request is executed
func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	state, generation, change := b.currentState(time.Now())

	var err error
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxProbes:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
	}
	b.mu.Unlock()

	b.notify(change)
	return generation, err
}

// afterRequest is called after a request is executed
func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	now := time.Now()
	state, generation, change := b.currentState(now)

	if generation == before {
		var next transition
		if success {
			next = b.onSuccess(state, now)
		} else {
			next = b.onFailure(state, now)
		}
		if next.changed {
			change = next
		}
	}
	b.mu.Unlock()

	b.notify(change)
}

func (b *Breaker) onSuccess(state State, now time.Time) transition {
	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxProbes {
		return b.setState(StateClosed, now)
	}
	return transition{}
}

func (b *Breaker) onFailure(state State, now time.Time) transition {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.counts.ConsecutiveFailures >= b.settings.Threshold {
			return b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		return b.setState(StateOpen, now)
	}
	return transition{}
}

// currentState advances time-based transitions and returns the state and
// generation. Callers hold mu.
func (b *Breaker) currentState(now time.Time) (State, uint64, transition) {
	var change transition
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.newGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			change = b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation, change
}

// setState changes the state of the circuit breaker. Callers hold mu.
func (b *Breaker) setState(state State, now time.Time) transition {
	if b.state == state {
		return transition{}
	}

	prev := b.state
	b.state = state
	b.newGeneration(now)

	return transition{from: prev, to: state, changed: true}
}

func (b *Breaker) newGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}

	switch b.state {
	case StateClosed:
		b.expiry = time.Time{}
		if b.settings.Interval > 0 {
			b.expiry = now.Add(b.settings.Interval)
		}
	case StateOpen:
		b.expiry = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}
}
