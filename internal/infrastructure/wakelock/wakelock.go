package wakelock

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the inhibit backend cannot be used.
	ErrUnavailable = errors.New("suspend inhibit unavailable")
	// ErrInvalidName is returned for names the backend cannot represent.
	ErrInvalidName = errors.New("invalid wakelock name")
)

// Token is one named suspend-inhibit resource. A fresh token does not hold
// the system awake; each Extend keeps it awake for d from now.
type Token interface {
	Extend(d time.Duration)
	Release()
}

// Inhibitor creates tokens.
type Inhibitor interface {
	Acquire(name string) (Token, error)
}

// Nop is an Inhibitor whose tokens do nothing.
type Nop struct{}

// Acquire implements Inhibitor.
func (Nop) Acquire(string) (Token, error) {
	return nopToken{}, nil
}

type nopToken struct{}

func (nopToken) Extend(time.Duration) {}
func (nopToken) Release()             {}
