// Package testutil provides fakes and mocks shared by package tests.
package testutil

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// RecordingSink is a bridge sink that records everything it is given.
type RecordingSink struct {
	mu         sync.Mutex
	data       []byte
	deliveries int

	hangups   atomic.Int32
	wakeups   atomic.Int32
	throttled atomic.Bool
	detached  atomic.Bool
	late      atomic.Int32

	// OnDeliver, if set, runs inside Deliver after the bytes are recorded.
	OnDeliver func(p []byte)
	// OnWakeup, if set, runs inside Wakeup.
	OnWakeup func()
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Deliver records p.
func (s *RecordingSink) Deliver(p []byte) {
	if s.detached.Load() {
		s.late.Add(1)
	}
	s.mu.Lock()
	s.data = append(s.data, p...)
	s.deliveries++
	s.mu.Unlock()

	if s.OnDeliver != nil {
		s.OnDeliver(p)
	}
}

// Hangup counts hangups.
func (s *RecordingSink) Hangup() {
	s.hangups.Add(1)
}

// Wakeup counts wakeups.
func (s *RecordingSink) Wakeup() {
	if s.detached.Load() {
		s.late.Add(1)
	}
	s.wakeups.Add(1)
	if s.OnWakeup != nil {
		s.OnWakeup()
	}
}

// IsThrottled reports the value last passed to SetThrottled.
func (s *RecordingSink) IsThrottled() bool {
	return s.throttled.Load()
}

// SetThrottled sets the back-pressure state.
func (s *RecordingSink) SetThrottled(v bool) {
	s.throttled.Store(v)
}

// Detach marks the sink as closed; any Deliver or Wakeup after it is
// counted by LateCalls.
func (s *RecordingSink) Detach() {
	s.detached.Store(true)
}

// Data returns a copy of every delivered byte.
func (s *RecordingSink) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// Len returns the number of delivered bytes.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Deliveries returns the number of Deliver calls.
func (s *RecordingSink) Deliveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries
}

// Hangups returns the number of Hangup calls.
func (s *RecordingSink) Hangups() int { return int(s.hangups.Load()) }

// Wakeups returns the number of Wakeup calls.
func (s *RecordingSink) Wakeups() int { return int(s.wakeups.Load()) }

// LateCalls returns the number of calls made after Detach.
func (s *RecordingSink) LateCalls() int { return int(s.late.Load()) }

// MockTransport is a mock implementation of transport.Transport.
type MockTransport struct {
	mock.Mock
}

// Open mocks the Open method.
func (m *MockTransport) Open(name string, notify transport.Notifier) (transport.Channel, error) {
	args := m.Called(name, notify)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transport.Channel), args.Error(1)
}

// MockChannel is a mock implementation of transport.Channel.
type MockChannel struct {
	mock.Mock
}

// ReadAvailable mocks the ReadAvailable method.
func (m *MockChannel) ReadAvailable() int {
	return m.Called().Int(0)
}

// Read mocks the Read method.
func (m *MockChannel) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

// WriteAvailable mocks the WriteAvailable method.
func (m *MockChannel) WriteAvailable() int {
	return m.Called().Int(0)
}

// Write mocks the Write method.
func (m *MockChannel) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

// Kick mocks the Kick method.
func (m *MockChannel) Kick() error {
	return m.Called().Error(0)
}

// Close mocks the Close method.
func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

// NewMockChannel creates a mock channel that is idle: nothing to read, no
// write space, and Kick and Close succeed.
func NewMockChannel(t *testing.T) *MockChannel {
	t.Helper()
	m := new(MockChannel)

	m.On("ReadAvailable").Return(0).Maybe()
	m.On("WriteAvailable").Return(0).Maybe()
	m.On("Kick").Return(nil).Maybe()
	m.On("Close").Return(nil).Maybe()

	return m
}

// NewMockTransport creates a mock transport with no expectations; tests
// register the opens they expect.
func NewMockTransport(t *testing.T) *MockTransport {
	t.Helper()
	m := new(MockTransport)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
