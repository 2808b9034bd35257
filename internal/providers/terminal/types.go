package terminal

import (
	"io"
	"sync"

	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
)

// Port is the host side of a device, normally a pty master.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Bridge is the part of the channel bridge a device drives.
type Bridge interface {
	Open(index int, sink bridge.Sink) error
	Close(index int) error
	Write(index int, p []byte) (int, error)
	Unthrottle(index int) error
}

// Buffer is a thread-safe growable FIFO for channel output waiting on the
// port. Unlike a ring that overwrites, it never drops bytes; callers bound
// it by throttling the producer.
type Buffer struct {
	data []byte
	head int
	size int
	mu   sync.Mutex
}

// NewBuffer creates a new buffer with the given initial capacity
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Buffer{
		data: make([]byte, capacity),
	}
}

// Write appends p, growing the buffer when full
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size+len(p) > len(b.data) {
		b.grow(b.size + len(p))
	}

	for _, c := range p {
		b.data[(b.head+b.size)%len(b.data)] = c
		b.size++
	}
	return len(p), nil
}

// grow re-lays the contents from index 0 into a larger slice
func (b *Buffer) grow(need int) {
	capacity := len(b.data) * 2
	for capacity < need {
		capacity *= 2
	}
	data := make([]byte, capacity)
	b.copyOut(data)
	b.data = data
	b.head = 0
}

// copyOut copies up to len(p) buffered bytes into p without consuming them
func (b *Buffer) copyOut(p []byte) int {
	n := b.size
	if n > len(p) {
		n = len(p)
	}
	if b.head+n <= len(b.data) {
		copy(p, b.data[b.head:b.head+n])
	} else {
		// Buffer wrapped around
		first := copy(p, b.data[b.head:])
		copy(p[first:n], b.data[:n-first])
	}
	return n
}

// Read moves up to len(p) bytes out of the buffer
func (b *Buffer) Read(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.copyOut(p)
	b.head = (b.head + n) % len(b.data)
	b.size -= n
	if b.size == 0 {
		b.head = 0
	}
	return n
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// DeviceInfo is the public representation of a device
type DeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Link      string `json:"link,omitempty"`
	Attached  bool   `json:"attached"`
	HungUp    bool   `json:"hung_up"`
	Throttled bool   `json:"throttled"`
	Buffered  int    `json:"buffered"`
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
}
