package wakelock

import (
	"sync"
	"time"
)

// Memory tracks tokens in process. It is the default backend on hosts
// without kernel wakelocks and lets callers observe the inhibit state.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	tokens  map[string]*memoryToken
	fail    error
	created int
}

// NewMemory creates an in-memory inhibitor.
func NewMemory() *Memory {
	return &Memory{
		now:    time.Now,
		tokens: make(map[string]*memoryToken),
	}
}

// FailNext makes the next Acquire return err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Acquire implements Inhibitor. Acquiring a name that is already held
// returns a second independent token; Held reports the latest one.
func (m *Memory) Acquire(name string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail; err != nil {
		m.fail = nil
		return nil, err
	}

	tok := &memoryToken{owner: m, name: name}
	m.tokens[name] = tok
	m.created++
	return tok, nil
}

// Held reports whether a token for name exists and has not been released.
func (m *Memory) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.tokens[name]
	return ok
}

// Active reports whether name currently keeps the system awake.
func (m *Memory) Active(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[name]
	return ok && tok.deadline.After(m.now())
}

// Extensions returns how many times the live token for name was extended.
func (m *Memory) Extensions(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok, ok := m.tokens[name]; ok {
		return tok.extensions
	}
	return 0
}

// Outstanding returns the number of unreleased tokens.
func (m *Memory) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// Created returns how many tokens were handed out in total.
func (m *Memory) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

type memoryToken struct {
	owner      *Memory
	name       string
	deadline   time.Time
	extensions int
	released   bool
}

func (t *memoryToken) Extend(d time.Duration) {
	m := t.owner
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.released {
		return
	}
	t.deadline = m.now().Add(d)
	t.extensions++
}

func (t *memoryToken) Release() {
	m := t.owner
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.released {
		return
	}
	t.released = true
	if m.tokens[t.name] == t {
		delete(m.tokens, t.name)
	}
}
