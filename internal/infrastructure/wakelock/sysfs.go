package wakelock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	lockFile   = "wake_lock"
	unlockFile = "wake_unlock"
)

// Sysfs drives kernel wakelocks through /sys/power/wake_lock and
// /sys/power/wake_unlock.
type Sysfs struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewSysfs creates an inhibitor rooted at root (normally /sys/power).
func NewSysfs(fs afero.Fs, root string) *Sysfs {
	return &Sysfs{fs: fs, root: root, now: time.Now}
}

// Available reports whether the wakelock interface exists under root.
func (s *Sysfs) Available() bool {
	for _, name := range []string{lockFile, unlockFile} {
		if _, err := s.fs.Stat(filepath.Join(s.root, name)); err != nil {
			return false
		}
	}
	return true
}

// Acquire implements Inhibitor. The kernel lock is created lazily on the
// first Extend.
func (s *Sysfs) Acquire(name string) (Token, error) {
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !s.Available() {
		return nil, fmt.Errorf("%w: no wakelock interface under %s", ErrUnavailable, s.root)
	}
	return &sysfsToken{owner: s, name: name}, nil
}

func (s *Sysfs) write(file, line string) error {
	f, err := s.fs.OpenFile(filepath.Join(s.root, file), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type sysfsToken struct {
	owner *Sysfs
	name  string

	mu        sync.Mutex
	deadline  time.Time
	locked    bool
	released  bool
	lastError error
}

// Extend writes a timed lock. Writes are coalesced while more than half of
// the requested window is still ahead.
func (t *sysfsToken) Extend(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return
	}
	now := t.owner.now()
	want := now.Add(d)
	if t.locked && t.deadline.Sub(now) > d/2 {
		return
	}

	if err := t.owner.write(lockFile, fmt.Sprintf("%s %d", t.name, d.Nanoseconds())); err != nil {
		t.lastError = err
		return
	}
	t.deadline = want
	t.locked = true
}

func (t *sysfsToken) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return
	}
	t.released = true
	if t.locked {
		t.lastError = t.owner.write(unlockFile, t.name)
	}
}

// Err returns the last write error, if any.
func (t *sysfsToken) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}
