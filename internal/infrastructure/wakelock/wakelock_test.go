package wakelock

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewMemory()
	m.now = clock.now

	tok, err := m.Acquire("SMD_DS")
	require.NoError(t, err)
	assert.True(t, m.Held("SMD_DS"))
	assert.False(t, m.Active("SMD_DS"))

	tok.Extend(500 * time.Millisecond)
	assert.True(t, m.Active("SMD_DS"))
	assert.Equal(t, 1, m.Extensions("SMD_DS"))

	clock.advance(600 * time.Millisecond)
	assert.False(t, m.Active("SMD_DS"))
	assert.True(t, m.Held("SMD_DS"))

	tok.Release()
	assert.False(t, m.Held("SMD_DS"))
	assert.Equal(t, 0, m.Outstanding())

	// Released tokens ignore further calls.
	tok.Extend(time.Second)
	tok.Release()
	assert.False(t, m.Active("SMD_DS"))
	assert.Equal(t, 1, m.Created())
}

func TestMemoryFailNext(t *testing.T) {
	m := NewMemory()
	boom := errors.New("no memory")
	m.FailNext(boom)

	_, err := m.Acquire("SMD_DS")
	assert.ErrorIs(t, err, boom)

	_, err = m.Acquire("SMD_DS")
	assert.NoError(t, err)
}

func TestMemoryStaleReleaseKeepsNewToken(t *testing.T) {
	m := NewMemory()

	old, err := m.Acquire("SMD_DS")
	require.NoError(t, err)
	_, err = m.Acquire("SMD_DS")
	require.NoError(t, err)

	old.Release()
	assert.True(t, m.Held("SMD_DS"))
}

func newSysfs(t *testing.T) (*Sysfs, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sys/power", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/sys/power/wake_lock", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/sys/power/wake_unlock", nil, 0o644))
	return NewSysfs(fs, "/sys/power"), fs
}

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return strings.Fields(strings.ReplaceAll(string(data), " ", "|"))
}

func TestSysfsExtendAndRelease(t *testing.T) {
	s, fs := newSysfs(t)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s.now = clock.now

	tok, err := s.Acquire("SMD_DS")
	require.NoError(t, err)
	assert.Empty(t, readLines(t, fs, "/sys/power/wake_lock"))

	tok.Extend(500 * time.Millisecond)
	// Coalesced: plenty of the window is left.
	clock.advance(100 * time.Millisecond)
	tok.Extend(500 * time.Millisecond)
	// Renewed: less than half remains.
	clock.advance(200 * time.Millisecond)
	tok.Extend(500 * time.Millisecond)

	assert.Equal(t, []string{"SMD_DS|500000000", "SMD_DS|500000000"}, readLines(t, fs, "/sys/power/wake_lock"))

	tok.Release()
	tok.Release()
	assert.Equal(t, []string{"SMD_DS"}, readLines(t, fs, "/sys/power/wake_unlock"))
	assert.NoError(t, tok.(*sysfsToken).Err())
}

func TestSysfsReleaseWithoutExtend(t *testing.T) {
	s, fs := newSysfs(t)

	tok, err := s.Acquire("SMD_GPSNMEA")
	require.NoError(t, err)
	tok.Release()

	assert.Empty(t, readLines(t, fs, "/sys/power/wake_unlock"))
}

func TestSysfsAcquireErrors(t *testing.T) {
	s, _ := newSysfs(t)

	_, err := s.Acquire("bad name")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.Acquire("")
	assert.ErrorIs(t, err, ErrInvalidName)

	missing := NewSysfs(afero.NewMemMapFs(), "/sys/power")
	assert.False(t, missing.Available())
	_, err = missing.Acquire("SMD_DS")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNop(t *testing.T) {
	tok, err := Nop{}.Acquire("SMD_DS")
	require.NoError(t, err)
	tok.Extend(time.Second)
	tok.Release()
}
