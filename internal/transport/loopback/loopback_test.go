package loopback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

type eventLog struct {
	mu     sync.Mutex
	events []transport.EventKind
}

func (l *eventLog) notify(kind transport.EventKind) {
	l.mu.Lock()
	l.events = append(l.events, kind)
	l.mu.Unlock()
}

func (l *eventLog) all() []transport.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]transport.EventKind(nil), l.events...)
}

func TestOpenUnknownChannel(t *testing.T) {
	lb := New()
	_, err := lb.Open("SMD_NOPE", nil)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestOpenTwiceFails(t *testing.T) {
	lb := New()
	lb.Declare("SMD_DS", Options{})

	ch, err := lb.Open("SMD_DS", nil)
	require.NoError(t, err)
	_, err = lb.Open("SMD_DS", nil)
	assert.Error(t, err)

	require.NoError(t, ch.Close())
	ch, err = lb.Open("SMD_DS", nil)
	require.NoError(t, err)
	assert.NoError(t, ch.Close())
}

func TestStreamReadWrite(t *testing.T) {
	lb := New()
	peer := lb.Declare("SMD_DS", Options{WriteCapacity: 4})

	var log eventLog
	ch, err := lb.Open("SMD_DS", log.notify)
	require.NoError(t, err)

	n, err := peer.Send([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = peer.Send([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []transport.EventKind{transport.EventDataAvailable, transport.EventDataAvailable}, log.all())

	assert.Equal(t, 11, ch.ReadAvailable())
	buf := make([]byte, 7)
	n, err = ch.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello w", string(buf[:n]))
	assert.Equal(t, 4, ch.ReadAvailable())

	assert.Equal(t, 4, ch.WriteAvailable())
	n, err = ch.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 0, ch.WriteAvailable())
	assert.Equal(t, "abcd", string(peer.Received()))

	assert.Equal(t, "abcd", string(peer.Consume()))
	assert.Equal(t, 4, ch.WriteAvailable())
}

func TestPacketMode(t *testing.T) {
	lb := New()
	peer := lb.Declare("SMD_DIAG", Options{Mode: ModePacket, Capacity: 8})
	ch, err := lb.Open("SMD_DIAG", nil)
	require.NoError(t, err)

	_, err = peer.Send([]byte("abc"))
	require.NoError(t, err)
	_, err = peer.Send([]byte("defg"))
	require.NoError(t, err)
	_, err = peer.Send([]byte("hij"))
	assert.ErrorIs(t, err, ErrPeerFull)

	assert.Equal(t, 3, ch.ReadAvailable())
	buf := make([]byte, 16)
	n, err := ch.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))
	assert.Equal(t, 4, ch.ReadAvailable())

	_, err = ch.Write([]byte("xy"))
	require.NoError(t, err)
	_, err = ch.Write([]byte("z"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("xy"), []byte("z")}, peer.Packets())
}

func TestShortReadInjection(t *testing.T) {
	lb := New()
	peer := lb.Declare("SMD_DS", Options{})
	ch, err := lb.Open("SMD_DS", nil)
	require.NoError(t, err)

	_, err = peer.Send([]byte("0123456789"))
	require.NoError(t, err)
	peer.InjectShortRead(3)

	buf := make([]byte, ch.ReadAvailable())
	n, err := ch.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 3, ch.ReadAvailable())

	n, err = ch.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "789", string(buf[:n]))
}

func TestClosedHandle(t *testing.T) {
	lb := New()
	peer := lb.Declare("SMD_DS", Options{})

	var log eventLog
	ch, err := lb.Open("SMD_DS", log.notify)
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	_, err = peer.Send([]byte("late"))
	require.NoError(t, err)
	peer.Hangup()
	assert.Empty(t, log.all())

	_, err = ch.Read(make([]byte, 4))
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = ch.Write([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Equal(t, 0, ch.ReadAvailable())
	assert.ErrorIs(t, ch.Kick(), transport.ErrClosed)
	assert.ErrorIs(t, ch.Close(), transport.ErrClosed)

	// Queued data survives for the next opener.
	assert.Equal(t, 4, peer.Pending())
}

func TestKickRedeliversPendingData(t *testing.T) {
	lb := New()
	peer := lb.Declare("SMD_DS", Options{})

	var log eventLog
	ch, err := lb.Open("SMD_DS", log.notify)
	require.NoError(t, err)

	require.NoError(t, ch.Kick())
	assert.Empty(t, log.all())

	_, err = peer.Send([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, ch.Kick())
	assert.Equal(t, []transport.EventKind{transport.EventDataAvailable, transport.EventDataAvailable}, log.all())
	assert.Equal(t, 2, peer.Kicks())
	assert.Equal(t, 1, peer.Opens())
}

func TestHangupNotifies(t *testing.T) {
	lb := New()
	peer := lb.Declare("SMD_DS", Options{})

	var log eventLog
	_, err := lb.Open("SMD_DS", log.notify)
	require.NoError(t, err)
	assert.True(t, peer.IsOpen())

	peer.Hangup()
	assert.Equal(t, []transport.EventKind{transport.EventPeerClosed}, log.all())
}
