package websocket

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/wakelock"
	"github.com/GriffinCanCode/chanbridge/internal/testutil"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

const waitFor = 2 * time.Second

type events struct {
	mu   sync.Mutex
	list []transport.EventKind
}

func (e *events) notify(kind transport.EventKind) {
	e.mu.Lock()
	e.list = append(e.list, kind)
	e.mu.Unlock()
}

func (e *events) count(kind transport.EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, k := range e.list {
		if k == kind {
			n++
		}
	}
	return n
}

func newPeer(t *testing.T, names ...string) (*EchoPeer, *httptest.Server) {
	t.Helper()
	return newPeerWindow(t, 16*1024, names...)
}

func newPeerWindow(t *testing.T, window int, names ...string) (*EchoPeer, *httptest.Server) {
	t.Helper()
	peer := NewEchoPeer(names...)
	peer.Window = window
	srv := httptest.NewServer(peer)
	t.Cleanup(srv.Close)
	return peer, srv
}

func TestFrameCodec(t *testing.T) {
	tests := []struct {
		name    string
		msg     []byte
		want    frame
		wantErr bool
	}{
		{name: "data", msg: encodeData([]byte("abc")), want: frame{kind: frameData, payload: []byte("abc")}},
		{name: "empty data", msg: encodeData(nil), want: frame{kind: frameData, payload: []byte{}}},
		{name: "credit", msg: encodeCredit(70000), want: frame{kind: frameCredit, credit: 70000}},
		{name: "close", msg: encodeClose(), want: frame{kind: frameClose}},
		{name: "empty", msg: nil, wantErr: true},
		{name: "short credit", msg: []byte{frameCredit, 1}, wantErr: true},
		{name: "unknown", msg: []byte{0x7f}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFrame(tt.msg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://127.0.0.1:9000", want: "ws://127.0.0.1:9000/channels/SMD_DS"},
		{base: "https://modem/", want: "wss://modem/channels/SMD_DS"},
		{base: "ws://modem/peer", want: "ws://modem/peer/channels/SMD_DS"},
		{base: "ftp://modem", wantErr: true},
	}

	for _, tt := range tests {
		got, err := channelURL(tt.base, "SMD_DS")
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestOpenUnknownChannel(t *testing.T) {
	_, srv := newPeer(t, "SMD_DS")
	d := NewDialer(srv.URL, 0, time.Second)

	_, err := d.Open("SMD_NOPE", nil)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestEchoRoundTrip(t *testing.T) {
	peer, srv := newPeer(t, "SMD_DS")
	d := NewDialer(srv.URL, 1024, time.Second)

	var ev events
	ch, err := d.Open("SMD_DS", ev.notify)
	require.NoError(t, err)
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.WriteAvailable() == peer.Window }, waitFor, time.Millisecond)
	assert.Equal(t, 1, peer.Sessions("SMD_DS"))

	n, err := ch.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Eventually(t, func() bool { return ch.ReadAvailable() == 5 }, waitFor, time.Millisecond)
	assert.GreaterOrEqual(t, ev.count(transport.EventDataAvailable), 1)

	buf := make([]byte, 16)
	n, err = ch.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, 0, ch.ReadAvailable())

	// The peer returns credit as it consumes.
	require.Eventually(t, func() bool { return ch.WriteAvailable() == peer.Window }, waitFor, time.Millisecond)
}

func TestCreditBoundsInbound(t *testing.T) {
	_, srv := newPeer(t, "SMD_DS")
	d := NewDialer(srv.URL, 8, time.Second)

	ch, err := d.Open("SMD_DS", nil)
	require.NoError(t, err)
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.WriteAvailable() > 0 }, waitFor, time.Millisecond)
	n, err := ch.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	require.Equal(t, 16, n)

	var got []byte
	buf := make([]byte, 64)
	deadline := time.Now().Add(waitFor)
	for len(got) < 16 && time.Now().Before(deadline) {
		// Never more than the window is buffered locally.
		require.LessOrEqual(t, ch.ReadAvailable(), 8)
		n, err := ch.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, "0123456789abcdef", string(got))
}

func TestWriteClampedToCredit(t *testing.T) {
	_, srv := newPeerWindow(t, 4, "SMD_DS")
	d := NewDialer(srv.URL, 1024, time.Second)

	ch, err := d.Open("SMD_DS", nil)
	require.NoError(t, err)
	defer ch.Close()

	require.Eventually(t, func() bool { return ch.WriteAvailable() == 4 }, waitFor, time.Millisecond)
	n, err := ch.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPeerHangup(t *testing.T) {
	peer, srv := newPeer(t, "SMD_GPSNMEA")
	d := NewDialer(srv.URL, 0, time.Second)

	var ev events
	ch, err := d.Open("SMD_GPSNMEA", ev.notify)
	require.NoError(t, err)
	defer ch.Close()

	require.Eventually(t, func() bool { return peer.Sessions("SMD_GPSNMEA") == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 1, peer.Hangup("SMD_GPSNMEA"))

	require.Eventually(t, func() bool { return ev.count(transport.EventPeerClosed) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, ch.WriteAvailable())
	assert.Error(t, ch.Kick())
}

func TestCloseStopsNotifications(t *testing.T) {
	peer, srv := newPeer(t, "SMD_DS")
	d := NewDialer(srv.URL, 0, time.Second)

	var ev events
	ch, err := d.Open("SMD_DS", ev.notify)
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.Eventually(t, func() bool { return peer.Sessions("SMD_DS") == 0 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, ev.count(transport.EventPeerClosed))

	assert.ErrorIs(t, ch.Close(), transport.ErrClosed)
	assert.ErrorIs(t, ch.Kick(), transport.ErrClosed)
	_, err = ch.Read(make([]byte, 1))
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = ch.Write([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestBridgeOverWebSocket(t *testing.T) {
	_, srv := newPeer(t, "SMD_DS", "SMD_GPSNMEA")

	reg := registry.New(registry.DefaultMaxChannels)
	b, err := bridge.New(reg, NewDialer(srv.URL, 4096, time.Second), wakelock.NewMemory(), bridge.Config{})
	require.NoError(t, err)
	defer b.Shutdown()

	sink := testutil.NewRecordingSink()
	require.NoError(t, b.Open(0, sink))

	require.Eventually(t, func() bool { return b.WriteAvailable(0) > 0 }, waitFor, time.Millisecond)
	n, err := b.Write(0, []byte("AT+CSQ\r"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.Eventually(t, func() bool { return string(sink.Data()) == "AT+CSQ\r" }, waitFor, time.Millisecond)
	require.NoError(t, b.Close(0))
}
