package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
)

// SessionHeader carries the dial session ID.
const SessionHeader = "X-Chanbridge-Session"

const closeWait = time.Second

// Dialer opens channels on a remote peer over WebSocket.
type Dialer struct {
	// PeerURL is the peer's base URL (ws:// or wss://; http(s) is accepted).
	PeerURL string
	// Window is the inbound buffer per channel and the credit granted to
	// the peer.
	Window int
	// DialTimeout bounds the handshake.
	DialTimeout time.Duration
	// Logger defaults to a no-op logger.
	Logger *logging.Logger
}

// NewDialer creates a dialer with defaults filled in.
func NewDialer(peerURL string, window int, dialTimeout time.Duration) *Dialer {
	return &Dialer{
		PeerURL:     peerURL,
		Window:      window,
		DialTimeout: dialTimeout,
	}
}

// Open implements transport.Transport.
func (d *Dialer) Open(name string, notify transport.Notifier) (transport.Channel, error) {
	target, err := channelURL(d.PeerURL, name)
	if err != nil {
		return nil, err
	}

	window := d.Window
	if window <= 0 {
		window = 16 * 1024
	}
	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	session := uuid.NewString()
	header := http.Header{}
	header.Set(SessionHeader, session)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dialer := gorilla.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, name)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	c := &channel{
		name:    name,
		conn:    conn,
		notify:  notify,
		window:  window,
		logger:  logger.Named("ws").With(zap.String("channel_name", name), zap.String("session", session)),
		wake:    make(chan struct{}, 1),
		sendEnd: make(chan struct{}),
		readEnd: make(chan struct{}),
	}
	c.outbox = append(c.outbox, encodeCredit(uint32(window)))

	go c.sendLoop()
	go c.readLoop()
	c.signal()

	return c, nil
}

func channelURL(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse peer url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported peer url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/channels/" + url.PathEscape(name)
	return u.String(), nil
}

// channel is one WebSocket-backed channel. Reads drain a local buffer the
// read loop fills; writes spend credit granted by the peer and are queued
// for the send loop, so neither blocks on the network.
type channel struct {
	name   string
	conn   *gorilla.Conn
	window int
	logger *logging.Logger

	mu       sync.Mutex
	notify   transport.Notifier
	inbound  bytes.Buffer
	credit   int
	unacked  int
	outbox   [][]byte
	closed   bool
	peerGone bool

	wake    chan struct{}
	sendEnd chan struct{}
	readEnd chan struct{}
}

func (c *channel) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// emit calls the notifier unless the channel was closed locally.
func (c *channel) emit(kind transport.EventKind) {
	c.mu.Lock()
	notify := c.notify
	if c.closed {
		notify = nil
	}
	c.mu.Unlock()

	if notify != nil {
		notify(kind)
	}
}

func (c *channel) readLoop() {
	defer close(c.readEnd)

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.peerClosed(err)
			return
		}
		if kind != gorilla.BinaryMessage {
			continue
		}

		f, err := decodeFrame(msg)
		if err != nil {
			c.logger.Warn("dropping frame", zap.Error(err))
			continue
		}

		switch f.kind {
		case frameData:
			if !c.receive(f.payload) {
				c.logger.Error("peer overran granted credit", zap.Int("bytes", len(f.payload)))
				c.peerClosed(nil)
				return
			}
			c.emit(transport.EventDataAvailable)
		case frameCredit:
			c.mu.Lock()
			c.credit += int(f.credit)
			c.mu.Unlock()
		case frameClose:
			c.peerClosed(nil)
			return
		}
	}
}

func (c *channel) receive(p []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inbound.Len()+len(p) > c.window {
		return false
	}
	c.inbound.Write(p)
	return true
}

func (c *channel) peerClosed(err error) {
	c.mu.Lock()
	already := c.peerGone || c.closed
	c.peerGone = true
	c.mu.Unlock()

	if already {
		return
	}
	if err != nil && !gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		c.logger.Debug("peer connection lost", zap.Error(err))
	}
	c.emit(transport.EventPeerClosed)
}

func (c *channel) sendLoop() {
	defer close(c.sendEnd)

	for range c.wake {
		c.mu.Lock()
		batch := c.outbox
		c.outbox = nil
		closing := c.closed
		c.mu.Unlock()

		for _, msg := range batch {
			if err := c.conn.WriteMessage(gorilla.BinaryMessage, msg); err != nil {
				c.logger.Debug("send failed", zap.Error(err))
				return
			}
		}
		if closing {
			_ = c.conn.WriteControl(gorilla.CloseMessage,
				gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""),
				time.Now().Add(closeWait))
			return
		}
	}
}

func (c *channel) ReadAvailable() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}
	return c.inbound.Len()
}

func (c *channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, transport.ErrClosed
	}

	n, _ := c.inbound.Read(p)
	c.unacked += n
	// Return credit in batches once half the window has been consumed.
	if c.unacked >= c.window/2 || (c.inbound.Len() == 0 && c.unacked > 0) {
		c.outbox = append(c.outbox, encodeCredit(uint32(c.unacked)))
		c.unacked = 0
		c.signal()
	}
	return n, nil
}

func (c *channel) WriteAvailable() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.peerGone {
		return 0
	}
	return c.credit
}

func (c *channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, transport.ErrClosed
	}
	if c.peerGone {
		return 0, nil
	}

	n := len(p)
	if n > c.credit {
		n = c.credit
	}
	if n == 0 {
		return 0, nil
	}
	c.credit -= n
	c.outbox = append(c.outbox, encodeData(p[:n]))
	c.signal()
	return n, nil
}

func (c *channel) Kick() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if c.peerGone {
		c.mu.Unlock()
		return errors.New("peer closed the connection")
	}
	pending := c.inbound.Len() > 0
	c.mu.Unlock()

	if pending {
		c.emit(transport.EventDataAvailable)
	}
	return nil
}

// Close sends a close frame, tears down the connection and waits for both
// loops, so no notification is delivered after it returns.
func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	c.closed = true
	if !c.peerGone {
		c.outbox = append(c.outbox, encodeClose())
	}
	c.mu.Unlock()
	c.signal()

	select {
	case <-c.sendEnd:
	case <-time.After(closeWait):
	}
	err := c.conn.Close()
	<-c.readEnd

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close %s: %w", c.name, err)
	}
	return nil
}

var _ transport.Transport = (*Dialer)(nil)
var _ transport.Channel = (*channel)(nil)
