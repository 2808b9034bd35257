package websocket

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
)

// EchoPeer is an http.Handler that plays the remote processor: it serves
// /channels/{name} for the configured names and echoes every data frame
// back, honouring credit in both directions.
type EchoPeer struct {
	// Window is the credit granted to each client.
	Window int

	names    map[string]bool
	upgrader gorilla.Upgrader
	logger   *logging.Logger

	mu       sync.Mutex
	sessions map[string]map[*peerSession]struct{}
}

// NewEchoPeer creates a peer exposing the given channel names.
func NewEchoPeer(names ...string) *EchoPeer {
	p := &EchoPeer{
		Window:   16 * 1024,
		names:    make(map[string]bool, len(names)),
		logger:   logging.NewNop(),
		sessions: make(map[string]map[*peerSession]struct{}),
		upgrader: gorilla.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, n := range names {
		p.names[n] = true
	}
	return p
}

// WithLogger sets the logger
func (p *EchoPeer) WithLogger(logger *logging.Logger) *EchoPeer {
	p.logger = logger.Named("echo-peer")
	return p
}

// ServeHTTP implements http.Handler.
func (p *EchoPeer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutPrefix(r.URL.EscapedPath(), "/channels/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	name, err := url.PathUnescape(raw)
	if err != nil || !p.names[name] {
		http.NotFound(w, r)
		return
	}

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	s := &peerSession{conn: conn}
	p.track(name, s, true)
	defer p.track(name, s, false)

	p.logger.Info("channel connected",
		zap.String("channel_name", name),
		zap.String("session", r.Header.Get(SessionHeader)))
	s.run(p.Window)
}

func (p *EchoPeer) track(name string, s *peerSession, add bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if add {
		if p.sessions[name] == nil {
			p.sessions[name] = make(map[*peerSession]struct{})
		}
		p.sessions[name][s] = struct{}{}
		return
	}
	delete(p.sessions[name], s)
}

// Sessions returns the number of live connections for name.
func (p *EchoPeer) Sessions(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions[name])
}

// Hangup closes every live connection for name from the peer side and
// returns how many were closed.
func (p *EchoPeer) Hangup(name string) int {
	p.mu.Lock()
	var victims []*peerSession
	for s := range p.sessions[name] {
		victims = append(victims, s)
	}
	p.mu.Unlock()

	for _, s := range victims {
		s.hangup()
	}
	return len(victims)
}

// peerSession is one accepted connection.
type peerSession struct {
	conn *gorilla.Conn

	writeMu sync.Mutex
	credit  int
	pending bytes.Buffer
}

func (s *peerSession) write(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(gorilla.BinaryMessage, msg)
}

func (s *peerSession) hangup() {
	_ = s.write(encodeClose())
	s.writeMu.Lock()
	_ = s.conn.WriteControl(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "hangup"),
		time.Now().Add(closeWait))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}

func (s *peerSession) run(window int) {
	defer s.conn.Close()

	if err := s.write(encodeCredit(uint32(window))); err != nil {
		return
	}

	for {
		kind, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != gorilla.BinaryMessage {
			continue
		}
		f, err := decodeFrame(msg)
		if err != nil {
			continue
		}

		switch f.kind {
		case frameData:
			s.pending.Write(f.payload)
			if err := s.write(encodeCredit(uint32(len(f.payload)))); err != nil {
				return
			}
		case frameCredit:
			s.credit += int(f.credit)
		case frameClose:
			return
		}

		if err := s.flush(); err != nil {
			return
		}
	}
}

// flush echoes as much pending data as the client has credit for.
func (s *peerSession) flush() error {
	for s.pending.Len() > 0 && s.credit > 0 {
		n := s.pending.Len()
		if n > s.credit {
			n = s.credit
		}
		if err := s.write(encodeData(s.pending.Next(n))); err != nil {
			return err
		}
		s.credit -= n
	}
	return nil
}
