package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/devrev/inde-monitor/internal/dashboard"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Stream pushes dashboard snapshots to websocket clients at a fixed interval
type Stream struct {
	generate func() dashboard.Data
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closing chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewStream creates a stream that calls generate once per interval per client
func NewStream(generate func() dashboard.Data, interval time.Duration, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Stream{
		generate: generate,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
		closing: make(chan struct{}),
	}
}

// ServeHTTP handles GET /api/v1/stream
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	if !s.register(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer s.unregister(conn)

	s.logger.Debug("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, done)

	s.logger.Debug("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// Clients returns the number of connected clients
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close sends a close frame to every client and waits for their pumps to exit
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Stream) register(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Stream) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
	s.wg.Done()
}

// readPump drains client frames so pongs and close frames are processed.
// It closes done when the peer goes away.
func (s *Stream) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Stream) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	pinger := time.NewTicker(pingPeriod)
	defer pinger.Stop()

	if err := s.send(conn); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-pinger.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("WebSocket ping failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := s.send(conn); err != nil {
				return
			}
		}
	}
}

func (s *Stream) send(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(s.generate()); err != nil {
		s.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	return nil
}
