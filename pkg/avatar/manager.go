// Package avatar maintains the process-wide connection to the avatar
// streaming provider and exposes the liveness/re-creation contract the
// monitor consumes.
package avatar

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultPingInterval = 15 * time.Second
	// pongGrace is how long after the last pong the connection still
	// counts as live.
	pongGrace = 45 * time.Second
	// recentErrorCap bounds the recent-log window the monitor inspects.
	recentErrorCap = 50
)

// Config describes the provider streaming endpoint.
type Config struct {
	URL          string
	AuthToken    string
	DialTimeout  time.Duration
	PingInterval time.Duration
}

// Manager owns one websocket session to the avatar provider. All methods
// are safe for concurrent use.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	lastPong time.Time
	errs     []string
	closed   bool
}

func NewManager(cfg Config, log *zap.Logger) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: log}
}

// Connect dials the provider and starts the read/ping loops. Idempotent:
// an existing connection is replaced.
func (m *Manager) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}
	header := http.Header{}
	if m.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+m.cfg.AuthToken)
	}
	conn, resp, err := dialer.DialContext(ctx, m.cfg.URL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		m.recordError(fmt.Sprintf("dial failed: %v (status=%d)", err, status))
		return err
	}
	conn.SetPongHandler(func(string) error {
		m.mu.Lock()
		m.lastPong = time.Now()
		m.mu.Unlock()
		return nil
	})

	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.conn = conn
	m.lastPong = time.Now()
	m.closed = false
	m.mu.Unlock()

	m.log.Info("avatar session connected", zap.String("url", m.cfg.URL))
	go m.readLoop(conn)
	go m.pingLoop(conn)
	return nil
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.recordError(fmt.Sprintf("read failed: %v", err))
			}
			return
		}
	}
}

func (m *Manager) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		current := m.conn == conn
		m.mu.Unlock()
		if !current {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.DialTimeout)); err != nil {
			m.recordError(fmt.Sprintf("ping failed: %v", err))
			return
		}
	}
}

// Live reports whether an open connection has answered a ping recently.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && time.Since(m.lastPong) < pongGrace
}

// Active reports whether a session connection currently exists.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// RecentErrors returns a copy of the error markers logged since the last reset.
func (m *Manager) RecentErrors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.errs))
	copy(out, m.errs)
	return out
}

// ResetErrors clears the recent-log window after a successful recovery.
func (m *Manager) ResetErrors() {
	m.mu.Lock()
	m.errs = nil
	m.mu.Unlock()
}

// Recreate tears down the current connection and dials a fresh one.
func (m *Manager) Recreate(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
	return m.Connect(ctx)
}

// Close shuts the session down for good.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) recordError(msg string) {
	m.log.Warn("avatar session error", zap.String("error", msg))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
	if len(m.errs) > recentErrorCap {
		m.errs = m.errs[len(m.errs)-recentErrorCap:]
	}
}
