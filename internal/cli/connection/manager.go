package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/minikv/pkg/resp"
)

// ErrNotConnected is returned when no server is connected.
var ErrNotConnected = errors.New("not connected to any server")

// Manager manages the current connection for interactive sessions.
type Manager struct {
	timeout time.Duration

	mu      sync.Mutex
	current *Client
}

// NewManager creates a new connection manager. timeout applies to every
// client it dials.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Connect dials addr and makes it the current connection, closing the
// previous one. On failure the previous connection is kept.
func (m *Manager) Connect(ctx context.Context, addr string) error {
	c, err := Dial(ctx, addr, m.timeout)
	if err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.current
	m.current = c
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Disconnect closes the current connection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
}

// Current returns the current client, or nil.
func (m *Manager) Current() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.Current() != nil
}

// Do runs a command on the current connection. A transport failure drops
// the connection so the next Connect starts clean.
func (m *Manager) Do(ctx context.Context, args ...string) (resp.Value, error) {
	c := m.Current()
	if c == nil {
		return resp.Value{}, ErrNotConnected
	}
	v, err := c.Do(ctx, args...)
	if err != nil {
		m.mu.Lock()
		if m.current == c {
			m.current = nil
		}
		m.mu.Unlock()
	}
	return v, err
}
