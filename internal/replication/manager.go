package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/pkg/resp"
)

// DefaultQueueSize is the number of frames a replica may lag behind
// before it is disconnected.
const DefaultQueueSize = 4096

// Peer is the connection of an attached replica.
type Peer interface {
	ID() string
	WriteRaw(b []byte) error
	Flush() error
	Close() error
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithQueueSize sets the per-replica queue capacity.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// Manager is the master-side replica registry.
//
// mu is the single-writer lock. Writes mutate the store and queue their
// frame inside Commit while holding it, so replicas receive writes in the
// order the master applied them.
type Manager struct {
	state     *State
	logger    *slog.Logger
	queueSize int

	mu       sync.Mutex
	replicas map[string]*replica
	baseline int64         // offset after the last WAIT
	acked    chan struct{} // closed and replaced on every ack or detach
}

type replica struct {
	peer  Peer
	queue chan []byte
	done  chan struct{}
	once  sync.Once
	acked int64 // guarded by Manager.mu; -1 until the first ACK
}

func (r *replica) stop() {
	r.once.Do(func() { close(r.done) })
}

// NewManager creates a manager over state.
func NewManager(state *State, opts ...Option) *Manager {
	m := &Manager{
		state:     state,
		logger:    slog.Default(),
		queueSize: DefaultQueueSize,
		replicas:  make(map[string]*replica),
		acked:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the replication state.
func (m *Manager) State() *State {
	return m.state
}

// Count returns the number of attached replicas.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// Attached reports whether id is a registered replica.
func (m *Manager) Attached(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.replicas[id]
	return ok
}

// FullResync attaches peer as a replica.
//
// The FULLRESYNC reply and the snapshot returned by snapshot are queued
// ahead of any later write, so the replica receives them first and misses
// nothing in between.
func (m *Manager) FullResync(peer Peer, snapshot func() ([]byte, error)) error {
	if !m.state.IsMaster() {
		return domain.ErrNotMaster
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	payload, err := snapshot()
	if err != nil {
		return fmt.Errorf("replication: snapshot: %w", err)
	}

	if old, ok := m.replicas[peer.ID()]; ok {
		old.stop()
	}

	r := &replica{
		peer:  peer,
		queue: make(chan []byte, m.queueSize),
		done:  make(chan struct{}),
		acked: -1,
	}
	header := fmt.Sprintf("+FULLRESYNC %s %d\r\n", m.state.ReplID(), m.state.Offset())
	r.queue <- append([]byte(header), resp.EncodeRawBulk(payload)...)

	m.replicas[peer.ID()] = r
	go m.run(r)

	m.logger.Info("replica attached",
		"replica", peer.ID(),
		"offset", m.state.Offset(),
		"snapshot_bytes", len(payload))
	return nil
}

// run drains a replica's queue until it is stopped or a write fails.
func (m *Manager) run(r *replica) {
	for {
		select {
		case <-r.done:
			return
		case frame := <-r.queue:
			err := r.peer.WriteRaw(frame)
		drain:
			for err == nil {
				select {
				case f := <-r.queue:
					err = r.peer.WriteRaw(f)
				default:
					break drain
				}
			}
			if err == nil {
				err = r.peer.Flush()
			}
			if err != nil {
				m.logger.Warn("replica write failed",
					"replica", r.peer.ID(),
					"error", err)
				m.drop(r)
				return
			}
		}
	}
}

// Detach removes the replica registered under id, if any.
func (m *Manager) Detach(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[id]
	if !ok {
		return
	}
	delete(m.replicas, id)
	r.stop()
	m.signalLocked()
	m.logger.Info("replica detached", "replica", id)
}

// drop removes r and closes its connection.
func (m *Manager) drop(r *replica) {
	m.mu.Lock()
	if cur, ok := m.replicas[r.peer.ID()]; ok && cur == r {
		delete(m.replicas, r.peer.ID())
		m.signalLocked()
	}
	m.mu.Unlock()

	r.stop()
	_ = r.peer.Close()
}

// Commit runs apply under the single-writer lock and propagates the frame
// it returns: the offset grows by its length and it is queued for every
// attached replica. A nil frame propagates nothing. apply must not call
// back into the manager, and the frame must not be modified afterwards.
func (m *Manager) Commit(apply func() []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw := apply(); raw != nil {
		m.propagateLocked(raw)
	}
}

// propagateLocked advances the offset by len(raw) and queues raw for
// every attached replica. raw must not be modified afterwards.
func (m *Manager) propagateLocked(raw []byte) {
	m.state.advance(len(raw))
	for id, r := range m.replicas {
		select {
		case r.queue <- raw:
		default:
			m.logger.Warn("replica queue full, disconnecting",
				"replica", id,
				"queue_size", m.queueSize)
			delete(m.replicas, id)
			r.stop()
			go r.peer.Close()
		}
	}
}

// Ack records that the replica id has processed up to offset.
func (m *Manager) Ack(id string, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[id]
	if !ok {
		return
	}
	if offset > r.acked {
		r.acked = offset
	}
	m.signalLocked()
}

func (m *Manager) signalLocked() {
	close(m.acked)
	m.acked = make(chan struct{})
}

func (m *Manager) countAckedLocked(target int64) int {
	n := 0
	for _, r := range m.replicas {
		if r.acked >= target {
			n++
		}
	}
	return n
}

// Wait blocks until n replicas have acknowledged every write made before
// the call, or until timeout elapses. A zero timeout waits until ctx is
// done. It returns the number of replicas that acknowledged, capped at n
// when the quorum was reached.
//
// If nothing was written since the previous Wait, the number of attached
// replicas is returned without probing them. With no replica attached it
// returns 0 at once and leaves the offset alone.
func (m *Manager) Wait(ctx context.Context, n int, timeout time.Duration) int {
	m.mu.Lock()
	target := m.state.Offset()
	if target == m.baseline {
		count := len(m.replicas)
		m.mu.Unlock()
		return count
	}

	acked := m.countAckedLocked(target)
	if n <= 0 || acked >= n {
		m.baseline = target
		m.mu.Unlock()
		return min(acked, max(n, 0))
	}

	// No stream to probe: GETACK would only inflate the offset.
	if len(m.replicas) == 0 {
		m.baseline = target
		m.mu.Unlock()
		return 0
	}

	m.propagateLocked(resp.EncodeCommand("REPLCONF", "GETACK", "*"))
	m.baseline = m.state.Offset()
	m.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		m.mu.Lock()
		acked = m.countAckedLocked(target)
		signal := m.acked
		m.mu.Unlock()

		if acked >= n {
			return n
		}
		select {
		case <-signal:
		case <-expired:
			return m.countAcked(target)
		case <-ctx.Done():
			return m.countAcked(target)
		}
	}
}

func (m *Manager) countAcked(target int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countAckedLocked(target)
}

// Close detaches every replica and closes its connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	replicas := m.replicas
	m.replicas = make(map[string]*replica)
	m.signalLocked()
	m.mu.Unlock()

	for _, r := range replicas {
		r.stop()
		_ = r.peer.Close()
	}
	return nil
}
