package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yndnr/minikv/internal/core/domain"
)

// ReplIDLen is the length of a replication ID in hex characters.
const ReplIDLen = 40

// State is the process-wide replication state.
//
// On a master, Offset counts the bytes of every write propagated since
// startup. On a replica, it is the master offset the replica has
// processed up to.
type State struct {
	role       domain.Role
	masterAddr string
	offset     atomic.Int64

	mu     sync.RWMutex
	replID string
}

// NewState creates the state for the given role with a fresh replication
// ID. masterAddr is only meaningful for replicas.
func NewState(role domain.Role, masterAddr string) (*State, error) {
	id, err := NewReplID()
	if err != nil {
		return nil, err
	}
	return &State{role: role, masterAddr: masterAddr, replID: id}, nil
}

// NewReplID returns 20 random bytes, hex encoded.
func NewReplID() (string, error) {
	buf := make([]byte, ReplIDLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *State) Role() domain.Role {
	return s.role
}

func (s *State) IsMaster() bool {
	return s.role == domain.RoleMaster
}

// MasterAddr returns the upstream "host:port" of a replica.
func (s *State) MasterAddr() string {
	return s.masterAddr
}

func (s *State) ReplID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replID
}

// SetReplID adopts the master's replication ID after a full resync.
func (s *State) SetReplID(id string) {
	s.mu.Lock()
	s.replID = id
	s.mu.Unlock()
}

func (s *State) Offset() int64 {
	return s.offset.Load()
}

// SetOffset records the processed offset of a replica.
func (s *State) SetOffset(off int64) {
	s.offset.Store(off)
}

// advance adds n bytes to a master's offset and returns the new value.
func (s *State) advance(n int) int64 {
	return s.offset.Add(int64(n))
}
