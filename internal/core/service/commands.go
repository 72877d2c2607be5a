package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/internal/storage/rdb"
)

// maxExpireMillis keeps a TTL within time.Duration range.
const maxExpireMillis = math.MaxInt64 / int64(time.Millisecond)

// ====================================================================
// Connection commands
// ====================================================================

// PING [message]
func (e *Engine) handlePing(_ context.Context, req *request) error {
	switch len(req.cmd.Args) {
	case 0:
		return req.w.WriteSimpleString("PONG")
	case 1:
		return req.w.WriteBulkString(req.cmd.Args[0])
	default:
		return domain.ErrWrongArgs("ping")
	}
}

// ECHO message
func (e *Engine) handleEcho(_ context.Context, req *request) error {
	return req.w.WriteBulkString(req.cmd.Args[0])
}

// QUIT
func (e *Engine) handleQuit(_ context.Context, req *request) error {
	if err := req.w.WriteSimpleString("OK"); err != nil {
		return err
	}
	return ErrQuit
}

// COMMAND [subcommand]
//
// Answered with an empty array so that clients probing the command table
// on connect keep working.
func (e *Engine) handleCommand(_ context.Context, req *request) error {
	return req.w.WriteArray(nil)
}

// ====================================================================
// String commands
// ====================================================================

// SET key value [PX milliseconds | EX seconds]
func (e *Engine) handleSet(_ context.Context, req *request) error {
	args := req.cmd.Args
	key, value := args[0], []byte(args[1])

	var ttl time.Duration
	for i := 2; i < len(args); i += 2 {
		opt := strings.ToUpper(args[i])
		if (opt != "PX" && opt != "EX") || ttl != 0 || i+1 >= len(args) {
			return domain.ErrSyntax
		}
		n, err := strconv.ParseInt(args[i+1], 10, 64)
		if err != nil {
			return domain.ErrNotInteger
		}
		if opt == "EX" {
			if n > maxExpireMillis/1000 {
				return domain.ErrInvalidExpire
			}
			n *= 1000
		}
		if n <= 0 || n > maxExpireMillis {
			return domain.ErrInvalidExpire
		}
		ttl = time.Duration(n) * time.Millisecond
	}

	if ttl > 0 {
		e.store.PutWithTTL(key, value, ttl)
	} else {
		e.store.Put(key, value)
	}
	e.markWritten(key)
	req.dirty = true

	return req.w.WriteSimpleString("OK")
}

// GET key
func (e *Engine) handleGet(_ context.Context, req *request) error {
	value, ok, err := e.lookup(req.cmd.Args[0])
	if err != nil {
		return err
	}
	if !ok {
		return req.w.WriteNullBulk()
	}
	return req.w.WriteBulk(value)
}

// DEL key [key ...]
func (e *Engine) handleDel(_ context.Context, req *request) error {
	var n int64
	for _, key := range req.cmd.Args {
		removed := e.store.Delete(key)
		if !removed {
			readable, err := e.snapshotReadable(key)
			if err != nil {
				return err
			}
			if readable {
				if _, removed, err = e.lookupSnapshot(key); err != nil {
					return err
				}
			}
		}
		e.markWritten(key)
		if removed {
			n++
		}
	}
	req.dirty = n > 0
	return req.w.WriteInteger(n)
}

// EXISTS key [key ...]
func (e *Engine) handleExists(_ context.Context, req *request) error {
	var n int64
	for _, key := range req.cmd.Args {
		_, ok, err := e.lookup(key)
		if err != nil {
			return err
		}
		if ok {
			n++
		}
	}
	return req.w.WriteInteger(n)
}

// TYPE key
func (e *Engine) handleType(_ context.Context, req *request) error {
	_, ok, err := e.lookup(req.cmd.Args[0])
	if err != nil {
		return err
	}
	if !ok {
		return req.w.WriteSimpleString("none")
	}
	return req.w.WriteSimpleString("string")
}

// KEYS [pattern]
//
// Keys held by the live store, plus unexpired snapshot keys the engine
// has not written, filtered by pattern and sorted.
func (e *Engine) handleKeys(_ context.Context, req *request) error {
	pattern := "*"
	switch len(req.cmd.Args) {
	case 0:
	case 1:
		pattern = req.cmd.Args[0]
	default:
		return domain.ErrWrongArgs("keys")
	}

	seen := make(map[string]struct{})
	for _, k := range e.store.Keys() {
		seen[k] = struct{}{}
	}

	if e.filename != "" {
		keys, err := rdb.Keys(e.SnapshotPath())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		for _, k := range keys {
			readable, err := e.snapshotReadable(k)
			if err != nil {
				return err
			}
			if readable {
				seen[k] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		if matchGlob(pattern, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return req.w.WriteStringArray(out)
}

// lookup reads key from the live store, falling back to the snapshot
// file for snapshot keys the engine has not written.
func (e *Engine) lookup(key string) ([]byte, bool, error) {
	if v, ok := e.store.Get(key); ok {
		return v, true, nil
	}
	readable, err := e.snapshotReadable(key)
	if err != nil || !readable {
		return nil, false, err
	}
	return e.lookupSnapshot(key)
}

func (e *Engine) lookupSnapshot(key string) ([]byte, bool, error) {
	v, ok, err := rdb.LookupKey(e.SnapshotPath(), key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	return v, ok, err
}

// ====================================================================
// Server commands
// ====================================================================

// CONFIG GET parameter
func (e *Engine) handleConfig(_ context.Context, req *request) error {
	args := req.cmd.Args
	if req.cmd.Arg(0) != "GET" {
		return domain.Errorf(domain.KindCommand, "unknown subcommand '%s'. Try CONFIG GET", args[0])
	}
	if len(args) != 2 {
		return domain.ErrWrongArgs("config|get")
	}

	params := [][2]string{
		{"dir", e.dir},
		{"dbfilename", e.filename},
	}
	pattern := strings.ToLower(args[1])
	var out []string
	for _, p := range params {
		if p[1] != "" && matchGlob(pattern, p[0]) {
			out = append(out, p[0], p[1])
		}
	}
	if len(out) == 0 {
		return req.w.WriteNullBulk()
	}
	return req.w.WriteStringArray(out)
}

// INFO [section]
func (e *Engine) handleInfo(_ context.Context, req *request) error {
	section := "replication"
	if len(req.cmd.Args) > 0 {
		section = strings.ToLower(req.cmd.Args[0])
	}
	switch section {
	case "replication", "default", "all", "everything":
		return req.w.WriteBulkString(e.replicationInfo())
	default:
		return req.w.WriteBulkString("")
	}
}

func (e *Engine) replicationInfo() string {
	state := e.repl.State()

	var b strings.Builder
	b.WriteString("# Replication\r\n")
	fmt.Fprintf(&b, "role:%s\r\n", state.Role())
	if !state.IsMaster() {
		host, port := splitHostPort(state.MasterAddr())
		fmt.Fprintf(&b, "master_host:%s\r\n", host)
		fmt.Fprintf(&b, "master_port:%s\r\n", port)
	}
	fmt.Fprintf(&b, "connected_slaves:%d\r\n", e.repl.Count())
	fmt.Fprintf(&b, "master_replid:%s\r\n", state.ReplID())
	fmt.Fprintf(&b, "master_repl_offset:%d\r\n", state.Offset())
	return b.String()
}

func splitHostPort(addr string) (string, string) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return addr, ""
	}
	return addr[:i], addr[i+1:]
}

// ====================================================================
// Replication commands
// ====================================================================

// REPLCONF option value [option value ...]
//
// REPLCONF ACK carries a replica's processed offset and gets no reply.
func (e *Engine) handleReplconf(ctx context.Context, req *request) error {
	if req.cmd.Arg(0) == "ACK" {
		if len(req.cmd.Args) != 2 || req.conn == nil {
			return nil
		}
		off, err := strconv.ParseInt(req.cmd.Args[1], 10, 64)
		if err != nil {
			e.connLogger(ctx).Warn("invalid REPLCONF ACK offset",
				"offset", req.cmd.Args[1])
			return nil
		}
		e.repl.Ack(req.conn.ID(), off)
		return nil
	}
	return req.w.WriteSimpleString("OK")
}

// PSYNC replid offset
//
// Always answered with a full resync. The FULLRESYNC line and the
// snapshot are written by the replication manager.
func (e *Engine) handlePsync(_ context.Context, req *request) error {
	if req.conn == nil {
		return domain.ErrNotMaster
	}
	return e.repl.FullResync(req.conn, e.encodeSnapshot)
}

func (e *Engine) encodeSnapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := rdb.Encode(&buf, e.store.Snapshot()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WAIT numreplicas timeout
func (e *Engine) handleWait(ctx context.Context, req *request) error {
	if req.replayed || !e.repl.State().IsMaster() {
		return domain.ErrWaitOnReplica
	}
	n, err := strconv.Atoi(req.cmd.Args[0])
	if err != nil {
		return domain.ErrNotInteger
	}
	ms, err := strconv.ParseInt(req.cmd.Args[1], 10, 64)
	if err != nil || ms > maxExpireMillis {
		return domain.ErrNotInteger
	}
	if ms < 0 {
		return domain.ErrNegativeWait
	}

	acked := e.repl.Wait(ctx, n, time.Duration(ms)*time.Millisecond)
	return req.w.WriteInteger(int64(acked))
}

// ====================================================================
// Stats
// ====================================================================

// KeyCount returns the number of keys in the live store.
func (e *Engine) KeyCount() int {
	return e.store.Len()
}

// ReplicaCount returns the number of attached replicas.
func (e *Engine) ReplicaCount() int {
	return e.repl.Count()
}

// ReplicationOffset returns the current replication offset.
func (e *Engine) ReplicationOffset() int64 {
	return e.repl.State().Offset()
}
