package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/internal/replication"
	"github.com/yndnr/minikv/internal/storage/rdb"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/pkg/cmap"
	"github.com/yndnr/minikv/pkg/resp"
)

// ErrQuit is returned by Execute after a QUIT reply. The caller flushes
// the reply and closes the connection.
var ErrQuit = errors.New("service: client quit")

// Store is the key-value store the engine operates on.
type Store interface {
	Put(key string, value []byte)
	PutWithTTL(key string, value []byte, ttl time.Duration)
	Get(key string) ([]byte, bool)
	Exists(key string) bool
	Delete(key string) bool
	Keys() []string
	Len() int
	Snapshot() []domain.Entry
}

// Replier receives the reply of one command.
type Replier interface {
	WriteSimpleString(s string) error
	WriteError(s string) error
	WriteInteger(n int64) error
	WriteNullBulk() error
	WriteBulk(b []byte) error
	WriteBulkString(s string) error
	WriteArray(items [][]byte) error
	WriteStringArray(items []string) error
	WriteNullArray() error
	WriteRaw(b []byte) error
	Flush() error
}

// Conn is a client connection. Its replies go through the embedded
// Replier; PSYNC registers it with the replication manager as a Peer.
type Conn interface {
	Replier
	ID() string
	Close() error
}

// Metrics receives per-command observations.
type Metrics interface {
	ObserveCommand(command string, elapsed time.Duration, failed bool)
	AddPropagated(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCommand(string, time.Duration, bool) {}
func (nopMetrics) AddPropagated(int)                          {}

// Option configures the Engine.
type Option func(*Engine)

// WithSnapshot sets the snapshot directory and file name reported by
// CONFIG GET and used for read fallback. An empty file name disables
// the fallback.
func WithSnapshot(dir, filename string) Option {
	return func(e *Engine) {
		e.dir = dir
		e.filename = filename
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine executes commands.
//
// The live store is authoritative for every key written through the
// engine. The snapshot file only answers reads for keys it held when the
// engine first read it and that the engine has not written since.
//
// On a master, writes run inside replication.Manager.Commit, so the store
// mutation and the propagated frame are ordered by the same lock.
type Engine struct {
	store    Store
	repl     *replication.Manager
	logger   *slog.Logger
	metrics  Metrics
	dir      string
	filename string

	snapshot snapshotIndex
	written  *cmap.Map[struct{}] // subset of snapshot keys
	commands map[domain.CommandName]commandSpec
}

// snapshotIndex is the key set of the snapshot file, read once.
type snapshotIndex struct {
	once sync.Once
	keys map[string]struct{}
	err  error
}

// handlerFunc runs one command. It writes the reply to req.w and sets
// req.dirty when it changed the store.
type handlerFunc func(ctx context.Context, req *request) error

type commandSpec struct {
	// arity counts the command name. A negative arity -N means at
	// least N elements.
	arity   int
	write   bool
	handler handlerFunc
}

type request struct {
	cmd      *domain.Command
	w        Replier
	conn     Conn // nil when replayed
	replayed bool
	dirty    bool
}

// NewEngine creates an engine over store. repl carries the role of the
// process and, on a master, the replica registry.
func NewEngine(store Store, repl *replication.Manager, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		repl:    repl,
		logger:  slog.Default(),
		metrics: nopMetrics{},
		written: cmap.New[struct{}](),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.commands = map[domain.CommandName]commandSpec{
		domain.CommandPing:     {arity: -1, handler: e.handlePing},
		domain.CommandEcho:     {arity: 2, handler: e.handleEcho},
		domain.CommandSet:      {arity: -3, write: true, handler: e.handleSet},
		domain.CommandGet:      {arity: 2, handler: e.handleGet},
		domain.CommandDel:      {arity: -2, write: true, handler: e.handleDel},
		domain.CommandExists:   {arity: -2, handler: e.handleExists},
		domain.CommandType:     {arity: 2, handler: e.handleType},
		domain.CommandKeys:     {arity: -1, handler: e.handleKeys},
		domain.CommandConfig:   {arity: -2, handler: e.handleConfig},
		domain.CommandInfo:     {arity: -1, handler: e.handleInfo},
		domain.CommandReplconf: {arity: -1, handler: e.handleReplconf},
		domain.CommandPsync:    {arity: 3, handler: e.handlePsync},
		domain.CommandWait:     {arity: 3, handler: e.handleWait},
		domain.CommandCommand:  {arity: -1, handler: e.handleCommand},
		domain.CommandQuit:     {arity: -1, handler: e.handleQuit},
	}
	return e
}

// SnapshotPath returns the configured snapshot file path, or "" if none.
func (e *Engine) SnapshotPath() string {
	if e.filename == "" {
		return ""
	}
	return filepath.Join(e.dir, e.filename)
}

// Replication returns the replication manager.
func (e *Engine) Replication() *replication.Manager {
	return e.repl
}

// Execute runs a client command and writes its reply to conn. Command
// errors are answered with an error reply and return nil. A non-nil
// error means the connection must be closed: either writing the reply
// failed or the client sent QUIT (ErrQuit).
func (e *Engine) Execute(ctx context.Context, conn Conn, cmd *domain.Command) error {
	req := &request{cmd: cmd, w: conn, conn: conn}
	return e.run(ctx, req)
}

// ExecuteReplayed runs a command received from the upstream master.
// The reply is discarded and the command is never propagated. The
// returned error is the command error, if any, for logging.
func (e *Engine) ExecuteReplayed(ctx context.Context, cmd *domain.Command) error {
	req := &request{cmd: cmd, w: resp.Discard, replayed: true}
	var cmdErr error
	err := e.dispatch(ctx, req, func(err error) { cmdErr = err })
	if err != nil {
		return err
	}
	return cmdErr
}

func (e *Engine) run(ctx context.Context, req *request) error {
	return e.dispatch(ctx, req, func(err error) {
		if werr := req.w.WriteError(domain.ReplyText(err)); werr != nil {
			e.connLogger(ctx).Debug("failed to write error reply", "error", werr)
		}
	})
}

// connLogger returns the per-connection logger carried by ctx, or the
// engine's logger outside a client connection.
func (e *Engine) connLogger(ctx context.Context) *slog.Logger {
	if l, ok := logger.FromContext(ctx); ok {
		return l.Slog()
	}
	return e.logger
}

// dispatch validates and runs req. onCmdErr receives command errors; any
// other error is returned.
func (e *Engine) dispatch(ctx context.Context, req *request, onCmdErr func(error)) error {
	cmd := req.cmd
	if cmd.Empty() {
		return nil
	}

	name := cmd.Name.String()
	start := time.Now()
	err := e.invoke(ctx, req)
	failed := err != nil && !errors.Is(err, ErrQuit) && !domain.IsFatal(err)
	e.metrics.ObserveCommand(name, time.Since(start), failed)

	if failed {
		onCmdErr(err)
		return nil
	}
	return err
}

func (e *Engine) invoke(ctx context.Context, req *request) error {
	cmd := req.cmd
	spec, ok := e.commands[cmd.Name]
	if !ok {
		return domain.ErrUnknownCommand(cmd.Token)
	}

	n := len(cmd.Args) + 1
	if (spec.arity > 0 && n != spec.arity) || (spec.arity < 0 && n < -spec.arity) {
		return domain.ErrWrongArgs(strings.ToLower(cmd.Name.String()))
	}

	if spec.write && !req.replayed {
		if !e.repl.State().IsMaster() {
			return domain.ErrReadOnly
		}
		return e.commit(ctx, req, spec.handler)
	}

	return spec.handler(ctx, req)
}

// commit runs a client write under the replication commit lock and
// propagates it if it changed the store. The reply is buffered and sent
// once the lock is released.
func (e *Engine) commit(ctx context.Context, req *request, h handlerFunc) error {
	out := req.w
	var buf resp.Buffer
	req.w = &buf

	var err error
	propagated := 0
	e.repl.Commit(func() []byte {
		if err = h(ctx, req); err != nil || !req.dirty {
			return nil
		}
		propagated = len(req.cmd.Raw)
		return req.cmd.Raw
	})
	req.w = out

	if propagated > 0 {
		e.metrics.AddPropagated(propagated)
	}
	if err != nil {
		return err
	}
	return out.WriteRaw(buf.Bytes())
}

// snapshotKeys returns the keys the snapshot file held when it was first
// read. A missing file holds none.
func (e *Engine) snapshotKeys() (map[string]struct{}, error) {
	if e.filename == "" {
		return nil, nil
	}
	e.snapshot.once.Do(func() {
		keys, err := rdb.Keys(e.SnapshotPath())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.snapshot.err = err
			return
		}
		e.snapshot.keys = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			e.snapshot.keys[k] = struct{}{}
		}
	})
	return e.snapshot.keys, e.snapshot.err
}

// markWritten records that the live store is authoritative for key. Only
// snapshot keys need the record, so the set never outgrows the snapshot.
func (e *Engine) markWritten(key string) {
	keys, _ := e.snapshotKeys()
	if _, ok := keys[key]; ok {
		e.written.Set(key, struct{}{})
	}
}

// snapshotReadable reports whether a read of key may fall back to the
// snapshot file.
func (e *Engine) snapshotReadable(key string) (bool, error) {
	if e.filename == "" || e.written.Has(key) {
		return false, nil
	}
	keys, err := e.snapshotKeys()
	if err != nil {
		return false, err
	}
	_, ok := keys[key]
	return ok, nil
}
