package replication

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/internal/storage/rdb"
	"github.com/yndnr/minikv/pkg/resp"
)

// LinkState is the state of a replica's connection to its master.
type LinkState int32

const (
	LinkDisconnected LinkState = iota
	LinkHandshaking
	LinkStreaming
)

func (s LinkState) String() string {
	switch s {
	case LinkHandshaking:
		return "handshaking"
	case LinkStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Executor applies commands replayed from the master.
type Executor interface {
	ExecuteReplayed(ctx context.Context, cmd *domain.Command) error
}

// Loader replaces the dataset with the snapshot sent by the master.
type Loader interface {
	Replace(entries []domain.Entry) int
}

// LinkConfig configures a Link.
type LinkConfig struct {
	// MasterAddr is the master's "host:port".
	MasterAddr string

	// ListeningPort is announced to the master with REPLCONF.
	ListeningPort int

	// SnapshotPath is where the received snapshot is written. Empty
	// disables writing.
	SnapshotPath string

	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
}

// Link is the replica side of a replication connection.
type Link struct {
	cfg    LinkConfig
	state  *State
	exec   Executor
	store  Loader
	logger *slog.Logger

	status atomic.Int32
	base   int64 // master offset announced with FULLRESYNC
}

// NewLink creates a link. It does not connect until Run is called.
func NewLink(cfg LinkConfig, state *State, exec Executor, store Loader, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Link{
		cfg:    cfg,
		state:  state,
		exec:   exec,
		store:  store,
		logger: logger.With("master", cfg.MasterAddr),
	}
}

// Status returns the current link state.
func (l *Link) Status() LinkState {
	return LinkState(l.status.Load())
}

func (l *Link) setStatus(s LinkState) {
	l.status.Store(int32(s))
}

// Run connects to the master, performs the handshake and replays the
// command stream until the connection fails or ctx is cancelled. It
// returns nil only when ctx is cancelled.
func (l *Link) Run(ctx context.Context) error {
	defer l.setStatus(LinkDisconnected)

	d := net.Dialer{Timeout: l.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", l.cfg.MasterAddr)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("replication: dial master %s: %w", l.cfg.MasterAddr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r := resp.NewReader(conn)
	w := resp.NewWriter(conn)

	l.setStatus(LinkHandshaking)
	if l.cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(l.cfg.HandshakeTimeout))
	}
	if err := l.handshake(r, w); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	l.setStatus(LinkStreaming)
	l.logger.Info("replication link established",
		"repl_id", l.state.ReplID(),
		"offset", l.base)

	err = l.stream(ctx, r, w)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type handshakeStep struct {
	args []string
	want string
}

func (l *Link) handshake(r *resp.Reader, w *resp.Writer) error {
	steps := []handshakeStep{
		{[]string{"PING"}, "PONG"},
		{[]string{"REPLCONF", "listening-port", strconv.Itoa(l.cfg.ListeningPort)}, "OK"},
		{[]string{"REPLCONF", "capa", "psync2"}, "OK"},
	}
	for _, s := range steps {
		v, err := roundTrip(r, w, s.args...)
		if err != nil {
			return err
		}
		if v.Type != resp.SimpleString || !strings.EqualFold(v.Str, s.want) {
			return fmt.Errorf("replication: %s: got %q, want %q: %w",
				strings.Join(s.args, " "), v.Text(), s.want, domain.ErrHandshake)
		}
	}

	v, err := roundTrip(r, w, "PSYNC", "?", "-1")
	if err != nil {
		return err
	}
	fields := strings.Fields(v.Str)
	if v.Type != resp.SimpleString || len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return fmt.Errorf("replication: PSYNC: got %q, want FULLRESYNC: %w", v.Text(), domain.ErrHandshake)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || offset < 0 {
		return fmt.Errorf("replication: PSYNC: invalid offset %q: %w", fields[2], domain.ErrHandshake)
	}

	payload, err := r.ReadRawBulk()
	if err != nil {
		return fmt.Errorf("replication: read snapshot: %w", err)
	}
	if err := l.loadSnapshot(payload); err != nil {
		return err
	}

	// The command stream is counted from here.
	r.ResetCount()
	l.base = offset
	l.state.SetReplID(fields[1])
	l.state.SetOffset(offset)
	return nil
}

func (l *Link) loadSnapshot(payload []byte) error {
	if l.cfg.SnapshotPath != "" {
		if err := rdb.WriteRaw(l.cfg.SnapshotPath, payload); err != nil {
			l.logger.Error("failed to persist snapshot from master", "error", err)
		}
	}

	entries, err := rdb.Decode(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("replication: decode snapshot: %w", err)
	}
	n := l.store.Replace(entries)
	l.logger.Info("snapshot loaded from master",
		"bytes", len(payload),
		"keys", n)
	return nil
}

func roundTrip(r *resp.Reader, w *resp.Writer, args ...string) (resp.Value, error) {
	if err := w.WriteRaw(resp.EncodeCommand(args...)); err != nil {
		return resp.Value{}, fmt.Errorf("replication: send %s: %w", args[0], err)
	}
	if err := w.Flush(); err != nil {
		return resp.Value{}, fmt.Errorf("replication: send %s: %w", args[0], err)
	}
	v, err := r.ReadReply()
	if err != nil {
		return resp.Value{}, fmt.Errorf("replication: reply to %s: %w", args[0], err)
	}
	return v, nil
}

// stream replays commands from the master. GETACK probes are answered
// with the offset processed before the probe itself.
func (l *Link) stream(ctx context.Context, r *resp.Reader, w *resp.Writer) error {
	for {
		before := l.base + r.Count()

		cmd, err := r.ReadCommand()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("replication: master closed the connection: %w", err)
			}
			return fmt.Errorf("replication: read command: %w", err)
		}

		switch {
		case cmd.Empty():
		case cmd.Name == domain.CommandReplconf && cmd.Arg(0) == "GETACK":
			ack := resp.EncodeCommand("REPLCONF", "ACK", strconv.FormatInt(before, 10))
			if err := w.WriteRaw(ack); err != nil {
				return fmt.Errorf("replication: send ACK: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("replication: send ACK: %w", err)
			}
		default:
			if err := l.exec.ExecuteReplayed(ctx, cmd); err != nil {
				l.logger.Warn("replayed command failed",
					"command", cmd.Name.String(),
					"error", err)
			}
		}

		l.state.SetOffset(l.base + r.Count())
	}
}
