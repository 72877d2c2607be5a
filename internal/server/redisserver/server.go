package redisserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/internal/core/service"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
	"github.com/yndnr/minikv/pkg/resp"
)

// Config holds the RESP server configuration.
type Config struct {
	// Address is the listen address.
	Address string
	// ReadTimeout is the timeout for reading a command once its first
	// byte has arrived (default: 30s). Helps prevent slowloris attacks.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for each write to the socket (default: 30s).
	WriteTimeout time.Duration
	// IdleTimeout is the timeout for idle client connections (default: 5m).
	// Replica links are exempt.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per IP.
	// Set to 0 to disable rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    0,
	}
}

// Server is the RESP protocol server.
type Server struct {
	cfg      *Config
	engine   *service.Engine
	logger   logger.Logger
	metrics  *metric.Registry
	limiters *rateLimiterRegistry

	mu      sync.Mutex
	ln      net.Listener
	conns   map[string]*Conn
	running atomic.Bool
	wg      sync.WaitGroup
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a RESP server running commands through engine.
func New(cfg *Config, engine *service.Engine, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger.Default(),
		conns:  make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		s.limiters = newRateLimiterRegistry(cfg.RateLimit)
	}
	return s
}

// Listen binds the listen address. It is separate from Serve so that
// callers learn about bind errors before starting anything else.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("redisserver: listen %s: %w", s.cfg.Address, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start listens if needed and serves connections in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.running.Store(true)
	s.logger.Info("starting redis server", "address", s.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx); err != nil && s.running.Load() {
			s.logger.Error("redis server error", "error", err)
		}
	}()
	return nil
}

// Shutdown closes the listener and every open connection, then waits for
// connection goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error

	s.mu.Lock()
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		c := s.newConn(nc)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) newConn(nc net.Conn) *Conn {
	c := newConn(nc, ulid.Make().String(), s.writeTimeout())

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectedClients.Inc()
	}
	return c
}

func (s *Server) removeConn(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	s.engine.Replication().Detach(c.id)
	_ = c.Close()

	if s.metrics != nil {
		s.metrics.ConnectedClients.Dec()
	}
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout > 0 {
		return s.cfg.WriteTimeout
	}
	return 30 * time.Second
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer s.removeConn(c)

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5 * time.Minute
	}

	log := s.logger.With("conn_id", c.id, "remote", c.RemoteAddr().String())
	ctx = logger.WithLogger(ctx, log)
	log.Debug("connection opened")
	defer log.Debug("connection closed")

	var limiter *rate.Limiter
	if s.limiters != nil {
		ip := c.remoteIP()
		limiter = s.limiters.acquire(ip)
		defer s.limiters.release(ip)
	}

	for {
		// First byte: replicas and idle clients may wait indefinitely or up
		// to the idle timeout respectively.
		var idleDeadline time.Time
		if !c.replica {
			idleDeadline = time.Now().Add(idleTimeout)
		}
		if err := c.netConn.SetReadDeadline(idleDeadline); err != nil {
			return
		}
		if _, err := c.r.Peek(1); err != nil {
			s.logReadError(log, err)
			return
		}

		// After first byte: tighten to per-command read timeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		cmd, err := c.r.ReadCommand()
		if err != nil {
			if domain.IsKind(err, domain.KindFraming) {
				log.Warn("protocol error, closing connection", "error", err)
				if s.metrics != nil {
					s.metrics.ProtocolErrors.Inc()
				}
				_ = c.WriteError(err.Error())
				_ = c.Flush()
				return
			}
			s.logReadError(log, err)
			return
		}

		if limiter != nil && !c.replica && !limiter.Allow() {
			_ = c.WriteError(domain.ReplyText(domain.ErrRateLimited))
			if err := c.Flush(); err != nil {
				return
			}
			continue
		}

		execErr := s.engine.Execute(ctx, c, cmd)
		if err := c.Flush(); err != nil {
			log.Debug("connection write error", "error", err)
			return
		}
		if errors.Is(execErr, service.ErrQuit) {
			return
		}
		if execErr != nil {
			log.Debug("connection write error", "error", execErr)
			return
		}

		if cmd.Name == domain.CommandPsync && !c.replica && s.engine.Replication().Attached(c.id) {
			c.replica = true
			log.Info("connection promoted to replica link")
		}
	}
}

func (s *Server) logReadError(log logger.Logger, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		log.Debug("connection timed out")
		return
	}
	log.Debug("connection read error", "error", err)
}

// Conn is a single client connection.
type Conn struct {
	*resp.Writer

	id      string
	netConn net.Conn
	r       *resp.Reader

	// replica is only touched by the connection goroutine.
	replica bool
	closed  atomic.Bool
}

func newConn(nc net.Conn, id string, writeTimeout time.Duration) *Conn {
	return &Conn{
		Writer:  resp.NewWriter(&deadlineWriter{conn: nc, timeout: writeTimeout}),
		id:      id,
		netConn: nc,
		r:       resp.NewReader(nc),
	}
}

// ID returns the connection's ULID.
func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

func (c *Conn) remoteIP() string {
	addr := c.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// deadlineWriter sets a write deadline before every write, so that
// replication traffic written outside the request loop is bounded too.
type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return 0, err
	}
	return w.conn.Write(p)
}
