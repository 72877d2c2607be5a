package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Defaults
// ============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Bind != DefaultBind {
		t.Errorf("Bind = %q, want %q", cfg.Server.Bind, DefaultBind)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", cfg.Server.IdleTimeout, DefaultIdleTimeout)
	}
	if cfg.Server.RateLimit != 0 {
		t.Errorf("RateLimit = %v, want 0 (disabled)", cfg.Server.RateLimit)
	}
	if cfg.SnapshotPath() != "" {
		t.Errorf("SnapshotPath() = %q, want empty", cfg.SnapshotPath())
	}
	if cfg.IsReplica() {
		t.Error("default config should be a master")
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("Metrics.Addr = %q, want empty", cfg.Metrics.Addr)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

// ============================================================================
// Derived values
// ============================================================================

func TestServerConfig_Addr(t *testing.T) {
	cfg := Default()
	cfg.Server.Bind = "127.0.0.1"
	cfg.Server.Port = 6380

	if got := cfg.Addr(); got != "127.0.0.1:6380" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:6380")
	}
}

func TestServerConfig_SnapshotPath(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		filename string
		want     string
	}{
		{"unset", "", "", ""},
		{"dir only", "/data", "", ""},
		{"filename only", "", "dump.rdb", "dump.rdb"},
		{"both", "/data", "dump.rdb", filepath.Join("/data", "dump.rdb")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Dir = tt.dir
			cfg.Storage.DBFilename = tt.filename
			if got := cfg.SnapshotPath(); got != tt.want {
				t.Errorf("SnapshotPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseReplicaOf(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"localhost 6379", "localhost", 6379, false},
		{"  10.0.0.1   6380 ", "10.0.0.1", 6380, false},
		{"localhost:6379", "localhost", 6379, false},
		{"[::1]:6379", "::1", 6379, false},
		{"localhost", "", 0, true},
		{"localhost 0", "", 0, true},
		{"localhost 70000", "", 0, true},
		{"localhost port", "", 0, true},
		{"a b c", "", 0, true},
		{":6379", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := ParseReplicaOf(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReplicaOf(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				var fe *FieldError
				if !errors.As(err, &fe) || fe.Field != "replication.replicaof" {
					t.Errorf("error = %v, want FieldError on replication.replicaof", err)
				}
				return
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("ParseReplicaOf(%q) = %q, %d; want %q, %d", tt.in, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestServerConfig_MasterAddr(t *testing.T) {
	cfg := Default()
	if addr, err := cfg.MasterAddr(); err != nil || addr != "" {
		t.Errorf("MasterAddr() on master = %q, %v; want empty", addr, err)
	}

	cfg.Replication.ReplicaOf = "localhost 6379"
	addr, err := cfg.MasterAddr()
	if err != nil {
		t.Fatalf("MasterAddr() error = %v", err)
	}
	if addr != "localhost:6379" {
		t.Errorf("MasterAddr() = %q, want %q", addr, "localhost:6379")
	}
}

// ============================================================================
// Verify
// ============================================================================

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		field  string
	}{
		{"port too high", func(c *ServerConfig) { c.Server.Port = 65536 }, "server.port"},
		{"negative port", func(c *ServerConfig) { c.Server.Port = -1 }, "server.port"},
		{"negative read timeout", func(c *ServerConfig) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout"},
		{"negative idle timeout", func(c *ServerConfig) { c.Server.IdleTimeout = -time.Second }, "server.idle_timeout"},
		{"negative rate limit", func(c *ServerConfig) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"dbfilename with path", func(c *ServerConfig) { c.Storage.DBFilename = "a/dump.rdb" }, "storage.dbfilename"},
		{"bad replicaof", func(c *ServerConfig) { c.Replication.ReplicaOf = "localhost" }, "replication.replicaof"},
		{"negative dial timeout", func(c *ServerConfig) { c.Replication.DialTimeout = -1 }, "replication.dial_timeout"},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify() expected error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Verify() error = %v, want mention of %s", err, tt.field)
			}
		})
	}
}

func TestVerify_ValidReplica(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Storage.Dir = t.TempDir()
	cfg.Storage.DBFilename = "dump.rdb"
	cfg.Replication.ReplicaOf = "127.0.0.1 6379"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Format = "text"

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerify_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	cfg.Log.Format = "xml"

	err := Verify(cfg)
	if err == nil {
		t.Fatal("Verify() expected error")
	}
	for _, field := range []string{"server.port", "log.format"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Verify() error = %v, want mention of %s", err, field)
		}
	}
}
