package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		Port        int           `koanf:"port"`
		ReadTimeout time.Duration `koanf:"read_timeout"`
	} `koanf:"server"`
	Storage struct {
		Dir        string `koanf:"dir"`
		DBFilename string `koanf:"dbfilename"`
	} `koanf:"storage"`
}

func unmarshal(t *testing.T, l *Loader) testConfig {
	t.Helper()
	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minikv.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// ============================================================================
// Construction
// ============================================================================

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
}

// ============================================================================
// Sources
// ============================================================================

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 6380
storage:
  dir: /var/lib/minikv
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	cfg := unmarshal(t, l)
	if cfg.Server.Port != 6380 {
		t.Errorf("server.port = %d, want 6380", cfg.Server.Port)
	}
	if cfg.Storage.Dir != "/var/lib/minikv" {
		t.Errorf("storage.dir = %q, want %q", cfg.Storage.Dir, "/var/lib/minikv")
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("MINIKV_SERVER_READ_TIMEOUT", "10s")
	t.Setenv("MINIKV_STORAGE_DBFILENAME", "dump.rdb")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	cfg := unmarshal(t, l)
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("server.read_timeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.DBFilename != "dump.rdb" {
		t.Errorf("storage.dbfilename = %q, want %q", cfg.Storage.DBFilename, "dump.rdb")
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if cfg := unmarshal(t, l); cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"MINIKV_SERVER_PORT", "server.port"},
		{"MINIKV_SERVER_READ_TIMEOUT", "server.read_timeout"},
		{"MINIKV_REPLICATION_REPLICAOF", "replication.replicaof"},
		{"MINIKV_DEBUG", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvKey("MINIKV_", tt.name); got != tt.want {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()

	data := map[string]any{
		"server.port":        7000,
		"storage.dbfilename": "x.rdb",
	}

	if err := l.LoadMap(data); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	cfg := unmarshal(t, l)
	if cfg.Server.Port != 7000 {
		t.Errorf("server.port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Storage.DBFilename != "x.rdb" {
		t.Errorf("storage.dbfilename = %q, want %q", cfg.Storage.DBFilename, "x.rdb")
	}
}

// ============================================================================
// Load
// ============================================================================

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 6000
storage:
  dir: /from/file
  dbfilename: file.rdb
`)
	t.Setenv("MINIKV_SERVER_PORT", "7000")
	t.Setenv("MINIKV_STORAGE_DIR", "/from/env")

	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"server.port": 8000}),
	)

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000 (overrides win)", cfg.Server.Port)
	}
	if cfg.Storage.Dir != "/from/env" {
		t.Errorf("Dir = %q, want %q (env should override file)", cfg.Storage.Dir, "/from/env")
	}
	if cfg.Storage.DBFilename != "file.rdb" {
		t.Errorf("DBFilename = %q, want %q", cfg.Storage.DBFilename, "file.rdb")
	}
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  dir: /data\n")

	var cfg testConfig
	cfg.Server.Port = 6379
	cfg.Server.ReadTimeout = 30 * time.Second

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 6379 {
		t.Errorf("Port = %d, want default 6379", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Dir != "/data" {
		t.Errorf("Dir = %q, want %q", cfg.Storage.Dir, "/data")
	}
}

func TestLoader_Load_Duration(t *testing.T) {
	t.Setenv("MINIKV_SERVER_READ_TIMEOUT", "1m30s")

	var cfg testConfig
	if err := NewLoader().Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ReadTimeout != 90*time.Second {
		t.Errorf("ReadTimeout = %v, want 1m30s", cfg.Server.ReadTimeout)
	}
}

func TestLoader_Load_BadFile(t *testing.T) {
	var cfg testConfig
	err := NewLoader(WithConfigFile("/nonexistent/minikv.yaml")).Load(&cfg)
	if err == nil {
		t.Fatal("Load() should fail for a missing config file")
	}
}

func TestLoader_Load_FreshLoaderSeesFileChange(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 6000\n")

	var cfg testConfig
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 6001\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var next testConfig
	if err := NewLoader(WithConfigFile(path)).Load(&next); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if next.Server.Port != 6001 {
		t.Errorf("Port after change = %d, want 6001", next.Server.Port)
	}
}
