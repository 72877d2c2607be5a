package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/core/domain"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/storage/rdb"
	"github.com/yndnr/minikv/internal/telemetry/logger"
)

func quietLogger(t *testing.T) logger.Logger {
	t.Helper()
	l, err := logger.New(logger.Config{Level: "error", Output: os.Stderr})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	return l
}

// ============================================================================
// Flags and configuration
// ============================================================================

func TestFlagOverrides(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range serverFlags() {
		if err := f.Apply(set); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	if err := set.Parse([]string{"--port", "6380", "--replicaof", "localhost 6379", "--log-level", "debug"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := flagOverrides(cli.NewContext(newApp(), set, nil))

	want := map[string]any{
		"server.port":           6380,
		"replication.replicaof": "localhost 6379",
		"log.level":             "debug",
	}
	if len(got) != len(want) {
		t.Fatalf("flagOverrides() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("flagOverrides()[%q] = %v, want %v", k, got[k], v)
		}
	}
}

func TestLoadConfig_Priority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minikv.yaml")
	content := "server:\n  port: 7000\nstorage:\n  dir: /from/file\n  dbfilename: file.rdb\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("MINIKV_STORAGE_DIR", "/from/env")

	cfg, err := loadConfig(path, map[string]any{"server.port": 7001})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Port = %d, want 7001 from flags", cfg.Server.Port)
	}
	if cfg.Storage.Dir != "/from/env" {
		t.Errorf("Dir = %q, want /from/env", cfg.Storage.Dir)
	}
	if cfg.Storage.DBFilename != "file.rdb" {
		t.Errorf("DBFilename = %q, want file.rdb", cfg.Storage.DBFilename)
	}
	if cfg.Server.Bind != "0.0.0.0" {
		t.Errorf("Bind = %q, want default 0.0.0.0", cfg.Server.Bind)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := loadConfig("", map[string]any{"replication.replicaof": "nohost"}); err == nil {
		t.Error("loadConfig() should reject a malformed replicaof")
	}
}

// ============================================================================
// Snapshot restore
// ============================================================================

func TestRestoreSnapshot_CreatesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	store := memory.New()
	defer store.Close()

	restoreSnapshot(path, store, quietLogger(t))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot not created: %v", err)
	}
	if string(data) != string(rdb.EmptySnapshot()) {
		t.Errorf("created snapshot = %q, want empty snapshot", data)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestRestoreSnapshot_Loads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	now := time.Now().UnixMilli()
	entries := []domain.Entry{
		{Key: "plain", Value: []byte("v1")},
		{Key: "future", Value: []byte("v2"), ExpireAt: now + 60_000},
		{Key: "past", Value: []byte("v3"), ExpireAt: now - 60_000},
	}
	if err := rdb.WriteFile(path, entries); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := memory.New()
	defer store.Close()
	restoreSnapshot(path, store, quietLogger(t))

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (expired entry skipped)", store.Len())
	}
	if v, ok := store.Get("future"); !ok || string(v) != "v2" {
		t.Errorf("Get(future) = %q, %v", v, ok)
	}
	if store.Exists("past") {
		t.Error("expired entry should not be loaded")
	}
}

func TestRestoreSnapshot_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := memory.New()
	defer store.Close()
	restoreSnapshot(path, store, quietLogger(t))

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

// ============================================================================
// Run
// ============================================================================

func TestRun_ReplicaLinkFailureIsFatal(t *testing.T) {
	overrides := map[string]any{
		"server.bind":           "127.0.0.1",
		"server.port":           0,
		"replication.replicaof": "127.0.0.1 1",
		"log.level":             "error",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), "", overrides)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, errLinkFailed) {
			t.Errorf("run() = %v, want errLinkFailed", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not stop after the link failed")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	overrides := map[string]any{
		"server.bind": "127.0.0.1",
		"server.port": 0,
		"log.level":   "error",
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "", overrides)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not stop on cancel")
	}
}
