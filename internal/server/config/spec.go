package config

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ServerConfig is the root configuration for minikv-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Storage     StorageSection     `koanf:"storage"`
	Replication ReplicationSection `koanf:"replication"`
	Metrics     MetricsSection     `koanf:"metrics"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures the RESP listener.
type ServerSection struct {
	Bind         string        `koanf:"bind"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	// RateLimit is the per-client-IP command rate in commands per second.
	// Zero disables limiting.
	RateLimit int `koanf:"rate_limit"`
}

// StorageSection locates the RDB snapshot file. Both fields empty means no
// persistence.
type StorageSection struct {
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`
}

// ReplicationSection configures the replica role.
type ReplicationSection struct {
	// ReplicaOf is "host port" (or "host:port"). Empty means master.
	ReplicaOf        string        `koanf:"replicaof"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
}

// MetricsSection configures the Prometheus endpoint. An empty Addr disables it.
type MetricsSection struct {
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Addr returns the RESP listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}

// SnapshotPath returns the snapshot file path, or "" when dbfilename is
// unset.
func (c *ServerConfig) SnapshotPath() string {
	if c.Storage.DBFilename == "" {
		return ""
	}
	return filepath.Join(c.Storage.Dir, c.Storage.DBFilename)
}

// IsReplica reports whether the server follows a master.
func (c *ServerConfig) IsReplica() bool {
	return strings.TrimSpace(c.Replication.ReplicaOf) != ""
}

// MasterAddr returns the master's dialable address, or "" for a master.
func (c *ServerConfig) MasterAddr() (string, error) {
	if !c.IsReplica() {
		return "", nil
	}
	host, port, err := ParseReplicaOf(c.Replication.ReplicaOf)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// ParseReplicaOf splits a replicaof value. Both "host port" and "host:port"
// are accepted.
func ParseReplicaOf(s string) (string, int, error) {
	fields := strings.Fields(s)
	var host, port string
	switch len(fields) {
	case 1:
		h, p, err := net.SplitHostPort(fields[0])
		if err != nil {
			return "", 0, &FieldError{Field: "replication.replicaof", Value: s, Reason: "want \"host port\""}
		}
		host, port = h, p
	case 2:
		host, port = fields[0], fields[1]
	default:
		return "", 0, &FieldError{Field: "replication.replicaof", Value: s, Reason: "want \"host port\""}
	}
	if host == "" {
		return "", 0, &FieldError{Field: "replication.replicaof", Value: s, Reason: "empty host"}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", 0, &FieldError{Field: "replication.replicaof", Value: s, Reason: "invalid port"}
	}
	return host, n, nil
}
