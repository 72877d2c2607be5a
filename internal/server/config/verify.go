package config

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Verify validates the configuration. All problems are reported together.
func Verify(cfg *ServerConfig) error {
	var errs []error
	errs = append(errs, verifyServer(&cfg.Server)...)
	errs = append(errs, verifyStorage(&cfg.Storage)...)
	errs = append(errs, verifyReplication(&cfg.Replication)...)
	errs = append(errs, verifyLog(&cfg.Log)...)
	return errors.Join(errs...)
}

func verifyServer(cfg *ServerSection) []error {
	var errs []error
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, &FieldError{Field: "server.port", Value: cfg.Port, Reason: "must be in 0-65535"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, &FieldError{Field: "server.read_timeout", Value: cfg.ReadTimeout, Reason: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, &FieldError{Field: "server.write_timeout", Value: cfg.WriteTimeout, Reason: "must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, &FieldError{Field: "server.idle_timeout", Value: cfg.IdleTimeout, Reason: "must not be negative"})
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, &FieldError{Field: "server.rate_limit", Value: cfg.RateLimit, Reason: "must not be negative"})
	}
	return errs
}

func verifyStorage(cfg *StorageSection) []error {
	if strings.ContainsAny(cfg.DBFilename, `/\`) {
		return []error{&FieldError{Field: "storage.dbfilename", Value: cfg.DBFilename, Reason: "must be a file name, not a path"}}
	}
	return nil
}

func verifyReplication(cfg *ReplicationSection) []error {
	var errs []error
	if strings.TrimSpace(cfg.ReplicaOf) != "" {
		if _, _, err := ParseReplicaOf(cfg.ReplicaOf); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.DialTimeout < 0 {
		errs = append(errs, &FieldError{Field: "replication.dial_timeout", Value: cfg.DialTimeout, Reason: "must not be negative"})
	}
	if cfg.HandshakeTimeout < 0 {
		errs = append(errs, &FieldError{Field: "replication.handshake_timeout", Value: cfg.HandshakeTimeout, Reason: "must not be negative"})
	}
	return errs
}

func verifyLog(cfg *LogSection) []error {
	var errs []error
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &FieldError{Field: "log.level", Value: cfg.Level, Reason: "must be debug, info, warn or error"})
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		errs = append(errs, &FieldError{Field: "log.format", Value: cfg.Format, Reason: "must be json or text"})
	}
	return errs
}
