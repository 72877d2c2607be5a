package config

import "time"

// CLIConfig is the configuration for minikv-cli.
type CLIConfig struct {
	Server  string        `yaml:"server"`
	Output  string        `yaml:"output"` // text, json, yaml
	Timeout time.Duration `yaml:"timeout"`
}

// Default values.
const (
	DefaultServer  = "localhost:6379"
	DefaultOutput  = "text"
	DefaultTimeout = 5 * time.Second
)

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  DefaultServer,
		Output:  DefaultOutput,
		Timeout: DefaultTimeout,
	}
}

// Set assigns one field by its YAML key.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case "server":
		c.Server = value
	case "output":
		c.Output = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.Timeout = d
	default:
		return &UnknownKeyError{Key: key}
	}
	return nil
}

// UnknownKeyError is returned by Set for keys the file does not have.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return "unknown config key " + e.Key + " (want server, output or timeout)"
}
