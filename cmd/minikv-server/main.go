package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/infra/buildinfo"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "minikv-server",
		Usage:   "In-memory key-value server speaking the Redis protocol",
		Version: buildinfo.String(),
		Flags:   serverFlags(),
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"), flagOverrides(c))
		},
	}
}

// serverFlags returns the server flags. Every flag except --config maps to
// a configuration key and, when set, overrides file and environment.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
			EnvVars: []string{"MINIKV_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "bind",
			Usage: "Listen address",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Listen port (0 picks a free port)",
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Directory holding the RDB snapshot",
		},
		&cli.StringFlag{
			Name:  "dbfilename",
			Usage: "RDB snapshot file name",
		},
		&cli.StringFlag{
			Name:  "replicaof",
			Usage: `Run as a replica of "host port"`,
		},
		&cli.IntFlag{
			Name:  "rate-limit",
			Usage: "Per-client commands per second (0 disables)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json, text",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Address for the metrics and health endpoint (empty disables)",
		},
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"bind":         "server.bind",
	"port":         "server.port",
	"dir":          "storage.dir",
	"dbfilename":   "storage.dbfilename",
	"replicaof":    "replication.replicaof",
	"rate-limit":   "server.rate_limit",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-addr": "metrics.addr",
}

// flagOverrides collects the flags the user set explicitly.
func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		out[key] = c.Value(name)
	}
	return out
}
