package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/connection"
	"github.com/yndnr/minikv/internal/cli/output"
	"github.com/yndnr/minikv/internal/cli/repl"
)

// REPLCommand returns the interactive command.
func REPLCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "Start an interactive session",
		Action: replAction,
	}
}

// replAction connects to the configured server and starts the REPL. A
// failed initial connection is reported but the session still starts so
// the user can connect elsewhere.
func replAction(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	out := stdout(c)
	mgr := connection.NewManager(flags.Timeout)
	if err := mgr.Connect(c.Context, flags.Server); err != nil {
		fmt.Fprintf(out, "Could not connect: %v\n", err)
	}
	defer mgr.Disconnect()

	r := repl.New(mgr, output.NewFormatter(flags.Output),
		repl.WithIO(c.App.Reader, out),
		repl.WithHistory(repl.NewHistory(repl.DefaultHistoryFile())),
	)
	return r.Run(c.Context)
}
