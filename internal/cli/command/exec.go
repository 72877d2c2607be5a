package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/connection"
	"github.com/yndnr/minikv/internal/cli/output"
)

// ExecCommand returns the exec command. It is also the default action
// when arguments follow the global flags.
func ExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Send one command and print the reply",
		ArgsUsage: "COMMAND [ARG...]",
		Action:    execAction,
	}
}

// execAction sends the arguments as one command. An error reply is
// printed and turned into a non-zero exit status.
func execAction(c *cli.Context) error {
	if !c.Args().Present() {
		return cli.Exit("command required", 2)
	}

	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	client, err := connection.Dial(c.Context, flags.Server, flags.Timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	v, err := client.Do(c.Context, c.Args().Slice()...)
	if err != nil {
		return err
	}

	if err := output.NewFormatter(flags.Output).Format(stdout(c), v); err != nil {
		return err
	}
	if v.Err() != nil {
		return cli.Exit("", 1)
	}
	return nil
}
