package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/minikv/internal/cli/config"
	"github.com/yndnr/minikv/internal/cli/output"
)

// ConfigCommand returns the config command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change the CLI configuration file",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the configuration",
				Action: configShowAction,
			},
			{
				Name:      "set",
				Usage:     "Set one key (server, output, timeout)",
				ArgsUsage: "KEY VALUE",
				Action:    configSetAction,
			},
		},
	}
}

func configShowAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = stdout(c).Write(data)
	return err
}

func configSetAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: config set KEY VALUE", 2)
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "%s = %s\n", key, value)
	return nil
}
