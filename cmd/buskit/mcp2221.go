package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/buskit/adapter"
	"github.com/mklimuk/buskit/busctx"
	"github.com/mklimuk/buskit/cmd/buskit/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB bridge engine control",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

var mcp2221IndexFlag = &cli.IntFlag{
	Name:  "index",
	Value: -1,
	Usage: "bridge index when several are attached",
}

func bridge(c *cli.Context) *adapter.MCP2221 {
	var opts []adapter.Option
	if i := c.Int("index"); i >= 0 {
		opts = append(opts, adapter.WithDeviceIndex(i))
	}
	return adapter.NewMCP2221(opts...)
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "dump the I2C engine status",
	Flags: []cli.Flag{mcp2221IndexFlag},
	Action: func(c *cli.Context) error {
		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := bridge(c).Status(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		err = enc.Encode(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: []cli.Flag{mcp2221IndexFlag},
	Action: func(c *cli.Context) error {
		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := bridge(c).ReleaseBus(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		err = enc.Encode(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:      "speed",
	Usage:     "set the I2C engine clock",
	ArgsUsage: "<frequency, e.g. 400k>",
	Flags:     []cli.Flag{mcp2221IndexFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return console.Exit(1, "usage: buskit mcp2221 speed <frequency>")
		}
		hz, err := parseHz(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		err = bridge(c).SetSpeed(ctx, hz)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		console.Infof("engine clock set to %d Hz", hz)
		return nil
	},
}
