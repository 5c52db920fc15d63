package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/buskit/busctx"
	"github.com/mklimuk/buskit/cmd/buskit/console"
	"github.com/mklimuk/buskit/i2c"
)

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write bytes to one device register",
	ArgsUsage: "<address> <register> <hex payload>",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "wide",
			Usage: "force a 16-bit register",
		},
		&cli.BoolFlag{
			Name:  "hold",
			Usage: "hold the bus after the write",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "skip confirmation",
		},
	}, adapterFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() < 3 {
			return console.Exit(1, "usage: buskit write <address> <register> <hex payload>")
		}
		addr, err := parseAddr(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		reg, err := parseReg(c.Args().Get(1), c.Bool("wide"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		payload, err := parsePayload(c.Args().Get(2))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if !c.Bool("yes") {
			question := fmt.Sprintf("write % x to register %s of device %#x?",
				payload, console.Bold(c.Args().Get(1)), addr)
			if !console.Confirm(question) {
				console.Print("aborted")
				return nil
			}
		}

		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		port, done, err := openPort(c)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer done()

		dev := i2c.New(port, addr, i2c.WithStop(!c.Bool("hold")))
		err = dev.WriteRegister(ctx, reg, payload)
		if err != nil {
			return console.Exit(1, "write error: %s", console.Red(err))
		}
		console.Infof("wrote %d bytes to %#x", len(payload), addr)
		return nil
	},
}
