package main

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/buskit"
	"github.com/mklimuk/buskit/busctx"
	"github.com/mklimuk/buskit/cmd/buskit/console"
	"github.com/mklimuk/buskit/i2c"
)

var readCmd = cli.Command{
	Name:      "read",
	Usage:     "read one device register",
	ArgsUsage: "<address> <register> [count]",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "wide",
			Usage: "force a 16-bit register",
		},
		&cli.StringFlag{
			Name:  "order",
			Value: "system",
			Usage: "byte order: big, little or system",
		},
		&cli.IntFlag{
			Name:  "chunk",
			Value: i2c.DefaultChunkSize,
			Usage: "data phase chunk size",
		},
		&cli.DurationFlag{
			Name:  "delay",
			Usage: "settle delay between address and data phases",
		},
		&cli.BoolFlag{
			Name:  "hold",
			Usage: "hold the bus between transactions",
		},
	}, adapterFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return console.Exit(1, "usage: buskit read <address> <register> [count]")
		}
		addr, err := parseAddr(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		reg, err := parseReg(c.Args().Get(1), c.Bool("wide"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		count := 1
		if c.NArg() > 2 {
			count, err = strconv.Atoi(c.Args().Get(2))
			if err != nil || count < 1 {
				return console.Exit(1, "invalid count %q", c.Args().Get(2))
			}
		}
		order, err := parseOrder(c.String("order"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}

		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		port, done, err := openPort(c)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer done()

		opts := []i2c.Option{
			i2c.WithChunkSize(c.Int("chunk")),
			i2c.WithByteOrder(order),
			i2c.WithStop(!c.Bool("hold")),
		}
		if d := c.Duration("delay"); d > 0 {
			opts = append(opts, i2c.WithReadDelay(d))
		}
		dev := i2c.New(port, addr, opts...)

		buf := make([]byte, count)
		start := time.Now()
		n, err := dev.ReadRegister(ctx, reg, buf)
		if err != nil {
			if n == 0 || !buskit.ResultOf(err).Warning() {
				return console.Exit(1, "read error: %s", console.Red(err))
			}
			console.Warnf("short read, %d of %d bytes: %s", n, count, err)
		}
		console.Print(strings.TrimSuffix(hex.Dump(buf[:n]), "\n"))
		console.Infof("%d bytes in %s", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}
