package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/buskit/adapter"
	"github.com/mklimuk/buskit/busctx"
	"github.com/mklimuk/buskit/cmd/buskit/console"
	"github.com/mklimuk/buskit/i2c"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "sweep the 7-bit address space for responding devices",
	Flags: adapterFlags,
	Action: func(c *cli.Context) error {
		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		port, done, err := openPort(c)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer done()

		w := tabwriter.NewWriter(os.Stdout, 8, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "ADDRESS\tSTATUS\n")
		found := 0
		for addr := uint8(0x08); addr <= 0x77; addr++ {
			err := i2c.New(port, addr).Ping(ctx)
			if errors.Is(err, adapter.ErrBusy) {
				return console.Exit(1, "bus stuck at %#x: %s", addr, console.Red(err))
			}
			if err != nil {
				continue
			}
			found++
			_, _ = fmt.Fprintf(w, "%#x\t%s\n", addr, console.Green("present"))
		}
		_ = w.Flush()
		console.Infof("%d devices found", found)
		return nil
	},
}
