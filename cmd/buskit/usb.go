package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/buskit/adapter"
	"github.com/mklimuk/buskit/cmd/buskit/console"
)

// bridges maps vendor/product pairs to the adapters this tool knows.
var bridges = map[[2]uint16]string{
	{adapter.VendorID, adapter.ProductID}: "MCP2221",
}

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "HID device discovery",
	Subcommands: cli.Commands{
		&usbLsCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list attached HID devices, known bridges annotated",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "known",
			Usage: "show known bridges only",
		},
	},
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(0, 0)

		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\tBRIDGE\n")
		listed := 0
		for _, dev := range devices {
			bridge := bridges[[2]uint16{dev.VendorID, dev.ProductID}]
			if c.Bool("known") && bridge == "" {
				continue
			}
			listed++
			if bridge != "" {
				bridge = console.Green(bridge)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product, bridge)
		}
		_ = w.Flush()
		if listed == 0 {
			console.Warnf("no HID devices found")
		}
		return nil
	},
}
