package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/buskit"
	"github.com/mklimuk/buskit/cmd/buskit/console"
	"github.com/mklimuk/buskit/uart"
)

var uartCmd = cli.Command{
	Name:  "uart",
	Usage: "raw serial line diagnostics",
	Subcommands: cli.Commands{
		&uartSendCmd,
		&uartRecvCmd,
	},
}

var uartFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   "/dev/ttyUSB0",
	},
	&cli.IntFlag{
		Name:    "baud",
		Aliases: []string{"b"},
		Value:   115200,
	},
	&cli.StringFlag{
		Name:  "parity",
		Value: "N",
		Usage: "N, O, E, M or S",
	},
	&cli.StringFlag{
		Name:  "stop",
		Value: "1",
		Usage: "1, 1.5 or 2",
	},
	&cli.IntFlag{
		Name:  "bits",
		Value: 8,
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Value: 2 * time.Second,
		Usage: "read timeout on a quiet line",
	},
}

func lineConfig(c *cli.Context) (uart.Config, error) {
	cfg := uart.DefaultConfig()
	cfg.BaudRate = c.Int("baud")
	cfg.DataBits = byte(c.Int("bits"))
	cfg.ReadTimeout = c.Duration("timeout")
	parity := strings.ToUpper(c.String("parity"))
	if len(parity) != 1 || !strings.Contains("NOEMS", parity) {
		return cfg, fmt.Errorf("invalid parity %q", c.String("parity"))
	}
	cfg.Parity = uart.Parity(parity[0])
	switch c.String("stop") {
	case "1":
		cfg.StopBits = uart.StopOne
	case "1.5":
		cfg.StopBits = uart.StopOneHalf
	case "2":
		cfg.StopBits = uart.StopTwo
	default:
		return cfg, fmt.Errorf("invalid stop bits %q", c.String("stop"))
	}
	return cfg, nil
}

func openLine(c *cli.Context) (*uart.Device, error) {
	cfg, err := lineConfig(c)
	if err != nil {
		return nil, err
	}
	dev := uart.New(c.String("port"), uart.WithConfig(cfg))
	err = dev.Open()
	if err != nil {
		return nil, err
	}
	return dev, nil
}

var uartSendCmd = cli.Command{
	Name:      "send",
	Usage:     "write bytes to a serial line",
	ArgsUsage: "<payload>",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "text",
			Usage: "send the argument as text instead of hex",
		},
		&cli.BoolFlag{
			Name:  "crlf",
			Usage: "append a CR LF pair",
		},
	}, uartFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return console.Exit(1, "usage: buskit uart send <payload>")
		}
		var payload []byte
		if c.Bool("text") {
			payload = []byte(c.Args().Get(0))
		} else {
			var err error
			payload, err = parsePayload(c.Args().Get(0))
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
		}
		if c.Bool("crlf") {
			payload = append(payload, '\r', '\n')
		}
		dev, err := openLine(c)
		if err != nil {
			return console.Exit(1, "could not open line: %s", console.Red(err))
		}
		defer func() {
			_ = dev.Close()
		}()
		err = dev.Write(context.Background(), payload)
		if err != nil {
			return console.Exit(1, "send error: %s", console.Red(err))
		}
		console.Infof("sent %d bytes to %s", len(payload), c.String("port"))
		return nil
	},
}

var uartRecvCmd = cli.Command{
	Name:      "recv",
	Usage:     "read bytes from a serial line",
	ArgsUsage: "[count]",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "flush",
			Usage: "discard buffered bytes before reading",
		},
	}, uartFlags...),
	Action: func(c *cli.Context) error {
		count := 64
		if c.NArg() > 0 {
			var err error
			count, err = strconv.Atoi(c.Args().Get(0))
			if err != nil || count < 1 {
				return console.Exit(1, "invalid count %q", c.Args().Get(0))
			}
		}
		dev, err := openLine(c)
		if err != nil {
			return console.Exit(1, "could not open line: %s", console.Red(err))
		}
		defer func() {
			_ = dev.Close()
		}()
		if c.Bool("flush") {
			err = dev.Flush()
			if err != nil {
				return console.Exit(1, "flush error: %s", console.Red(err))
			}
		}
		buf := make([]byte, count)
		n, err := dev.Read(context.Background(), buf)
		if err != nil {
			if n == 0 || !buskit.ResultOf(err).Warning() {
				return console.Exit(1, "receive error: %s", console.Red(err))
			}
			console.Warnf("short read, %d of %d bytes: %s", n, count, err)
		}
		console.Print(strings.TrimSuffix(hex.Dump(buf[:n]), "\n"))
		return nil
	},
}
