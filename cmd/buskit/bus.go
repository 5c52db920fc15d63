package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/buskit"
	"github.com/mklimuk/buskit/adapter"
	"github.com/mklimuk/buskit/i2c"
)

// adapterFlags are shared by every command that talks to an I2C bus.
var adapterFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Value:   "mcp2221",
		Usage:   "bus adapter: mcp2221 or native",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Value:   "/dev/i2c-1",
		Usage:   "kernel bus name for the native adapter",
	},
	&cli.IntFlag{
		Name:  "index",
		Value: -1,
		Usage: "bridge index when several are attached",
	},
}

// openPort builds the transport selected on the command line. The
// returned func releases it.
func openPort(c *cli.Context) (i2c.Port, func(), error) {
	switch c.String("adapter") {
	case "mcp2221":
		var opts []adapter.Option
		if i := c.Int("index"); i >= 0 {
			opts = append(opts, adapter.WithDeviceIndex(i))
		}
		return adapter.NewMCP2221(opts...), func() {}, nil
	case "native":
		port, err := i2c.OpenPort(c.String("device"))
		if err != nil {
			return nil, nil, fmt.Errorf("could not open %s: %w", c.String("device"), err)
		}
		return port, func() { _ = port.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown adapter %q", c.String("adapter"))
	}
}

func parseAddr(arg string) (uint8, error) {
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid device address %q", arg)
	}
	if v > 0x7F {
		return 0, fmt.Errorf("address %#x out of 7-bit range", v)
	}
	return uint8(v), nil
}

// parseReg turns a numeric register argument into address bytes, most
// significant first. "-" selects addressless access; values above 0xFF
// or the wide flag select a two byte register.
func parseReg(arg string, wide bool) ([]byte, error) {
	if arg == "" || arg == "-" {
		return nil, nil
	}
	v, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid register %q", arg)
	}
	if wide || v > 0xFF {
		return []byte{byte(v >> 8), byte(v)}, nil
	}
	return []byte{byte(v)}, nil
}

func parseOrder(arg string) (buskit.ByteOrder, error) {
	switch strings.ToLower(arg) {
	case "big", "be":
		return buskit.BigEndian, nil
	case "little", "le":
		return buskit.LittleEndian, nil
	case "system", "":
		return buskit.SystemByteOrder(), nil
	default:
		return 0, fmt.Errorf("unknown byte order %q", arg)
	}
}

// parseHz accepts plain integers plus k and M suffixes.
func parseHz(arg string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(arg))
	mult := 1
	switch {
	case strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		mult = 1_000
		s = strings.TrimSuffix(s, "k")
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid frequency %q", arg)
	}
	return v * mult, nil
}

// parsePayload accepts hex with or without the 0x prefix.
func parsePayload(arg string) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(arg), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid payload %q", arg)
	}
	return data, nil
}
