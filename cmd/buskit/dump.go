package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/buskit"
	"github.com/mklimuk/buskit/busctx"
	"github.com/mklimuk/buskit/cmd/buskit/console"
	"github.com/mklimuk/buskit/i2c"
)

type registerSpec struct {
	Name     string `yaml:"name"`
	Register string `yaml:"register"`
	Size     int    `yaml:"size"`
	Wide     bool   `yaml:"wide"`
}

// profile describes a device's register map so dump can walk it.
type profile struct {
	Name      string         `yaml:"name"`
	Address   string         `yaml:"address"`
	Order     string         `yaml:"order"`
	Chunk     int            `yaml:"chunk"`
	Delay     string         `yaml:"delay"`
	Registers []registerSpec `yaml:"registers"`
}

func loadProfile(path string) (*profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open profile: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var p profile
	err = dec.Decode(&p)
	if err != nil {
		return nil, fmt.Errorf("could not parse profile %s: %w", path, err)
	}
	return &p, nil
}

var dumpCmd = cli.Command{
	Name:      "dump",
	Usage:     "read every register listed in a device profile",
	ArgsUsage: "<profile.yaml>",
	Flags:     adapterFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return console.Exit(1, "usage: buskit dump <profile.yaml>")
		}
		p, err := loadProfile(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		addr, err := parseAddr(p.Address)
		if err != nil {
			return console.Exit(1, "profile %s: %s", p.Name, console.Red(err))
		}
		order, err := parseOrder(p.Order)
		if err != nil {
			return console.Exit(1, "profile %s: %s", p.Name, console.Red(err))
		}
		opts := []i2c.Option{i2c.WithByteOrder(order)}
		if p.Chunk > 0 {
			opts = append(opts, i2c.WithChunkSize(p.Chunk))
		}
		if p.Delay != "" {
			delay, err := time.ParseDuration(p.Delay)
			if err != nil {
				return console.Exit(1, "profile %s: invalid delay %q", p.Name, p.Delay)
			}
			opts = append(opts, i2c.WithReadDelay(delay))
		}

		ctx := busctx.SetVerbose(context.Background(), c.Bool("verbose"))
		port, done, err := openPort(c)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer done()
		dev := i2c.New(port, addr, opts...)

		w := tabwriter.NewWriter(os.Stdout, 12, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "NAME\tREGISTER\tDATA\n")
		for _, r := range p.Registers {
			reg, err := parseReg(r.Register, r.Wide)
			if err != nil {
				return console.Exit(1, "profile %s: %s", p.Name, console.Red(err))
			}
			size := r.Size
			if size < 1 {
				size = 1
			}
			buf := make([]byte, size)
			n, err := dev.ReadRegister(ctx, reg, buf)
			if err != nil && (n == 0 || !buskit.ResultOf(err).Warning()) {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Register, console.Red(err))
				continue
			}
			note := ""
			if n < size {
				note = fmt.Sprintf(" (short, %d of %d)", n, size)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t% x%s\n", r.Name, r.Register, buf[:n], note)
		}
		_ = w.Flush()
		console.Infof("%s: %d registers at %#x", p.Name, len(p.Registers), addr)
		return nil
	},
}
