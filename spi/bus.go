package spi

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var _ Conn = (*PeriphConn)(nil)

// PeriphConn binds Conn to a periph.io port. The kernel driver asserts
// chip select around every transaction; an optional manually driven CS
// pin serves boards where the driver does not own the line.
type PeriphConn struct {
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinOut
}

// OpenConn initializes the periph host, opens the named port ("SPI0.0",
// "/dev/spidev0.0") and connects at the given frequency and mode. An
// empty name selects the first available port.
func OpenConn(name string, freq physic.Frequency, mode spi.Mode) (*PeriphConn, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open spi port: %w", err)
	}
	conn, err := port.Connect(freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not connect spi port: %w", err)
	}
	return &PeriphConn{port: port, conn: conn}, nil
}

// Connect reapplies clock settings, replacing the active connection.
func (p *PeriphConn) Connect(freq physic.Frequency, mode spi.Mode) error {
	conn, err := p.port.Connect(freq, mode, 8)
	if err != nil {
		return fmt.Errorf("could not connect spi port: %w", err)
	}
	p.conn = conn
	return nil
}

// SetCS assigns a manually driven chip-select pin. nil hands the line
// back to the port driver.
func (p *PeriphConn) SetCS(pin gpio.PinOut) { p.cs = pin }

func (p *PeriphConn) WriteBytes(ctx context.Context, data []byte) error {
	err := p.bracket(func() error { return p.conn.Tx(data, nil) })
	if err != nil {
		return fmt.Errorf("could not write to spi port: %w", err)
	}
	return nil
}

func (p *PeriphConn) ReadCommandData(ctx context.Context, command, data []byte) error {
	// Full duplex: clock the command followed by dummies, then drop the
	// bytes echoed during the preamble.
	w := make([]byte, len(command)+len(data))
	copy(w, command)
	r := make([]byte, len(w))
	err := p.bracket(func() error { return p.conn.Tx(w, r) })
	if err != nil {
		return fmt.Errorf("could not read from spi port: %w", err)
	}
	copy(data, r[len(command):])
	return nil
}

// bracket drives the manual CS line around tx when one is configured.
func (p *PeriphConn) bracket(tx func() error) error {
	if p.cs == nil {
		return tx()
	}
	if err := p.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("could not assert cs: %w", err)
	}
	err := tx()
	if cerr := p.cs.Out(gpio.High); cerr != nil && err == nil {
		err = fmt.Errorf("could not release cs: %w", cerr)
	}
	return err
}

func (p *PeriphConn) Close() error {
	return p.port.Close()
}
