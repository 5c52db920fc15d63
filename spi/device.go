package spi

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/buskit"
)

// DefaultReadBit is the high-order marker conventionally OR'd into a
// single-byte register address to signal a read. The convention is
// device-specific; see WithReadBit.
const DefaultReadBit uint8 = 0x80

// Conn is the transport collaborator. One call is one chip-select
// bracket: settings applied, CS asserted, bytes clocked, CS released.
type Conn interface {
	// WriteBytes clocks data out, discarding whatever comes back.
	WriteBytes(ctx context.Context, data []byte) error
	// ReadCommandData clocks command out, then fills data with the bytes
	// captured while dummies are clocked.
	ReadCommandData(ctx context.Context, command, data []byte) error
}

// Device drives one SPI peripheral through the register-addressed Bus
// contract. Register addresses of width 0, 1 or 2 bytes travel as a
// transfer preamble; there is no chunking, a transfer runs in a single
// bracket unless a MaxTransfer cap rejects it outright.
//
// Device holds a non-owning handle to its Conn; copying the value
// aliases the connection. One logical owner at a time.
type Device struct {
	conn Conn

	readBit     uint8
	maxTransfer int
	txDelay     time.Duration
	lastTx      time.Time
	order       buskit.ByteOrder
}

var _ buskit.Bus = (*Device)(nil)

type Option func(*Device)

// WithReadBit overrides the read marker OR'd into single-byte register
// addresses. Zero disables the marker.
func WithReadBit(b uint8) Option {
	return func(d *Device) { d.readBit = b }
}

// WithMaxTransfer caps the byte count of a single bracket. Transfers
// beyond the cap fail with data-too-long instead of assuming the
// platform buffers arbitrary lengths. Zero means no cap.
func WithMaxTransfer(n int) Option {
	return func(d *Device) {
		if n >= 0 {
			d.maxTransfer = n
		}
	}
}

// WithTransferDelay enforces a minimum spacing between brackets for
// peripherals that need recovery time after chip select releases.
func WithTransferDelay(t time.Duration) Option {
	return func(d *Device) { d.txDelay = t }
}

func WithByteOrder(o buskit.ByteOrder) Option {
	return func(d *Device) { d.order = o }
}

// New wires a device to conn. Defaults: read marker DefaultReadBit, no
// transfer cap, no pacing, system byte order.
func New(conn Conn, opts ...Option) *Device {
	d := &Device{
		conn:    conn,
		readBit: DefaultReadBit,
		order:   buskit.SystemByteOrder(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) ReadBit() uint8     { return d.readBit }
func (d *Device) SetReadBit(b uint8) { d.readBit = b }
func (d *Device) MaxTransfer() int   { return d.maxTransfer }

// SetMaxTransfer caps single-bracket transfers; negative values are
// ignored, zero removes the cap.
func (d *Device) SetMaxTransfer(n int) {
	if n >= 0 {
		d.maxTransfer = n
	}
}

func (d *Device) TransferDelay() time.Duration     { return d.txDelay }
func (d *Device) SetTransferDelay(t time.Duration) { d.txDelay = t }

func (d *Device) ByteOrder() buskit.ByteOrder     { return d.order }
func (d *Device) SetByteOrder(o buskit.ByteOrder) { d.order = o }

func (d *Device) Kind() buskit.Kind { return buskit.KindSPI }

// WriteRegister clocks the register bytes immediately followed by data
// in one bracket. An empty reg makes the transfer addressless.
func (d *Device) WriteRegister(ctx context.Context, reg, data []byte) error {
	if d.conn == nil {
		return buskit.ErrBusNotInit
	}
	if d.maxTransfer > 0 && len(reg)+len(data) > d.maxTransfer {
		return buskit.ErrBusDataTooLong
	}
	if err := d.pace(ctx); err != nil {
		return err
	}
	frame := append(d.preamble(reg, false), data...)
	err := d.conn.WriteBytes(ctx, frame)
	d.touch()
	if err != nil {
		return fmt.Errorf("could not write register: %w", err)
	}
	return nil
}

// ReadRegister clocks the register preamble then captures len(buf) bytes
// in the same bracket. Reads mark single-byte addresses with the
// configured read bit; wider addresses pass through as encoded.
func (d *Device) ReadRegister(ctx context.Context, reg, buf []byte) (int, error) {
	if d.conn == nil {
		return 0, buskit.ErrBusNotInit
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if d.maxTransfer > 0 && len(reg)+len(buf) > d.maxTransfer {
		return 0, buskit.ErrBusDataTooLong
	}
	if err := d.pace(ctx); err != nil {
		return 0, err
	}
	err := d.conn.ReadCommandData(ctx, d.preamble(reg, true), buf)
	d.touch()
	if err != nil {
		return 0, fmt.Errorf("could not read register: %w", err)
	}
	return len(buf), nil
}

// preamble renders the register address for one bracket, applying the
// read marker to single-byte addresses. Serves widths 0, 1 and 2 alike.
func (d *Device) preamble(reg []byte, read bool) []byte {
	if len(reg) == 0 {
		return nil
	}
	p := append([]byte(nil), reg...)
	if read && len(p) == 1 {
		p[0] |= d.readBit
	}
	return p
}

// pace blocks until the configured spacing from the previous bracket has
// elapsed.
func (d *Device) pace(ctx context.Context) error {
	if d.txDelay <= 0 || d.lastTx.IsZero() {
		return nil
	}
	remaining := d.txDelay - time.Since(d.lastTx)
	if remaining <= 0 {
		return nil
	}
	wait := time.NewTimer(remaining)
	defer wait.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wait.C:
		return nil
	}
}

func (d *Device) touch() {
	if d.txDelay > 0 {
		d.lastTx = time.Now()
	}
}
