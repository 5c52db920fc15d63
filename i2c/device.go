package i2c

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/buskit"
)

// DefaultChunkSize bounds a single data-phase request unless overridden.
// 32 bytes is the classic controller buffer size.
const DefaultChunkSize = 32

// Port is the transport collaborator: one call is one physical bus
// transaction against a 7-bit device address. stop false asks the
// controller to hold the bus for a repeated start; controllers that
// cannot hold it document the limitation.
type Port interface {
	WriteTo(ctx context.Context, addr uint8, data []byte, stop bool) error
	ReadFrom(ctx context.Context, addr uint8, buf []byte, stop bool) (int, error)
}

// Device drives one I2C peripheral through the register-addressed Bus
// contract, splitting long reads into chunked transactions.
//
// Device holds a non-owning handle to its Port; copying the value
// aliases the port. One logical owner at a time, no internal locking.
type Device struct {
	port Port
	addr uint8

	stop      bool
	chunk     int
	readDelay time.Duration
	order     buskit.ByteOrder
}

var _ buskit.Bus = (*Device)(nil)
var _ buskit.Pinger = (*Device)(nil)

type Option func(*Device)

// WithChunkSize bounds single data-phase requests. Values below 1 are
// ignored.
func WithChunkSize(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.chunk = n
		}
	}
}

// WithStop configures whether transactions release the bus (true) or
// hold it for a repeated start (false).
func WithStop(stop bool) Option {
	return func(d *Device) { d.stop = stop }
}

// WithReadDelay inserts a settling delay between the address phase and
// the first data request of a read.
func WithReadDelay(t time.Duration) Option {
	return func(d *Device) { d.readDelay = t }
}

func WithByteOrder(o buskit.ByteOrder) Option {
	return func(d *Device) { d.order = o }
}

// New wires a device at addr to port. Defaults: stop asserted, chunk
// size DefaultChunkSize, no read delay, system byte order.
func New(port Port, addr uint8, opts ...Option) *Device {
	d := &Device{
		port:  port,
		addr:  addr,
		stop:  true,
		chunk: DefaultChunkSize,
		order: buskit.SystemByteOrder(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Address() uint8        { return d.addr }
func (d *Device) SetAddress(addr uint8) { d.addr = addr }

func (d *Device) Stop() bool        { return d.stop }
func (d *Device) SetStop(stop bool) { d.stop = stop }

func (d *Device) ChunkSize() int { return d.chunk }

// SetChunkSize bounds single data-phase requests, taking effect on the
// next call. Values below 1 are ignored.
func (d *Device) SetChunkSize(n int) {
	if n > 0 {
		d.chunk = n
	}
}

func (d *Device) ReadDelay() time.Duration     { return d.readDelay }
func (d *Device) SetReadDelay(t time.Duration) { d.readDelay = t }

func (d *Device) ByteOrder() buskit.ByteOrder     { return d.order }
func (d *Device) SetByteOrder(o buskit.ByteOrder) { d.order = o }

func (d *Device) Kind() buskit.Kind { return buskit.KindI2C }

// Ping probes the device address with an empty write.
func (d *Device) Ping(ctx context.Context) error {
	if d.port == nil {
		return buskit.ErrBusNotInit
	}
	if err := d.port.WriteTo(ctx, d.addr, nil, true); err != nil {
		return fmt.Errorf("ping %#02x: %w", d.addr, err)
	}
	return nil
}

// WriteRegister sends the register bytes immediately followed by data in
// one transaction, terminated per the configured stop policy. An empty
// reg makes the transfer addressless.
func (d *Device) WriteRegister(ctx context.Context, reg, data []byte) error {
	if d.port == nil {
		return buskit.ErrBusNotInit
	}
	frame := make([]byte, 0, len(reg)+len(data))
	frame = append(frame, reg...)
	frame = append(frame, data...)
	if err := d.port.WriteTo(ctx, d.addr, frame, d.stop); err != nil {
		return fmt.Errorf("could not write register: %w", err)
	}
	return nil
}

// ReadRegister reads len(buf) bytes from reg in chunked transactions.
//
// The register address goes out first as its own write transaction under
// the configured stop policy; the data phase then requests up to the
// configured chunk size per transaction. The final chunk asserts stop
// unconditionally so the bus is released even under a repeated-start
// policy. The loop ends early when the port supplies a zero-byte chunk;
// the accumulated count is reported with an under-read result. Reads
// require a register address.
//
// The context is honored between transactions and during the settle
// delay; a transaction once issued runs to completion.
func (d *Device) ReadRegister(ctx context.Context, reg, buf []byte) (int, error) {
	if d.port == nil {
		return 0, buskit.ErrBusNotInit
	}
	if len(reg) == 0 {
		return 0, buskit.ErrInvalidParam
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if err := d.port.WriteTo(ctx, d.addr, reg, d.stop); err != nil {
		return 0, fmt.Errorf("could not address register: %w", err)
	}
	if d.readDelay > 0 {
		if err := d.settle(ctx); err != nil {
			return 0, err
		}
	}

	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return read, err
		}
		chunk := len(buf) - read
		stop := true
		if chunk > d.chunk {
			chunk = d.chunk
			stop = d.stop
		}
		n, err := d.port.ReadFrom(ctx, d.addr, buf[read:read+chunk], stop)
		read += n
		if err != nil {
			return read, fmt.Errorf("could not read register data: %w", err)
		}
		if n == 0 {
			return read, buskit.WarnBusUnderRead
		}
	}
	return read, nil
}

func (d *Device) settle(ctx context.Context) error {
	wait := time.NewTimer(d.readDelay)
	defer wait.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wait.C:
		return nil
	}
}
