package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"github.com/mklimuk/buskit"
	"github.com/mklimuk/buskit/busctx"
	"github.com/mklimuk/buskit/i2c"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// ErrBusy reports that the bridge's I2C engine is still busy with a
// previous transfer. Callers can retry or release the bus.
var ErrBusy = errors.New("i2c engine busy")

// pollLimit bounds status and data polls for a single transfer.
const pollLimit = 5

// MCP2221 drives the Microchip MCP2221A USB-to-I2C bridge through raw
// HID reports. Unlike kernel adapters the bridge exposes distinct
// engine commands per stop policy, so held transfers and repeated
// starts work the way Port asks for them. A held write chains into the
// next call as a repeated start; the engine closes that follow-up with
// a stop regardless of its own flag.
//
// Exchanges share one report buffer pair and are serialized with a
// mutex. That keeps a single command/response pair intact but offers
// no ordering guarantee to concurrent callers.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	index        int
	restart      bool

	xfer func(ctx context.Context) error
}

var _ i2c.Port = (*MCP2221)(nil)

type MCP2221Status struct {
	EngineState            int    `yaml:"engine_state"`
	I2CDataBufferCounter   int    `yaml:"buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"address"`
	LastWriteRequestedSize uint16 `yaml:"write_requested"`
	LastWriteSentSize      uint16 `yaml:"write_sent"`
	ReadPending            int    `yaml:"read_pending"`
	AddressNACK            bool   `yaml:"address_nack"`
}

type Option func(*MCP2221)

// WithResponseWait adjusts the settle time between writing a command
// report and reading its response.
func WithResponseWait(t time.Duration) Option {
	return func(d *MCP2221) { d.responseWait = t }
}

// WithDeviceIndex selects one bridge when several are attached.
func WithDeviceIndex(i int) Option {
	return func(d *MCP2221) { d.index = i }
}

func NewMCP2221(opts ...Option) *MCP2221 {
	d := &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 10 * time.Millisecond,
		index:        -1,
	}
	d.xfer = d.hidExchange
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WriteTo runs one write transaction. stop false keeps the bus held
// after the last byte; the following call opens with a repeated start.
// A single report carries at most 60 data bytes.
func (d *MCP2221) WriteTo(ctx context.Context, addr uint8, data []byte, stop bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(data) > 60 {
		return fmt.Errorf("%d byte write exceeds a single report: %w", len(data), buskit.ErrBusDataTooLong)
	}
	cmd := byte(0x90)
	if d.restart {
		cmd = 0x92
	} else if !stop {
		cmd = 0x94
	}
	d.restart = false
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(data)))
	d.request[3] = addr << 1
	if len(data) > 0 {
		copy(d.request[4:], data)
	}
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", addr, err)
	}
	if d.response[1] == 0x01 {
		return fmt.Errorf("write to %x rejected: %w", addr, ErrBusy)
	}
	for attempt := 0; ; attempt++ {
		status, err := d.readStatus(ctx)
		if err != nil {
			return err
		}
		if status.AddressNACK {
			_, _ = d.releaseBus(ctx)
			return fmt.Errorf("address %x not acknowledged: %w", addr, buskit.ErrBusNoResponse)
		}
		if status.LastWriteSentSize == status.LastWriteRequestedSize {
			d.restart = !stop
			return nil
		}
		if attempt >= pollLimit {
			return fmt.Errorf("engine did not drain %d bytes: %w", len(data), buskit.ErrBusTimeout)
		}
	}
}

// ReadFrom runs one read transaction and fills buf, fetching engine
// data in report-sized slices. The engine closes every read with a
// stop, so stop is ignored.
func (d *MCP2221) ReadFrom(ctx context.Context, addr uint8, buf []byte, stop bool) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(buf) > 0xFFFF {
		return 0, fmt.Errorf("%d byte read exceeds the engine limit: %w", len(buf), buskit.ErrBusDataTooLong)
	}
	cmd := byte(0x91)
	if d.restart {
		cmd = 0x93
	}
	d.restart = false
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buf)))
	d.request[3] = addr<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return 0, fmt.Errorf("bus read from %x failed: %w", addr, err)
	}
	if d.response[1] == 0x01 {
		return 0, fmt.Errorf("read from %x rejected: %w", addr, ErrBusy)
	}
	have := 0
	attempts := 0
	for have < len(buf) {
		d.resetBuffers()
		d.request[0] = 0x40
		err = d.send(ctx)
		if err != nil {
			return have, fmt.Errorf("error getting read data from adapter: %w", err)
		}
		if d.response[1] == 0x41 {
			// engine has nothing for us yet
			attempts++
			if attempts > pollLimit {
				return have, fmt.Errorf("no data after %d polls: %w", attempts, buskit.ErrBusTimeout)
			}
			continue
		}
		n := int(d.response[3])
		if n == 127 {
			_, _ = d.releaseBus(ctx)
			return have, fmt.Errorf("read from %x not acknowledged: %w", addr, buskit.ErrBusNoResponse)
		}
		if n > 60 || n > len(buf)-have {
			return have, fmt.Errorf("bridge reported a %d byte slice: %w", n, buskit.WarnBusBadData)
		}
		if n == 0 {
			attempts++
			if attempts > pollLimit {
				return have, fmt.Errorf("no data after %d polls: %w", attempts, buskit.ErrBusTimeout)
			}
			continue
		}
		copy(buf[have:], d.response[4:4+n])
		have += n
		attempts = 0
	}
	return have, nil
}

// SetSpeed reconfigures the engine clock. The divider resolution
// limits hz to roughly 47 kHz through 4 MHz.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if hz <= 0 {
		return fmt.Errorf("speed %d Hz: %w", hz, buskit.ErrInvalidParam)
	}
	divider := 12_000_000/hz - 3
	if divider < 0 || divider > 255 {
		return fmt.Errorf("speed %d Hz out of divider range: %w", hz, buskit.ErrInvalidParam)
	}
	d.resetBuffers()
	d.request[0] = 0x10
	d.request[3] = 0x20
	d.request[4] = byte(divider)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("set speed failed: %w", err)
	}
	switch d.response[3] {
	case 0x20:
		return nil
	case 0x21:
		return fmt.Errorf("engine rejected speed change: %w", ErrBusy)
	default:
		return fmt.Errorf("unexpected speed status %#x", d.response[3])
	}
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.readStatus(ctx)
}

func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) readStatus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = 0x10
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = 0x10
	d.request[2] = 0x10
	d.restart = false
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("bus release failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		8:  Internal I2C state machine value, 0 when idle
		9:  Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11: Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12: Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13: Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16: Lower byte (16-bit value) of the I2C address being used
		17: Higher byte (16-bit value) of the I2C address being used
		20: Bit 6 set when the addressed slave NACKed the last transfer
		25: Pending read count
	*/
	status := &MCP2221Status{
		EngineState:          int(buffer[8]),
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
		AddressNACK:          buffer[20]&0x40 != 0,
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) send(ctx context.Context) error {
	verbose := busctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending report to adapter", "frame", "\n"+hex.Dump(d.request))
	}
	err := d.xfer(ctx)
	if err != nil {
		return err
	}
	if verbose {
		slog.Debug("read report from adapter", "frame", "\n"+hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) hidExchange(ctx context.Context) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return fmt.Errorf("MCP2221 device not found")
	}
	index := d.index
	if index < 0 {
		if len(devs) > 1 {
			return fmt.Errorf("ambiguous device identification")
		}
		index = 0
	}
	if index >= len(devs) {
		return fmt.Errorf("no device with index %d", index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		_ = dev.Close()
	}()
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	err = wait(ctx, d.responseWait)
	if err != nil {
		return err
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

func wait(ctx context.Context, t time.Duration) error {
	if t <= 0 {
		return nil
	}
	timer := time.NewTimer(t)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
