package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mklimuk/buskit"
)

// Parity values match the native serial stack so the port binding maps
// them directly.
type Parity byte

const (
	ParityNone  Parity = 'N'
	ParityOdd   Parity = 'O'
	ParityEven  Parity = 'E'
	ParityMark  Parity = 'M'
	ParitySpace Parity = 'S'
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	}
	return "unknown"
}

// StopBits values match the native serial stack; OneHalf follows its
// 1.5-as-15 convention.
type StopBits byte

const (
	StopOne     StopBits = 1
	StopOneHalf StopBits = 15
	StopTwo     StopBits = 2
)

func (s StopBits) String() string {
	switch s {
	case StopOne:
		return "1"
	case StopOneHalf:
		return "1.5"
	case StopTwo:
		return "2"
	}
	return "unknown"
}

// Config is the line configuration value object.
type Config struct {
	BaudRate    int
	DataBits    byte
	Parity      Parity
	StopBits    StopBits
	ReadTimeout time.Duration
}

// DefaultConfig is the classic 115200-8-N-1.
func DefaultConfig() Config {
	return Config{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: StopOne,
	}
}

// Port is the OS-level serial port the device drives.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Opener binds a device path and configuration to an open port.
type Opener func(device string, cfg Config) (Port, error)

// Device tracks the line configuration state machine over a native
// serial port. Setters that change nothing never touch the hardware;
// effective changes reapply by reopening the port with the staged
// configuration.
//
// Lifecycle: New (unbound) -> Open (running) -> End (port held, not
// running) -> Open resumes, Close releases.
type Device struct {
	device string
	open   Opener

	port    Port
	running bool
	config  Config
}

var _ buskit.Serial = (*Device)(nil)

type Option func(*Device)

func WithConfig(cfg Config) Option {
	return func(d *Device) { d.config = cfg }
}

func WithBaudRate(baud int) Option {
	return func(d *Device) { d.config.BaudRate = baud }
}

// WithOpener overrides how the OS port is opened.
func WithOpener(open Opener) Option {
	return func(d *Device) { d.open = open }
}

// New prepares a device for the serial port at path. The configuration
// defaults to DefaultConfig and applies at Open.
func New(device string, opts ...Option) *Device {
	d := &Device{
		device: device,
		open:   openNative,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open binds the OS port with the staged configuration, or resumes a
// device stopped by End.
func (d *Device) Open() error {
	if d.port != nil {
		d.running = true
		return nil
	}
	port, err := d.open(d.device, d.config)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", d.device, err)
	}
	d.port = port
	d.running = true
	return nil
}

// End stops the line without releasing the OS port; operations report a
// not-enabled warning until Open resumes it.
func (d *Device) End() {
	d.running = false
}

func (d *Device) Running() bool { return d.running }

// Close releases the OS port entirely.
func (d *Device) Close() error {
	d.running = false
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *Device) Config() Config { return d.config }

// SetConfig applies a whole line configuration at once; a no-op when
// nothing changes.
func (d *Device) SetConfig(cfg Config) error {
	if d.config == cfg {
		return nil
	}
	d.config = cfg
	return d.reconfigure()
}

func (d *Device) BaudRate() int { return d.config.BaudRate }

func (d *Device) SetBaudRate(baud int) error {
	if d.config.BaudRate == baud {
		return nil
	}
	d.config.BaudRate = baud
	return d.reconfigure()
}

func (d *Device) DataBits() byte { return d.config.DataBits }

func (d *Device) SetDataBits(bits byte) error {
	if d.config.DataBits == bits {
		return nil
	}
	d.config.DataBits = bits
	return d.reconfigure()
}

func (d *Device) Parity() Parity { return d.config.Parity }

func (d *Device) SetParity(p Parity) error {
	if d.config.Parity == p {
		return nil
	}
	d.config.Parity = p
	return d.reconfigure()
}

func (d *Device) StopBits() StopBits { return d.config.StopBits }

func (d *Device) SetStopBits(s StopBits) error {
	if d.config.StopBits == s {
		return nil
	}
	d.config.StopBits = s
	return d.reconfigure()
}

// reconfigure reopens the bound port so staged settings take effect.
// Unbound devices stage only; the configuration applies at Open.
func (d *Device) reconfigure() error {
	if d.port == nil {
		return nil
	}
	_ = d.port.Close()
	port, err := d.open(d.device, d.config)
	if err != nil {
		d.port = nil
		d.running = false
		return fmt.Errorf("could not reopen %s: %w", d.device, err)
	}
	d.port = port
	return nil
}

// Write sends data, reporting a serial under-read warning when the port
// accepts fewer bytes than given.
func (d *Device) Write(ctx context.Context, data []byte) error {
	if d.port == nil {
		return buskit.ErrSerialNotInit
	}
	if !d.running {
		return buskit.WarnSerialNotEnabled
	}
	n, err := d.port.Write(data)
	if err != nil {
		return fmt.Errorf("could not write to %s: %w", d.device, err)
	}
	if n < len(data) {
		return buskit.WarnSerialUnderRead
	}
	return nil
}

// Read fills buf, accumulating until the buffer is full or the port runs
// dry. The native stack signals a quiet line as io.EOF; arriving dry
// with nothing at all maps to the serial timeout code, a partial fill
// reports its true count with the under-read warning.
func (d *Device) Read(ctx context.Context, buf []byte) (int, error) {
	if d.port == nil {
		return 0, buskit.ErrSerialNotInit
	}
	if !d.running {
		return 0, buskit.WarnSerialNotEnabled
	}
	if len(buf) == 0 {
		return 0, buskit.ErrSerialDataTooLong
	}
	read := 0
	for read < len(buf) {
		n, err := d.port.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return read, fmt.Errorf("could not read from %s: %w", d.device, err)
		}
		if n == 0 {
			break
		}
	}
	if read == 0 {
		return 0, buskit.ErrSerialTimeout
	}
	if read < len(buf) {
		return read, buskit.WarnSerialUnderRead
	}
	return read, nil
}

func (d *Device) WriteByte(ctx context.Context, b byte) error {
	return d.Write(ctx, []byte{b})
}

func (d *Device) ReadByte(ctx context.Context) (byte, error) {
	var b [1]byte
	if _, err := d.Read(ctx, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Flush discards bytes buffered on the open port.
func (d *Device) Flush() error {
	if d.port == nil {
		return buskit.ErrSerialNotInit
	}
	return d.port.Flush()
}
