package spi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mklimuk/buskit"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	writes   [][]byte
	commands [][]byte
	sizes    []int
	fill     byte
	err      error
}

func (c *fakeConn) WriteBytes(_ context.Context, data []byte) error {
	c.writes = append(c.writes, append([]byte(nil), data...))
	return c.err
}

func (c *fakeConn) ReadCommandData(_ context.Context, command, data []byte) error {
	c.commands = append(c.commands, append([]byte(nil), command...))
	c.sizes = append(c.sizes, len(data))
	if c.err != nil {
		return c.err
	}
	for i := range data {
		data[i] = c.fill
	}
	return nil
}

func TestReadRegisterAddressing(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		reg     []byte
		command []byte
	}{
		{
			name:    "single byte address carries the read marker",
			reg:     []byte{0x10},
			command: []byte{0x90},
		},
		{
			name:    "two byte address passes through unmarked",
			reg:     []byte{0x12, 0x34},
			command: []byte{0x12, 0x34},
		},
		{
			name:    "addressless read has no preamble",
			reg:     nil,
			command: nil,
		},
		{
			name:    "marker disabled",
			opts:    []Option{WithReadBit(0)},
			reg:     []byte{0x10},
			command: []byte{0x10},
		},
		{
			name:    "custom marker",
			opts:    []Option{WithReadBit(0x40)},
			reg:     []byte{0x10},
			command: []byte{0x50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{fill: 0x5A}
			dev := New(conn, tt.opts...)
			buf := make([]byte, 4)
			n, err := dev.ReadRegister(context.Background(), tt.reg, buf)
			assert.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Len(t, conn.commands, 1)
			assert.Equal(t, tt.command, conn.commands[0])
			assert.Equal(t, []int{4}, conn.sizes)
			assert.Equal(t, []byte{0x5A, 0x5A, 0x5A, 0x5A}, buf)
		})
	}
}

func TestWriteRegisterFrame(t *testing.T) {
	tests := []struct {
		name     string
		reg      []byte
		data     []byte
		expected []byte
	}{
		{
			name:     "register then payload, no read marker",
			reg:      []byte{0x10},
			data:     []byte{0x01, 0x02},
			expected: []byte{0x10, 0x01, 0x02},
		},
		{
			name:     "two byte register",
			reg:      []byte{0x12, 0x34},
			data:     []byte{0xFF},
			expected: []byte{0x12, 0x34, 0xFF},
		},
		{
			name:     "addressless write",
			reg:      nil,
			data:     []byte{0xAA},
			expected: []byte{0xAA},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{}
			dev := New(conn)
			assert.NoError(t, dev.WriteRegister(context.Background(), tt.reg, tt.data))
			assert.Len(t, conn.writes, 1)
			assert.Equal(t, tt.expected, conn.writes[0])
		})
	}
}

func TestUnboundDevice(t *testing.T) {
	dev := New(nil)
	err := dev.WriteRegister(context.Background(), []byte{0x10}, []byte{0x01})
	assert.ErrorIs(t, err, buskit.ErrBusNotInit)
	n, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 4))
	assert.ErrorIs(t, err, buskit.ErrBusNotInit)
	assert.Equal(t, 0, n)
}

func TestZeroLengthRead(t *testing.T) {
	conn := &fakeConn{}
	dev := New(conn)
	n, err := dev.ReadRegister(context.Background(), []byte{0x10}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, conn.commands)
}

func TestMaxTransferCap(t *testing.T) {
	conn := &fakeConn{}
	dev := New(conn, WithMaxTransfer(8))

	err := dev.WriteRegister(context.Background(), []byte{0x10}, make([]byte, 8))
	assert.ErrorIs(t, err, buskit.ErrBusDataTooLong)
	n, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 16))
	assert.ErrorIs(t, err, buskit.ErrBusDataTooLong)
	assert.Equal(t, 0, n)
	assert.Empty(t, conn.writes)
	assert.Empty(t, conn.commands)

	assert.NoError(t, dev.WriteRegister(context.Background(), []byte{0x10}, make([]byte, 7)))

	dev.SetMaxTransfer(-1)
	assert.Equal(t, 8, dev.MaxTransfer())
	dev.SetMaxTransfer(0)
	assert.NoError(t, dev.WriteRegister(context.Background(), []byte{0x10}, make([]byte, 64)))
}

func TestTransferPacing(t *testing.T) {
	t.Run("brackets are spaced", func(t *testing.T) {
		conn := &fakeConn{}
		dev := New(conn, WithTransferDelay(60*time.Millisecond))
		start := time.Now()
		assert.NoError(t, dev.WriteRegister(context.Background(), []byte{0x10}, []byte{0x01}))
		assert.NoError(t, dev.WriteRegister(context.Background(), []byte{0x10}, []byte{0x02}))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		assert.Len(t, conn.writes, 2)
	})
	t.Run("cancelled while pacing", func(t *testing.T) {
		conn := &fakeConn{}
		dev := New(conn, WithTransferDelay(time.Second))
		assert.NoError(t, dev.WriteRegister(context.Background(), []byte{0x10}, []byte{0x01}))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := dev.WriteRegister(ctx, []byte{0x10}, []byte{0x02})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Len(t, conn.writes, 1)
	})
}

func TestTransportFailure(t *testing.T) {
	conn := &fakeConn{err: errors.New("broken wire")}
	dev := New(conn)
	err := dev.WriteRegister(context.Background(), []byte{0x10}, []byte{0x01})
	assert.Error(t, err)
	assert.Equal(t, buskit.ErrFail, buskit.ResultOf(err))
	n, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 4))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestDeviceDefaults(t *testing.T) {
	dev := New(&fakeConn{})
	assert.Equal(t, DefaultReadBit, dev.ReadBit())
	assert.Equal(t, 0, dev.MaxTransfer())
	assert.Equal(t, time.Duration(0), dev.TransferDelay())
	assert.Equal(t, buskit.SystemByteOrder(), dev.ByteOrder())
	assert.Equal(t, buskit.KindSPI, dev.Kind())

	dev.SetReadBit(0x40)
	dev.SetTransferDelay(time.Millisecond)
	dev.SetByteOrder(buskit.BigEndian)
	assert.Equal(t, uint8(0x40), dev.ReadBit())
	assert.Equal(t, time.Millisecond, dev.TransferDelay())
	assert.Equal(t, buskit.BigEndian, dev.ByteOrder())
}

type fakeGobotOps struct {
	writes   [][]byte
	commands [][]byte
	fill     byte
}

func (f *fakeGobotOps) WriteBytes(data []byte) error {
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeGobotOps) ReadCommandData(command []byte, data []byte) error {
	f.commands = append(f.commands, append([]byte(nil), command...))
	for i := range data {
		data[i] = f.fill
	}
	return nil
}

func TestGobotConn(t *testing.T) {
	t.Run("delegates to the gobot connection", func(t *testing.T) {
		ops := &fakeGobotOps{fill: 0x77}
		conn := &GobotConn{ops: ops}
		assert.NoError(t, conn.WriteBytes(context.Background(), []byte{0x01, 0x02}))
		assert.Equal(t, [][]byte{{0x01, 0x02}}, ops.writes)

		buf := make([]byte, 2)
		assert.NoError(t, conn.ReadCommandData(context.Background(), []byte{0x90}, buf))
		assert.Equal(t, [][]byte{{0x90}}, ops.commands)
		assert.Equal(t, []byte{0x77, 0x77}, buf)
	})
	t.Run("unbound driver", func(t *testing.T) {
		conn := NewGobotConn(nil)
		assert.Error(t, conn.WriteBytes(context.Background(), []byte{0x01}))
	})
}
