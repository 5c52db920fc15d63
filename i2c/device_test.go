package i2c

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mklimuk/buskit"
	"github.com/stretchr/testify/assert"
)

type writeReq struct {
	addr uint8
	data []byte
	stop bool
}

type readReq struct {
	addr uint8
	size int
	stop bool
}

// fakePort records every transaction and replays a scripted outcome per
// read request. An empty script satisfies every request in full.
type fakePort struct {
	writes   []writeReq
	reads    []readReq
	writeErr error
	script   []func(buf []byte) (int, error)
}

func (p *fakePort) WriteTo(_ context.Context, addr uint8, data []byte, stop bool) error {
	p.writes = append(p.writes, writeReq{addr, append([]byte(nil), data...), stop})
	return p.writeErr
}

func (p *fakePort) ReadFrom(_ context.Context, addr uint8, buf []byte, stop bool) (int, error) {
	p.reads = append(p.reads, readReq{addr, len(buf), stop})
	if len(p.script) == 0 {
		for i := range buf {
			buf[i] = 0xA5
		}
		return len(buf), nil
	}
	next := p.script[0]
	p.script = p.script[1:]
	return next(buf)
}

func supply(n int) func(buf []byte) (int, error) {
	return func(buf []byte) (int, error) {
		if n > len(buf) {
			n = len(buf)
		}
		for i := 0; i < n; i++ {
			buf[i] = 0xA5
		}
		return n, nil
	}
}

func failWith(err error) func(buf []byte) (int, error) {
	return func([]byte) (int, error) { return 0, err }
}

func TestReadRegisterChunking(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		request  int
		sizes    []int
		stops    []bool
		addrStop bool
	}{
		{
			name:     "single chunk",
			request:  10,
			sizes:    []int{10},
			stops:    []bool{true},
			addrStop: true,
		},
		{
			name:     "100 bytes in chunks of 32",
			request:  100,
			sizes:    []int{32, 32, 32, 4},
			stops:    []bool{true, true, true, true},
			addrStop: true,
		},
		{
			name:     "exact multiple of chunk size",
			request:  64,
			sizes:    []int{32, 32},
			stops:    []bool{true, true},
			addrStop: true,
		},
		{
			name:     "repeated start holds bus until final chunk",
			opts:     []Option{WithStop(false)},
			request:  100,
			sizes:    []int{32, 32, 32, 4},
			stops:    []bool{false, false, false, true},
			addrStop: false,
		},
		{
			name:     "custom chunk size",
			opts:     []Option{WithChunkSize(25)},
			request:  60,
			sizes:    []int{25, 25, 10},
			stops:    []bool{true, true, true},
			addrStop: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{}
			dev := New(port, 0x48, tt.opts...)
			buf := make([]byte, tt.request)
			n, err := dev.ReadRegister(context.Background(), []byte{0x10}, buf)
			assert.NoError(t, err)
			assert.Equal(t, tt.request, n)
			assert.Len(t, port.writes, 1)
			assert.Equal(t, []byte{0x10}, port.writes[0].data)
			assert.Equal(t, tt.addrStop, port.writes[0].stop)
			sizes := make([]int, 0, len(port.reads))
			stops := make([]bool, 0, len(port.reads))
			for _, r := range port.reads {
				assert.Equal(t, uint8(0x48), r.addr)
				sizes = append(sizes, r.size)
				stops = append(stops, r.stop)
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Equal(t, tt.stops, stops)
		})
	}
}

func TestReadRegisterZeroLength(t *testing.T) {
	port := &fakePort{}
	dev := New(port, 0x48)
	n, err := dev.ReadRegister(context.Background(), []byte{0x10}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, port.writes)
	assert.Empty(t, port.reads)
}

func TestReadRegisterUnderRead(t *testing.T) {
	tests := []struct {
		name     string
		script   []func(buf []byte) (int, error)
		request  int
		expected int
		requests []int
	}{
		{
			name: "third chunk short then dry",
			script: []func(buf []byte) (int, error){
				supply(32), supply(32), supply(10), supply(0),
			},
			request:  100,
			expected: 74,
			requests: []int{32, 32, 32, 26},
		},
		{
			name:     "nothing supplied at all",
			script:   []func(buf []byte) (int, error){supply(0)},
			request:  16,
			expected: 0,
			requests: []int{16},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{script: tt.script}
			dev := New(port, 0x48)
			buf := make([]byte, tt.request)
			n, err := dev.ReadRegister(context.Background(), []byte{0x10}, buf)
			assert.ErrorIs(t, err, buskit.WarnBusUnderRead)
			assert.Equal(t, tt.expected, n)
			sizes := make([]int, 0, len(port.reads))
			for _, r := range port.reads {
				sizes = append(sizes, r.size)
			}
			assert.Equal(t, tt.requests, sizes)
		})
	}
}

func TestReadRegisterFailures(t *testing.T) {
	t.Run("unbound device", func(t *testing.T) {
		dev := New(nil, 0x48)
		n, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 4))
		assert.ErrorIs(t, err, buskit.ErrBusNotInit)
		assert.Equal(t, 0, n)
	})
	t.Run("missing register", func(t *testing.T) {
		port := &fakePort{}
		dev := New(port, 0x48)
		n, err := dev.ReadRegister(context.Background(), nil, make([]byte, 4))
		assert.ErrorIs(t, err, buskit.ErrInvalidParam)
		assert.Equal(t, 0, n)
		assert.Empty(t, port.writes)
	})
	t.Run("address phase failure is fatal", func(t *testing.T) {
		port := &fakePort{writeErr: errors.New("nack")}
		dev := New(port, 0x48)
		n, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 64))
		assert.Error(t, err)
		assert.Equal(t, 0, n)
		assert.Empty(t, port.reads)
		assert.Equal(t, buskit.ErrFail, buskit.ResultOf(err))
	})
	t.Run("mid transfer failure aborts remaining chunks", func(t *testing.T) {
		port := &fakePort{script: []func(buf []byte) (int, error){
			supply(32), failWith(errors.New("nack")),
		}}
		dev := New(port, 0x48)
		n, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 100))
		assert.Error(t, err)
		assert.Equal(t, 32, n)
		assert.Len(t, port.reads, 2)
	})
}

func TestWriteRegister(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		reg      []byte
		data     []byte
		expected []byte
		stop     bool
	}{
		{
			name:     "register and payload in one frame",
			reg:      []byte{0x10},
			data:     []byte{0x01, 0x02, 0x03},
			expected: []byte{0x10, 0x01, 0x02, 0x03},
			stop:     true,
		},
		{
			name:     "wide register",
			reg:      []byte{0x12, 0x34},
			data:     []byte{0xFF},
			expected: []byte{0x12, 0x34, 0xFF},
			stop:     true,
		},
		{
			name:     "addressless write skips the address bytes",
			reg:      nil,
			data:     []byte{0xAA, 0xBB},
			expected: []byte{0xAA, 0xBB},
			stop:     true,
		},
		{
			name:     "configured stop policy is honored",
			opts:     []Option{WithStop(false)},
			reg:      []byte{0x10},
			data:     []byte{0x01},
			expected: []byte{0x10, 0x01},
			stop:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{}
			dev := New(port, 0x23, tt.opts...)
			err := dev.WriteRegister(context.Background(), tt.reg, tt.data)
			assert.NoError(t, err)
			assert.Len(t, port.writes, 1)
			assert.Equal(t, uint8(0x23), port.writes[0].addr)
			assert.Equal(t, tt.expected, port.writes[0].data)
			assert.Equal(t, tt.stop, port.writes[0].stop)
		})
	}
	t.Run("unbound device", func(t *testing.T) {
		dev := New(nil, 0x23)
		err := dev.WriteRegister(context.Background(), []byte{0x10}, []byte{0x01})
		assert.ErrorIs(t, err, buskit.ErrBusNotInit)
	})
}

func TestPing(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		port := &fakePort{}
		dev := New(port, 0x48)
		assert.NoError(t, dev.Ping(context.Background()))
		assert.Len(t, port.writes, 1)
		assert.Empty(t, port.writes[0].data)
		assert.True(t, port.writes[0].stop)
	})
	t.Run("absent", func(t *testing.T) {
		port := &fakePort{writeErr: errors.New("nack")}
		dev := New(port, 0x48)
		err := dev.Ping(context.Background())
		assert.Error(t, err)
		assert.Equal(t, buskit.ErrFail, buskit.ResultOf(err))
	})
}

func TestChunkSizeGuard(t *testing.T) {
	dev := New(&fakePort{}, 0x48)
	dev.SetChunkSize(0)
	assert.Equal(t, DefaultChunkSize, dev.ChunkSize())
	dev.SetChunkSize(-8)
	assert.Equal(t, DefaultChunkSize, dev.ChunkSize())
	dev.SetChunkSize(16)
	assert.Equal(t, 16, dev.ChunkSize())

	ignored := New(&fakePort{}, 0x48, WithChunkSize(0))
	assert.Equal(t, DefaultChunkSize, ignored.ChunkSize())
}

func TestDeviceDefaults(t *testing.T) {
	dev := New(&fakePort{}, 0x48)
	assert.True(t, dev.Stop())
	assert.Equal(t, DefaultChunkSize, dev.ChunkSize())
	assert.Equal(t, time.Duration(0), dev.ReadDelay())
	assert.Equal(t, buskit.SystemByteOrder(), dev.ByteOrder())
	assert.Equal(t, buskit.KindI2C, dev.Kind())
	assert.Equal(t, uint8(0x48), dev.Address())

	dev.SetAddress(0x23)
	dev.SetStop(false)
	dev.SetReadDelay(5 * time.Millisecond)
	dev.SetByteOrder(buskit.BigEndian)
	assert.Equal(t, uint8(0x23), dev.Address())
	assert.False(t, dev.Stop())
	assert.Equal(t, 5*time.Millisecond, dev.ReadDelay())
	assert.Equal(t, buskit.BigEndian, dev.ByteOrder())
}

func TestReadDelay(t *testing.T) {
	t.Run("settle before data phase", func(t *testing.T) {
		port := &fakePort{}
		dev := New(port, 0x48, WithReadDelay(60*time.Millisecond))
		start := time.Now()
		_, err := dev.ReadRegister(context.Background(), []byte{0x10}, make([]byte, 4))
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})
	t.Run("cancelled while settling", func(t *testing.T) {
		port := &fakePort{}
		dev := New(port, 0x48, WithReadDelay(time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		n, err := dev.ReadRegister(ctx, []byte{0x10}, make([]byte, 4))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, n)
		assert.Len(t, port.writes, 1)
		assert.Empty(t, port.reads)
	})
}
