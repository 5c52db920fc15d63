package buskit

import (
	"context"
	"fmt"
)

// Serial is a raw byte-stream transport. Implementations block until the
// transfer completes or the underlying port gives up.
type Serial interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, buf []byte) (int, error)
}

// SerialBus exposes the register-addressed Bus contract over a plain byte
// stream. Register addresses of any width are written ahead of the
// payload; nothing frames or chunks the stream, so the peer must share
// the register convention.
type SerialBus struct {
	serial Serial
	order  ByteOrder
}

var _ Bus = (*SerialBus)(nil)

func NewSerialBus(s Serial) *SerialBus {
	return &SerialBus{serial: s, order: SystemByteOrder()}
}

func (b *SerialBus) WriteRegister(ctx context.Context, reg, data []byte) error {
	if b.serial == nil {
		return ErrBusNotInit
	}
	if len(reg) > 0 {
		if err := b.serial.Write(ctx, reg); err != nil {
			return fmt.Errorf("could not write register address: %w", err)
		}
	}
	if err := b.serial.Write(ctx, data); err != nil {
		return fmt.Errorf("could not write payload: %w", err)
	}
	return nil
}

func (b *SerialBus) ReadRegister(ctx context.Context, reg, buf []byte) (int, error) {
	if b.serial == nil {
		return 0, ErrBusNotInit
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if len(reg) > 0 {
		if err := b.serial.Write(ctx, reg); err != nil {
			return 0, fmt.Errorf("could not write register address: %w", err)
		}
	}
	return b.serial.Read(ctx, buf)
}

func (b *SerialBus) ByteOrder() ByteOrder     { return b.order }
func (b *SerialBus) SetByteOrder(o ByteOrder) { b.order = o }

func (b *SerialBus) Kind() Kind { return KindSerial }
