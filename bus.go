package buskit

import (
	"context"
)

// Kind identifies the transport family behind a Bus.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindI2C
	KindSPI
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindI2C:
		return "i2c"
	case KindSPI:
		return "spi"
	case KindSerial:
		return "serial"
	}
	return "unknown"
}

// Bus is the register-addressed transfer contract shared by all transports.
//
// Register addresses travel as raw bytes already encoded in the instance
// byte order; the typed helpers in this package take care of the encoding.
// A nil or empty register selects an addressless transfer on transports
// that allow one.
//
// Implementations hold a non-owning handle to the underlying port, so
// copying a device value aliases the same port. An instance belongs to one
// logical owner at a time; concurrent calls on it are undefined.
type Bus interface {
	// WriteRegister writes data to the device location identified by reg
	// as a single logical transaction.
	WriteRegister(ctx context.Context, reg, data []byte) error

	// ReadRegister fills buf from the device location identified by reg
	// and reports the byte count actually obtained. A short read returns
	// the true count together with an under-read result, never a
	// silently truncated buffer.
	ReadRegister(ctx context.Context, reg, buf []byte) (int, error)

	// ByteOrder reports the order used to encode multi-byte words and
	// wide register addresses on this instance.
	ByteOrder() ByteOrder
	SetByteOrder(ByteOrder)

	Kind() Kind
}

// Pinger is implemented by transports that can probe a device for
// presence without transferring data.
type Pinger interface {
	Ping(ctx context.Context) error
}
