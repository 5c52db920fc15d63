package buskit

import (
	"encoding/binary"
	"math/bits"
)

// ByteOrder tags the serialization order of multi-byte values on a bus.
type ByteOrder uint8

const (
	BigEndian    ByteOrder = 0x01
	LittleEndian ByteOrder = 0x02
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	}
	return "unknown"
}

// Binary returns the encoding/binary implementation matching o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// SystemByteOrder classifies the running host by inspecting how a
// two-byte integer lands in memory. Deterministic, no side effects.
func SystemByteOrder() ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 0x0102)
	if probe[0] == 0x01 {
		return BigEndian
	}
	return LittleEndian
}

// SwapUint16 reverses the byte order of v. The swap is its own inverse;
// single bytes have nothing to swap so no 8-bit variant exists.
func SwapUint16(v uint16) uint16 { return bits.ReverseBytes16(v) }

// SwapUint32 reverses the byte order of v.
func SwapUint32(v uint32) uint32 { return bits.ReverseBytes32(v) }

// SwapInt16 reverses the byte order of v, preserving the bit pattern.
func SwapInt16(v int16) int16 { return int16(bits.ReverseBytes16(uint16(v))) }

// SwapInt32 reverses the byte order of v, preserving the bit pattern.
func SwapInt32(v int32) int32 { return int32(bits.ReverseBytes32(uint32(v))) }
