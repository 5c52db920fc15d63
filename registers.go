package buskit

import "context"

// Typed convenience operations over the Bus contract. Word values and
// two-byte register addresses are encoded per the instance byte order;
// raw byte regions pass through untouched.

func WriteByte(ctx context.Context, b Bus, v uint8) error {
	return b.WriteRegister(ctx, nil, []byte{v})
}

func WriteUint16(ctx context.Context, b Bus, v uint16) error {
	var d [2]byte
	b.ByteOrder().Binary().PutUint16(d[:], v)
	return b.WriteRegister(ctx, nil, d[:])
}

func WriteUint32(ctx context.Context, b Bus, v uint32) error {
	var d [4]byte
	b.ByteOrder().Binary().PutUint32(d[:], v)
	return b.WriteRegister(ctx, nil, d[:])
}

func WriteBytes(ctx context.Context, b Bus, data []byte) error {
	return b.WriteRegister(ctx, nil, data)
}

func WriteRegisterUint8(ctx context.Context, b Bus, reg, v uint8) error {
	return b.WriteRegister(ctx, []byte{reg}, []byte{v})
}

func WriteRegisterUint16(ctx context.Context, b Bus, reg uint8, v uint16) error {
	var d [2]byte
	b.ByteOrder().Binary().PutUint16(d[:], v)
	return b.WriteRegister(ctx, []byte{reg}, d[:])
}

func WriteRegisterUint32(ctx context.Context, b Bus, reg uint8, v uint32) error {
	var d [4]byte
	b.ByteOrder().Binary().PutUint32(d[:], v)
	return b.WriteRegister(ctx, []byte{reg}, d[:])
}

func WriteRegisterBytes(ctx context.Context, b Bus, reg uint8, data []byte) error {
	return b.WriteRegister(ctx, []byte{reg}, data)
}

func WriteRegister16Uint8(ctx context.Context, b Bus, reg uint16, v uint8) error {
	return b.WriteRegister(ctx, encodeReg16(b, reg), []byte{v})
}

func WriteRegister16Uint16(ctx context.Context, b Bus, reg, v uint16) error {
	var d [2]byte
	b.ByteOrder().Binary().PutUint16(d[:], v)
	return b.WriteRegister(ctx, encodeReg16(b, reg), d[:])
}

func WriteRegister16Uint32(ctx context.Context, b Bus, reg uint16, v uint32) error {
	var d [4]byte
	b.ByteOrder().Binary().PutUint32(d[:], v)
	return b.WriteRegister(ctx, encodeReg16(b, reg), d[:])
}

func WriteRegister16Bytes(ctx context.Context, b Bus, reg uint16, data []byte) error {
	return b.WriteRegister(ctx, encodeReg16(b, reg), data)
}

// WriteRegister16Words writes a region of 16-bit words, each encoded in
// the instance byte order.
func WriteRegister16Words(ctx context.Context, b Bus, reg uint16, words []uint16) error {
	ord := b.ByteOrder().Binary()
	data := make([]byte, 2*len(words))
	for i, w := range words {
		ord.PutUint16(data[2*i:], w)
	}
	return b.WriteRegister(ctx, encodeReg16(b, reg), data)
}

func ReadRegisterUint8(ctx context.Context, b Bus, reg uint8) (uint8, error) {
	var d [1]byte
	if _, err := b.ReadRegister(ctx, []byte{reg}, d[:]); err != nil {
		return 0, err
	}
	return d[0], nil
}

func ReadRegisterUint16(ctx context.Context, b Bus, reg uint8) (uint16, error) {
	var d [2]byte
	if _, err := b.ReadRegister(ctx, []byte{reg}, d[:]); err != nil {
		return 0, err
	}
	return b.ByteOrder().Binary().Uint16(d[:]), nil
}

func ReadRegisterUint32(ctx context.Context, b Bus, reg uint8) (uint32, error) {
	var d [4]byte
	if _, err := b.ReadRegister(ctx, []byte{reg}, d[:]); err != nil {
		return 0, err
	}
	return b.ByteOrder().Binary().Uint32(d[:]), nil
}

func ReadRegisterBytes(ctx context.Context, b Bus, reg uint8, buf []byte) (int, error) {
	return b.ReadRegister(ctx, []byte{reg}, buf)
}

func ReadRegister16Uint8(ctx context.Context, b Bus, reg uint16) (uint8, error) {
	var d [1]byte
	if _, err := b.ReadRegister(ctx, encodeReg16(b, reg), d[:]); err != nil {
		return 0, err
	}
	return d[0], nil
}

func ReadRegister16Uint16(ctx context.Context, b Bus, reg uint16) (uint16, error) {
	var d [2]byte
	if _, err := b.ReadRegister(ctx, encodeReg16(b, reg), d[:]); err != nil {
		return 0, err
	}
	return b.ByteOrder().Binary().Uint16(d[:]), nil
}

func ReadRegister16Uint32(ctx context.Context, b Bus, reg uint16) (uint32, error) {
	var d [4]byte
	if _, err := b.ReadRegister(ctx, encodeReg16(b, reg), d[:]); err != nil {
		return 0, err
	}
	return b.ByteOrder().Binary().Uint32(d[:]), nil
}

func ReadRegister16Bytes(ctx context.Context, b Bus, reg uint16, buf []byte) (int, error) {
	return b.ReadRegister(ctx, encodeReg16(b, reg), buf)
}

// ReadRegister16Words fills words with 16-bit values decoded per the
// instance byte order and reports the number of whole words obtained.
// A short transfer still decodes the complete words that arrived.
func ReadRegister16Words(ctx context.Context, b Bus, reg uint16, words []uint16) (int, error) {
	buf := make([]byte, 2*len(words))
	n, err := b.ReadRegister(ctx, encodeReg16(b, reg), buf)
	ord := b.ByteOrder().Binary()
	for i := 0; i < n/2; i++ {
		words[i] = ord.Uint16(buf[2*i:])
	}
	return n / 2, err
}

func encodeReg16(b Bus, reg uint16) []byte {
	r := make([]byte, 2)
	b.ByteOrder().Binary().PutUint16(r, reg)
	return r
}
