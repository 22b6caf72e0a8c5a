package frame

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// Frame is a Message together with how it is put on the wire.
type Frame struct {
	Preamble Preamble
	Message  *Message
	Checksum bool
}

// Size returns the number of encoded bytes.
func (f *Frame) Size() int {
	return EncodedSize(int(f.Message.Length), f.Checksum)
}

// AppendTo appends the encoded frame to b. It does not allocate when b has
// room for Size() more bytes.
func (f *Frame) AppendTo(b []byte) []byte {
	start := len(b)
	m := f.Message
	b = append(b, f.Preamble[:]...)
	b = append(b, m.Destination, m.Source, m.Length)
	b = append(b, m.Payload()...)
	if f.Checksum {
		b = binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b[start:]))
	}
	return b
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	return f.AppendTo(make([]byte, 0, f.Size()))
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	var buf [MaxFrameSize]byte
	n, err := w.Write(f.AppendTo(buf[:0]))
	return int64(n), err
}
