package frame

import "fmt"

// Wire sizes.
const (
	AddressSize  = 2 // destination + source
	LengthSize   = 1
	HeaderSize   = PreambleSize + AddressSize + LengthSize
	ChecksumSize = 4

	// MaxPayloadSize bounds the payload of every Message.
	MaxPayloadSize = 100

	// MaxFrameSize is the largest encoded frame, checksum included.
	MaxFrameSize = HeaderSize + MaxPayloadSize + ChecksumSize
)

// Message is the logical unit of transport. It is a value type: the
// payload lives in a fixed array so copying a Message never allocates.
// Bytes of Data beyond Length are always zero, so Messages compare with ==.
type Message struct {
	Destination byte
	Source      byte
	Length      byte
	Data        [MaxPayloadSize]byte
}

// NewMessage creates a Message carrying a copy of payload.
func NewMessage(dst, src byte, payload []byte) (m Message, err error) {
	m.Destination, m.Source = dst, src
	err = m.SetPayload(payload)
	return
}

// Payload returns the valid part of Data.
func (m *Message) Payload() []byte {
	return m.Data[:m.Length]
}

// SetPayload copies p into the message.
func (m *Message) SetPayload(p []byte) error {
	if len(p) > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(p), MaxPayloadSize)
	}
	m.Length = byte(copy(m.Data[:], p))
	clear(m.Data[m.Length:])
	return nil
}

// String formats the message for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%02x->%02x [%d] % x", m.Source, m.Destination, m.Length, m.Payload())
}

// EncodedSize returns the size of m on the wire.
func EncodedSize(payloadLen int, checksum bool) int {
	n := HeaderSize + payloadLen
	if checksum {
		n += ChecksumSize
	}
	return n
}
