package msgbox

import "github.com/robotalks/msgbox/pkg/frame"

// Config sizes a MessageBox. All storage is allocated from it once.
type Config struct {
	// Capacity of the transmit ring in bytes.
	Capacity int
	// Slots is the number of decoded messages held until Pop.
	Slots int
	// MaxPayload narrows frame.MaxPayloadSize when in 1..frame.MaxPayloadSize.
	MaxPayload int
	// Checksum appends and verifies a CRC-32 trailer on every frame.
	Checksum bool
	// Preamble is the initial pattern, frame.DefaultPreamble when zero.
	Preamble frame.Preamble
}

// DefaultConfig returns a Config fitting a few full-size frames.
func DefaultConfig() Config {
	return Config{
		Capacity: 256,
		Slots:    8,
		Preamble: frame.DefaultPreamble,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.Slots <= 0 {
		c.Slots = def.Slots
	}
	if c.MaxPayload <= 0 || c.MaxPayload > frame.MaxPayloadSize {
		c.MaxPayload = frame.MaxPayloadSize
	}
	if c.Preamble.IsZero() {
		c.Preamble = def.Preamble
	}
	return c
}
