package frame

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

// PreambleSize is the length of the synchronization pattern.
const PreambleSize = 4

// Preamble is the synchronization pattern starting every frame.
type Preamble [PreambleSize]byte

// DefaultPreamble is used until another preamble is configured.
var DefaultPreamble = Preamble{0xAA, 0xBB, 0xCC, 0xDD}

// IsZero reports whether all bytes are zero.
func (p Preamble) IsZero() bool {
	return p == Preamble{}
}

// String formats the preamble as hex, e.g. "aabbccdd".
func (p Preamble) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePreamble parses the 8 hex digits produced by String.
func ParsePreamble(s string) (p Preamble, err error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("invalid preamble %q: %w", s, err)
	}
	if len(b) != PreambleSize {
		return p, fmt.Errorf("invalid preamble %q: want %d bytes, got %d", s, PreambleSize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

const preambleSet = uint64(1) << 32

// AtomicPreamble holds a Preamble shared between a configuring context and
// the encoding or decoding context. The zero value holds DefaultPreamble.
type AtomicPreamble struct {
	v atomic.Uint64
}

// Load returns the current preamble.
func (a *AtomicPreamble) Load() Preamble {
	v := a.v.Load()
	if v&preambleSet == 0 {
		return DefaultPreamble
	}
	return Preamble{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// Store replaces the current preamble.
func (a *AtomicPreamble) Store(p Preamble) {
	a.v.Store(preambleSet | uint64(p[0])<<24 | uint64(p[1])<<16 | uint64(p[2])<<8 | uint64(p[3]))
}
