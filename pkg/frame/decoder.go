package frame

import (
	"encoding/binary"
	"hash/crc32"
	"sync/atomic"
)

// State is the position of the Decoder within a frame.
type State int

// Decoder states.
const (
	StateSeekingPreamble State = iota
	StateReadingDestination
	StateReadingSource
	StateReadingLength
	StateReadingPayload
	StateReadingChecksum
	StateFrameReady
)

var stateNames = [...]string{
	StateSeekingPreamble:    "seeking-preamble",
	StateReadingDestination: "reading-destination",
	StateReadingSource:      "reading-source",
	StateReadingLength:      "reading-length",
	StateReadingPayload:     "reading-payload",
	StateReadingChecksum:    "reading-checksum",
	StateFrameReady:         "frame-ready",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Result is the outcome of consuming one byte.
type Result struct {
	State State
	// Err is ErrFraming or ErrChecksum when this byte made the decoder
	// drop a partial frame. The decoder is already seeking again.
	Err error
	// Message is set when State is StateFrameReady. It points into the
	// Decoder and is only valid until the next call to Decode.
	Message *Message
}

// Stats are diagnostic counters of a Decoder.
type Stats struct {
	Frames         uint32
	FramingErrors  uint32
	ChecksumErrors uint32
}

// Decoder reassembles Messages from a byte stream.
//
// Decode must only be called from one context at a time. SetPreamble and
// Stats may be called from any context.
type Decoder struct {
	// MaxPayload narrows MaxPayloadSize when in 1..MaxPayloadSize.
	MaxPayload int
	// Checksum expects a CRC-32 trailer after the payload.
	Checksum bool

	preamble AtomicPreamble

	state    State
	active   Preamble // latched when a preamble match starts
	matched  int
	received int
	msg      Message
	crc      [ChecksumSize]byte

	frames         atomic.Uint32
	framingErrors  atomic.Uint32
	checksumErrors atomic.Uint32
}

// SetPreamble changes the pattern searched for. A partial match already in
// progress completes against the pattern it started with.
func (d *Decoder) SetPreamble(p Preamble) {
	d.preamble.Store(p)
}

// Preamble returns the configured pattern.
func (d *Decoder) Preamble() Preamble {
	return d.preamble.Load()
}

// State gets the current state.
func (d *Decoder) State() State {
	return d.state
}

// Stats returns a snapshot of the counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:         d.frames.Load(),
		FramingErrors:  d.framingErrors.Load(),
		ChecksumErrors: d.checksumErrors.Load(),
	}
}

// Reset drops any partial frame.
func (d *Decoder) Reset() {
	d.state, d.matched, d.received = StateSeekingPreamble, 0, 0
}

func (d *Decoder) maxPayload() int {
	if d.MaxPayload > 0 && d.MaxPayload < MaxPayloadSize {
		return d.MaxPayload
	}
	return MaxPayloadSize
}

// Decode consumes one byte.
func (d *Decoder) Decode(b byte) (r Result) {
	r.Err = d.decodeByte(b)
	r.State = d.state
	if d.state == StateFrameReady {
		r.Message = &d.msg
	}
	return
}

func (d *Decoder) decodeByte(b byte) error {
	switch d.state {
	case StateFrameReady:
		d.Reset()
		fallthrough
	case StateSeekingPreamble:
		if d.matched == 0 {
			d.active = d.preamble.Load()
		}
		if b == d.active[d.matched] {
			d.matched++
		} else {
			d.matched = d.restart(b)
		}
		if d.matched == PreambleSize {
			d.matched = 0
			d.state = StateReadingDestination
		}
	case StateReadingDestination:
		d.msg.Destination = b
		d.state = StateReadingSource
	case StateReadingSource:
		d.msg.Source = b
		d.state = StateReadingLength
	case StateReadingLength:
		if int(b) > d.maxPayload() {
			d.framingErrors.Add(1)
			d.Reset()
			return ErrFraming
		}
		d.msg.Length, d.received = b, 0
		clear(d.msg.Data[b:])
		if b == 0 {
			return d.payloadDone()
		}
		d.state = StateReadingPayload
	case StateReadingPayload:
		d.msg.Data[d.received] = b
		if d.received++; d.received == int(d.msg.Length) {
			return d.payloadDone()
		}
	case StateReadingChecksum:
		d.crc[d.received] = b
		if d.received++; d.received == ChecksumSize {
			return d.verify()
		}
	}
	return nil
}

// restart finds where matching resumes after b failed to extend a partial
// match: the longest proper suffix of the bytes seen so far (the matched
// prefix followed by b) that is also a prefix of the preamble.
func (d *Decoder) restart(b byte) int {
	n := d.matched + 1
	for k := d.matched; k > 0; k-- {
		i := 0
		for ; i < k; i++ {
			c := b
			if j := n - k + i; j < d.matched {
				c = d.active[j]
			}
			if c != d.active[i] {
				break
			}
		}
		if i == k {
			return k
		}
	}
	return 0
}

func (d *Decoder) payloadDone() error {
	if d.Checksum {
		d.state, d.received = StateReadingChecksum, 0
		return nil
	}
	d.frames.Add(1)
	d.state = StateFrameReady
	return nil
}

func (d *Decoder) verify() error {
	var head [HeaderSize]byte
	copy(head[:], d.active[:])
	head[PreambleSize] = d.msg.Destination
	head[PreambleSize+1] = d.msg.Source
	head[PreambleSize+2] = d.msg.Length
	sum := crc32.Update(crc32.ChecksumIEEE(head[:]), crc32.IEEETable, d.msg.Payload())
	if sum != binary.LittleEndian.Uint32(d.crc[:]) {
		d.checksumErrors.Add(1)
		d.Reset()
		return ErrChecksum
	}
	d.frames.Add(1)
	d.state = StateFrameReady
	return nil
}
