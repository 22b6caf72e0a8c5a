package msgbox

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/ringbuf"
)

// Stats are diagnostic counters of a MessageBox.
type Stats struct {
	frame.Stats
	// Overruns counts decoded frames dropped because all slots were full.
	Overruns uint32
}

// MessageBox is the framed message queue of one link.
//
// Capacity, FreeSpace and UsedSpace count bytes of the transmit ring.
// IsAvailable and Pop are about decoded messages.
type MessageBox struct {
	maxPayload int
	checksum   bool
	preamble   frame.AtomicPreamble

	// transmit path
	tx      *ringbuf.Ring[byte]
	txMsg   frame.Message // owned by the Send side
	scratch [frame.MaxFrameSize]byte

	// receive path
	dec      frame.Decoder
	ready    *ringbuf.Ring[frame.Message]
	overruns atomic.Uint32
}

// New creates an initialized MessageBox.
func New(conf Config) *MessageBox {
	b := &MessageBox{}
	b.Init(conf)
	return b
}

// Init allocates all storage and resets all state. Neither path may be in
// use during Init.
func (b *MessageBox) Init(conf Config) {
	conf = conf.withDefaults()
	b.maxPayload, b.checksum = conf.MaxPayload, conf.Checksum
	b.preamble.Store(conf.Preamble)
	b.tx = ringbuf.New[byte](conf.Capacity)
	b.ready = ringbuf.New[frame.Message](conf.Slots)
	b.dec = frame.Decoder{MaxPayload: conf.MaxPayload, Checksum: conf.Checksum}
	b.dec.SetPreamble(conf.Preamble)
	b.overruns.Store(0)
}

// Destroy releases the storage and resets all state. Every operation fails
// with ErrNotInitialized, or reports an empty box, until Init is called
// again. Neither path may be in use during Destroy.
func (b *MessageBox) Destroy() {
	b.tx, b.ready = nil, nil
	b.dec = frame.Decoder{}
	b.overruns.Store(0)
}

// SetPreamble changes the pattern of frames encoded from now on and of the
// next frame the decoder looks for. Decoded messages are not affected.
func (b *MessageBox) SetPreamble(p frame.Preamble) {
	b.preamble.Store(p)
	b.dec.SetPreamble(p)
}

// Preamble returns the current pattern.
func (b *MessageBox) Preamble() frame.Preamble {
	return b.preamble.Load()
}

// MaxPayload returns the largest payload Send accepts.
func (b *MessageBox) MaxPayload() int {
	return b.maxPayload
}

// Send queues a message framed with the current preamble for transmission.
func (b *MessageBox) Send(dst, src byte, payload []byte) error {
	return b.SendWith(b.preamble.Load(), dst, src, payload)
}

// SendWith queues a message framed with preamble p. Either the whole frame
// is queued or, on error, the transmit buffer is left untouched.
func (b *MessageBox) SendWith(p frame.Preamble, dst, src byte, payload []byte) error {
	if b.tx == nil {
		return ErrNotInitialized
	}
	if len(payload) > b.maxPayload {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), b.maxPayload)
	}
	m := &b.txMsg
	m.Destination, m.Source = dst, src
	if err := m.SetPayload(payload); err != nil {
		return err
	}
	f := frame.Frame{Preamble: p, Message: m, Checksum: b.checksum}
	if f.Size() > b.tx.FreeSpace() {
		return ErrBufferFull
	}
	return b.tx.PushAll(f.AppendTo(b.scratch[:0]))
}

// TxByte takes the next byte to transmit, ErrBufferEmpty when none.
func (b *MessageBox) TxByte() (byte, error) {
	if b.tx == nil {
		return 0, ErrNotInitialized
	}
	return b.tx.Pop()
}

// WriteTo drains the transmit buffer into w. Bytes w did not accept stay
// queued.
func (b *MessageBox) WriteTo(w io.Writer) (int64, error) {
	if b.tx == nil {
		return 0, ErrNotInitialized
	}
	var total int64
	for {
		seg := b.tx.Front()
		if len(seg) == 0 {
			return total, nil
		}
		n, err := w.Write(seg)
		b.tx.Advance(n)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n < len(seg) {
			return total, io.ErrShortWrite
		}
	}
}

// Receive consumes one byte from the link. Malformed frames and frames
// finding no free slot are dropped and only counted in Stats.
func (b *MessageBox) Receive(c byte) {
	if b.ready == nil {
		return
	}
	r := b.dec.Decode(c)
	if r.Message == nil {
		return
	}
	slot := b.ready.Reserve()
	if slot == nil {
		b.overruns.Add(1)
		return
	}
	*slot = *r.Message
	b.ready.Commit()
}

// Write implements io.Writer by calling Receive for every byte of p.
func (b *MessageBox) Write(p []byte) (int, error) {
	if b.ready == nil {
		return 0, ErrNotInitialized
	}
	for _, c := range p {
		b.Receive(c)
	}
	return len(p), nil
}

// Pop removes and returns the oldest decoded message.
func (b *MessageBox) Pop() (frame.Message, error) {
	if b.ready == nil {
		return frame.Message{}, ErrNotInitialized
	}
	m, err := b.ready.Pop()
	if err != nil {
		return m, ErrNoMessageReady
	}
	return m, nil
}

// IsAvailable reports whether Pop would succeed.
func (b *MessageBox) IsAvailable() bool {
	return b.ready != nil && b.ready.IsAvailable()
}

// Pending returns the number of decoded messages waiting for Pop.
func (b *MessageBox) Pending() int {
	if b.ready == nil {
		return 0
	}
	return b.ready.UsedSpace()
}

// Capacity returns the transmit buffer size in bytes.
func (b *MessageBox) Capacity() int {
	if b.tx == nil {
		return 0
	}
	return b.tx.Capacity()
}

// FreeSpace returns the bytes Send can still queue.
func (b *MessageBox) FreeSpace() int {
	if b.tx == nil {
		return 0
	}
	return b.tx.FreeSpace()
}

// UsedSpace returns the bytes waiting for transmission.
func (b *MessageBox) UsedSpace() int {
	if b.tx == nil {
		return 0
	}
	return b.tx.UsedSpace()
}

// Stats returns a snapshot of the diagnostic counters.
func (b *MessageBox) Stats() Stats {
	return Stats{Stats: b.dec.Stats(), Overruns: b.overruns.Load()}
}
