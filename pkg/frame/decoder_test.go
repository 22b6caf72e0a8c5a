package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type decoderTestSequence struct {
	in     []byte
	expect State
	final  State
	msg    *Message
	err    error
}

type decoderTestSequenceBuilder struct {
	seq []decoderTestSequence
}

func decoderTestSequences() *decoderTestSequenceBuilder {
	return &decoderTestSequenceBuilder{}
}

func (b *decoderTestSequenceBuilder) on(state State, in ...byte) *decoderTestSequenceBuilder {
	b.seq = append(b.seq, decoderTestSequence{in: in, expect: state, final: state})
	return b
}

func (b *decoderTestSequenceBuilder) onSeeking(in ...byte) *decoderTestSequenceBuilder {
	return b.on(StateSeekingPreamble, in...)
}

func (b *decoderTestSequenceBuilder) final(state State) *decoderTestSequenceBuilder {
	b.seq[len(b.seq)-1].final = state
	return b
}

func (b *decoderTestSequenceBuilder) synced() *decoderTestSequenceBuilder {
	return b.final(StateReadingDestination)
}

func (b *decoderTestSequenceBuilder) message(dst, src byte, payload ...byte) *decoderTestSequenceBuilder {
	m, _ := NewMessage(dst, src, payload)
	b.seq[len(b.seq)-1].msg = &m
	return b.final(StateFrameReady)
}

func (b *decoderTestSequenceBuilder) fails(err error) *decoderTestSequenceBuilder {
	b.seq[len(b.seq)-1].err = err
	return b.final(StateSeekingPreamble)
}

func (b *decoderTestSequenceBuilder) build() []decoderTestSequence {
	return b.seq
}

func runDecoderSequences(t *testing.T, d *Decoder, seq []decoderTestSequence) {
	for n, s := range seq {
		var r Result
		for i, c := range s.in {
			r = d.Decode(c)
			if i+1 < len(s.in) {
				require.Equalf(t, s.expect, r.State, "seq[%d][%d] expect mismatch", n, i)
				require.NoErrorf(t, r.Err, "seq[%d][%d] unexpected error", n, i)
			}
		}
		require.Equalf(t, s.final, r.State, "seq[%d] final mismatch", n)
		require.Equalf(t, s.err, r.Err, "seq[%d] error mismatch", n)
		if s.msg != nil {
			require.NotNil(t, r.Message)
			require.Equalf(t, *s.msg, *r.Message, "seq[%d] message mismatch", n)
		} else {
			require.Nilf(t, r.Message, "seq[%d] unexpected message", n)
		}
	}
}

func TestDecoder(t *testing.T) {
	testCases := []struct {
		name string
		max  int
		seq  []decoderTestSequence
	}{
		{
			name: "three byte payload",
			max:  16,
			seq: decoderTestSequences().
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 2).
				on(StateReadingLength, 1).
				on(StateReadingPayload, 3, 1, 2, 3).message(2, 1, 1, 2, 3).
				build(),
		},
		{
			name: "empty payload",
			seq: decoderTestSequences().
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 9).
				on(StateReadingLength, 8).
				on(StateFrameReady, 0).message(9, 8).
				build(),
		},
		{
			name: "skip garbage",
			seq: decoderTestSequences().
				onSeeking(0x00, 0x11, 0xbb, 0xcc, 0xdd, 0xff).
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 2).
				on(StateReadingLength, 1).
				on(StateReadingPayload, 1, 0x42).message(2, 1, 0x42).
				build(),
		},
		{
			name: "back to back frames",
			seq: decoderTestSequences().
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 1).
				on(StateReadingLength, 2).
				on(StateFrameReady, 0).message(1, 2).
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 3).
				on(StateReadingLength, 4).
				on(StateReadingPayload, 1, 5).message(3, 4, 5).
				build(),
		},
		{
			name: "repeated first byte",
			seq: decoderTestSequences().
				onSeeking(0xaa, 0xaa, 0xaa, 0xbb, 0xcc, 0xdd).synced().
				build(),
		},
		{
			name: "oversized length",
			max:  16,
			seq: decoderTestSequences().
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 2).
				on(StateReadingLength, 1).
				on(StateReadingLength, 17).fails(ErrFraming).
				onSeeking(1, 2, 3).
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 2).
				on(StateReadingLength, 1).
				on(StateReadingPayload, 16, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15).
				message(2, 1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15).
				build(),
		},
		{
			name: "length over absolute max",
			seq: decoderTestSequences().
				onSeeking(0xaa, 0xbb, 0xcc, 0xdd).synced().
				on(StateReadingSource, 2).
				on(StateReadingLength, 1).
				on(StateReadingLength, MaxPayloadSize+1).fails(ErrFraming).
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decoder{MaxPayload: tc.max}
			runDecoderSequences(t, &d, tc.seq)
		})
	}
}

// A mismatch resumes at the longest suffix of the bytes seen so far that
// is also a preamble prefix. Restarting at position 0 would miss the frame
// hidden in "ab ab ab ac".
func TestDecoderLongestPrefixRestart(t *testing.T) {
	var d Decoder
	d.SetPreamble(Preamble{0xab, 0xab, 0xab, 0xac})
	runDecoderSequences(t, &d, decoderTestSequences().
		onSeeking(0xab, 0xab, 0xab, 0xab, 0xab).
		onSeeking(0xac).synced().
		build())

	d.SetPreamble(Preamble{1, 2, 1, 3})
	d.Reset()
	runDecoderSequences(t, &d, decoderTestSequences().
		onSeeking(1, 2, 1, 2, 1).
		onSeeking(3).synced().
		build())

	d.SetPreamble(DefaultPreamble)
	d.Reset()
	runDecoderSequences(t, &d, decoderTestSequences().
		onSeeking(0xaa, 0xbb, 0xcc, 0xaa).
		onSeeking(0xbb, 0xcc).
		onSeeking(0xdd).synced().
		build())
}

func TestDecoderChecksum(t *testing.T) {
	m, err := NewMessage(3, 4, []byte{9, 8, 7})
	require.NoError(t, err)
	f := Frame{Preamble: DefaultPreamble, Message: &m, Checksum: true}
	good := f.Bytes()
	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xff

	d := Decoder{Checksum: true}
	var r Result
	for _, c := range bad {
		r = d.Decode(c)
	}
	require.Equal(t, ErrChecksum, r.Err)
	require.Equal(t, StateSeekingPreamble, r.State)
	require.Nil(t, r.Message)

	for i, c := range good {
		r = d.Decode(c)
		if i >= len(good)-ChecksumSize && i+1 < len(good) {
			require.Equal(t, StateReadingChecksum, r.State)
		}
	}
	require.Equal(t, StateFrameReady, r.State)
	require.Equal(t, m, *r.Message)
	require.Equal(t, Stats{Frames: 1, ChecksumErrors: 1}, d.Stats())
}

func TestDecoderRoundTrip(t *testing.T) {
	for _, checksum := range []bool{false, true} {
		var d Decoder
		d.Checksum = checksum
		for n := 0; n <= MaxPayloadSize; n += 7 {
			payload := make([]byte, n)
			for i := range payload {
				payload[i] = byte(i*31 + n)
			}
			m, err := NewMessage(byte(n), byte(255-n), payload)
			require.NoError(t, err)
			f := Frame{Preamble: DefaultPreamble, Message: &m, Checksum: checksum}
			var r Result
			for _, c := range f.Bytes() {
				r = d.Decode(c)
			}
			require.Equal(t, StateFrameReady, r.State)
			require.Equal(t, m, *r.Message)
		}
	}
}

func TestDecoderPreambleChange(t *testing.T) {
	var d Decoder
	runDecoderSequences(t, &d, decoderTestSequences().
		onSeeking(0xaa, 0xbb).
		build())

	// the partial match keeps using the pattern it started with
	d.SetPreamble(Preamble{1, 2, 3, 4})
	runDecoderSequences(t, &d, decoderTestSequences().
		onSeeking(0xcc, 0xdd).synced().
		on(StateReadingSource, 1).
		on(StateReadingLength, 2).
		on(StateFrameReady, 0).message(1, 2).
		onSeeking(0xaa, 0xbb, 0xcc, 0xdd).
		onSeeking(1, 2, 3, 4).synced().
		build())
	require.Equal(t, Preamble{1, 2, 3, 4}, d.Preamble())
}

func TestDecoderStats(t *testing.T) {
	d := Decoder{MaxPayload: 2}
	for _, c := range []byte{0xaa, 0xbb, 0xcc, 0xdd, 1, 2, 3} {
		d.Decode(c)
	}
	for _, c := range []byte{0xaa, 0xbb, 0xcc, 0xdd, 1, 2, 2, 0, 0} {
		d.Decode(c)
	}
	require.Equal(t, Stats{Frames: 1, FramingErrors: 1}, d.Stats())
	require.Equal(t, StateFrameReady, d.State())
	d.Reset()
	require.Equal(t, StateSeekingPreamble, d.State())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "seeking-preamble", StateSeekingPreamble.String())
	require.Equal(t, "frame-ready", StateFrameReady.String())
	require.Equal(t, "unknown", State(42).String())
}
