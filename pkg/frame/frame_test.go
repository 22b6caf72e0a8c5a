package frame

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustMessage(t *testing.T, dst, src byte, payload ...byte) *Message {
	m, err := NewMessage(dst, src, payload)
	require.NoError(t, err)
	return &m
}

func TestFrameEncode(t *testing.T) {
	testCases := []struct {
		name   string
		frame  Frame
		expect []byte
	}{
		{
			name:   "three byte payload",
			frame:  Frame{Preamble: DefaultPreamble, Message: mustMessage(t, 2, 1, 1, 2, 3)},
			expect: []byte{0xaa, 0xbb, 0xcc, 0xdd, 2, 1, 3, 1, 2, 3},
		},
		{
			name:   "no payload",
			frame:  Frame{Preamble: DefaultPreamble, Message: mustMessage(t, 0x10, 0x20)},
			expect: []byte{0xaa, 0xbb, 0xcc, 0xdd, 0x10, 0x20, 0},
		},
		{
			name:   "custom preamble",
			frame:  Frame{Preamble: Preamble{1, 2, 3, 4}, Message: mustMessage(t, 5, 6, 7)},
			expect: []byte{1, 2, 3, 4, 5, 6, 1, 7},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.frame.Bytes()
			require.Len(t, encoded, tc.frame.Size())
			require.Equal(t, tc.expect, encoded)
			var buf bytes.Buffer
			n, err := tc.frame.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, encoded, buf.Bytes())
			require.Equal(t, int64(len(encoded)), n)
			require.Equal(t, encoded, tc.frame.Bytes(), "encoding must be deterministic")
		})
	}
}

func TestFrameChecksum(t *testing.T) {
	m := mustMessage(t, 5, 6, 7, 8)
	f := Frame{Preamble: Preamble{1, 2, 3, 4}, Message: m, Checksum: true}
	b := f.Bytes()
	require.Len(t, b, HeaderSize+2+ChecksumSize)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 2, 7, 8}, b[:HeaderSize+2])
	require.Equal(t, crc32.ChecksumIEEE(b[:HeaderSize+2]), binary.LittleEndian.Uint32(b[HeaderSize+2:]))

	var d Decoder
	d.Checksum = true
	d.SetPreamble(f.Preamble)
	var last Result
	for _, c := range b {
		last = d.Decode(c)
	}
	require.Equal(t, StateFrameReady, last.State)
}

func TestAppendToNoAlloc(t *testing.T) {
	m := mustMessage(t, 1, 2, bytes.Repeat([]byte{0x5a}, MaxPayloadSize)...)
	f := Frame{Preamble: DefaultPreamble, Message: m, Checksum: true}
	var buf [MaxFrameSize]byte
	allocs := testing.AllocsPerRun(100, func() {
		f.AppendTo(buf[:0])
	})
	require.Zero(t, allocs)
	require.Equal(t, MaxFrameSize, f.Size())
}

func TestMessage(t *testing.T) {
	m, err := NewMessage(1, 2, []byte{3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, m.Payload())
	require.Equal(t, "02->01 [2] 03 04", m.String())

	_, err = NewMessage(1, 2, make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = NewMessage(1, 2, make([]byte, MaxPayloadSize))
	require.NoError(t, err)
}

func TestPreamble(t *testing.T) {
	require.Equal(t, "aabbccdd", DefaultPreamble.String())
	p, err := ParsePreamble("01020304")
	require.NoError(t, err)
	require.Equal(t, Preamble{1, 2, 3, 4}, p)
	_, err = ParsePreamble("010203")
	require.Error(t, err)
	_, err = ParsePreamble("zz020304")
	require.Error(t, err)
	require.True(t, Preamble{}.IsZero())
	require.False(t, DefaultPreamble.IsZero())

	var a AtomicPreamble
	require.Equal(t, DefaultPreamble, a.Load())
	a.Store(Preamble{})
	require.Equal(t, Preamble{}, a.Load())
	a.Store(Preamble{0xff, 0, 0x80, 1})
	require.Equal(t, Preamble{0xff, 0, 0x80, 1}, a.Load())
}
