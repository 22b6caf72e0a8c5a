// Package frame translates between Messages and their wire encoding.
//
// A frame on the wire is
//
//	preamble(4) | destination(1) | source(1) | length(1) | payload(length) [| crc32(4)]
//
// The preamble resynchronizes a receiver joining a noisy byte stream. The
// CRC-32 trailer (IEEE, little-endian, over everything before it) is
// optional and must be enabled on both ends.
//
// Decoder consumes one byte at a time so it can be driven directly from a
// receive interrupt or a single reader goroutine, without lookahead.
package frame
