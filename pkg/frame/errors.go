package frame

import "errors"

var (
	// ErrPayloadTooLarge indicates a payload beyond the maximum payload size.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrFraming indicates a malformed frame, e.g. an out-of-range length.
	ErrFraming = errors.New("framing error")
	// ErrChecksum indicates a frame whose CRC-32 trailer does not match.
	ErrChecksum = errors.New("checksum mismatch")
)
