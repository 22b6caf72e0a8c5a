package msgbox

import (
	"errors"

	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/ringbuf"
)

var (
	// ErrBufferFull indicates the transmit buffer can't hold the frame.
	ErrBufferFull = ringbuf.ErrFull
	// ErrBufferEmpty indicates there is no byte waiting for transmission.
	ErrBufferEmpty = ringbuf.ErrEmpty
	// ErrNoMessageReady indicates no decoded message is waiting.
	ErrNoMessageReady = errors.New("no message ready")
	// ErrPayloadTooLarge indicates the payload exceeds the maximum size.
	ErrPayloadTooLarge = frame.ErrPayloadTooLarge
	// ErrNotInitialized indicates use of a box before Init or after Destroy.
	ErrNotInitialized = errors.New("message box not initialized")
)
