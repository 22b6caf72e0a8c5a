package link

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/msgbox"
)

// ReadBufferSize is the size of a single Read from the link.
const ReadBufferSize = 1024

// MessageHandler is called when a message is received.
type MessageHandler interface {
	HandleMessage(context.Context, frame.Message)
}

// HandleMessageFunc is func type of MessageHandler.
type HandleMessageFunc func(context.Context, frame.Message)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg frame.Message) {
	f(ctx, msg)
}

// Link moves bytes between a MessageBox and a byte stream such as a serial
// port. The reader goroutine started by Run is the only producer of the
// receive path. Send and Flush serialize their callers so the transmit
// path keeps a single producer and a single consumer.
type Link struct {
	ReadWriter io.ReadWriter
	Box        *msgbox.MessageBox
	// Handler receives every decoded message. When nil, messages stay in
	// the box for Pop.
	Handler MessageHandler
	// FlushInterval bounds how long queued bytes wait when nobody calls
	// Send. It is also the period of the diagnostics check.
	FlushInterval time.Duration

	sendLock  sync.Mutex
	flushLock sync.Mutex
	popLock   sync.Mutex
	kickCh    chan struct{}

	lastStats msgbox.Stats
}

// New creates a Link.
func New(rw io.ReadWriter, box *msgbox.MessageBox) *Link {
	return &Link{
		ReadWriter:    rw,
		Box:           box,
		FlushInterval: 10 * time.Millisecond,
		kickCh:        make(chan struct{}, 1),
	}
}

// Name implements run.Named.
func (l *Link) Name() string {
	return "link"
}

// Send queues a message and wakes up the writer.
func (l *Link) Send(dst, src byte, payload []byte) error {
	l.sendLock.Lock()
	err := l.Box.Send(dst, src, payload)
	l.sendLock.Unlock()
	if err != nil {
		return err
	}
	glog.V(2).Infof("TX %02x->%02x [%d]", src, dst, len(payload))
	select {
	case l.kickCh <- struct{}{}:
	default:
	}
	return nil
}

// Flush writes all queued bytes to the stream.
func (l *Link) Flush() error {
	l.flushLock.Lock()
	defer l.flushLock.Unlock()
	_, err := l.Box.WriteTo(l.ReadWriter)
	return err
}

// Pop takes the oldest received message. Only useful without Handler.
func (l *Link) Pop() (frame.Message, error) {
	l.popLock.Lock()
	defer l.popLock.Unlock()
	return l.Box.Pop()
}

// Run pumps the stream until ctx is done or the stream fails. The stream
// should be closed after Run returns to release the reader goroutine.
func (l *Link) Run(ctx context.Context) error {
	rxCh, errCh := make(chan struct{}, 1), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, rxCh, errCh)

	interval := l.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-rxCh:
			l.dispatch(ctx)
		case <-l.kickCh:
			if err := l.Flush(); err != nil {
				return err
			}
		case <-ticker.C:
			if err := l.Flush(); err != nil {
				return err
			}
			l.dispatch(ctx)
			l.checkStats()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, rxCh chan<- struct{}, errCh chan<- error) {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			l.Box.Write(buf[:n])
			if l.Box.IsAvailable() {
				select {
				case rxCh <- struct{}{}:
				default:
				}
			}
		}
		if err != nil && !os.IsTimeout(err) {
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (l *Link) dispatch(ctx context.Context) {
	h := l.Handler
	if h == nil {
		return
	}
	for {
		msg, err := l.Pop()
		if err != nil {
			return
		}
		glog.V(2).Infof("RX %s", msg.String())
		h.HandleMessage(ctx, msg)
	}
}

func (l *Link) checkStats() {
	st := l.Box.Stats()
	last := l.lastStats
	l.lastStats = st
	if st.FramingErrors > last.FramingErrors {
		glog.Warningf("%d framing errors", st.FramingErrors-last.FramingErrors)
	}
	if st.ChecksumErrors > last.ChecksumErrors {
		glog.Warningf("%d checksum errors", st.ChecksumErrors-last.ChecksumErrors)
	}
	if st.Overruns > last.Overruns {
		glog.Warningf("%d messages dropped, receive slots full", st.Overruns-last.Overruns)
	}
}
