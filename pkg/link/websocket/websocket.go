// Package websocket carries raw link bytes over websocket so a box on one
// host can talk to a serial port attached to another.
package websocket

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ErrBusy is returned to a second client while one is connected.
var ErrBusy = errors.New("tunnel busy")

// Dial connects to a Tunnel. The returned conn is a byte stream.
func Dial(url string) (*websocket.Conn, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// Tunnel relays a byte stream, e.g. a serial port, to one websocket client
// at a time. Bytes read from the stream while no client is connected are
// discarded; the receiving box resyncs on the next preamble.
type Tunnel struct {
	Stream io.ReadWriter

	lock   sync.Mutex
	client *websocket.Conn
}

// NewTunnel creates a Tunnel.
func NewTunnel(stream io.ReadWriter) *Tunnel {
	return &Tunnel{Stream: stream}
}

// Name implements run.Named.
func (t *Tunnel) Name() string {
	return "tunnel"
}

// Handler returns the http.Handler accepting clients.
func (t *Tunnel) Handler() websocket.Handler {
	return websocket.Handler(t.serve)
}

// Run copies the stream to the connected client until the stream fails or
// ctx is done. Like link.Link, the stream must be closed to release the
// reader once Run returns.
func (t *Tunnel) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := t.Stream.Read(buf)
			if n > 0 {
				t.forward(buf[:n])
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (t *Tunnel) forward(p []byte) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.client == nil {
		glog.V(4).Infof("no client, %d bytes discarded", len(p))
		return
	}
	if _, err := t.client.Write(p); err != nil {
		glog.Warningf("write to %s failed: %v", t.client.Request().RemoteAddr, err)
		t.client.Close()
		t.client = nil
	}
}

func (t *Tunnel) attach(conn *websocket.Conn) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.client != nil {
		return false
	}
	t.client = conn
	return true
}

func (t *Tunnel) detach(conn *websocket.Conn) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.client == conn {
		t.client = nil
	}
}

func (t *Tunnel) serve(conn *websocket.Conn) {
	remote := conn.Request().RemoteAddr
	conn.PayloadType = websocket.BinaryFrame
	if !t.attach(conn) {
		glog.Warningf("reject %s: %v", remote, ErrBusy)
		websocket.Message.Send(conn, ErrBusy.Error())
		return
	}
	defer t.detach(conn)
	glog.Infof("client %s connected", remote)
	_, err := io.Copy(t.Stream, conn)
	glog.Infof("client %s disconnected: %v", remote, err)
}
