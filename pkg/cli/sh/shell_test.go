package sh

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/link"
	"github.com/robotalks/msgbox/pkg/msgbox"
)

func TestParseAddress(t *testing.T) {
	for in, expect := range map[string]byte{"0": 0, "0a": 0x0a, "0xff": 0xff, "7F": 0x7f} {
		addr, err := ParseAddress(in)
		require.NoErrorf(t, err, "%q", in)
		require.Equalf(t, expect, addr, "%q", in)
	}
	for _, in := range []string{"", "100", "zz"} {
		_, err := ParseAddress(in)
		require.Errorf(t, err, "%q", in)
	}
}

func TestParseHexPayload(t *testing.T) {
	payload, err := ParseHexPayload([]string{"0102", "03"})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, payload)

	payload, err = ParseHexPayload(nil)
	require.NoError(t, err)
	require.Empty(t, payload)

	_, err = ParseHexPayload([]string{"012"})
	require.Error(t, err)
}

func TestMessageJSON(t *testing.T) {
	msg, err := frame.NewMessage(2, 1, []byte{0xde, 0xad})
	require.NoError(t, err)
	out, err := json.Marshal(NewMessageJSON(msg))
	require.NoError(t, err)
	require.JSONEq(t, `{"dst":2,"src":1,"data":"dead"}`, string(out))
}

func TestConn(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	conn := StartConn(local, msgbox.New(msgbox.DefaultConfig()), 0x10)

	rxCh := make(chan frame.Message, 1)
	peer := link.New(remote, msgbox.New(msgbox.DefaultConfig()))
	peer.Handler = link.HandleMessageFunc(func(_ context.Context, msg frame.Message) {
		rxCh <- msg
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go peer.Run(ctx)

	require.NoError(t, conn.Link.Send(0x20, conn.Address, []byte("hi")))
	select {
	case msg := <-rxCh:
		require.Equal(t, byte(0x20), msg.Destination)
		require.Equal(t, byte(0x10), msg.Source)
		require.Equal(t, []byte("hi"), msg.Payload())
	case <-time.After(time.Second):
		t.Fatal("message not received by peer")
	}

	// without a handler the message waits for pop
	require.NoError(t, peer.Send(0x10, 0x20, []byte{7}))
	require.Eventually(t, func() bool {
		return conn.Link.Box.Pending() == 1
	}, time.Second, time.Millisecond)
	msg, err := conn.Link.Pop()
	require.NoError(t, err)
	require.Equal(t, []byte{7}, msg.Payload())

	require.NoError(t, conn.Close())
}
