// Package mqtt bridges a message box link to an MQTT broker.
//
// A payload published to tx/<dst> is sent on the link to address dst.
// A message received on the link is published to rx/<dst>/<src>.
// Addresses are two lowercase hex digits.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/link"
	"github.com/robotalks/msgbox/pkg/msgbox"
)

// Topic prefixes.
const (
	TxTopic = "tx"
	RxTopic = "rx"
)

// RxTopicOf returns the topic a received message is published to.
func RxTopicOf(msg frame.Message) string {
	return fmt.Sprintf("%s/%02x/%02x", RxTopic, msg.Destination, msg.Source)
}

// ParseTxTopic extracts the destination from tx/<dst>.
func ParseTxTopic(topic string) (byte, error) {
	addr, ok := strings.CutPrefix(topic, TxTopic+"/")
	if !ok {
		return 0, fmt.Errorf("not a tx topic: %q", topic)
	}
	n, err := strconv.ParseUint(addr, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address in %q: %w", topic, err)
	}
	return byte(n), nil
}

// Bridge forwards messages between a Link and a Queue.
type Bridge struct {
	Queue   *Queue
	Link    *link.Link
	Address byte
}

// New creates a Bridge and takes over the Handler of l.
func New(q *Queue, l *link.Link, addr byte) *Bridge {
	b := &Bridge{Queue: q, Link: l, Address: addr}
	l.Handler = b
	return b
}

// Name implements run.Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// HandleMessage implements link.MessageHandler.
func (b *Bridge) HandleMessage(ctx context.Context, msg frame.Message) {
	topic := RxTopicOf(msg)
	glog.V(2).Infof("PUB %q [%d]", topic, msg.Length)
	b.Queue.Pub(topic, msg.Payload())
}

func (b *Bridge) handleTx(topic string, payload []byte) {
	dst, err := ParseTxTopic(topic)
	if err != nil {
		glog.Warning(err)
		return
	}
	err = b.Link.Send(dst, b.Address, payload)
	if errors.Is(err, msgbox.ErrBufferFull) {
		// make room once, the broker keeps delivering while we wait
		if err = b.Link.Flush(); err == nil {
			err = b.Link.Send(dst, b.Address, payload)
		}
	}
	if err != nil {
		glog.Errorf("send to %02x dropped: %v", dst, err)
	}
}

// Run connects to the broker and pumps the link until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(TxTopic+"/+", b.handleTx)
	defer sub.Close()

	token := b.Queue.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect MQTT broker: %w", err)
	}
	defer b.Queue.Close()
	return b.Link.Run(ctx)
}
