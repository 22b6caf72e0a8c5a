// Package link binds a MessageBox to a byte stream.
//
// On a microcontroller the receive interrupt calls MessageBox.Receive and
// the transmit path drains MessageBox.TxByte. On a host the stream is a
// serial port or a tunnel, and Link plays both roles: one goroutine reads
// the stream into the box, the Run loop writes queued frames out and hands
// received messages to a MessageHandler.
package link
