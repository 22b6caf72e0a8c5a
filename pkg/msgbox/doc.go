// Package msgbox provides MessageBox, a framed message queue for one
// point-to-point serial link.
//
// The transmit path: Send encodes a Message and stores the whole frame in
// a fixed-capacity byte ring, or nothing at all; the link driver drains the
// ring with TxByte or WriteTo.
//
// The receive path: the link driver feeds raw bytes with Receive or Write,
// typically from the receive interrupt or the only goroutine reading the
// port; complete frames land in a fixed number of ready slots and the
// application takes them with Pop.
//
// Each path has exactly one producer and one consumer. Nothing blocks and
// nothing is allocated after Init.
package msgbox
