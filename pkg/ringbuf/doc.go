// Package ringbuf provides a fixed-capacity ring for one producer and one
// consumer.
//
// The producer is typically an interrupt handler or the single goroutine
// reading a serial port, the consumer the main loop. Neither side blocks
// and nothing is allocated after New. Calls on the same side must not
// overlap; the ring does not protect against two producers or two
// consumers.
package ringbuf
