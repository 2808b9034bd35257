// Package loopback implements an in-process channel transport.
//
// Each declared endpoint behaves like one shared-memory channel: inbound
// bytes queue up in a bounded FIFO that survives closes, the peer's receive
// side has a finite write capacity, and packet endpoints keep message
// boundaries. The Peer side is scriptable, which makes the transport useful
// both for tests and for running the daemon without modem hardware:
//
//	lb := loopback.New()
//	peer := lb.Declare("SMD_DS", loopback.Options{})
//	peer.Send([]byte("AT+CSQ\r"))
//	peer.Hangup()
package loopback
