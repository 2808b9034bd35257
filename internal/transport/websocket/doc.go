// Package websocket carries channels to a remote peer over WebSocket.
//
// Each channel is its own connection to {peer}/channels/{name}. Binary
// messages carry one frame each:
//
//	0x01 <bytes>        data
//	0x02 <uint32 BE>    credit: the receiver may send that many more bytes
//	0x03                close
//
// Both sides start by granting their inbound window as credit and return
// credit as they consume data, which gives the same bounded, non-blocking
// read and write availability a shared-memory FIFO has. EchoPeer is a peer
// implementation used for local runs and tests.
package websocket
