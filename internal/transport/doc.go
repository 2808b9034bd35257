// Package transport defines the channel transport consumed by the bridge.
//
// A transport exposes named, flow-controlled channels to a peer processor.
// Framing, shared memory and peer synchronization are the transport's
// business; the bridge only sees availability queries, non-blocking reads and
// writes, and two asynchronous events:
//
//	EventDataAvailable  inbound bytes are waiting
//	EventPeerClosed     the remote side closed the channel
//
// Implementations:
//   - loopback: in-process channels with a scriptable peer side
//   - websocket: channels carried over WebSocket connections with credit-based
//     flow control
package transport
