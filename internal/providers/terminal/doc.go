// Package terminal exposes bridged channels as host terminal devices.
//
// Each channel gets a pseudo-terminal in raw mode. The pty master is driven
// by a Device, which is the channel's bridge.Sink: channel data is queued
// for the master and throttled above a high-water mark, and bytes written to
// the slave by a host program are forwarded to the channel as write space
// allows. The slave path is published as a symlink (for example
// /tmp/chanbridge/smd27) so tools can open a stable name.
//
// A peer hangup detaches the device. The Manager can attach it again, which
// reopens the channel on the bridge.
package terminal
