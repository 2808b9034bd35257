/*
Package bridge connects multiplexed IPC channels to stream sinks.

# Overview

A Bridge owns one instance per registered channel. Each instance counts its
openers; the first Open acquires a suspend-inhibit token and the transport
channel, and the last Close releases both. Inbound data never reaches a sink
from the transport's notification goroutine. Notifications only schedule the
instance's drain pump on a shared workqueue, and the pump moves bytes into
the sink until the channel is empty or the sink pushes back.

# Components

  - Lifecycle (Open, Close): reference counting, token and channel
    ownership, keep-open parking, per-channel open breaker.
  - Dispatcher (Notify): EventDataAvailable schedules the pump,
    EventPeerClosed hangs up the sink once per attach cycle.
  - Pump: bounded read-and-deliver loop, re-arms the inhibit window on
    every transfer, wakes the sink once per run.
  - Flow control (Write, ReadAvailable, WriteAvailable): writes are clamped
    to the channel's write capacity and never block.
  - Unthrottle: re-schedules the pump after the sink drains.

# Locking

Every instance has two mutexes. lifecycle serialises Open and Close and is
the only lock held while the transport opens or closes a channel. mu guards
the channel, sink, open count and token, and is held for single
check-and-mutate steps: one pump iteration, one write, one query. Close
flushes the instance's pump before it touches state, so a sink is never used
after its last Close returns.

# Usage

	reg := registry.New(registry.DefaultMaxChannels)
	b, err := bridge.New(reg, transport, wakelock.NewMemory(), bridge.DefaultConfig())
	if err != nil {
		return err
	}
	b.WithLogger(logger).WithMetrics(metrics)

	if err := b.Open(0, sink); err != nil {
		return err
	}
	defer b.Close(0)

	n, err := b.Write(0, []byte("AT\r"))
*/
package bridge
