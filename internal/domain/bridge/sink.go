package bridge

// Sink is the stream consumer a channel is bridged to.
//
// Deliver and IsThrottled are called from the pump with the instance lock
// held, so they must not call back into the Bridge for the same index.
// Hangup and Wakeup are called without the lock.
type Sink interface {
	// Deliver hands over inbound bytes. p is only valid during the call.
	Deliver(p []byte)
	// Hangup reports that the peer closed the channel. It is called at most
	// once per attach cycle.
	Hangup()
	// Wakeup hints that outbound capacity should be re-checked. It is
	// called once at the end of every pump run.
	Wakeup()
	// IsThrottled reports back-pressure. While it returns true the pump
	// leaves inbound data in the channel; call Bridge.Unthrottle when the
	// sink drains.
	IsThrottled() bool
}
