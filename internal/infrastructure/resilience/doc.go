/*
Package resilience provides a circuit breaker for channel opens.

# Overview

A channel whose peer is missing or wedged fails every open attempt, and each
attempt may block for the transport's full dial timeout. The breaker counts
consecutive failures per channel and, once the threshold is reached, fails
further opens immediately with ErrCircuitOpen until the cooldown passes.

# Usage

	group := resilience.NewGroup(resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("breaker state", zap.String("channel", name),
				zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	ch, err := resilience.Do(group.Get("SMD_DS"), func() (transport.Channel, error) {
		return tr.Open("SMD_DS", notify)
	})

# States

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[MaxProbes successes]-> Closed
	                                                        |
	                                                   [failure]
	                                                        |
	                                                        v
	                                                      Open
*/
package resilience
