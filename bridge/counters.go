package bridge

import "sync/atomic"

// Counters tracks the bridge's monotonic traffic and connection-attempt
// counts, sampled periodically by the MetricsReporter. Every field is
// append-only for the lifetime of the process, matching the original
// MetricsHandler's plain instance counters.
type Counters struct {
	ToWS                  atomic.Uint64
	FromWS                atomic.Uint64
	BrokerConnectAttempts atomic.Uint64
	WSConnectAttempts     atomic.Uint64
}

type counterSnapshot struct {
	toWS, fromWS, brokerAttempts, wsAttempts uint64
}

func (c *Counters) snapshot() counterSnapshot {
	return counterSnapshot{
		toWS:           c.ToWS.Load(),
		fromWS:         c.FromWS.Load(),
		brokerAttempts: c.BrokerConnectAttempts.Load(),
		wsAttempts:     c.WSConnectAttempts.Load(),
	}
}
