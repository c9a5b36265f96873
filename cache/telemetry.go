package cache

import (
	"time"

	"github.com/objcache/cachemgr/metrics"
	"github.com/objcache/cachemgr/protocol"
)

// telemetry bundles the two optional, externally-owned ambient-stack
// registries a dispatchState reports into. Both are nil-safe: a Server
// built without a Registry/Latencies (the default) pays nothing beyond
// a couple of nil checks per request.
type telemetry struct {
	registry  *metrics.Registry
	latencies *metrics.Latencies
}

func (t *telemetry) incRequest(kind protocol.Kind) {
	if t == nil || t.registry == nil {
		return
	}
	t.registry.IncRequest(kind)
}

func (t *telemetry) addBytesRead(n int) {
	if t == nil || t.registry == nil {
		return
	}
	t.registry.AddBytesRead(n)
}

func (t *telemetry) addBytesStored(n int) {
	if t == nil || t.registry == nil {
		return
	}
	t.registry.AddBytesStored(n)
}

func (t *telemetry) timePread(d time.Duration) {
	if t == nil || t.latencies == nil {
		return
	}
	t.latencies.TimePread(d)
}

func (t *telemetry) timeWriteTxn(d time.Duration) {
	if t == nil || t.latencies == nil {
		return
	}
	t.latencies.TimeWriteTxn(d)
}

func (t *telemetry) timeCommitTxn(d time.Duration) {
	if t == nil || t.latencies == nil {
		return
	}
	t.latencies.TimeCommitTxn(d)
}

func (t *telemetry) timeListNext(d time.Duration) {
	if t == nil || t.latencies == nil {
		return
	}
	t.latencies.TimeListNext(d)
}

func (t *telemetry) setConnectionsOpen(n int) {
	if t == nil || t.registry == nil {
		return
	}
	t.registry.SetConnectionsOpen(n)
}

func (t *telemetry) setTransactionsOpen(n int) {
	if t == nil || t.registry == nil {
		return
	}
	t.registry.SetTransactionsOpen(n)
}

func (t *telemetry) setListingsOpen(n int) {
	if t == nil || t.registry == nil {
		return
	}
	t.registry.SetListingsOpen(n)
}
