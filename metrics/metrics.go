// Package metrics exposes the counters and gauges a cachemgrd operator
// watches from the outside: requests by kind, bytes moved, and the size
// of the in-process state the event loop is tracking.
package metrics

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/objcache/cachemgr/protocol"
)

// Registry owns one VictoriaMetrics metrics.Set so a process embedding
// more than one Server doesn't collide on global metric names.
type Registry struct {
	set *metrics.Set

	bytesRead   *metrics.Counter
	bytesStored *metrics.Counter

	connections atomic.Int64
	openTxns    atomic.Int64
	openListing atomic.Int64
}

// NewRegistry creates a fresh, unregistered metrics.Set. Callers wire it
// into a debug HTTP handler with WritePrometheus.
func NewRegistry() *Registry {
	set := metrics.NewSet()
	r := &Registry{
		set:         set,
		bytesRead:   set.NewCounter("cachemgrd_bytes_read_total"),
		bytesStored: set.NewCounter("cachemgrd_bytes_stored_total"),
	}
	set.NewGauge("cachemgrd_connections_open", func() float64 { return float64(r.connections.Load()) })
	set.NewGauge("cachemgrd_transactions_open", func() float64 { return float64(r.openTxns.Load()) })
	set.NewGauge("cachemgrd_listings_open", func() float64 { return float64(r.openListing.Load()) })
	return r
}

// IncRequest increments the per-kind request counter.
func (r *Registry) IncRequest(kind protocol.Kind) {
	r.set.GetOrCreateCounter(fmt.Sprintf(`cachemgrd_requests_total{kind="%s"}`, kind)).Inc()
}

// AddBytesRead adds n to the bytes-read-from-backend counter.
func (r *Registry) AddBytesRead(n int) {
	r.bytesRead.Add(n)
}

// AddBytesStored adds n to the bytes-stored-to-backend counter.
func (r *Registry) AddBytesStored(n int) {
	r.bytesStored.Add(n)
}

// SetConnectionsOpen reports the current connection-set size.
func (r *Registry) SetConnectionsOpen(n int) { r.connections.Store(int64(n)) }

// SetTransactionsOpen reports the current in-flight transaction count.
func (r *Registry) SetTransactionsOpen(n int) { r.openTxns.Store(int64(n)) }

// SetListingsOpen reports the current open-cursor count.
func (r *Registry) SetListingsOpen(n int) { r.openListing.Store(int64(n)) }

// WritePrometheus renders the registry in Prometheus exposition format.
func (r *Registry) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)
}
