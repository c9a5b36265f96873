package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"

	_ "net/http/pprof"
)

// DebugServer serves /metrics (Prometheus exposition), /stats (a JSON
// dump of the event loop's own counters), and the pprof endpoints
// registered by the net/http/pprof side-effect import, on its own
// listener so it never shares a socket with the cache protocol. It
// never touches the event loop's connection list or transaction table
// directly; only the Registry and a read-only snapshot function are
// shared across the goroutine boundary, matching spec.md §5's
// single-owner invariant for everything else.
type DebugServer struct {
	addr     string
	registry *Registry
	server   *http.Server
}

// StatsSnapshotFunc returns a point-in-time copy of the event loop's
// per-message-kind and connection counters. It must be safe to call
// concurrently with the event loop goroutine; cache.Stats.Snapshot
// satisfies this.
type StatsSnapshotFunc func() map[string]int64

// NewDebugServer builds a debug server that will listen on addr once
// started. An empty addr means the caller should not start it at all.
// snapshot may be nil, in which case /stats reports JSON null.
func NewDebugServer(addr string, registry *Registry, snapshot StatsSnapshotFunc) *DebugServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		registry.WritePrometheus(w)
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		var out map[string]int64
		if snapshot != nil {
			out = snapshot()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})
	return &DebugServer{
		addr:     addr,
		registry: registry,
		server:   &http.Server{Addr: addr, Handler: mux},
	}
}

// Serve blocks serving the debug endpoints until the server is closed.
// Callers run it in its own goroutine, mirroring the pprof goroutine the
// teacher's server started inline.
func (d *DebugServer) Serve() error {
	if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: debug server: %w", err)
	}
	return nil
}

// Close shuts the debug server down.
func (d *DebugServer) Close() error {
	return d.server.Close()
}
