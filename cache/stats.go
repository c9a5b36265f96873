package cache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Stats is a snapshot of event-loop-owned counters, read by the debug
// HTTP server's goroutine while written by the event loop goroutine.
// This is the one piece of cache package state that is genuinely
// touched by more than one goroutine (spec.md §5 scopes everything
// else to the I/O thread alone), so it is the one place that earns an
// xsync.MapOf instead of a plain map guarded by "don't touch it from
// elsewhere".
type Stats struct {
	counters *xsync.MapOf[string, int64]
}

func newStats() *Stats {
	return &Stats{counters: xsync.NewMapOf[string, int64]()}
}

func (s *Stats) inc(name string) {
	if s == nil {
		return
	}
	s.counters.Compute(name, func(old int64, loaded bool) (int64, bool) {
		return old + 1, false
	})
}

func (s *Stats) set(name string, value int64) {
	if s == nil {
		return
	}
	s.counters.Store(name, value)
}

// Snapshot returns a point-in-time copy safe for a handler goroutine
// to read without racing the event loop's writes.
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	s.counters.Range(func(key string, value int64) bool {
		out[key] = value
		return true
	})
	return out
}
