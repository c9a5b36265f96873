package metrics

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Latencies times the backend calls spec.md §5 flags as the place a slow
// implementation head-of-line-blocks every other client, since they all
// run serially on the single event-loop thread.
type Latencies struct {
	registry gometrics.Registry

	pread     gometrics.Timer
	writeTxn  gometrics.Timer
	commitTxn gometrics.Timer
	listNext  gometrics.Timer
}

// NewLatencies creates a fresh rcrowley/go-metrics registry with one
// timer per backend call tracked.
func NewLatencies() *Latencies {
	registry := gometrics.NewRegistry()
	return &Latencies{
		registry:  registry,
		pread:     gometrics.GetOrRegisterTimer("backend.pread", registry),
		writeTxn:  gometrics.GetOrRegisterTimer("backend.write_txn", registry),
		commitTxn: gometrics.GetOrRegisterTimer("backend.commit_txn", registry),
		listNext:  gometrics.GetOrRegisterTimer("backend.listing_next", registry),
	}
}

// TimePread records the duration of a single Pread backend call.
func (l *Latencies) TimePread(d time.Duration) { l.pread.Update(d) }

// TimeWriteTxn records the duration of a single WriteTxn backend call.
func (l *Latencies) TimeWriteTxn(d time.Duration) { l.writeTxn.Update(d) }

// TimeCommitTxn records the duration of a single CommitTxn backend call.
func (l *Latencies) TimeCommitTxn(d time.Duration) { l.commitTxn.Update(d) }

// TimeListNext records the duration of a single ListingNext backend call.
func (l *Latencies) TimeListNext(d time.Duration) { l.listNext.Update(d) }

// Snapshot returns the current p50/p99/mean for every tracked timer,
// keyed by the name it was registered under.
func (l *Latencies) Snapshot() map[string]TimerSnapshot {
	out := make(map[string]TimerSnapshot)
	l.registry.Each(func(name string, metric any) {
		timer, ok := metric.(gometrics.Timer)
		if !ok {
			return
		}
		out[name] = TimerSnapshot{
			Count: timer.Count(),
			Mean:  time.Duration(timer.Mean()),
			P50:   time.Duration(timer.Percentile(0.5)),
			P99:   time.Duration(timer.Percentile(0.99)),
		}
	})
	return out
}

// TimerSnapshot is a point-in-time read of one latency timer.
type TimerSnapshot struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
}
