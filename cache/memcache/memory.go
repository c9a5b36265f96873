// Package memcache implements the reference in-memory backend: a
// cache.Backend fixture used by tests and by cachemgrd when no
// persistent backend is configured. It is deliberately simple — a
// correctness fixture, not a caching policy recommendation.
package memcache

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/objcache/cachemgr/protocol"
)

// reapInterval is how often the background reaper recomputes the
// used/pinned byte totals GetInfo reports.
const reapInterval = 2 * time.Second

// object is one committed entry. lastRead drives Shrink's
// least-recently-read eviction order.
type object struct {
	info     protocol.ObjectInfo
	data     []byte
	refcount int32
	lastRead int64 // unix nanos, updated on Pread
}

// Memory is the reference cache.Backend: everything lives in an
// xsync.MapOf, because it is touched both by the event loop thread
// (via cache.Backend calls) and by this type's own reaper goroutine —
// the one genuinely concurrent access pattern in this backend.
type Memory struct {
	objects *xsync.MapOf[string, *object]
	txns    *xsync.MapOf[protocol.TransactionID, *pendingWrite]

	usedBytes   atomic.Int64
	pinnedBytes atomic.Int64

	cursors *xsync.MapOf[protocol.ListingID, *cursor]

	stopReaper chan struct{}
}

type cursor struct {
	objectType protocol.ObjectType
	keys       []string
	pos        int
}

// NewMemory constructs an empty Memory backend and starts its reaper
// goroutine; callers must call Close when done.
func NewMemory() *Memory {
	m := &Memory{
		objects:    xsync.NewMapOf[string, *object](),
		txns:       xsync.NewMapOf[protocol.TransactionID, *pendingWrite](),
		cursors:    xsync.NewMapOf[protocol.ListingID, *cursor](),
		stopReaper: make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Close stops the reaper goroutine. Safe to call once.
func (m *Memory) Close() {
	close(m.stopReaper)
}

func (m *Memory) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.recomputeTotals()
		}
	}
}

func (m *Memory) recomputeTotals() {
	var used, pinned int64
	m.objects.Range(func(_ string, obj *object) bool {
		n := int64(len(obj.data))
		used += n
		if obj.refcount > 0 {
			pinned += n
		}
		return true
	})
	m.usedBytes.Store(used)
	m.pinnedBytes.Store(pinned)
}

func (m *Memory) Pread(id protocol.ObjectID, offset uint64, size *uint32, buf []byte) protocol.Status {
	obj, ok := m.objects.Load(id.Key())
	if !ok {
		return protocol.StatusNotFound
	}
	if offset > uint64(len(obj.data)) {
		return protocol.StatusOutOfBounds
	}
	n := uint32(len(obj.data)) - uint32(offset)
	if n > *size {
		n = *size
	}
	copy(buf[:n], obj.data[offset:uint64(offset)+uint64(n)])
	*size = n
	obj.lastRead = time.Now().UnixNano()
	return protocol.StatusOK
}

func (m *Memory) GetInfo() (protocol.CacheInfo, protocol.Status) {
	return protocol.CacheInfo{
		UsedBytes:   uint64(m.usedBytes.Load()),
		PinnedBytes: uint64(m.pinnedBytes.Load()),
		NoShrink:    false,
	}, protocol.StatusOK
}

func (m *Memory) GetObjectInfo(id protocol.ObjectID) (protocol.ObjectInfo, protocol.Status) {
	obj, ok := m.objects.Load(id.Key())
	if !ok {
		return protocol.ObjectInfo{}, protocol.StatusNotFound
	}
	info := obj.info
	info.Size = uint64(len(obj.data))
	info.Pinned = obj.refcount > 0
	return info, protocol.StatusOK
}

// ChangeRefcount implements pin/unpin via a saturating non-negative
// counter, per SPEC_FULL.md §4.C.
func (m *Memory) ChangeRefcount(id protocol.ObjectID, delta int32) protocol.Status {
	found := false
	m.objects.Compute(id.Key(), func(old *object, loaded bool) (*object, bool) {
		if !loaded {
			return old, true // no-op delete: there was nothing to update
		}
		found = true
		next := old.refcount + delta
		if next < 0 {
			next = 0
		}
		old.refcount = next
		return old, false
	})
	if !found {
		return protocol.StatusNotFound
	}
	return protocol.StatusOK
}

// Shrink evicts least-recently-read unpinned objects until used_bytes
// is at or below shrinkTo.
func (m *Memory) Shrink(shrinkTo uint64, usedBytes *uint64) protocol.Status {
	type candidate struct {
		key      string
		size     int64
		lastRead int64
	}
	var candidates []candidate
	m.objects.Range(func(key string, obj *object) bool {
		if obj.refcount == 0 {
			candidates = append(candidates, candidate{key: key, size: int64(len(obj.data)), lastRead: obj.lastRead})
		}
		return true
	})
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].lastRead < candidates[j].lastRead })

	m.recomputeTotals()
	for _, c := range candidates {
		if uint64(m.usedBytes.Load()) <= shrinkTo {
			break
		}
		if _, ok := m.objects.LoadAndDelete(c.key); ok {
			m.usedBytes.Add(-c.size)
		}
	}
	*usedBytes = uint64(m.usedBytes.Load())
	return protocol.StatusOK
}
