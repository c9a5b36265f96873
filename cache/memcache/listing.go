package memcache

import (
	"sort"

	"github.com/objcache/cachemgr/protocol"
)

// ListingBegin snapshots the current key set for objectType into a
// cursor, sorted for deterministic iteration order. Snapshotting means
// a listing opened before a concurrent insert from the reaper-adjacent
// commit path never observes that insert (SPEC_FULL.md §8).
func (m *Memory) ListingBegin(id protocol.ListingID, objectType protocol.ObjectType) protocol.Status {
	var keys []string
	m.objects.Range(func(key string, obj *object) bool {
		if obj.info.ObjectType == objectType {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	m.cursors.Store(id, &cursor{objectType: objectType, keys: keys})
	return protocol.StatusOK
}

func (m *Memory) ListingNext(id protocol.ListingID, item *protocol.ObjectInfo) protocol.Status {
	c, ok := m.cursors.Load(id)
	if !ok {
		return protocol.StatusNotFound
	}
	if c.pos >= len(c.keys) {
		return protocol.StatusOutOfBounds
	}
	obj, ok := m.objects.Load(c.keys[c.pos])
	c.pos++
	if !ok {
		// The object was evicted between snapshot and iteration; skip it
		// by reporting it as if the cursor had already moved past it.
		return m.ListingNext(id, item)
	}
	*item = obj.info
	item.Size = uint64(len(obj.data))
	item.Pinned = obj.refcount > 0
	return protocol.StatusOK
}

func (m *Memory) ListingEnd(id protocol.ListingID) {
	m.cursors.Delete(id)
}
