package cache

import "github.com/objcache/cachemgr/protocol"

// Backend is the abstract operation contract any concrete cache (in
// memory, on disk, tiered, remote) must satisfy, per spec.md §4.C. The
// core holds a single Backend instance — spec.md §9's "single
// polymorphic handle" option — and never dispatches to it from more
// than one goroutine at a time (see spec.md §5).
type Backend interface {
	// Pread reads up to *size bytes of object id at offset into buf,
	// updating *size to the number of bytes actually read (the backend
	// may return fewer bytes on a tail read).
	Pread(id protocol.ObjectID, offset uint64, size *uint32, buf []byte) protocol.Status

	// StartTxn begins a write transaction for object id, identified by
	// tid for the lifetime of the transaction. info carries whatever
	// header fields the first StoreReq part supplied.
	StartTxn(id protocol.ObjectID, tid protocol.TransactionID, info protocol.ObjectInfo) protocol.Status
	// WriteTxn appends data to the open transaction tid.
	WriteTxn(tid protocol.TransactionID, data []byte) protocol.Status
	// CommitTxn finalizes the transaction, making the object visible to
	// Pread/GetObjectInfo/listings.
	CommitTxn(tid protocol.TransactionID) protocol.Status
	// AbortTxn discards the transaction and any partial data.
	AbortTxn(tid protocol.TransactionID) protocol.Status

	// GetInfo reports overall cache occupancy.
	GetInfo() (protocol.CacheInfo, protocol.Status)
	// GetObjectInfo reports metadata for one committed object.
	GetObjectInfo(id protocol.ObjectID) (protocol.ObjectInfo, protocol.Status)
	// ChangeRefcount adjusts id's pin refcount by delta.
	ChangeRefcount(id protocol.ObjectID, delta int32) protocol.Status
	// Shrink evicts unpinned objects until used space is at or below
	// shrinkTo, reporting the resulting used_bytes.
	Shrink(shrinkTo uint64, usedBytes *uint64) protocol.Status

	// ListingBegin opens a cursor with the given server-allocated id,
	// restricted to objectType.
	ListingBegin(id protocol.ListingID, objectType protocol.ObjectType) protocol.Status
	// ListingNext advances the cursor, filling *item on protocol.StatusOK
	// or returning protocol.StatusOutOfBounds once exhausted.
	ListingNext(id protocol.ListingID, item *protocol.ObjectInfo) protocol.Status
	// ListingEnd releases a cursor. Every successful ListingBegin is
	// matched by exactly one ListingEnd (spec.md §8, invariant 2).
	ListingEnd(id protocol.ListingID)
}
