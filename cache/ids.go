package cache

import (
	"sync/atomic"

	"github.com/objcache/cachemgr/protocol"
)

// idAllocator hands out strictly increasing 64-bit ids. Grounded on
// lib/store/lstore/store.go's incAndGetIndex atomic-counter pattern; the
// event loop is the only caller, but atomics cost nothing and make the
// "strictly increasing across the server's lifetime" invariant
// (spec.md §8, invariant 3) trivially true even if that ever changes.
type idAllocator struct {
	next atomic.Uint64
}

// newIDAllocator starts counting from start+1 on first Next.
func newIDAllocator(start uint64) *idAllocator {
	a := &idAllocator{}
	a.next.Store(start)
	return a
}

func (a *idAllocator) Next() uint64 {
	return a.next.Add(1)
}

// idAllocators bundles the three id spaces the core owns.
type idAllocators struct {
	session *idAllocator // SessionID 0 is reserved; starts at 0.
	txn     *idAllocator
	listing *idAllocator // ListingID 0 means "allocate new"; starts at 0.
}

func newIDAllocators() *idAllocators {
	return &idAllocators{
		session: newIDAllocator(0),
		txn:     newIDAllocator(0),
		listing: newIDAllocator(0),
	}
}

func (a *idAllocators) NextSessionID() protocol.SessionID {
	return protocol.SessionID(a.session.Next())
}

func (a *idAllocators) NextTxnID() protocol.TransactionID {
	return protocol.TransactionID(a.txn.Next())
}

func (a *idAllocators) NextListingID() protocol.ListingID {
	return protocol.ListingID(a.listing.Next())
}
