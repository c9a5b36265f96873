package cache

import "github.com/objcache/cachemgr/protocol"

// txnTable maps an in-flight (session, request) pair to the transaction
// id the server allocated for it. Per spec.md §9, the event loop is the
// only thread that ever touches this table, so it is a plain map with no
// locking — using a concurrent map here would misstate that invariant.
//
// A key is present iff exactly one StartTxn has succeeded for it and no
// matching CommitTxn/AbortTxn has run yet (spec.md §8, invariant 1).
type txnTable struct {
	byKey  map[protocol.UniqueRequest]protocol.TransactionID
	byTxn  map[protocol.TransactionID]protocol.UniqueRequest
	bySess map[protocol.SessionID]map[protocol.UniqueRequest]struct{}
}

func newTxnTable() *txnTable {
	return &txnTable{
		byKey:  make(map[protocol.UniqueRequest]protocol.TransactionID),
		byTxn:  make(map[protocol.TransactionID]protocol.UniqueRequest),
		bySess: make(map[protocol.SessionID]map[protocol.UniqueRequest]struct{}),
	}
}

// EraseTxn removes the entry by transaction id, the direction store_txn.go
// needs once it only has the tid (e.g. on commit or abort).
func (t *txnTable) EraseTxn(tid protocol.TransactionID) {
	if key, ok := t.byTxn[tid]; ok {
		t.Erase(key)
	}
}

func (t *txnTable) Lookup(key protocol.UniqueRequest) (protocol.TransactionID, bool) {
	tid, ok := t.byKey[key]
	return tid, ok
}

func (t *txnTable) Contains(key protocol.UniqueRequest) bool {
	_, ok := t.byKey[key]
	return ok
}

func (t *txnTable) Insert(key protocol.UniqueRequest, tid protocol.TransactionID) {
	t.byKey[key] = tid
	t.byTxn[tid] = key
	set, ok := t.bySess[key.Session]
	if !ok {
		set = make(map[protocol.UniqueRequest]struct{})
		t.bySess[key.Session] = set
	}
	set[key] = struct{}{}
}

func (t *txnTable) Erase(key protocol.UniqueRequest) {
	if tid, ok := t.byKey[key]; ok {
		delete(t.byTxn, tid)
	}
	delete(t.byKey, key)
	if set, ok := t.bySess[key.Session]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(t.bySess, key.Session)
		}
	}
}

// Len reports the number of in-flight transactions.
func (t *txnTable) Len() int {
	return len(t.byKey)
}

// EraseSession returns and removes every key still open for session —
// used on connection teardown to reclaim that session's transactions
// immediately rather than waiting for global shutdown (SPEC_FULL.md §9
// item 1, the per-connection reclamation resolution of the open item in
// spec.md §5/§9).
func (t *txnTable) EraseSession(session protocol.SessionID) []protocol.TransactionID {
	set, ok := t.bySess[session]
	if !ok {
		return nil
	}
	tids := make([]protocol.TransactionID, 0, len(set))
	for key := range set {
		if tid, ok := t.byKey[key]; ok {
			tids = append(tids, tid)
			delete(t.byTxn, tid)
		}
		delete(t.byKey, key)
	}
	delete(t.bySess, session)
	return tids
}
