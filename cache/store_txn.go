package cache

import (
	"time"

	"github.com/objcache/cachemgr/protocol"
)

// openTxn tracks the bookkeeping the core itself needs for an in-flight
// write transaction, on top of whatever the backend tracks internally.
// nextPart enforces SPEC_FULL.md §9 item 3: StoreReq parts for one
// transaction must arrive in strictly increasing part-number order
// starting at 1, a tightening of channel.cc's HandleStore (which
// trusted the client's part numbering without checking it).
type openTxn struct {
	id       protocol.ObjectID
	nextPart uint32
}

// startStore implements the first StoreReq part of spec.md §4.F: it
// allocates a transaction id, remembers it under the request's
// (session, request id) key so retried or chunked parts can find it
// again, and forwards the header fields to the backend. The caller has
// already rejected a restart attempt against a still-live transaction.
func (s *dispatchState) startStore(session protocol.SessionID, req *protocol.StoreReq) *protocol.StoreReply {
	key := protocol.UniqueRequest{Session: session, Request: req.ReqID}

	info := protocol.ObjectInfo{ID: req.ObjectID, Size: protocol.SizeUnknown}
	if req.HasExpected {
		info.Size = req.ExpectedSize
	}
	if req.HasType {
		info.ObjectType = req.ObjectType
	}
	if req.HasDesc {
		info.Description = req.Description
	}

	tid := s.ids.NextTxnID()
	status := s.backend.StartTxn(req.ObjectID, tid, info)
	if status != protocol.StatusOK {
		return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: status}
	}

	s.txns.Insert(key, tid)
	s.openTxns[tid] = &openTxn{id: req.ObjectID, nextPart: 1}

	return s.continueStore(tid, req)
}

// continueStore appends one part's payload and, if req marks the final
// part, commits (or on a zero-length final part with no prior data,
// still commits — an empty object is valid).
func (s *dispatchState) continueStore(tid protocol.TransactionID, req *protocol.StoreReq) *protocol.StoreReply {
	open, ok := s.openTxns[tid]
	if !ok {
		return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusNotFound}
	}

	if req.PartNr != open.nextPart {
		s.abortStoreLocked(tid)
		return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusMalformed}
	}

	if len(req.Attachment) > 0 {
		start := time.Now()
		status := s.backend.WriteTxn(tid, req.Attachment)
		s.tel.timeWriteTxn(time.Since(start))
		if status != protocol.StatusOK {
			// Leave the transaction table entry and openTxns[tid] in place:
			// the client may still send StoreAbortReq to release backend
			// resources (spec.md §4.F, §7).
			return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: status}
		}
		s.tel.addBytesStored(len(req.Attachment))
	}
	open.nextPart++

	if !req.LastPart {
		return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusOK}
	}

	start := time.Now()
	status := s.backend.CommitTxn(tid)
	s.tel.timeCommitTxn(time.Since(start))
	s.forgetTxn(tid)
	return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: status}
}

// abortStoreLocked is called when the core itself decides a
// transaction can't continue (a part-number sequencing violation) — as
// opposed to an explicit client StoreAbortReq, handled by dispatcher.go's
// handleStoreAbort. A backend error from WriteTxn does not come here; it
// leaves the transaction open for the client to abort.
func (s *dispatchState) abortStoreLocked(tid protocol.TransactionID) {
	s.backend.AbortTxn(tid)
	s.forgetTxn(tid)
}

func (s *dispatchState) forgetTxn(tid protocol.TransactionID) {
	delete(s.openTxns, tid)
	s.txns.EraseTxn(tid)
}
