package cache

import (
	"time"

	"github.com/objcache/cachemgr/protocol"
)

// listingSizeBudget approximates channel.cc's kListingSize: the server
// stops appending records to one reply once the running total exceeds
// this many bytes, so one listing reply frame stays bounded regardless
// of how large the backend's catalogue is.
const listingSizeBudget = 64 * 1024

// listRecordOverhead approximates the fixed per-record cost (hash bytes
// plus bookkeeping) the way channel.cc's HandleList approximates
// sizeof(item) before adding the variable-length description.
const listRecordOverhead = 64

// listOpenCursors tracks every ListingID currently open, so that a
// server teardown (or, per the resolved per-connection reclamation, a
// connection teardown that still owns a listing) can close them — the
// invariant from spec.md §8 that every successful ListingBegin is
// matched by exactly one ListingEnd before the server exits.
type listOpenCursors struct {
	bySession map[protocol.SessionID]map[protocol.ListingID]struct{}
	owner     map[protocol.ListingID]protocol.SessionID
}

func newListOpenCursors() *listOpenCursors {
	return &listOpenCursors{
		bySession: make(map[protocol.SessionID]map[protocol.ListingID]struct{}),
		owner:     make(map[protocol.ListingID]protocol.SessionID),
	}
}

func (c *listOpenCursors) Open(session protocol.SessionID, id protocol.ListingID) {
	set, ok := c.bySession[session]
	if !ok {
		set = make(map[protocol.ListingID]struct{})
		c.bySession[session] = set
	}
	set[id] = struct{}{}
	c.owner[id] = session
}

func (c *listOpenCursors) Close(id protocol.ListingID) {
	session, ok := c.owner[id]
	if !ok {
		return
	}
	delete(c.owner, id)
	if set, ok := c.bySession[session]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(c.bySession, session)
		}
	}
}

func (c *listOpenCursors) Len() int { return len(c.owner) }

// CloseSession returns and removes every listing id still open for
// session, without calling ListingEnd — the caller does that itself so
// it can invoke the backend.
func (c *listOpenCursors) CloseSession(session protocol.SessionID) []protocol.ListingID {
	set, ok := c.bySession[session]
	if !ok {
		return nil
	}
	ids := make([]protocol.ListingID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
		delete(c.owner, id)
	}
	delete(c.bySession, session)
	return ids
}

// handleList implements spec.md §4.E.
func (s *dispatchState) handleList(session protocol.SessionID, req *protocol.ListReq) *protocol.ListReply {
	reply := &protocol.ListReply{
		ReqID:      req.ReqID,
		ListingID:  req.ListingID,
		IsLastPart: true,
		Status:     protocol.StatusOK,
	}

	listingID := req.ListingID
	if listingID == 0 {
		listingID = s.ids.NextListingID()
		status := s.backend.ListingBegin(listingID, req.ObjectType)
		if status != protocol.StatusOK {
			reply.Status = status
			return reply
		}
		reply.ListingID = listingID
		s.cursors.Open(session, listingID)
	}

	var (
		item           protocol.ObjectInfo
		status         protocol.Status
		totalSize      int
		budgetExceeded bool
	)
	for {
		start := time.Now()
		status = s.backend.ListingNext(listingID, &item)
		s.tel.timeListNext(time.Since(start))
		if status != protocol.StatusOK {
			break
		}
		reply.Records = append(reply.Records, protocol.ListRecord{
			Hash:        item.ID,
			Pinned:      item.Pinned,
			Description: item.Description,
		})
		totalSize += listRecordOverhead + len(item.Description)
		if totalSize > listingSizeBudget {
			budgetExceeded = true
			break
		}
	}

	if status == protocol.StatusOutOfBounds {
		// The backend's own cursor, not the budget, ended the scan.
		s.backend.ListingEnd(listingID)
		s.cursors.Close(listingID)
		reply.IsLastPart = true
		reply.Status = protocol.StatusOK
	} else {
		reply.IsLastPart = false
		if budgetExceeded {
			reply.Status = protocol.StatusOK
		} else {
			reply.Status = status
		}
	}

	return reply
}
