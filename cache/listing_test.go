package cache

import (
	"testing"

	"github.com/objcache/cachemgr/protocol"
)

func TestListOpenCursorsOpenCloseLen(t *testing.T) {
	c := newListOpenCursors()

	c.Open(1, 100)
	c.Open(1, 101)
	c.Open(2, 200)

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}

	c.Close(100)
	if c.Len() != 2 {
		t.Fatalf("Len after Close = %d, want 2", c.Len())
	}

	// Closing an id that was never opened (or already closed) is a no-op.
	c.Close(100)
	if c.Len() != 2 {
		t.Fatalf("Len after double Close = %d, want 2", c.Len())
	}
}

func TestListOpenCursorsCloseSession(t *testing.T) {
	c := newListOpenCursors()
	c.Open(1, 100)
	c.Open(1, 101)
	c.Open(2, 200)

	ids := c.CloseSession(1)
	got := map[protocol.ListingID]bool{}
	for _, id := range ids {
		got[id] = true
	}
	if len(got) != 2 || !got[100] || !got[101] {
		t.Fatalf("CloseSession(1) = %v, want [100 101]", ids)
	}
	if c.Len() != 1 {
		t.Fatalf("Len after CloseSession = %d, want 1 (session 2's cursor survives)", c.Len())
	}

	if ids := c.CloseSession(1); ids != nil {
		t.Fatalf("CloseSession on an already-drained session = %v, want nil", ids)
	}
}

func TestHandleListContinuingClosedListingIsNotOK(t *testing.T) {
	d, backend := newTestDispatch(t)
	session := protocol.SessionID(1)

	id := testObjectID(1)
	backend.StartTxn(id, 1, protocol.ObjectInfo{ID: id})
	backend.WriteTxn(1, []byte("x"))
	backend.CommitTxn(1)

	first := d.handleList(session, &protocol.ListReq{ReqID: 1, ListingID: 0, ObjectType: protocol.ObjectRegular})
	if first.Status != protocol.StatusOK || !first.IsLastPart {
		t.Fatalf("first page = %+v", first)
	}
	if first.ListingID == 0 {
		t.Fatalf("server did not allocate a listing id")
	}

	// A follow-up request against an already-exhausted, already-closed
	// listing id must not panic and must report it's gone.
	second := d.handleList(session, &protocol.ListReq{ReqID: 2, ListingID: first.ListingID, ObjectType: protocol.ObjectRegular})
	if second.Status == protocol.StatusOK {
		t.Fatalf("expected a non-OK status continuing a closed listing, got OK")
	}
}
