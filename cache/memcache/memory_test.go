package memcache

import (
	"testing"

	"github.com/objcache/cachemgr/protocol"
)

func testID(b byte) protocol.ObjectID {
	return protocol.ObjectID{Algo: 1, Digest: []byte{b, b, b, b}}
}

func storeObject(t *testing.T, m *Memory, tid protocol.TransactionID, id protocol.ObjectID, data []byte) {
	t.Helper()
	if status := m.StartTxn(id, tid, protocol.ObjectInfo{ID: id}); status != protocol.StatusOK {
		t.Fatalf("StartTxn: %v", status)
	}
	if status := m.WriteTxn(tid, data); status != protocol.StatusOK {
		t.Fatalf("WriteTxn: %v", status)
	}
	if status := m.CommitTxn(tid); status != protocol.StatusOK {
		t.Fatalf("CommitTxn: %v", status)
	}
}

func TestStoreThenRead(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	id := testID(1)
	storeObject(t, m, 1, id, []byte("hello world"))

	buf := make([]byte, 64)
	size := uint32(len(buf))
	status := m.Pread(id, 0, &size, buf)
	if status != protocol.StatusOK {
		t.Fatalf("Pread: %v", status)
	}
	if string(buf[:size]) != "hello world" {
		t.Fatalf("Pread content = %q", buf[:size])
	}
}

func TestPreadNotFound(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	buf := make([]byte, 4)
	size := uint32(4)
	if status := m.Pread(testID(9), 0, &size, buf); status != protocol.StatusNotFound {
		t.Fatalf("Pread status = %v, want NotFound", status)
	}
}

func TestAbortTxnLeavesNoObject(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	id := testID(2)
	m.StartTxn(id, 1, protocol.ObjectInfo{ID: id})
	m.WriteTxn(1, []byte("partial"))
	if status := m.AbortTxn(1); status != protocol.StatusOK {
		t.Fatalf("AbortTxn: %v", status)
	}
	if _, status := m.GetObjectInfo(id); status != protocol.StatusNotFound {
		t.Fatalf("GetObjectInfo after abort = %v, want NotFound", status)
	}
}

func TestRefcountPinAndShrink(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	pinned := testID(3)
	unpinned := testID(4)
	storeObject(t, m, 1, pinned, make([]byte, 100))
	storeObject(t, m, 2, unpinned, make([]byte, 100))

	if status := m.ChangeRefcount(pinned, 1); status != protocol.StatusOK {
		t.Fatalf("ChangeRefcount: %v", status)
	}

	var used uint64
	if status := m.Shrink(0, &used); status != protocol.StatusOK {
		t.Fatalf("Shrink: %v", status)
	}
	if used != 100 {
		t.Fatalf("used = %d, want 100 (only the pinned object should remain)", used)
	}
	if _, status := m.GetObjectInfo(pinned); status != protocol.StatusOK {
		t.Fatalf("pinned object was evicted")
	}
	if _, status := m.GetObjectInfo(unpinned); status != protocol.StatusNotFound {
		t.Fatalf("unpinned object survived Shrink")
	}
}

func TestChangeRefcountSaturatesAtZero(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	id := testID(5)
	storeObject(t, m, 1, id, []byte("x"))

	if status := m.ChangeRefcount(id, -5); status != protocol.StatusOK {
		t.Fatalf("ChangeRefcount: %v", status)
	}
	info, status := m.GetObjectInfo(id)
	if status != protocol.StatusOK {
		t.Fatalf("GetObjectInfo: %v", status)
	}
	if info.Pinned {
		t.Fatalf("object reported pinned after saturating decrement")
	}
}

func TestListingPagesAllObjects(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	want := map[string]bool{}
	for i := byte(0); i < 5; i++ {
		id := testID(10 + i)
		storeObject(t, m, protocol.TransactionID(i+1), id, []byte{i})
		want[id.Key()] = true
	}

	listingID := protocol.ListingID(1)
	if status := m.ListingBegin(listingID, protocol.ObjectRegular); status != protocol.StatusOK {
		t.Fatalf("ListingBegin: %v", status)
	}
	defer m.ListingEnd(listingID)

	got := map[string]bool{}
	for {
		var item protocol.ObjectInfo
		status := m.ListingNext(listingID, &item)
		if status == protocol.StatusOutOfBounds {
			break
		}
		if status != protocol.StatusOK {
			t.Fatalf("ListingNext: %v", status)
		}
		got[item.ID.Key()] = true
	}

	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Errorf("missing record %q", k)
		}
	}
}

func TestListingSnapshotIsolation(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	storeObject(t, m, 1, testID(20), []byte("a"))

	listingID := protocol.ListingID(1)
	if status := m.ListingBegin(listingID, protocol.ObjectRegular); status != protocol.StatusOK {
		t.Fatalf("ListingBegin: %v", status)
	}
	defer m.ListingEnd(listingID)

	// Inserted after the snapshot; must not appear in this cursor's walk.
	storeObject(t, m, 2, testID(21), []byte("b"))

	count := 0
	for {
		var item protocol.ObjectInfo
		status := m.ListingNext(listingID, &item)
		if status == protocol.StatusOutOfBounds {
			break
		}
		if status != protocol.StatusOK {
			t.Fatalf("ListingNext: %v", status)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("listing observed %d objects, want 1 (snapshot isolation)", count)
	}
}
