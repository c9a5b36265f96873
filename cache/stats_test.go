package cache

import (
	"testing"

	"github.com/objcache/cachemgr/protocol"
)

func TestStatsIncAndSnapshot(t *testing.T) {
	s := newStats()

	s.inc("StoreReq")
	s.inc("StoreReq")
	s.inc("ReadReq")
	s.set("connections_open", 2)

	snap := s.Snapshot()
	if snap["StoreReq"] != 2 {
		t.Errorf("StoreReq = %d, want 2", snap["StoreReq"])
	}
	if snap["ReadReq"] != 1 {
		t.Errorf("ReadReq = %d, want 1", snap["ReadReq"])
	}
	if snap["connections_open"] != 2 {
		t.Errorf("connections_open = %d, want 2", snap["connections_open"])
	}
}

func TestNilStatsIsNoop(t *testing.T) {
	var s *Stats
	s.inc("anything")
	s.set("anything", 1)
}

func TestDispatchIncrementsStatsPerKind(t *testing.T) {
	d, _ := newTestDispatch(t)

	d.dispatch(0, protocol.KindHandshakeReq, &protocol.HandshakeReq{})
	d.dispatch(0, protocol.KindHandshakeReq, &protocol.HandshakeReq{})

	snap := d.stats.Snapshot()
	if snap[protocol.KindHandshakeReq.String()] != 2 {
		t.Errorf("HandshakeReq count = %d, want 2", snap[protocol.KindHandshakeReq.String()])
	}
}
