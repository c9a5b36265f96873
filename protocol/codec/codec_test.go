package codec

import (
	"reflect"
	"testing"

	"github.com/objcache/cachemgr/protocol"
)

// testCodecs mirrors the teacher's map-of-factories round-trip test shape.
var testCodecs = map[string]func() Codec{
	"Binary": NewBinaryCodec,
	"GOB":    NewGOBCodec,
	"JSON":   NewJSONCodec,
}

func sampleObjectID() protocol.ObjectID {
	return protocol.ObjectID{Algo: 1, Digest: []byte{0xde, 0xad, 0xbe, 0xef}}
}

func testMessages() []struct {
	kind protocol.Kind
	msg  any
} {
	return []struct {
		kind protocol.Kind
		msg  any
	}{
		{protocol.KindHandshakeReq, &protocol.HandshakeReq{}},
		{protocol.KindHandshakeReply, &protocol.HandshakeReply{
			Status: protocol.StatusOK, Name: "cachemgrd", ProtocolVersion: 2,
			MaxObjectSize: 1 << 20, SessionID: 7, Capabilities: protocol.AllCapabilities,
		}},
		{protocol.KindHandshakeReply, &protocol.HandshakeReply{}},
		{protocol.KindQuit, &protocol.Quit{}},
		{protocol.KindRefcountReq, &protocol.RefcountReq{ReqID: 1, ObjectID: sampleObjectID(), ChangeBy: -3}},
		{protocol.KindRefcountReply, &protocol.RefcountReply{ReqID: 1, Status: protocol.StatusOK}},
		{protocol.KindRefcountReply, &protocol.RefcountReply{}},
		{protocol.KindObjectInfoReq, &protocol.ObjectInfoReq{ReqID: 2, ObjectID: sampleObjectID()}},
		{protocol.KindObjectInfoReply, &protocol.ObjectInfoReply{ReqID: 2, Status: protocol.StatusOK, ObjectType: protocol.ObjectCatalog, Size: 42}},
		{protocol.KindReadReq, &protocol.ReadReq{ReqID: 3, ObjectID: sampleObjectID(), Offset: 10, Size: 100}},
		{protocol.KindReadReq, &protocol.ReadReq{ReqID: 3, ObjectID: sampleObjectID(), Offset: ^uint64(0), Size: ^uint32(0)}},
		{protocol.KindReadReply, &protocol.ReadReply{ReqID: 3, Status: protocol.StatusOK}},
		{protocol.KindReadReply, &protocol.ReadReply{}},
		{protocol.KindStoreReq, &protocol.StoreReq{
			Session: 1, ReqID: 10, ObjectID: sampleObjectID(), PartNr: 1, LastPart: false,
			HasExpected: true, ExpectedSize: 2048, HasType: true, ObjectType: protocol.ObjectRegular,
			HasDesc: true, Description: "a description",
		}},
		{protocol.KindStoreReq, &protocol.StoreReq{Session: 1, ReqID: 10, ObjectID: sampleObjectID(), PartNr: 2, LastPart: true}},
		{protocol.KindStoreReq, &protocol.StoreReq{
			Session: ^protocol.SessionID(0), ReqID: ^protocol.RequestID(0), ObjectID: maxLengthObjectID(), PartNr: ^uint32(0),
			LastPart: true, HasExpected: true, ExpectedSize: ^uint64(0), HasType: true, ObjectType: protocol.ObjectCatalog,
			HasDesc: true, Description: longDescription(),
		}},
		{protocol.KindStoreReply, &protocol.StoreReply{ReqID: 10, PartNr: 1, Status: protocol.StatusOK}},
		{protocol.KindStoreReply, &protocol.StoreReply{}},
		{protocol.KindStoreAbortReq, &protocol.StoreAbortReq{Session: 1, ReqID: 10}},
		{protocol.KindInfoReq, &protocol.InfoReq{ReqID: 7}},
		{protocol.KindInfoReply, &protocol.InfoReply{ReqID: 7, Status: protocol.StatusOK, CacheInfo: protocol.CacheInfo{SizeBytes: 1, UsedBytes: 2, PinnedBytes: 3, NoShrink: true}}},
		{protocol.KindShrinkReq, &protocol.ShrinkReq{ReqID: 8, ShrinkTo: 1024}},
		{protocol.KindShrinkReply, &protocol.ShrinkReply{ReqID: 8, Status: protocol.StatusOK, UsedBytes: 512}},
		{protocol.KindShrinkReply, &protocol.ShrinkReply{}},
		{protocol.KindListReq, &protocol.ListReq{ReqID: 9, ListingID: 0, ObjectType: protocol.ObjectRegular}},
		{protocol.KindListReply, &protocol.ListReply{
			ReqID: 9, Status: protocol.StatusOK, ListingID: 5, IsLastPart: true,
			Records: []protocol.ListRecord{
				{Hash: sampleObjectID(), Pinned: true, Description: "one"},
				{Hash: protocol.ObjectID{Algo: 2, Digest: []byte{1, 2, 3}}, Pinned: false, Description: ""},
			},
		}},
		{protocol.KindListReply, &protocol.ListReply{ReqID: 9, Status: protocol.StatusOK, ListingID: 5, IsLastPart: true}},
		{protocol.KindDetach, &protocol.Detach{}},
	}
}

// maxLengthObjectID exercises a digest as long as a SHA-512 hash, the
// largest hash algorithm channel.cc's catalogue of supported algorithms
// needs to carry.
func maxLengthObjectID() protocol.ObjectID {
	digest := make([]byte, 64)
	for i := range digest {
		digest[i] = byte(i)
	}
	return protocol.ObjectID{Algo: 255, Digest: digest}
}

func longDescription() string {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return string(b)
}

func TestCodecRoundTrip(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			for _, tc := range testMessages() {
				data, err := c.Encode(tc.kind, tc.msg)
				if err != nil {
					t.Fatalf("%s: encode %s: %v", name, tc.kind, err)
				}
				got, err := c.Decode(tc.kind, data)
				if err != nil {
					t.Fatalf("%s: decode %s: %v", name, tc.kind, err)
				}
				if !reflect.DeepEqual(got, tc.msg) {
					t.Errorf("%s: %s round-trip mismatch:\n got  %#v\n want %#v", name, tc.kind, got, tc.msg)
				}
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"binary", "gob", "json", ""} {
		if _, ok := ByName(name); !ok {
			t.Errorf("ByName(%q) should be known", name)
		}
	}
	if _, ok := ByName("nope"); ok {
		t.Errorf("ByName(%q) should be unknown", "nope")
	}
}
