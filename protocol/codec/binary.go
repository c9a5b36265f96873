package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/objcache/cachemgr/protocol"
)

// NewBinaryCodec creates a codec using a dense, hand-rolled binary
// format: fixed-width fields in declaration order, with a single
// leading flag byte for messages that have optional fields. This is
// the default codec — lowest overhead, no allocation surprises for the
// hot path.
func NewBinaryCodec() Codec {
	return binaryCodec{}
}

type binaryCodec struct{}

func (binaryCodec) Name() string { return "binary" }

func (binaryCodec) Encode(kind protocol.Kind, msg any) ([]byte, error) {
	w := new(binWriter)
	switch kind {
	case protocol.KindHandshakeReq:
		// no fields
	case protocol.KindHandshakeReply:
		m := msg.(*protocol.HandshakeReply)
		w.u8(uint8(m.Status))
		w.str(m.Name)
		w.u32(m.ProtocolVersion)
		w.u64(m.MaxObjectSize)
		w.u64(uint64(m.SessionID))
		w.u64(uint64(m.Capabilities))
	case protocol.KindQuit:
		// no fields
	case protocol.KindRefcountReq:
		m := msg.(*protocol.RefcountReq)
		w.u64(uint64(m.ReqID))
		w.objID(m.ObjectID)
		w.i32(m.ChangeBy)
	case protocol.KindRefcountReply:
		m := msg.(*protocol.RefcountReply)
		w.u64(uint64(m.ReqID))
		w.u8(uint8(m.Status))
	case protocol.KindObjectInfoReq:
		m := msg.(*protocol.ObjectInfoReq)
		w.u64(uint64(m.ReqID))
		w.objID(m.ObjectID)
	case protocol.KindObjectInfoReply:
		m := msg.(*protocol.ObjectInfoReply)
		w.u64(uint64(m.ReqID))
		w.u8(uint8(m.Status))
		w.u8(uint8(m.ObjectType))
		w.u64(m.Size)
	case protocol.KindReadReq:
		m := msg.(*protocol.ReadReq)
		w.u64(uint64(m.ReqID))
		w.objID(m.ObjectID)
		w.u64(m.Offset)
		w.u32(m.Size)
	case protocol.KindReadReply:
		m := msg.(*protocol.ReadReply)
		w.u64(uint64(m.ReqID))
		w.u8(uint8(m.Status))
		// Attachment travels separately in the frame, never here.
	case protocol.KindStoreReq:
		m := msg.(*protocol.StoreReq)
		var flags uint8
		if m.HasExpected {
			flags |= 1 << 0
		}
		if m.HasType {
			flags |= 1 << 1
		}
		if m.HasDesc {
			flags |= 1 << 2
		}
		if m.LastPart {
			flags |= 1 << 3
		}
		w.u8(flags)
		w.u64(uint64(m.Session))
		w.u64(uint64(m.ReqID))
		w.objID(m.ObjectID)
		w.u32(m.PartNr)
		if m.HasExpected {
			w.u64(m.ExpectedSize)
		}
		if m.HasType {
			w.u8(uint8(m.ObjectType))
		}
		if m.HasDesc {
			w.str(m.Description)
		}
		// Attachment travels separately in the frame, never here.
	case protocol.KindStoreReply:
		m := msg.(*protocol.StoreReply)
		w.u64(uint64(m.ReqID))
		w.u32(m.PartNr)
		w.u8(uint8(m.Status))
	case protocol.KindStoreAbortReq:
		m := msg.(*protocol.StoreAbortReq)
		w.u64(uint64(m.Session))
		w.u64(uint64(m.ReqID))
	case protocol.KindInfoReq:
		m := msg.(*protocol.InfoReq)
		w.u64(uint64(m.ReqID))
	case protocol.KindInfoReply:
		m := msg.(*protocol.InfoReply)
		w.u64(uint64(m.ReqID))
		w.u8(uint8(m.Status))
		w.u64(m.SizeBytes)
		w.u64(m.UsedBytes)
		w.u64(m.PinnedBytes)
		w.bool(m.NoShrink)
	case protocol.KindShrinkReq:
		m := msg.(*protocol.ShrinkReq)
		w.u64(uint64(m.ReqID))
		w.u64(m.ShrinkTo)
	case protocol.KindShrinkReply:
		m := msg.(*protocol.ShrinkReply)
		w.u64(uint64(m.ReqID))
		w.u8(uint8(m.Status))
		w.u64(m.UsedBytes)
	case protocol.KindListReq:
		m := msg.(*protocol.ListReq)
		w.u64(uint64(m.ReqID))
		w.u64(uint64(m.ListingID))
		w.u8(uint8(m.ObjectType))
	case protocol.KindListReply:
		m := msg.(*protocol.ListReply)
		w.u64(uint64(m.ReqID))
		w.u8(uint8(m.Status))
		w.u64(uint64(m.ListingID))
		w.bool(m.IsLastPart)
		w.u32(uint32(len(m.Records)))
		for _, rec := range m.Records {
			w.objID(rec.Hash)
			w.bool(rec.Pinned)
			w.str(rec.Description)
		}
	case protocol.KindDetach:
		// no fields
	default:
		return nil, fmt.Errorf("binary encode: unknown message kind %s", kind)
	}
	return w.bytes(), nil
}

func (binaryCodec) Decode(kind protocol.Kind, data []byte) (any, error) {
	r := newBinReader(data)
	switch kind {
	case protocol.KindHandshakeReq:
		return &protocol.HandshakeReq{}, r.err()
	case protocol.KindHandshakeReply:
		m := &protocol.HandshakeReply{}
		m.Status = protocol.Status(r.u8())
		m.Name = r.str()
		m.ProtocolVersion = r.u32()
		m.MaxObjectSize = r.u64()
		m.SessionID = protocol.SessionID(r.u64())
		m.Capabilities = protocol.CapabilitySet(r.u64())
		return m, r.err()
	case protocol.KindQuit:
		return &protocol.Quit{}, r.err()
	case protocol.KindRefcountReq:
		m := &protocol.RefcountReq{}
		m.ReqID = protocol.RequestID(r.u64())
		m.ObjectID = r.objID()
		m.ChangeBy = r.i32()
		return m, r.err()
	case protocol.KindRefcountReply:
		m := &protocol.RefcountReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.Status = protocol.Status(r.u8())
		return m, r.err()
	case protocol.KindObjectInfoReq:
		m := &protocol.ObjectInfoReq{}
		m.ReqID = protocol.RequestID(r.u64())
		m.ObjectID = r.objID()
		return m, r.err()
	case protocol.KindObjectInfoReply:
		m := &protocol.ObjectInfoReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.Status = protocol.Status(r.u8())
		m.ObjectType = protocol.ObjectType(r.u8())
		m.Size = r.u64()
		return m, r.err()
	case protocol.KindReadReq:
		m := &protocol.ReadReq{}
		m.ReqID = protocol.RequestID(r.u64())
		m.ObjectID = r.objID()
		m.Offset = r.u64()
		m.Size = r.u32()
		return m, r.err()
	case protocol.KindReadReply:
		m := &protocol.ReadReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.Status = protocol.Status(r.u8())
		return m, r.err()
	case protocol.KindStoreReq:
		m := &protocol.StoreReq{}
		flags := r.u8()
		m.HasExpected = flags&(1<<0) != 0
		m.HasType = flags&(1<<1) != 0
		m.HasDesc = flags&(1<<2) != 0
		m.LastPart = flags&(1<<3) != 0
		m.Session = protocol.SessionID(r.u64())
		m.ReqID = protocol.RequestID(r.u64())
		m.ObjectID = r.objID()
		m.PartNr = r.u32()
		if m.HasExpected {
			m.ExpectedSize = r.u64()
		}
		if m.HasType {
			m.ObjectType = protocol.ObjectType(r.u8())
		}
		if m.HasDesc {
			m.Description = r.str()
		}
		return m, r.err()
	case protocol.KindStoreReply:
		m := &protocol.StoreReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.PartNr = r.u32()
		m.Status = protocol.Status(r.u8())
		return m, r.err()
	case protocol.KindStoreAbortReq:
		m := &protocol.StoreAbortReq{}
		m.Session = protocol.SessionID(r.u64())
		m.ReqID = protocol.RequestID(r.u64())
		return m, r.err()
	case protocol.KindInfoReq:
		m := &protocol.InfoReq{}
		m.ReqID = protocol.RequestID(r.u64())
		return m, r.err()
	case protocol.KindInfoReply:
		m := &protocol.InfoReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.Status = protocol.Status(r.u8())
		m.SizeBytes = r.u64()
		m.UsedBytes = r.u64()
		m.PinnedBytes = r.u64()
		m.NoShrink = r.bool()
		return m, r.err()
	case protocol.KindShrinkReq:
		m := &protocol.ShrinkReq{}
		m.ReqID = protocol.RequestID(r.u64())
		m.ShrinkTo = r.u64()
		return m, r.err()
	case protocol.KindShrinkReply:
		m := &protocol.ShrinkReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.Status = protocol.Status(r.u8())
		m.UsedBytes = r.u64()
		return m, r.err()
	case protocol.KindListReq:
		m := &protocol.ListReq{}
		m.ReqID = protocol.RequestID(r.u64())
		m.ListingID = protocol.ListingID(r.u64())
		m.ObjectType = protocol.ObjectType(r.u8())
		return m, r.err()
	case protocol.KindListReply:
		m := &protocol.ListReply{}
		m.ReqID = protocol.RequestID(r.u64())
		m.Status = protocol.Status(r.u8())
		m.ListingID = protocol.ListingID(r.u64())
		m.IsLastPart = r.bool()
		n := r.u32()
		if n > 0 {
			m.Records = make([]protocol.ListRecord, 0, n)
		}
		for i := uint32(0); i < n; i++ {
			m.Records = append(m.Records, protocol.ListRecord{
				Hash:        r.objID(),
				Pinned:      r.bool(),
				Description: r.str(),
			})
		}
		return m, r.err()
	case protocol.KindDetach:
		return &protocol.Detach{}, r.err()
	default:
		return nil, fmt.Errorf("binary decode: unknown message kind %s", kind)
	}
}

// --------------------------------------------------------------------------
// Low-level primitives
// --------------------------------------------------------------------------

type binWriter struct {
	buf []byte
}

func (w *binWriter) bytes() []byte { return w.buf }

func (w *binWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *binWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}
func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *binWriter) i32(v int32) { w.u32(uint32(v)) }
func (w *binWriter) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *binWriter) raw(data []byte) {
	w.u32(uint32(len(data)))
	w.buf = append(w.buf, data...)
}
func (w *binWriter) str(s string) { w.raw([]byte(s)) }
func (w *binWriter) objID(id protocol.ObjectID) {
	w.u8(id.Algo)
	w.raw(id.Digest)
}

type binReader struct {
	data []byte
	pos  int
	e    error
}

func newBinReader(data []byte) *binReader { return &binReader{data: data} }

func (r *binReader) err() error { return r.e }

func (r *binReader) need(n int) bool {
	if r.e != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.e = fmt.Errorf("binary decode: truncated message (need %d bytes at offset %d, have %d)", n, r.pos, len(r.data))
		return false
	}
	return true
}

func (r *binReader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *binReader) bool() bool { return r.u8() != 0 }

func (r *binReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *binReader) i32() int32 { return int32(r.u32()) }

func (r *binReader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *binReader) raw() []byte {
	n := r.u32()
	if !r.need(int(n)) {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return v
}

func (r *binReader) str() string {
	b := r.raw()
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *binReader) objID() protocol.ObjectID {
	algo := r.u8()
	digest := r.raw()
	return protocol.ObjectID{Algo: algo, Digest: digest}
}
