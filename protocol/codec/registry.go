package codec

import "github.com/objcache/cachemgr/protocol"

// newByKind returns a pointer to a zero-valued struct matching kind, for
// codecs (gob, json) that decode through reflection rather than a
// hand-written switch.
func newByKind(kind protocol.Kind) (any, bool) {
	switch kind {
	case protocol.KindHandshakeReq:
		return new(protocol.HandshakeReq), true
	case protocol.KindHandshakeReply:
		return new(protocol.HandshakeReply), true
	case protocol.KindQuit:
		return new(protocol.Quit), true
	case protocol.KindRefcountReq:
		return new(protocol.RefcountReq), true
	case protocol.KindRefcountReply:
		return new(protocol.RefcountReply), true
	case protocol.KindObjectInfoReq:
		return new(protocol.ObjectInfoReq), true
	case protocol.KindObjectInfoReply:
		return new(protocol.ObjectInfoReply), true
	case protocol.KindReadReq:
		return new(protocol.ReadReq), true
	case protocol.KindReadReply:
		return new(protocol.ReadReply), true
	case protocol.KindStoreReq:
		return new(protocol.StoreReq), true
	case protocol.KindStoreReply:
		return new(protocol.StoreReply), true
	case protocol.KindStoreAbortReq:
		return new(protocol.StoreAbortReq), true
	case protocol.KindInfoReq:
		return new(protocol.InfoReq), true
	case protocol.KindInfoReply:
		return new(protocol.InfoReply), true
	case protocol.KindShrinkReq:
		return new(protocol.ShrinkReq), true
	case protocol.KindShrinkReply:
		return new(protocol.ShrinkReply), true
	case protocol.KindListReq:
		return new(protocol.ListReq), true
	case protocol.KindListReply:
		return new(protocol.ListReply), true
	case protocol.KindDetach:
		return new(protocol.Detach), true
	default:
		return nil, false
	}
}
