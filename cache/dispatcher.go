package cache

import (
	"time"

	"github.com/objcache/cachemgr/protocol"
)

// dispatchState is the per-server state a connection's dispatch needs:
// the backend, the id allocators, and the transaction/listing tables.
// Per spec.md §5 exactly one goroutine (the event loop) ever touches
// this, so none of its fields need synchronization.
type dispatchState struct {
	cfg     Config
	backend Backend
	log     *Logger
	tel     *telemetry
	stats   *Stats

	ids      *idAllocators
	txns     *txnTable
	openTxns map[protocol.TransactionID]*openTxn
	cursors  *listOpenCursors
}

func newDispatchState(cfg Config, backend Backend, log *Logger, stats *Stats) *dispatchState {
	return &dispatchState{
		cfg:      cfg,
		backend:  backend,
		log:      log,
		tel:      &telemetry{registry: cfg.Metrics, latencies: cfg.Latencies},
		stats:    stats,
		ids:      newIDAllocators(),
		txns:     newTxnTable(),
		openTxns: make(map[protocol.TransactionID]*openTxn),
		cursors:  newListOpenCursors(),
	}
}

// dispatchResult carries a dispatcher's reply, if any, back to the
// caller. kind == protocol.KindUnknown means no reply frame is sent
// (Quit, or an unparseable/unknown message).
type dispatchResult struct {
	kind       protocol.Kind
	msg        any
	attachment []byte
	keep       bool
}

// dispatch implements spec.md §4.D: decode has already happened, this
// branches on the message kind, calls into the matching handler, and
// reports whether the connection stays open.
func (s *dispatchState) dispatch(session protocol.SessionID, kind protocol.Kind, msg any) dispatchResult {
	s.tel.incRequest(kind)
	s.stats.inc(kind.String())

	switch kind {
	case protocol.KindHandshakeReq:
		return s.handleHandshake()

	case protocol.KindQuit:
		return dispatchResult{keep: false}

	case protocol.KindRefcountReq:
		req := msg.(*protocol.RefcountReq)
		status := s.backend.ChangeRefcount(req.ObjectID, req.ChangeBy)
		return reply(protocol.KindRefcountReply, &protocol.RefcountReply{ReqID: req.ReqID, Status: status})

	case protocol.KindObjectInfoReq:
		req := msg.(*protocol.ObjectInfoReq)
		info, status := s.backend.GetObjectInfo(req.ObjectID)
		return reply(protocol.KindObjectInfoReply, &protocol.ObjectInfoReply{
			ReqID: req.ReqID, Status: status, ObjectType: info.ObjectType, Size: info.Size,
		})

	case protocol.KindReadReq:
		return s.handleRead(msg.(*protocol.ReadReq))

	case protocol.KindStoreReq:
		return s.handleStore(session, msg.(*protocol.StoreReq))

	case protocol.KindStoreAbortReq:
		return s.handleStoreAbort(session, msg.(*protocol.StoreAbortReq))

	case protocol.KindInfoReq:
		req := msg.(*protocol.InfoReq)
		info, status := s.backend.GetInfo()
		return reply(protocol.KindInfoReply, &protocol.InfoReply{ReqID: req.ReqID, CacheInfo: info, Status: status})

	case protocol.KindShrinkReq:
		req := msg.(*protocol.ShrinkReq)
		var used uint64
		status := s.backend.Shrink(req.ShrinkTo, &used)
		return reply(protocol.KindShrinkReply, &protocol.ShrinkReply{ReqID: req.ReqID, Status: status, UsedBytes: used})

	case protocol.KindListReq:
		return reply(protocol.KindListReply, s.handleList(session, msg.(*protocol.ListReq)))

	default:
		s.log.Warnf("dropping connection on unknown message kind %v", kind)
		return dispatchResult{keep: false}
	}
}

func reply(kind protocol.Kind, msg any) dispatchResult {
	return dispatchResult{kind: kind, msg: msg, keep: true}
}

func (s *dispatchState) handleHandshake() dispatchResult {
	sessionID := s.ids.NextSessionID()
	return reply(protocol.KindHandshakeReply, &protocol.HandshakeReply{
		Status:          protocol.StatusOK,
		Name:            s.cfg.Name,
		ProtocolVersion: s.cfg.ProtocolVersion,
		MaxObjectSize:   s.cfg.MaxObjectSize,
		SessionID:       sessionID,
		Capabilities:    s.cfg.Capabilities,
	})
}

func (s *dispatchState) handleRead(req *protocol.ReadReq) dispatchResult {
	if uint64(req.Size) > s.cfg.MaxObjectSize {
		return reply(protocol.KindReadReply, &protocol.ReadReply{ReqID: req.ReqID, Status: protocol.StatusMalformed})
	}

	size := req.Size
	buf := make([]byte, size)
	start := time.Now()
	status := s.backend.Pread(req.ObjectID, req.Offset, &size, buf)
	s.tel.timePread(time.Since(start))
	if status != protocol.StatusOK {
		return reply(protocol.KindReadReply, &protocol.ReadReply{ReqID: req.ReqID, Status: status})
	}
	s.tel.addBytesRead(int(size))
	return dispatchResult{
		kind:       protocol.KindReadReply,
		msg:        &protocol.ReadReply{ReqID: req.ReqID, Status: protocol.StatusOK},
		attachment: buf[:size],
		keep:       true,
	}
}

// handleStore validates a StoreReq part against spec.md §4.F's sizing
// rules before handing it to the store transaction engine.
func (s *dispatchState) handleStore(session protocol.SessionID, req *protocol.StoreReq) dispatchResult {
	attLen := uint64(len(req.Attachment))
	if attLen > s.cfg.MaxObjectSize {
		return reply(protocol.KindStoreReply, &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusMalformed})
	}
	if attLen < s.cfg.MaxObjectSize && !req.LastPart {
		return reply(protocol.KindStoreReply, &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusMalformed})
	}

	if req.PartNr == 1 {
		if s.txns.Contains(protocol.UniqueRequest{Session: session, Request: req.ReqID}) {
			return reply(protocol.KindStoreReply, &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusMalformed})
		}
		return reply(protocol.KindStoreReply, s.startStore(session, req))
	}
	return reply(protocol.KindStoreReply, s.continueStoreByRequest(session, req))
}

// continueStoreByRequest resolves req's transaction id from the
// (session, request) table before delegating to continueStore.
func (s *dispatchState) continueStoreByRequest(session protocol.SessionID, req *protocol.StoreReq) *protocol.StoreReply {
	key := protocol.UniqueRequest{Session: session, Request: req.ReqID}
	tid, ok := s.txns.Lookup(key)
	if !ok {
		return &protocol.StoreReply{ReqID: req.ReqID, PartNr: req.PartNr, Status: protocol.StatusMalformed}
	}
	return s.continueStore(tid, req)
}

// handleStoreAbort implements spec.md §4.F/§4.D's StoreAbortReq,
// whose reply reuses StoreReply with part_nr == 0.
func (s *dispatchState) handleStoreAbort(session protocol.SessionID, req *protocol.StoreAbortReq) dispatchResult {
	key := protocol.UniqueRequest{Session: session, Request: req.ReqID}
	tid, ok := s.txns.Lookup(key)
	if !ok {
		return reply(protocol.KindStoreReply, &protocol.StoreReply{ReqID: req.ReqID, PartNr: 0, Status: protocol.StatusMalformed})
	}
	s.backend.AbortTxn(tid)
	s.forgetTxn(tid)
	return reply(protocol.KindStoreReply, &protocol.StoreReply{ReqID: req.ReqID, PartNr: 0, Status: protocol.StatusOK})
}

// reclaimSession aborts every transaction and closes every listing
// cursor still open for session, on connection teardown (the resolved
// per-connection reclamation from spec.md §9).
func (s *dispatchState) reclaimSession(session protocol.SessionID) {
	for _, tid := range s.txns.EraseSession(session) {
		s.backend.AbortTxn(tid)
		delete(s.openTxns, tid)
	}
	for _, id := range s.cursors.CloseSession(session) {
		s.backend.ListingEnd(id)
	}
}
