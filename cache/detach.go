package cache

import (
	"github.com/objcache/cachemgr/protocol"
	"github.com/objcache/cachemgr/transport"
)

// broadcastDetach implements spec.md §4.H: every attached connection
// gets exactly one Detach frame, sent best-effort so a slow or dead
// peer can't hold up the others. Grounded on channel.cc's
// SendDetachRequests, which builds one CacheTransport per connection
// with kFlagSendIgnoreFailure|kFlagSendNonBlocking.
func (s *Server) broadcastDetach() {
	encoded, err := s.cfg.Codec.Encode(protocol.KindDetach, &protocol.Detach{})
	if err != nil {
		s.cfg.Log.Errorf("encode detach: %v", err)
		return
	}
	frame := transport.Frame{Kind: protocol.KindDetach, Message: encoded}
	for _, c := range s.conns {
		_ = transport.Send(c.conn, frame, transport.IgnoreSendFailure|transport.NonBlocking)
	}
}
