// Package cache implements the external cache-manager server core: the
// single-threaded event loop, frame dispatcher, store transaction
// engine, and listing cursor bookkeeping that sit in front of a
// pluggable Backend. Grounded on rpc/server/server.go's rpcServer, with
// the goroutine-per-connection model replaced by a poll-based loop.
package cache

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"github.com/objcache/cachemgr/metrics"
	"github.com/objcache/cachemgr/protocol"
	"github.com/objcache/cachemgr/protocol/codec"
	"github.com/objcache/cachemgr/transport"
)

// Config bundles the handshake-advertised identity and tunables a
// Server is constructed with.
type Config struct {
	Name            string
	ProtocolVersion uint32
	MaxObjectSize   uint64
	Capabilities    protocol.CapabilitySet

	// NumWorkers is stored here only: neither the event loop, which is
	// always single-threaded, nor the Backend interface reads it.
	NumWorkers int

	Locator string
	Codec   codec.Codec
	Log     *Logger

	// Metrics and Latencies are optional; a nil value disables the
	// corresponding telemetry calls entirely (see telemetry.go).
	Metrics   *metrics.Registry
	Latencies *metrics.Latencies
}

// Server owns one listening endpoint, one Backend, and the event loop
// that serves it. Grounded on rpc/server/server.go's rpcServer struct.
type Server struct {
	cfg      Config
	backend  Backend
	listener net.Listener
	ctrl     *controlPipe
	dispatch *dispatchState
	stats    *Stats

	// conns is the insertion-ordered connection set; only the event loop
	// goroutine ever reads or writes it (spec.md §5).
	conns   []*clientConn
	running atomic.Bool
}

// clientConn pairs a live connection with the raw fd the poll loop
// watches it on and the session id assigned at handshake (0 until
// then).
type clientConn struct {
	conn    net.Conn
	fd      int
	session protocol.SessionID
}

// NewServer constructs a Server bound to cfg.Locator, ready for Serve.
func NewServer(cfg Config, backend Backend) (*Server, error) {
	if cfg.Codec == nil {
		cfg.Codec, _ = codec.ByName("binary")
	}
	if cfg.Log == nil {
		cfg.Log = NewLogger("cache", LevelInfo, os.Stderr)
	}

	listener, err := transport.Listen(cfg.Locator)
	if err != nil {
		return nil, fmt.Errorf("cache: listen %s: %w", cfg.Locator, err)
	}
	ctrl, err := newControlPipe()
	if err != nil {
		listener.Close()
		return nil, err
	}

	stats := newStats()
	return &Server{
		cfg:      cfg,
		backend:  backend,
		listener: listener,
		ctrl:     ctrl,
		dispatch: newDispatchState(cfg, backend, cfg.Log, stats),
		stats:    stats,
	}, nil
}

// Stats exposes the event loop's live counters for the debug HTTP server.
func (s *Server) Stats() *Stats { return s.stats }

// AskToDetach signals the event loop to broadcast a Detach frame to
// every attached client, per spec.md §4.H. Safe to call from any
// goroutine; the signal crosses over the control pipe.
func (s *Server) AskToDetach() error {
	return s.ctrl.signal(signalDetach)
}

// Terminate signals the event loop to break out of Serve and tear down
// every connection, per spec.md §4.G's teardown step.
func (s *Server) Terminate() error {
	return s.ctrl.signal(signalTerminate)
}
