package cache

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/objcache/cachemgr/protocol"
	"github.com/objcache/cachemgr/transport"
)

// pollEvents is the event set watched on every slot, mirroring
// channel.cc's POLLIN | POLLPRI.
const pollEvents = unix.POLLIN | unix.POLLPRI

// rawFD extracts the underlying file descriptor from anything that
// exposes SyscallConn (net.Conn and net.Listener both do on unix),
// so it can be added to a raw poll set alongside the control pipe.
func rawFD(sc syscall.Conn) (int, error) {
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctrlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// Serve runs the event loop described in spec.md §4.G until Terminate
// is signalled or a fatal error occurs. It blocks the calling
// goroutine; callers that want to signal it concurrently use
// AskToDetach/Terminate, which cross over the control pipe.
func (s *Server) Serve() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("cache: Serve called while already running")
	}
	defer s.running.Store(false)
	defer s.teardown()

	listenerFD, err := rawFD(s.listener.(syscall.Conn))
	if err != nil {
		return fmt.Errorf("cache: listener fd: %w", err)
	}

	for {
		fds := s.buildPollSet(listenerFD)
		n, err := pollRetryOnEINTR(fds, -1)
		if err != nil {
			return fmt.Errorf("cache: poll: %w", err)
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents != 0 {
			stop, err := s.handleControl()
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
			continue
		}

		if fds[1].Revents != 0 {
			s.acceptOne()
		}

		s.serviceClients(fds[2:])
	}
}

func (s *Server) buildPollSet(listenerFD int) []unix.PollFd {
	fds := make([]unix.PollFd, 2+len(s.conns))
	fds[0] = unix.PollFd{Fd: int32(s.ctrl.fd()), Events: pollEvents}
	fds[1] = unix.PollFd{Fd: int32(listenerFD), Events: pollEvents}
	for i, c := range s.conns {
		fds[2+i] = unix.PollFd{Fd: int32(c.fd), Events: pollEvents}
	}
	return fds
}

// handleControl reads one control-pipe byte and acts on it. The
// returned bool is true when the loop should stop (Terminate).
func (s *Server) handleControl() (bool, error) {
	sig, err := s.ctrl.read()
	if err != nil {
		return false, fmt.Errorf("cache: read control pipe: %w", err)
	}
	switch sig {
	case signalDetach:
		s.broadcastDetach()
		return false, nil
	case signalTerminate:
		if len(s.conns) > 0 {
			s.cfg.Log.Warnf("terminating with %d connection(s) still attached", len(s.conns))
		}
		return true, nil
	default:
		return false, nil
	}
}

func (s *Server) acceptOne() {
	conn, err := s.listener.Accept()
	if err != nil {
		s.cfg.Log.Warnf("accept failed: %v", err)
		return
	}
	fd, err := rawFD(conn.(syscall.Conn))
	if err != nil {
		s.cfg.Log.Warnf("accept: could not extract fd: %v", err)
		conn.Close()
		return
	}
	s.conns = append(s.conns, &clientConn{conn: conn, fd: fd})
	s.stats.set("connections_open", int64(len(s.conns)))
	s.dispatch.tel.setConnectionsOpen(len(s.conns))
}

// serviceClients handles every ready connection slot, closing and
// removing any that signal teardown. It captures each descriptor
// before any removal happens, which is the fix for channel.cc's
// post-erase use-after-index defect (the loop there re-read
// watch_fds[i].fd after having already erased element i).
func (s *Server) serviceClients(fds []unix.PollFd) {
	var dead []int // indices into s.conns, ascending

	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		c := s.conns[i]
		if !s.handleConnection(c) {
			dead = append(dead, i)
		}
	}

	if len(dead) == 0 {
		return
	}
	for j := len(dead) - 1; j >= 0; j-- {
		i := dead[j]
		c := s.conns[i]
		s.dispatch.reclaimSession(c.session)
		c.conn.Close()
		s.conns = append(s.conns[:i], s.conns[i+1:]...)
	}
	s.stats.set("connections_open", int64(len(s.conns)))
	s.dispatch.tel.setConnectionsOpen(len(s.conns))
	s.dispatch.tel.setTransactionsOpen(len(s.dispatch.openTxns))
	s.dispatch.tel.setListingsOpen(s.dispatch.cursors.Len())
}

// handleConnection implements one pass of spec.md §4.D for a single
// ready connection: receive, decode, dispatch, encode, reply.
func (s *Server) handleConnection(c *clientConn) bool {
	maxAttachment := s.cfg.MaxObjectSize
	if maxAttachment > 1<<32-1 {
		maxAttachment = 1<<32 - 1
	}

	frame, err := transport.Recv(c.conn, uint32(maxAttachment), nil)
	if err != nil {
		return false
	}

	msg, err := s.cfg.Codec.Decode(frame.Kind, frame.Message)
	if err != nil {
		s.cfg.Log.Warnf("dropping connection on decode error: %v", err)
		return false
	}
	if storeReq, ok := msg.(*protocol.StoreReq); ok {
		storeReq.Attachment = frame.Attachment
	}

	result := s.dispatch.dispatch(c.session, frame.Kind, msg)
	if handshake, ok := result.msg.(*protocol.HandshakeReply); ok {
		c.session = handshake.SessionID
	}
	s.dispatch.tel.setTransactionsOpen(len(s.dispatch.openTxns))
	s.dispatch.tel.setListingsOpen(s.dispatch.cursors.Len())

	if result.msg != nil {
		encoded, err := s.cfg.Codec.Encode(result.kind, result.msg)
		if err != nil {
			s.cfg.Log.Errorf("encode failed for %v: %v", result.kind, err)
			return false
		}
		out := transport.Frame{Kind: result.kind, Message: encoded, Attachment: result.attachment}
		if err := transport.Send(c.conn, out, 0); err != nil {
			s.cfg.Log.Warnf("send failed: %v", err)
		}
	}

	return result.keep
}

// teardown implements spec.md §4.G's final step: close every client
// connection and release anything still open in the tables.
func (s *Server) teardown() {
	for _, c := range s.conns {
		s.dispatch.reclaimSession(c.session)
		c.conn.Close()
	}
	s.conns = nil
	s.ctrl.close()
	s.listener.Close()
}
