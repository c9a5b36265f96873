package cache

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// controlSignal is written to the self-pipe to wake the poll loop for
// something other than socket I/O. Grounded on channel.cc's
// kSignalDetach/kSignalTerminate constants over pipe_ctrl_.
type controlSignal byte

const (
	signalDetach controlSignal = iota
	signalTerminate
)

// controlPipe is the self-pipe trick: a pipe whose read end sits in the
// poll set alongside the listener and client connections, so the event
// loop can be woken from another goroutine (AskToDetach, Terminate)
// without touching the sockets it owns.
type controlPipe struct {
	r *os.File
	w *os.File
}

func newControlPipe() (*controlPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cache: create control pipe: %w", err)
	}
	return &controlPipe{r: r, w: w}, nil
}

func (p *controlPipe) signal(sig controlSignal) error {
	_, err := p.w.Write([]byte{byte(sig)})
	return err
}

// read drains exactly one signal byte. The event loop only calls this
// after poll reports the read end readable, so it never blocks.
func (p *controlPipe) read() (controlSignal, error) {
	var buf [1]byte
	_, err := p.r.Read(buf[:])
	if err != nil {
		return 0, err
	}
	return controlSignal(buf[0]), nil
}

func (p *controlPipe) fd() int {
	return int(p.r.Fd())
}

func (p *controlPipe) close() {
	p.r.Close()
	p.w.Close()
}

// pollRetryOnEINTR is shared by the event loop's poll call, grounded on
// input_reader_unix.go's EINTR-retry loop around unix.Poll.
func pollRetryOnEINTR(fds []unix.PollFd, timeoutMs int) (int, error) {
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
