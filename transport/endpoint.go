package transport

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// Listen creates a listening endpoint from a locator string of the form
// "unix=<path>" or "tcp=<host>:<port>", per spec.md §4.I and §6. An
// invalid locator is a fatal configuration error — the caller is
// expected to abort startup on it, not retry. Go's net package picks
// its own listen backlog (there is no portable way to request
// channel.cc's literal backlog of 32 through net.Listen), so the
// backlog figure from spec.md §4.I is advisory here rather than enforced.
func Listen(locator string) (net.Listener, error) {
	kind, addr, err := splitLocator(locator)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "unix":
		return listenUnix(addr)
	case "tcp":
		return listenTCP(addr)
	default:
		return nil, fmt.Errorf("transport: unknown endpoint kind %q in locator %q", kind, locator)
	}
}

func splitLocator(locator string) (kind, addr string, err error) {
	parts := strings.SplitN(locator, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("transport: invalid locator %q (want unix=<path> or tcp=<host>:<port>)", locator)
	}
	return parts[0], parts[1], nil
}

func listenUnix(path string) (net.Listener, error) {
	// A stale socket file from a previous run prevents bind; remove it
	// first, same as the teacher's unix server connector.
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("transport: failed to remove existing socket %q: %w", path, err)
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(nil, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create unix socket %q: %w", path, err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("transport: failed to chmod unix socket %q: %w", path, err)
	}

	return ln, nil
}

func listenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create tcp endpoint %q: %w", addr, err)
	}
	return ln, nil
}
