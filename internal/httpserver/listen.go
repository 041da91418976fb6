package httpserver

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Listen binds the shared IPv4 listener with SO_REUSEADDR and SO_REUSEPORT
// set, matching SPEC_FULL.md §4.3. A single listener shared by every HTTP
// worker goroutine replaces the original's N independent SO_REUSEPORT
// sockets: Go's netpoller already balances concurrent Accept callers across
// one listener, so per-worker sockets buy nothing extra here.
func Listen(ctx context.Context, port int) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					ctrlErr = err
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					ctrlErr = err
					return
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	ln, err := lc.Listen(ctx, "tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("httpserver: listen on port %d: %w", port, err)
	}
	return ln, nil
}
