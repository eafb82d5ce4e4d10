//go:build !windows

package discovery

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// controlBroadcast enables SO_BROADCAST before bind so the socket can
// send to the limited broadcast address. SO_REUSEADDR lets a scan start
// while a previous socket lingers in TIME_WAIT-like states.
func controlBroadcast(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// isAddrInUse reports whether a bind failed because the port is taken.
func isAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
