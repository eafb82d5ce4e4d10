//go:build windows

package discovery

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// controlBroadcast enables SO_BROADCAST before bind so the socket can
// send to the limited broadcast address.
func controlBroadcast(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// isAddrInUse reports whether a bind failed because the port is taken.
// Winsock reports this as WSAEADDRINUSE, not the POSIX errno.
func isAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}
