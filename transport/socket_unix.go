//go:build unix

package transport

import (
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// NewSocket adapts a connected socket descriptor into a Transport. The
// descriptor is switched to non-blocking mode and EAGAIN is surfaced through
// the would-block sentinels, so an event loop owning the descriptor can poll
// operations against it. The Socket takes ownership of fd.
func NewSocket(fd int) (*Socket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, os.NewSyscallError("setnonblock", err)
	}
	return &Socket{fd: fd}, nil
}

type Socket struct {
	fd     int
	closed atomic.Bool
}

func (s *Socket) Fd() int {
	return s.fd
}

func (s *Socket) Read(p []byte) (n int, err error) {
	if s.closed.Load() {
		err = ErrClosed
		return
	}
	if len(p) == 0 {
		return
	}
	n, err = unix.Read(s.fd, p)
	if err != nil {
		n = 0
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			err = ErrReadWouldBlock
			return
		}
		err = os.NewSyscallError("read", err)
		return
	}
	if n == 0 {
		err = io.EOF
	}
	return
}

func (s *Socket) Write(p []byte) (n int, err error) {
	if s.closed.Load() {
		err = ErrClosed
		return
	}
	if len(p) == 0 {
		return
	}
	n, err = unix.Write(s.fd, p)
	if err != nil {
		n = 0
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			err = ErrWriteWouldBlock
			return
		}
		err = os.NewSyscallError("write", err)
		return
	}
	return
}

func (s *Socket) Close() (err error) {
	if !s.closed.CompareAndSwap(false, true) {
		err = ErrClosed
		return
	}
	if closeErr := unix.Close(s.fd); closeErr != nil {
		err = os.NewSyscallError("close", closeErr)
	}
	return
}
