// Package adaptor bridges the polled tlsio surface to code expecting an
// ordinary blocking net.Conn: every would-block suspension becomes a wait on
// the transport's readiness registration.
package adaptor

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/brickingsoft/tlsio"
	"github.com/brickingsoft/tlsio/transport"
)

// Conn wraps a completed stream into a blocking net.Conn. ready must belong
// to the transport the stream runs over. Operations are serialized
// internally, since the stream itself is single-owner.
func Conn(stream *tlsio.Stream, ready transport.Readiness) net.Conn {
	return &connection{
		stream: stream,
		ready:  ready,
	}
}

type connection struct {
	mu            sync.Mutex
	stream        *tlsio.Stream
	ready         transport.Readiness
	deadlineMu    sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

func (conn *connection) Read(b []byte) (n int, err error) {
	for {
		conn.mu.Lock()
		n, err = conn.stream.Read(b)
		conn.mu.Unlock()
		if err == nil || !transport.IsWouldBlock(err) {
			return
		}
		if waitErr := conn.wait(err, conn.currentReadDeadline()); waitErr != nil {
			n, err = 0, waitErr
			return
		}
	}
}

func (conn *connection) Write(b []byte) (n int, err error) {
	for n < len(b) {
		conn.mu.Lock()
		wn, wErr := conn.stream.Write(b[n:])
		conn.mu.Unlock()
		n += wn
		if wErr != nil {
			if !transport.IsWouldBlock(wErr) {
				err = wErr
				return
			}
			if waitErr := conn.wait(wErr, conn.currentWriteDeadline()); waitErr != nil {
				err = waitErr
				return
			}
		}
	}
	for {
		conn.mu.Lock()
		fErr := conn.stream.Flush()
		conn.mu.Unlock()
		if fErr == nil {
			return
		}
		if !transport.IsWouldBlock(fErr) {
			err = fErr
			return
		}
		if waitErr := conn.wait(fErr, conn.currentWriteDeadline()); waitErr != nil {
			err = waitErr
			return
		}
	}
}

// Close runs the graceful close sequence to completion, then releases the
// stream.
func (conn *connection) Close() (err error) {
	for {
		conn.mu.Lock()
		sdErr := conn.stream.Shutdown()
		conn.mu.Unlock()
		if sdErr == nil {
			break
		}
		if !transport.IsWouldBlock(sdErr) {
			err = sdErr
			break
		}
		if waitErr := conn.wait(sdErr, conn.currentWriteDeadline()); waitErr != nil {
			err = waitErr
			break
		}
	}
	conn.mu.Lock()
	closeErr := conn.stream.Close()
	conn.mu.Unlock()
	if err == nil {
		err = closeErr
	}
	return
}

func (conn *connection) wait(blocked error, deadline time.Time) (err error) {
	interest, ok := transport.InterestOf(blocked)
	if !ok {
		err = blocked
		return
	}
	readiness := make(chan error, 1)
	conn.ready.Register(interest, func(cause error) {
		readiness <- cause
	})
	if deadline.IsZero() {
		err = <-readiness
		return
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case err = <-readiness:
	case <-timer.C:
		err = os.ErrDeadlineExceeded
	}
	return
}

func (conn *connection) currentReadDeadline() time.Time {
	conn.deadlineMu.Lock()
	defer conn.deadlineMu.Unlock()
	return conn.readDeadline
}

func (conn *connection) currentWriteDeadline() time.Time {
	conn.deadlineMu.Lock()
	defer conn.deadlineMu.Unlock()
	return conn.writeDeadline
}

func (conn *connection) LocalAddr() net.Addr {
	return streamAddr{}
}

func (conn *connection) RemoteAddr() net.Addr {
	return streamAddr{}
}

func (conn *connection) SetDeadline(t time.Time) error {
	conn.deadlineMu.Lock()
	conn.readDeadline = t
	conn.writeDeadline = t
	conn.deadlineMu.Unlock()
	return nil
}

func (conn *connection) SetReadDeadline(t time.Time) error {
	conn.deadlineMu.Lock()
	conn.readDeadline = t
	conn.deadlineMu.Unlock()
	return nil
}

func (conn *connection) SetWriteDeadline(t time.Time) error {
	conn.deadlineMu.Lock()
	conn.writeDeadline = t
	conn.deadlineMu.Unlock()
	return nil
}

// streamAddr stands in for transports that carry no addressing.
type streamAddr struct{}

func (streamAddr) Network() string { return "tlsio" }
func (streamAddr) String() string  { return "tlsio" }
