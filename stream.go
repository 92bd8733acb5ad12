package tlsio

import (
	"io"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlsio/session"
	"github.com/brickingsoft/tlsio/transport"
)

func newStream(s session.Session) *Stream {
	return &Stream{session: s}
}

// Stream is a completed secure session exposed as a non-blocking byte
// stream. Read, Write and Flush pass straight through to the session; no
// buffering and no cryptography happen at this layer. Like the handshake, a
// Stream is exclusively owned by one logical task.
type Stream struct {
	session      session.Session
	closed       bool
	shutdownDone bool
	shutdownErr  error
}

// Session exposes the underlying secure session, which transitively owns the
// transport.
func (s *Stream) Session() session.Session {
	return s.session
}

func (s *Stream) Read(p []byte) (n int, err error) {
	if s.closed {
		err = errors.From(ErrClosed)
		return
	}
	n, err = s.session.Read(p)
	return
}

func (s *Stream) Write(p []byte) (n int, err error) {
	if s.closed {
		err = errors.From(ErrClosed)
		return
	}
	n, err = s.session.Write(p)
	return
}

func (s *Stream) Flush() (err error) {
	if s.closed {
		err = errors.From(ErrClosed)
		return
	}
	err = s.session.Flush()
	return
}

// Shutdown advances the graceful two-way close one step. nil means the
// sequence finished: the peer's close-notify was observed, or the peer
// already tore the transport down cleanly without one. A would-block error
// suspends the sequence; call Shutdown again once the transport is ready.
// The local close-notify is sent once and never repeated across retries.
//
// After the sequence reached a terminal outcome, further calls return that
// outcome without touching the engine. A hard failure is terminal: shutdown
// is not retried past it.
func (s *Stream) Shutdown() (err error) {
	if s.closed {
		err = errors.From(ErrClosed)
		return
	}
	if s.shutdownDone {
		err = s.shutdownErr
		return
	}
	result, sdErr := s.session.Shutdown()
	if sdErr != nil {
		if transport.IsWouldBlock(sdErr) {
			err = sdErr
			return
		}
		if errors.Is(sdErr, io.EOF) {
			// peer truncated the connection instead of closing it formally
			s.shutdownDone = true
			return
		}
		s.shutdownDone = true
		s.shutdownErr = newShutdownError(sdErr)
		err = s.shutdownErr
		return
	}
	switch result {
	case session.ShutdownReceived:
		s.shutdownDone = true
	case session.ShutdownSent:
		// our alert is out, the peer's has not arrived yet
		err = transport.ErrReadWouldBlock
	default:
		s.shutdownDone = true
		s.shutdownErr = newShutdownError(errors.New("tlsio: session reported unknown shutdown result"))
		err = s.shutdownErr
	}
	return
}

// Close abandons the stream and releases the transport through the session,
// without a close-notify exchange.
func (s *Stream) Close() (err error) {
	if s.closed {
		err = errors.From(ErrClosed)
		return
	}
	s.closed = true
	err = s.session.Close()
	return
}
