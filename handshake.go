package tlsio

import (
	"github.com/brickingsoft/tlsio/session"
	"github.com/brickingsoft/tlsio/transport"
)

// Handshake is a pollable handshake attempt produced by Client, Server or
// Completed. It is exclusively owned: one logical task polls it, and a new
// poll must not start before the previous one returned.
type Handshake struct {
	state handshakeState
}

// Exactly one state is live at any instant. Poll consumes the whole state
// and replaces it in a single assignment, so a half-stepped attempt is never
// observable: while a step runs, the stored state is already the consumed
// marker.
type handshakeState interface {
	handshakeState()
}

type handshakeStart struct {
	establish func() (s session.Session, err error)
	transport transport.Transport
	op        string
}

type handshakeInProgress struct {
	session session.Session
	op      string
}

type handshakeFailed struct {
	cause error
}

type handshakeCompleted struct {
	session session.Session
}

type handshakeConsumed struct{}

func (handshakeStart) handshakeState()      {}
func (handshakeInProgress) handshakeState() {}
func (handshakeFailed) handshakeState()     {}
func (handshakeCompleted) handshakeState()  {}
func (handshakeConsumed) handshakeState()   {}

// Completed wraps an already-established session as a ready attempt: the
// first Poll yields the stream without touching the engine.
func Completed(s session.Session) *Handshake {
	return &Handshake{state: handshakeCompleted{session: s}}
}

// Poll drives the attempt one step forward.
//
// A nil error means the handshake finished and s is ready for use; the
// attempt is consumed and must not be polled again (doing so panics). A
// would-block error (transport.IsWouldBlock) means the step suspended: poll
// again once the transport is ready for the interest the error names. Any
// other error is terminal; further polls return the same error without
// re-invoking the engine.
//
// Poll never blocks and never consumes or emits application bytes.
func (h *Handshake) Poll() (s *Stream, err error) {
	state := h.state
	h.state = handshakeConsumed{}
	switch current := state.(type) {
	case handshakeStart:
		sess, estErr := current.establish()
		if estErr == nil {
			s = newStream(sess)
			return
		}
		if transport.IsWouldBlock(estErr) {
			h.state = handshakeInProgress{session: sess, op: current.op}
			err = estErr
			return
		}
		if sess == nil {
			// nothing was exchanged, the configuration itself is bad
			_ = current.transport.Close()
			err = newSetupError(current.op, estErr)
		} else {
			_ = sess.Close()
			err = newHandshakeError(current.op, estErr)
		}
		h.state = handshakeFailed{cause: err}
		return
	case handshakeInProgress:
		contErr := current.session.Continue()
		if contErr == nil {
			s = newStream(current.session)
			return
		}
		if transport.IsWouldBlock(contErr) {
			h.state = current
			err = contErr
			return
		}
		_ = current.session.Close()
		err = newHandshakeError(current.op, contErr)
		h.state = handshakeFailed{cause: err}
		return
	case handshakeFailed:
		h.state = current
		err = current.cause
		return
	case handshakeCompleted:
		s = newStream(current.session)
		return
	case handshakeConsumed:
		panic("tlsio: handshake polled after completion")
	default:
		panic("tlsio: handshake was not constructed")
	}
}

// Close abandons the attempt and releases the transport without invoking any
// further engine operation. Safe at any suspension point; the attempt is
// consumed afterwards.
func (h *Handshake) Close() (err error) {
	state := h.state
	h.state = handshakeConsumed{}
	switch current := state.(type) {
	case handshakeStart:
		err = current.transport.Close()
	case handshakeInProgress:
		err = current.session.Close()
	case handshakeCompleted:
		err = current.session.Close()
	default:
		// failed or consumed attempts hold nothing
	}
	return
}
