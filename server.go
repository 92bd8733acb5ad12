package tlsio

import (
	"github.com/brickingsoft/tlsio/session"
	"github.com/brickingsoft/tlsio/transport"
)

// Server constructs a server-role handshake attempt over t, typically right
// after the connection was accepted. No I/O happens until the first Poll.
//
// The attempt takes ownership of t.
func Server(engine session.ServerEngine, t transport.Transport) *Handshake {
	return &Handshake{
		state: handshakeStart{
			establish: func() (session.Session, error) {
				return engine.Establish(t)
			},
			transport: t,
			op:        errMetaOpAccept,
		},
	}
}
