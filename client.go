package tlsio

import (
	"github.com/brickingsoft/tlsio/session"
	"github.com/brickingsoft/tlsio/transport"
)

// Client constructs a client-role handshake attempt over t. serverName is
// the peer identity the engine verifies during the handshake; it is opaque
// to the driver and forwarded verbatim. No I/O happens until the first Poll.
//
// The attempt takes ownership of t.
func Client(engine session.ClientEngine, serverName string, t transport.Transport) *Handshake {
	return &Handshake{
		state: handshakeStart{
			establish: func() (session.Session, error) {
				return engine.Establish(serverName, t)
			},
			transport: t,
			op:        errMetaOpConnect,
		},
	}
}
