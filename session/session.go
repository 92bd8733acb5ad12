// Package session defines the contract between the tlsio driver and the
// secure-transport engine it drives. The engine owns the record protocol,
// certificate validation and all cryptography; the driver only schedules the
// engine's operations across would-block suspensions. Engines signal
// suspension with the transport sentinels (transport.ErrReadWouldBlock,
// transport.ErrWriteWouldBlock) and must preserve all progress across a
// suspended call: stepping again never re-processes or drops bytes.
package session

import (
	"github.com/brickingsoft/tlsio/transport"
)

// ShutdownResult reports how far the graceful close sequence has advanced.
type ShutdownResult uint8

const (
	// ShutdownSent means the local close-notify went out but the peer's has
	// not been observed yet.
	ShutdownSent ShutdownResult = iota + 1
	// ShutdownReceived means the peer's close-notify has been observed.
	ShutdownReceived
)

// Session is an establishing or established secure session. Every operation
// either completes, fails permanently, or reports would-block; a would-block
// call left the session in a resumable state and the same operation is
// retried once the transport is ready.
//
// A Session is exclusively owned and stepped by one logical task at a time.
type Session interface {
	// Continue drives a partially completed handshake one step further.
	// nil means the handshake finished.
	Continue() (err error)
	// Read delivers decrypted application bytes. io.EOF reports the end of
	// the peer's data, whether announced by close-notify or by a clean
	// transport EOF.
	Read(p []byte) (n int, err error)
	// Write encrypts and queues application bytes. A would-block return
	// consumed nothing; the caller retries with the same bytes.
	Write(p []byte) (n int, err error)
	// Flush drains bytes the session has queued toward the transport.
	Flush() (err error)
	// Shutdown advances the graceful close sequence one step.
	Shutdown() (result ShutdownResult, err error)
	// Close releases the underlying transport without further protocol
	// activity. Safe at any point, including mid-handshake.
	Close() (err error)
}

// ClientEngine produces client-role sessions. serverName is the peer
// identity the engine verifies against; the driver forwards it verbatim.
//
// Establish performs the first handshake step: (s, nil) completed
// immediately, (s, would-block) is in progress and continued via s.Continue,
// (nil, err) means the configuration could not become a session at all.
type ClientEngine interface {
	Establish(serverName string, t transport.Transport) (s Session, err error)
}

// ServerEngine produces server-role sessions, with the same Establish
// outcomes as ClientEngine.
type ServerEngine interface {
	Establish(t transport.Transport) (s Session, err error)
}
