package tlsio

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlsio/transport"
)

var (
	ErrSetup     = errors.Define("tlsio: setup failed")
	ErrHandshake = errors.Define("tlsio: handshake failed")
	ErrShutdown  = errors.Define("tlsio: shutdown failed")
	ErrClosed    = errors.Define("tlsio: use of closed connection")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "tlsio"
)

const (
	errMetaOpKey      = "op"
	errMetaOpConnect  = "connect"
	errMetaOpAccept   = "accept"
	errMetaOpShutdown = "shutdown"
)

// IsSetupFailure reports whether the session configuration could not be
// turned into an active session before any bytes were exchanged.
func IsSetupFailure(err error) bool {
	return errors.Is(err, ErrSetup)
}

// IsHandshakeFailure reports whether the engine failed the handshake after
// interaction with the peer had begun. The engine's diagnostic stays
// reachable through the wrap chain.
func IsHandshakeFailure(err error) bool {
	return errors.Is(err, ErrHandshake)
}

func IsShutdownFailure(err error) bool {
	return errors.Is(err, ErrShutdown)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, transport.ErrClosed)
}

// IsWouldBlock reports whether err is a suspension signal rather than a
// failure: retry the same operation once the transport is ready.
func IsWouldBlock(err error) bool {
	return transport.IsWouldBlock(err)
}

// InterestOf extracts the readiness interest of a suspension signal.
func InterestOf(err error) (interest transport.Interest, ok bool) {
	interest, ok = transport.InterestOf(err)
	return
}

func newSetupError(op string, cause error) error {
	return errors.From(
		ErrSetup,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(cause),
	)
}

func newHandshakeError(op string, cause error) error {
	return errors.From(
		ErrHandshake,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(cause),
	)
}

func newShutdownError(cause error) error {
	return errors.From(
		ErrShutdown,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpShutdown),
		errors.WithWrap(cause),
	)
}
