package transport

import (
	"github.com/brickingsoft/errors"
)

// Interest names the readiness event a suspended operation is waiting for.
type Interest uint8

const (
	ReadInterest Interest = iota + 1
	WriteInterest
)

func (interest Interest) String() string {
	switch interest {
	case ReadInterest:
		return "read"
	case WriteInterest:
		return "write"
	default:
		return "unknown"
	}
}

var (
	ErrReadWouldBlock  = errors.Define("transport: read would block")
	ErrWriteWouldBlock = errors.Define("transport: write would block")
	ErrClosed          = errors.Define("transport: use of closed transport")
)

// Transport is a duplex byte channel with non-blocking semantics.
//
// Read reports ErrReadWouldBlock when no bytes are available yet and io.EOF
// at a clean end of input. Write reports ErrWriteWouldBlock when no buffer
// space is available. Both conditions are transient: the same call succeeds
// once the channel signals readiness for the matching Interest. Every other
// error is a channel fault.
//
// A Transport is exclusively owned. Ownership transfers between holders, it
// is never shared.
type Transport interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() (err error)
}

// Readiness registers a single-shot callback fired once the channel becomes
// ready for the given interest, or with a cause when it no longer can.
// Registration does not stack: a suspended operation re-registers on every
// suspension.
type Readiness interface {
	Register(interest Interest, handler func(cause error))
}

func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrReadWouldBlock) || errors.Is(err, ErrWriteWouldBlock)
}

func IsReadWouldBlock(err error) bool {
	return errors.Is(err, ErrReadWouldBlock)
}

func IsWriteWouldBlock(err error) bool {
	return errors.Is(err, ErrWriteWouldBlock)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// InterestOf extracts the readiness interest a would-block error is waiting
// for. ok is false when err is not a would-block condition.
func InterestOf(err error) (interest Interest, ok bool) {
	if errors.Is(err, ErrReadWouldBlock) {
		interest, ok = ReadInterest, true
		return
	}
	if errors.Is(err, ErrWriteWouldBlock) {
		interest, ok = WriteInterest, true
		return
	}
	return
}
