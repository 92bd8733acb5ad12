package tlsio

import (
	"context"

	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/tlsio/transport"
)

// Async resolves the handshake as a future. The attempt is polled
// immediately; every suspension re-arms a single-shot readiness registration
// and the next poll runs when ready fires. The returned future succeeds with
// the stream, or fails with the terminal handshake error or the readiness
// cause.
//
// Requires rxp executors in ctx, the same way the rest of the rxp async
// surface does: ctx = rxp.With(ctx, rxp.New()).
func (h *Handshake) Async(ctx context.Context, ready transport.Readiness) (future async.Future[*Stream]) {
	promise, promiseErr := async.Make[*Stream](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[*Stream](ctx, promiseErr)
		return
	}
	future = promise.Future()

	var step func()
	step = func() {
		s, err := h.Poll()
		if err == nil {
			promise.Succeed(s)
			return
		}
		if interest, suspended := transport.InterestOf(err); suspended {
			ready.Register(interest, func(cause error) {
				if cause != nil {
					_ = h.Close()
					promise.Fail(cause)
					return
				}
				step()
			})
			return
		}
		promise.Fail(err)
	}
	step()
	return
}

// AsyncShutdown resolves the stream's graceful close sequence as a future,
// re-polling Shutdown from readiness callbacks the same way Async does for
// the handshake.
func (s *Stream) AsyncShutdown(ctx context.Context, ready transport.Readiness) (future async.Future[async.Void]) {
	promise, promiseErr := async.Make[async.Void](ctx, async.WithWait())
	if promiseErr != nil {
		future = async.FailedImmediately[async.Void](ctx, promiseErr)
		return
	}
	future = promise.Future()

	var step func()
	step = func() {
		err := s.Shutdown()
		if err == nil {
			promise.Succeed(async.Void{})
			return
		}
		if interest, suspended := transport.InterestOf(err); suspended {
			ready.Register(interest, func(cause error) {
				if cause != nil {
					promise.Fail(cause)
					return
				}
				step()
			})
			return
		}
		promise.Fail(err)
	}
	step()
	return
}
