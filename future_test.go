package tlsio_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/tlsio"
	"github.com/brickingsoft/tlsio/sessiontest"
	"github.com/brickingsoft/tlsio/transport"
)

func newExecutorsContext(t *testing.T) context.Context {
	t.Helper()
	exec, err := rxp.New()
	if err != nil {
		t.Fatal("rxp.New:", err)
	}
	t.Cleanup(func() {
		_ = exec.Close()
	})
	return rxp.With(context.Background(), exec)
}

func TestAsyncHandshake(t *testing.T) {
	ctx := newExecutorsContext(t)
	clientTransport, serverTransport := transport.Pipe()
	client := tlsio.Client(sessiontest.BoxClient{}, "async.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "async.test"}, serverTransport)

	clientFuture := client.Async(ctx, clientTransport)
	serverFuture := server.Async(ctx, serverTransport)

	ss, sErr := async.AwaitableFuture(serverFuture).Await()
	if sErr != nil {
		t.Fatal("server handshake:", sErr)
	}
	cs, cErr := async.AwaitableFuture(clientFuture).Await()
	if cErr != nil {
		t.Fatal("client handshake:", cErr)
	}

	if _, err := cs.Write([]byte("ping")); err != nil {
		t.Fatal("write:", err)
	}
	if err := cs.Flush(); err != nil {
		t.Fatal("flush:", err)
	}
	buf := make([]byte, 8)
	n, err := ss.Read(buf)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatal("read:", n, err)
	}
}

func TestAsyncHandshakeFailure(t *testing.T) {
	ctx := newExecutorsContext(t)
	clientTransport, serverTransport := transport.Pipe()
	client := tlsio.Client(sessiontest.BoxClient{}, "expected.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "other.test"}, serverTransport)

	clientFuture := client.Async(ctx, clientTransport)
	serverFuture := server.Async(ctx, serverTransport)

	_, _ = async.AwaitableFuture(serverFuture).Await()
	_, cErr := async.AwaitableFuture(clientFuture).Await()
	if !tlsio.IsHandshakeFailure(cErr) {
		t.Fatal("expected handshake failure, got:", cErr)
	}
	if !errors.Is(cErr, sessiontest.ErrIdentityMismatch) {
		t.Error("identity mismatch not surfaced:", cErr)
	}
}

func TestAsyncShutdown(t *testing.T) {
	ctx := newExecutorsContext(t)
	clientTransport, serverTransport := transport.Pipe()
	client := tlsio.Client(sessiontest.BoxClient{}, "bye.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "bye.test"}, serverTransport)

	cs, ss := driveBoth(t, client, server)

	clientFuture := cs.AsyncShutdown(ctx, clientTransport)
	serverFuture := ss.AsyncShutdown(ctx, serverTransport)

	if _, err := async.AwaitableFuture(serverFuture).Await(); err != nil {
		t.Fatal("server shutdown:", err)
	}
	if _, err := async.AwaitableFuture(clientFuture).Await(); err != nil {
		t.Fatal("client shutdown:", err)
	}
}
