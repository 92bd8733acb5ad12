package tlsio_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/brickingsoft/tlsio"
	"github.com/brickingsoft/tlsio/sessiontest"
	"github.com/brickingsoft/tlsio/transport"
)

func driveBoth(t *testing.T, client *tlsio.Handshake, server *tlsio.Handshake) (cs *tlsio.Stream, ss *tlsio.Stream) {
	t.Helper()
	for i := 0; i < 100 && (cs == nil || ss == nil); i++ {
		if cs == nil {
			s, err := client.Poll()
			if err == nil {
				cs = s
			} else if !tlsio.IsWouldBlock(err) {
				t.Fatal("client handshake:", err)
			}
		}
		if ss == nil {
			s, err := server.Poll()
			if err == nil {
				ss = s
			} else if !tlsio.IsWouldBlock(err) {
				t.Fatal("server handshake:", err)
			}
		}
	}
	if cs == nil || ss == nil {
		t.Fatal("handshake made no progress")
	}
	return
}

// relay pumps payload from w to r, polling both ends past suspensions, and
// reports how often the writer suspended.
func relay(t *testing.T, w *tlsio.Stream, r *tlsio.Stream, payload []byte) (suspended int) {
	t.Helper()
	sent := 0
	var got []byte
	buf := make([]byte, 96)
	for i := 0; i < 10000 && (sent < len(payload) || len(got) < len(payload)); i++ {
		if sent < len(payload) {
			n, err := w.Write(payload[sent:])
			sent += n
			if err != nil {
				if !tlsio.IsWouldBlock(err) {
					t.Fatal("write:", err)
				}
				suspended++
			}
		}
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil && !tlsio.IsWouldBlock(err) {
			t.Fatal("read:", err)
		}
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload corrupted in transit")
	}
	return
}

func TestBoxEcho(t *testing.T) {
	// tiny buffers force writes to drain across several suspensions
	clientTransport, serverTransport := transport.PipeSize(64)
	client := tlsio.Client(sessiontest.BoxClient{}, "echo.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "echo.test"}, serverTransport)

	cs, ss := driveBoth(t, client, server)

	payload := make([]byte, 200)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	if suspended := relay(t, cs, ss, payload); suspended == 0 {
		t.Error("expected suspended writes with a 64 byte pipe")
	}
	// echo back
	relay(t, ss, cs, payload)

	if err := cs.Flush(); err != nil {
		t.Error("flush:", err)
	}
}

func TestBoxShutdownExchange(t *testing.T) {
	clientTransport, serverTransport := transport.Pipe()
	client := tlsio.Client(sessiontest.BoxClient{}, "close.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "close.test"}, serverTransport)

	cs, ss := driveBoth(t, client, server)

	clientDone, serverDone := false, false
	for i := 0; i < 100 && (!clientDone || !serverDone); i++ {
		if !clientDone {
			if err := cs.Shutdown(); err == nil {
				clientDone = true
			} else if !tlsio.IsWouldBlock(err) {
				t.Fatal("client shutdown:", err)
			}
		}
		if !serverDone {
			if err := ss.Shutdown(); err == nil {
				serverDone = true
			} else if !tlsio.IsWouldBlock(err) {
				t.Fatal("server shutdown:", err)
			}
		}
	}
	if !clientDone || !serverDone {
		t.Fatal("shutdown made no progress")
	}

	buf := make([]byte, 1)
	if _, err := cs.Read(buf); err != io.EOF {
		t.Error("read after shutdown:", err)
	}
}

func TestBoxShutdownPeerVanished(t *testing.T) {
	clientTransport, serverTransport := transport.Pipe()
	client := tlsio.Client(sessiontest.BoxClient{}, "gone.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "gone.test"}, serverTransport)

	cs, ss := driveBoth(t, client, server)

	// the peer tears the transport down with no close-notify
	if err := ss.Close(); err != nil {
		t.Fatal("peer close:", err)
	}

	done := false
	for i := 0; i < 100 && !done; i++ {
		err := cs.Shutdown()
		if err == nil {
			done = true
		} else if !tlsio.IsWouldBlock(err) {
			t.Fatal("shutdown against vanished peer:", err)
		}
	}
	if !done {
		t.Fatal("shutdown made no progress")
	}
}

func TestBoxIdentityMismatch(t *testing.T) {
	clientTransport, serverTransport := transport.Pipe()
	client := tlsio.Client(sessiontest.BoxClient{}, "alpha.test", clientTransport)
	server := tlsio.Server(sessiontest.BoxServer{Identity: "beta.test"}, serverTransport)

	var clientErr error
	for i := 0; i < 100 && clientErr == nil; i++ {
		if _, err := client.Poll(); err != nil {
			if tlsio.IsWouldBlock(err) {
				continue
			}
			clientErr = err
			break
		}
		if _, err := server.Poll(); err != nil && !tlsio.IsWouldBlock(err) {
			t.Fatal("server handshake:", err)
		}
	}
	if !tlsio.IsHandshakeFailure(clientErr) {
		t.Fatal("expected handshake failure, got:", clientErr)
	}
	if !errors.Is(clientErr, sessiontest.ErrIdentityMismatch) {
		t.Error("identity mismatch not surfaced:", clientErr)
	}
}
