//go:build unix

package transport_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/brickingsoft/tlsio/transport"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (*transport.Socket, *transport.Socket) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal("socketpair:", err)
	}
	left, err := transport.NewSocket(fds[0])
	if err != nil {
		t.Fatal("left socket:", err)
	}
	right, err := transport.NewSocket(fds[1])
	if err != nil {
		t.Fatal("right socket:", err)
	}
	t.Cleanup(func() {
		_ = left.Close()
		_ = right.Close()
	})
	return left, right
}

func TestSocketRoundtrip(t *testing.T) {
	left, right := socketpair(t)

	n, err := left.Write([]byte("hello"))
	if n != 5 || err != nil {
		t.Fatal("write:", n, err)
	}
	buf := make([]byte, 8)
	n, err = right.Read(buf)
	if err != nil || !bytes.Equal(buf[:n], []byte("hello")) {
		t.Fatal("read:", n, err)
	}
}

func TestSocketReadWouldBlock(t *testing.T) {
	_, right := socketpair(t)

	buf := make([]byte, 8)
	_, err := right.Read(buf)
	if !transport.IsReadWouldBlock(err) {
		t.Fatal("empty read:", err)
	}
	if interest, ok := transport.InterestOf(err); !ok || interest != transport.ReadInterest {
		t.Error("interest:", interest, ok)
	}
}

func TestSocketEOF(t *testing.T) {
	left, right := socketpair(t)

	if _, err := left.Write([]byte("bye")); err != nil {
		t.Fatal("write:", err)
	}
	if err := left.Close(); err != nil {
		t.Fatal("close:", err)
	}
	if err := left.Close(); !transport.IsClosed(err) {
		t.Error("double close:", err)
	}

	buf := make([]byte, 8)
	n, err := right.Read(buf)
	if err != nil || !bytes.Equal(buf[:n], []byte("bye")) {
		t.Fatal("drain:", n, err)
	}
	if _, err = right.Read(buf); err != io.EOF {
		t.Error("read after peer close:", err)
	}
}
