package transport

import (
	"io"
	"sync"
	"sync/atomic"
)

const DefaultPipeBufferSize = 4096

// Pipe creates a connected in-memory transport pair. Each direction is a
// bounded buffer: reads on an empty direction and writes on a full one report
// the would-block sentinels instead of blocking. Both ends implement
// Readiness, firing registered callbacks when the matching direction becomes
// usable again.
func Pipe() (*PipeConn, *PipeConn) {
	return PipeSize(DefaultPipeBufferSize)
}

// PipeSize is like Pipe with an explicit per-direction buffer capacity.
func PipeSize(size int) (*PipeConn, *PipeConn) {
	if size <= 0 {
		size = DefaultPipeBufferSize
	}
	left := newPipeBuffer(size)
	right := newPipeBuffer(size)
	return &PipeConn{in: left, out: right}, &PipeConn{in: right, out: left}
}

type PipeConn struct {
	in     *pipeBuffer
	out    *pipeBuffer
	closed atomic.Bool
}

func (conn *PipeConn) Read(p []byte) (n int, err error) {
	n, err = conn.in.read(p)
	return
}

func (conn *PipeConn) Write(p []byte) (n int, err error) {
	n, err = conn.out.write(p)
	return
}

// Close tears down both directions. The peer drains what was already written
// and then observes a clean EOF; peer writes fail with ErrClosed.
func (conn *PipeConn) Close() (err error) {
	if !conn.closed.CompareAndSwap(false, true) {
		err = ErrClosed
		return
	}
	conn.out.closeWrite()
	conn.in.closeRead()
	return
}

func (conn *PipeConn) Register(interest Interest, handler func(cause error)) {
	switch interest {
	case ReadInterest:
		conn.in.onReadable(handler)
	case WriteInterest:
		conn.out.onWritable(handler)
	default:
		panic("transport: register with unknown interest")
	}
}

func newPipeBuffer(size int) *pipeBuffer {
	return &pipeBuffer{data: make([]byte, size)}
}

// pipeBuffer is one direction of a pipe: a fixed ring plus the waiters of
// both endpoints. It is the only shared state between the two ends, so it
// carries the lock.
type pipeBuffer struct {
	mu           sync.Mutex
	data         []byte
	head         int
	length       int
	writeClosed  bool
	readClosed   bool
	readWaiters  []func(cause error)
	writeWaiters []func(cause error)
}

func (b *pipeBuffer) read(p []byte) (n int, err error) {
	b.mu.Lock()
	if b.readClosed {
		b.mu.Unlock()
		err = ErrClosed
		return
	}
	if b.length == 0 {
		writeClosed := b.writeClosed
		b.mu.Unlock()
		if writeClosed {
			err = io.EOF
			return
		}
		err = ErrReadWouldBlock
		return
	}
	n = copy(p, b.peek())
	if rest := b.length - n; rest > 0 && n < len(p) {
		n += copy(p[n:], b.data[:rest])
	}
	b.head = (b.head + n) % len(b.data)
	b.length -= n
	waiters := b.writeWaiters
	b.writeWaiters = nil
	b.mu.Unlock()
	fireWaiters(waiters, nil)
	return
}

// peek returns the contiguous leading segment of the buffered bytes.
func (b *pipeBuffer) peek() []byte {
	end := b.head + b.length
	if end > len(b.data) {
		end = len(b.data)
	}
	return b.data[b.head:end]
}

func (b *pipeBuffer) write(p []byte) (n int, err error) {
	b.mu.Lock()
	if b.writeClosed || b.readClosed {
		b.mu.Unlock()
		err = ErrClosed
		return
	}
	free := len(b.data) - b.length
	if free == 0 {
		b.mu.Unlock()
		err = ErrWriteWouldBlock
		return
	}
	if len(p) > free {
		p = p[:free]
	}
	tail := (b.head + b.length) % len(b.data)
	n = copy(b.data[tail:], p)
	if n < len(p) {
		n += copy(b.data, p[n:])
	}
	b.length += n
	waiters := b.readWaiters
	b.readWaiters = nil
	b.mu.Unlock()
	fireWaiters(waiters, nil)
	return
}

func (b *pipeBuffer) closeWrite() {
	b.mu.Lock()
	b.writeClosed = true
	readWaiters := b.readWaiters
	writeWaiters := b.writeWaiters
	b.readWaiters = nil
	b.writeWaiters = nil
	b.mu.Unlock()
	// buffered bytes then EOF become readable, so readers wake cleanly
	fireWaiters(readWaiters, nil)
	fireWaiters(writeWaiters, ErrClosed)
}

func (b *pipeBuffer) closeRead() {
	b.mu.Lock()
	b.readClosed = true
	readWaiters := b.readWaiters
	writeWaiters := b.writeWaiters
	b.readWaiters = nil
	b.writeWaiters = nil
	b.mu.Unlock()
	fireWaiters(readWaiters, ErrClosed)
	fireWaiters(writeWaiters, ErrClosed)
}

func (b *pipeBuffer) onReadable(handler func(cause error)) {
	b.mu.Lock()
	if b.readClosed {
		b.mu.Unlock()
		handler(ErrClosed)
		return
	}
	if b.length > 0 || b.writeClosed {
		b.mu.Unlock()
		handler(nil)
		return
	}
	b.readWaiters = append(b.readWaiters, handler)
	b.mu.Unlock()
}

func (b *pipeBuffer) onWritable(handler func(cause error)) {
	b.mu.Lock()
	if b.writeClosed || b.readClosed {
		b.mu.Unlock()
		handler(ErrClosed)
		return
	}
	if b.length < len(b.data) {
		b.mu.Unlock()
		handler(nil)
		return
	}
	b.writeWaiters = append(b.writeWaiters, handler)
	b.mu.Unlock()
}

func fireWaiters(waiters []func(cause error), cause error) {
	for _, waiter := range waiters {
		waiter(cause)
	}
}
