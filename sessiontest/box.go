package sessiontest

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlsio/session"
	"github.com/brickingsoft/tlsio/transport"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// Box engines speak a deliberately small encrypted-record protocol so driver
// tests exercise genuine partial I/O and cryptography without a TLS stack:
// both sides swap X25519 public keys, derive one ChaCha20-Poly1305 key per
// direction, and exchange records framed by a 2-byte big-endian ciphertext
// length. The high bit of the frame marks close-notify. The server's first
// record is its identity, which the client checks against the requested
// server name. Every operation resumes cleanly after a would-block.
//
// This is not TLS and must never leave test code.

const (
	boxKeySize   = 32
	boxMaxPlain  = 4096
	boxCloseFlag = uint16(0x8000)
)

var (
	ErrIdentityMismatch = errors.Define("sessiontest: server identity mismatch")
	errTruncatedRecord  = errors.Define("sessiontest: truncated record")
	errMalformedRecord  = errors.Define("sessiontest: malformed record")
)

type BoxClient struct{}

func (BoxClient) Establish(serverName string, t transport.Transport) (session.Session, error) {
	s, err := newBoxSession(t, true, serverName)
	if err != nil {
		return nil, err
	}
	if stepErr := s.Continue(); stepErr != nil {
		return s, stepErr
	}
	return s, nil
}

// BoxServer presents Identity to connecting clients.
type BoxServer struct {
	Identity string
}

func (e BoxServer) Establish(t transport.Transport) (session.Session, error) {
	s, err := newBoxSession(t, false, e.Identity)
	if err != nil {
		return nil, err
	}
	if stepErr := s.Continue(); stepErr != nil {
		return s, stepErr
	}
	return s, nil
}

const (
	boxStageSendKey = iota
	boxStageRecvKey
	boxStageIdentity
	boxStageEstablished
)

type boxSession struct {
	t        transport.Transport
	isClient bool
	name     string

	stage    int
	priv     []byte
	pub      []byte
	sendSeal cipher.AEAD
	recvSeal cipher.AEAD
	sendSeq  uint64
	recvSeq  uint64

	// resumable I/O state: out drains across suspended writes, in
	// accumulates until need bytes arrived
	out      []byte
	outDone  int
	in       []byte
	need     int
	needBody bool

	plain        []byte
	pendingWrite int

	closeQueued   bool
	closeSent     bool
	closeReceived bool
	peerEOF       bool
	closed        bool
}

func newBoxSession(t transport.Transport, isClient bool, name string) (*boxSession, error) {
	priv := make([]byte, boxKeySize)
	if _, err := rand.Read(priv); err != nil {
		return nil, errors.New("sessiontest: key generation failed", errors.WithWrap(err))
	}
	pub, pubErr := curve25519.X25519(priv, curve25519.Basepoint)
	if pubErr != nil {
		return nil, errors.New("sessiontest: key generation failed", errors.WithWrap(pubErr))
	}
	s := &boxSession{t: t, isClient: isClient, name: name, priv: priv, pub: pub}
	if isClient {
		s.stage = boxStageSendKey
		s.out = append([]byte(nil), pub...)
	} else {
		s.stage = boxStageRecvKey
		s.need = boxKeySize
	}
	return s, nil
}

func (s *boxSession) Continue() (err error) {
	if s.closed {
		err = transport.ErrClosed
		return
	}
	for {
		switch s.stage {
		case boxStageSendKey:
			if err = s.flush(); err != nil {
				return
			}
			if s.isClient {
				s.stage = boxStageRecvKey
				s.need = boxKeySize
			} else {
				s.out = s.sealRecord([]byte(s.name))
				s.stage = boxStageIdentity
			}
		case boxStageRecvKey:
			if err = s.fill(); err != nil {
				if errors.Is(err, io.EOF) {
					err = errors.From(errTruncatedRecord, errors.WithWrap(io.ErrUnexpectedEOF))
				}
				return
			}
			peer := s.in
			s.in = nil
			s.need = 0
			if err = s.deriveKeys(peer); err != nil {
				return
			}
			if s.isClient {
				s.stage = boxStageIdentity
			} else {
				s.out = append([]byte(nil), s.pub...)
				s.stage = boxStageSendKey
			}
		case boxStageIdentity:
			if s.isClient {
				var identity []byte
				if identity, err = s.readRecord(); err != nil {
					if errors.Is(err, io.EOF) {
						err = errors.From(errTruncatedRecord, errors.WithWrap(io.ErrUnexpectedEOF))
					}
					return
				}
				if s.closeReceived {
					err = errors.From(errMalformedRecord, errors.WithWrap(errors.New("sessiontest: close before handshake finished")))
					return
				}
				if s.name != "" && string(identity) != s.name {
					err = errors.From(
						ErrIdentityMismatch,
						errors.WithMeta("want", s.name),
						errors.WithMeta("got", string(identity)),
					)
					return
				}
			} else {
				if err = s.flush(); err != nil {
					return
				}
			}
			s.stage = boxStageEstablished
			return
		case boxStageEstablished:
			return
		}
	}
}

// deriveKeys turns the shared secret into one key per direction, so the two
// record counters never share a nonce space.
func (s *boxSession) deriveKeys(peer []byte) (err error) {
	shared, sharedErr := curve25519.X25519(s.priv, peer)
	if sharedErr != nil {
		err = errors.New("sessiontest: key agreement failed", errors.WithWrap(sharedErr))
		return
	}
	clientKey := sha256.Sum256(append(shared, 'c'))
	serverKey := sha256.Sum256(append(shared, 's'))
	clientSeal, clientErr := chacha20poly1305.New(clientKey[:])
	if clientErr != nil {
		err = clientErr
		return
	}
	serverSeal, serverErr := chacha20poly1305.New(serverKey[:])
	if serverErr != nil {
		err = serverErr
		return
	}
	if s.isClient {
		s.sendSeal, s.recvSeal = clientSeal, serverSeal
	} else {
		s.sendSeal, s.recvSeal = serverSeal, clientSeal
	}
	return
}

func (s *boxSession) Read(p []byte) (n int, err error) {
	if s.closed {
		err = transport.ErrClosed
		return
	}
	for {
		if len(s.plain) > 0 {
			n = copy(p, s.plain)
			s.plain = s.plain[n:]
			if len(s.plain) == 0 {
				s.plain = nil
			}
			return
		}
		if s.closeReceived || s.peerEOF {
			err = io.EOF
			return
		}
		var record []byte
		if record, err = s.readRecord(); err != nil {
			return
		}
		if s.closeReceived {
			err = io.EOF
			return
		}
		s.plain = record
	}
}

func (s *boxSession) Write(p []byte) (n int, err error) {
	if s.closed {
		err = transport.ErrClosed
		return
	}
	if s.closeQueued {
		err = errors.New("sessiontest: write after shutdown")
		return
	}
	if s.out != nil {
		if err = s.flush(); err != nil {
			return
		}
	}
	if s.pendingWrite > 0 {
		// the record a suspended write queued has drained now
		n = s.pendingWrite
		s.pendingWrite = 0
		return
	}
	if len(p) == 0 {
		return
	}
	chunk := p
	if len(chunk) > boxMaxPlain {
		chunk = chunk[:boxMaxPlain]
	}
	s.out = s.sealRecord(chunk)
	s.pendingWrite = len(chunk)
	if err = s.flush(); err != nil {
		return
	}
	n = s.pendingWrite
	s.pendingWrite = 0
	return
}

func (s *boxSession) Flush() (err error) {
	if s.closed {
		err = transport.ErrClosed
		return
	}
	if s.out == nil {
		return
	}
	err = s.flush()
	return
}

func (s *boxSession) Shutdown() (result session.ShutdownResult, err error) {
	if s.closed {
		err = transport.ErrClosed
		return
	}
	if !s.closeSent {
		if !s.closeQueued {
			if s.out != nil {
				if err = s.flush(); err != nil {
					result, err = s.shutdownSendFailure(err)
					return
				}
				s.pendingWrite = 0
			}
			closeFrame := make([]byte, 2)
			binary.BigEndian.PutUint16(closeFrame, boxCloseFlag)
			s.out = closeFrame
			s.closeQueued = true
		}
		if err = s.flush(); err != nil {
			result, err = s.shutdownSendFailure(err)
			return
		}
		s.closeSent = true
		result = session.ShutdownSent
		return
	}
	if s.closeReceived {
		result = session.ShutdownReceived
		return
	}
	if s.peerEOF {
		err = io.EOF
		return
	}
	for {
		var record []byte
		if record, err = s.readRecord(); err != nil {
			return
		}
		if s.closeReceived {
			result = session.ShutdownReceived
			return
		}
		// application data racing the close stays readable
		if len(record) > 0 {
			s.plain = append(s.plain, record...)
		}
	}
}

func (s *boxSession) shutdownSendFailure(cause error) (result session.ShutdownResult, err error) {
	if transport.IsWouldBlock(cause) {
		err = cause
		return
	}
	if transport.IsClosed(cause) || errors.Is(cause, io.EOF) {
		// the peer already tore the transport down
		s.peerEOF = true
		err = io.EOF
		return
	}
	err = cause
	return
}

func (s *boxSession) Close() (err error) {
	if s.closed {
		err = transport.ErrClosed
		return
	}
	s.closed = true
	err = s.t.Close()
	return
}

// flush drains out toward the transport, keeping the drained offset across
// suspensions.
func (s *boxSession) flush() (err error) {
	for s.outDone < len(s.out) {
		var n int
		n, err = s.t.Write(s.out[s.outDone:])
		s.outDone += n
		if err != nil {
			return
		}
	}
	s.out = nil
	s.outDone = 0
	return
}

// fill accumulates inbound bytes until need is satisfied, keeping partial
// progress across suspensions.
func (s *boxSession) fill() (err error) {
	for len(s.in) < s.need {
		buf := make([]byte, s.need-len(s.in))
		var n int
		n, err = s.t.Read(buf)
		s.in = append(s.in, buf[:n]...)
		if err != nil {
			return
		}
	}
	return
}

// readRecord reads the next frame. A close-notify frame sets closeReceived
// and yields a nil record. A clean transport EOF on a frame boundary sets
// peerEOF and returns io.EOF; EOF inside a frame is a truncation failure.
func (s *boxSession) readRecord() (plain []byte, err error) {
	for {
		if !s.needBody {
			if s.need == 0 {
				s.need = 2
			}
			if err = s.fill(); err != nil {
				err = s.readFailure(err)
				return
			}
			header := binary.BigEndian.Uint16(s.in)
			s.in = nil
			s.need = 0
			if header&boxCloseFlag != 0 {
				s.closeReceived = true
				return
			}
			if header == 0 || int(header) > boxMaxPlain+s.recvSeal.Overhead() {
				err = errors.From(errMalformedRecord)
				return
			}
			s.needBody = true
			s.need = int(header)
			continue
		}
		if err = s.fill(); err != nil {
			err = s.readFailure(err)
			return
		}
		ciphertext := s.in
		s.in = nil
		s.need = 0
		s.needBody = false
		nonce := boxNonce(s.recvSeq)
		s.recvSeq++
		plain, err = s.recvSeal.Open(nil, nonce[:], ciphertext, nil)
		if err != nil {
			err = errors.New("sessiontest: record authentication failed", errors.WithWrap(err))
		}
		return
	}
}

func (s *boxSession) readFailure(cause error) error {
	if !errors.Is(cause, io.EOF) {
		return cause
	}
	if !s.needBody && len(s.in) == 0 {
		s.peerEOF = true
		return io.EOF
	}
	return errors.From(errTruncatedRecord, errors.WithWrap(io.ErrUnexpectedEOF))
}

func (s *boxSession) sealRecord(plain []byte) []byte {
	nonce := boxNonce(s.sendSeq)
	s.sendSeq++
	ciphertext := s.sendSeal.Seal(nil, nonce[:], plain, nil)
	record := make([]byte, 2+len(ciphertext))
	binary.BigEndian.PutUint16(record, uint16(len(ciphertext)))
	copy(record[2:], ciphertext)
	return record
}

func boxNonce(seq uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], seq)
	return nonce
}
