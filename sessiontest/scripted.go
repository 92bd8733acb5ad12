// Package sessiontest provides secure-session engines for exercising the
// tlsio driver: Scripted engines replay fixed outcome sequences and account
// for every engine invocation, Box engines run a real (deliberately tiny)
// encrypted record protocol with resumable partial I/O.
package sessiontest

import (
	"github.com/brickingsoft/tlsio/session"
	"github.com/brickingsoft/tlsio/transport"
)

// IOResult scripts one Read or Write call on a ScriptedSession.
type IOResult struct {
	N    int
	Data []byte
	Err  error
}

// ShutdownOutcome scripts one Shutdown call on a ScriptedSession.
type ShutdownOutcome struct {
	Result session.ShutdownResult
	Err    error
}

// ScriptedEngine replays Handshake one entry per step: a nil entry completes
// the handshake, a would-block sentinel suspends it, anything else fails it
// hard. An exhausted script completes. The engine never touches the
// transport, so tests can assert that suspended steps moved no bytes.
type ScriptedEngine struct {
	Handshake []error
	// SetupFailure, when set, makes Establish fail before a session exists.
	SetupFailure error

	// accounting
	ServerName    string
	Steps         int
	OpsAfterClose int
	Session       *ScriptedSession
}

func (e *ScriptedEngine) establish(t transport.Transport) (session.Session, error) {
	e.Steps++
	if e.SetupFailure != nil {
		return nil, e.SetupFailure
	}
	s := &ScriptedSession{engine: e, transport: t}
	e.Session = s
	if out := e.next(); out != nil {
		return s, out
	}
	return s, nil
}

func (e *ScriptedEngine) next() error {
	if len(e.Handshake) == 0 {
		return nil
	}
	out := e.Handshake[0]
	e.Handshake = e.Handshake[1:]
	return out
}

type ScriptedClient struct {
	ScriptedEngine
}

func (c *ScriptedClient) Establish(serverName string, t transport.Transport) (session.Session, error) {
	c.ServerName = serverName
	return c.establish(t)
}

type ScriptedServer struct {
	ScriptedEngine
}

func (s *ScriptedServer) Establish(t transport.Transport) (session.Session, error) {
	return s.establish(t)
}

// ScriptedSession replays per-operation scripts. Exhausted scripts fall back
// to neutral outcomes: reads would-block, writes consume everything,
// shutdowns report the peer's close-notify.
type ScriptedSession struct {
	engine    *ScriptedEngine
	transport transport.Transport

	ReadScript     []IOResult
	WriteScript    []IOResult
	FlushScript    []error
	ShutdownScript []ShutdownOutcome

	Closed        bool
	ShutdownCalls int
}

func (s *ScriptedSession) Continue() (err error) {
	if s.Closed {
		s.engine.OpsAfterClose++
		err = transport.ErrClosed
		return
	}
	s.engine.Steps++
	err = s.engine.next()
	return
}

func (s *ScriptedSession) Read(p []byte) (n int, err error) {
	if s.Closed {
		s.engine.OpsAfterClose++
		err = transport.ErrClosed
		return
	}
	if len(s.ReadScript) == 0 {
		err = transport.ErrReadWouldBlock
		return
	}
	entry := s.ReadScript[0]
	s.ReadScript = s.ReadScript[1:]
	n = copy(p, entry.Data)
	err = entry.Err
	return
}

func (s *ScriptedSession) Write(p []byte) (n int, err error) {
	if s.Closed {
		s.engine.OpsAfterClose++
		err = transport.ErrClosed
		return
	}
	if len(s.WriteScript) == 0 {
		n = len(p)
		return
	}
	entry := s.WriteScript[0]
	s.WriteScript = s.WriteScript[1:]
	n = entry.N
	if n > len(p) {
		n = len(p)
	}
	err = entry.Err
	return
}

func (s *ScriptedSession) Flush() (err error) {
	if s.Closed {
		s.engine.OpsAfterClose++
		err = transport.ErrClosed
		return
	}
	if len(s.FlushScript) == 0 {
		return
	}
	err = s.FlushScript[0]
	s.FlushScript = s.FlushScript[1:]
	return
}

func (s *ScriptedSession) Shutdown() (result session.ShutdownResult, err error) {
	if s.Closed {
		s.engine.OpsAfterClose++
		err = transport.ErrClosed
		return
	}
	s.ShutdownCalls++
	if len(s.ShutdownScript) == 0 {
		result = session.ShutdownReceived
		return
	}
	entry := s.ShutdownScript[0]
	s.ShutdownScript = s.ShutdownScript[1:]
	result, err = entry.Result, entry.Err
	return
}

func (s *ScriptedSession) Close() (err error) {
	if s.Closed {
		err = transport.ErrClosed
		return
	}
	s.Closed = true
	err = s.transport.Close()
	return
}
