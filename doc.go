// Package tlsio drives a secure-transport engine over a non-blocking duplex
// channel without ever blocking the calling goroutine. A handshake attempt is
// created by Client or Server and stepped with Poll; each step either yields
// a ready Stream, fails permanently, or suspends with a would-block error
// carrying the readiness interest the caller's scheduler should wait for.
// The completed Stream re-enters the same retry discipline for reads, writes
// and the two-phase close-notify shutdown.
//
// tlsio performs no cryptography. The record protocol, trust validation and
// key exchange belong to the engine behind the session package; this package
// owns only the retry-driving shell around it.
package tlsio
