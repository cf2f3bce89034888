// Package session tracks the single remote peer of the tunnel.
//
// The endpoint is held as an immutable snapshot behind an atomic pointer: the
// inbound pump swaps it, the outbound pump loads it, and no reader ever sees a
// half-written address. A session is bound exactly when an endpoint is set.
//
// In the server role every inbound sender is adopted as the new peer without
// any verification (last sender wins). This is a known limitation: anyone who
// can reach the listening port can redirect the outbound traffic.
package session

import (
	"net/netip"
	"sync/atomic"

	"github.com/irctrakz/udptun/pkg/core"
)

// PeerSession holds the current remote endpoint for one role.
type PeerSession struct {
	role core.Role
	peer atomic.Pointer[netip.AddrPort]
}

// NewServer returns an unbound server session.
func NewServer() *PeerSession {
	return &PeerSession{role: core.Server}
}

// NewClient returns a client session bound to target for its whole lifetime.
func NewClient(target netip.AddrPort) *PeerSession {
	s := &PeerSession{role: core.Client}
	s.SetPeer(target)
	return s
}

// Role returns the session role.
func (s *PeerSession) Role() core.Role { return s.role }

// SetPeer unconditionally replaces the peer and marks the session bound.
// It returns the previous peer and whether one was set.
func (s *PeerSession) SetPeer(ep netip.AddrPort) (netip.AddrPort, bool) {
	ep = Normalize(ep)
	old := s.peer.Swap(&ep)
	if old == nil {
		return netip.AddrPort{}, false
	}
	return *old, true
}

// Peer returns the current peer and whether the session is bound.
func (s *PeerSession) Peer() (netip.AddrPort, bool) {
	p := s.peer.Load()
	if p == nil {
		return netip.AddrPort{}, false
	}
	return *p, true
}

// IsBound reports whether a peer is known.
func (s *PeerSession) IsBound() bool {
	return s.peer.Load() != nil
}

// Accepts reports whether a datagram from sender may be delivered. A client
// accepts only its configured peer; a server accepts, and later adopts, anyone.
func (s *PeerSession) Accepts(sender netip.AddrPort) bool {
	if s.role == core.Server {
		return true
	}
	p := s.peer.Load()
	return p == nil || *p == Normalize(sender)
}

// Normalize unmaps IPv4-mapped IPv6 addresses so endpoints compare equal
// regardless of the socket family that produced them.
func Normalize(ep netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ep.Addr().Unmap(), ep.Port())
}
