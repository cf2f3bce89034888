package session

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/udptun/pkg/core"
)

var (
	peerA = netip.MustParseAddrPort("10.0.0.2:40000")
	peerB = netip.MustParseAddrPort("10.0.0.3:40001")
)

func TestServerStartsUnbound(t *testing.T) {
	s := NewServer()
	assert.Equal(t, core.Server, s.Role())
	assert.False(t, s.IsBound())

	_, ok := s.Peer()
	assert.False(t, ok)
}

func TestServerAcceptsAndAdoptsAnySender(t *testing.T) {
	s := NewServer()
	assert.True(t, s.Accepts(peerA))

	_, had := s.SetPeer(peerA)
	assert.False(t, had)
	assert.True(t, s.IsBound())

	assert.True(t, s.Accepts(peerB))
	old, had := s.SetPeer(peerB)
	assert.True(t, had)
	assert.Equal(t, peerA, old)

	cur, ok := s.Peer()
	require.True(t, ok)
	assert.Equal(t, peerB, cur)
}

func TestClientAcceptsOnlyTarget(t *testing.T) {
	s := NewClient(peerA)
	assert.Equal(t, core.Client, s.Role())
	assert.True(t, s.IsBound())
	assert.True(t, s.Accepts(peerA))
	assert.False(t, s.Accepts(peerB))

	// Same address, different port is a different peer.
	assert.False(t, s.Accepts(netip.AddrPortFrom(peerA.Addr(), peerA.Port()+1)))
}

func TestClientWithoutPeerAcceptsAnyone(t *testing.T) {
	s := &PeerSession{role: core.Client}
	assert.True(t, s.Accepts(peerB))
}

func TestNormalizeMappedAddresses(t *testing.T) {
	mapped := netip.AddrPortFrom(netip.AddrFrom16(peerA.Addr().As16()), peerA.Port())
	require.True(t, mapped.Addr().Is4In6())

	s := NewClient(peerA)
	assert.True(t, s.Accepts(mapped))

	srv := NewServer()
	srv.SetPeer(mapped)
	cur, _ := srv.Peer()
	assert.Equal(t, peerA, cur)
}

func TestConcurrentSetAndLoad(t *testing.T) {
	s := NewServer()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				s.SetPeer(peerA)
			} else {
				s.SetPeer(peerB)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if p, ok := s.Peer(); ok {
				assert.True(t, p == peerA || p == peerB)
			}
		}
	}()
	wg.Wait()
	assert.True(t, s.IsBound())
}
