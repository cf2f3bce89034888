package transport

import (
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/udptun/pkg/core"
)

func TestListenServerRejectsBadHost(t *testing.T) {
	_, err := Listen(core.Server, "", 1234)
	assert.Error(t, err)

	_, err = Listen(core.Server, "::1", 1234)
	assert.Error(t, err)

	_, err = Listen(core.Server, "example.com", 1234)
	assert.Error(t, err)
}

func TestUDPLoopback(t *testing.T) {
	srv, err := Listen(core.Server, "127.0.0.1", 0)
	require.NoError(t, err)
	defer srv.Close()

	cli, err := Listen(core.Client, "", 0)
	require.NoError(t, err)
	defer cli.Close()

	srvAddr := srv.LocalAddr()
	require.True(t, srvAddr.Addr().Is4())
	require.NotZero(t, srvAddr.Port())
	assert.NotZero(t, cli.LocalAddr().Port())

	n, err := cli.WriteTo([]byte("hello"), srvAddr)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, core.MaxPacketSize)
	n, from, err := srv.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.True(t, from.Addr().Is4())
	assert.Equal(t, cli.LocalAddr().Port(), from.Port())

	// Reply to the learned sender.
	_, err = srv.WriteTo([]byte("world"), from)
	require.NoError(t, err)
	n, from2, err := cli.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
	assert.Equal(t, srvAddr, from2)
}

func TestUDPCloseUnblocksRead(t *testing.T) {
	tr, err := ListenAddr(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := tr.ReadFrom(make([]byte, 16))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return after close")
	}
}

func TestMockTransportPair(t *testing.T) {
	a := NewMockTransport(netip.MustParseAddrPort("10.0.0.1:1234"))
	b := NewMockTransport(netip.MustParseAddrPort("10.0.0.2:40000"))
	a.Connect(b)

	n, err := b.WriteTo([]byte("ping"), a.LocalAddr())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 64)
	n, from, err := a.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
	assert.Equal(t, b.LocalAddr(), from)

	sent := b.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, a.LocalAddr(), sent[0].Addr)
}

func TestMockTransportFaults(t *testing.T) {
	tr := NewMockTransport(netip.MustParseAddrPort("10.0.0.1:1234"))
	dst := netip.MustParseAddrPort("10.0.0.2:1")

	tr.SetShortSend(true)
	n, err := tr.WriteTo([]byte("abc"), dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tr.SetShortSend(false)
	tr.SetSendError(errors.New("unreachable"))
	_, err = tr.WriteTo([]byte("abc"), dst)
	assert.EqualError(t, err, "unreachable")
	assert.Empty(t, tr.Sent())

	require.NoError(t, tr.Close())
	_, _, err = tr.ReadFrom(make([]byte, 8))
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.ErrorIs(t, tr.Deliver([]byte("x"), dst), net.ErrClosed)
}
