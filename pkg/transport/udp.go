// Package transport provides the datagram socket that carries tunnelled packets.
package transport

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/logging"
)

// UDPTransport is a core.Transport over an unconnected IPv4 UDP socket.
type UDPTransport struct {
	conn *net.UDPConn
}

var _ core.Transport = (*UDPTransport)(nil)

// Listen binds the socket for role. A server binds host:port; a client binds
// an ephemeral port on all interfaces and stays unconnected.
func Listen(role core.Role, host string, port int) (*UDPTransport, error) {
	bind := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	if role == core.Server {
		addr, err := netip.ParseAddr(host)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("server bind address %q is not an IPv4 literal", host)
		}
		bind = netip.AddrPortFrom(addr, uint16(port))
	}
	return ListenAddr(bind)
}

// ListenAddr binds the socket to an explicit local address.
func ListenAddr(bind netip.AddrPort) (*UDPTransport, error) {
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(bind))
	if err != nil {
		return nil, fmt.Errorf("bind udp %s: %w", bind, err)
	}
	t := &UDPTransport{conn: conn}
	logging.Infof("UDP socket bound to %s", t.LocalAddr())
	return t, nil
}

// ReadFrom blocks for one datagram. Sender addresses are unmapped to plain IPv4.
func (t *UDPTransport) ReadFrom(p []byte) (int, netip.AddrPort, error) {
	n, from, err := t.conn.ReadFromUDPAddrPort(p)
	if err != nil {
		return n, from, err
	}
	return n, netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), nil
}

// WriteTo sends p as one datagram to ep.
func (t *UDPTransport) WriteTo(p []byte, ep netip.AddrPort) (int, error) {
	return t.conn.WriteToUDPAddrPort(p, ep)
}

// LocalAddr returns the bound address, including the kernel-chosen port.
func (t *UDPTransport) LocalAddr() netip.AddrPort {
	if a, ok := t.conn.LocalAddr().(*net.UDPAddr); ok {
		ap := a.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

// Close closes the socket.
func (t *UDPTransport) Close() error { return t.conn.Close() }
