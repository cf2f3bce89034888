package core

import "net/netip"

// MaxPacketSize is the largest packet either pump reads in one call.
const MaxPacketSize = 65536

// PacketDevice represents a virtual network interface carrying raw IP packets.
// One Read returns exactly one packet and one Write accepts exactly one packet;
// no packet-info header is present in either direction.
type PacketDevice interface {
	// Name returns the kernel name of the interface
	Name() string

	// Read blocks until one packet is available and copies it into p
	Read(p []byte) (int, error)

	// Write writes one packet to the interface
	Write(p []byte) (int, error)

	// Close releases the interface
	Close() error
}

// Transport is a datagram socket exchanging packets with the remote peer.
type Transport interface {
	// ReadFrom blocks until one datagram arrives and returns its length and sender
	ReadFrom(p []byte) (int, netip.AddrPort, error)

	// WriteTo sends p as a single datagram to ep
	WriteTo(p []byte, ep netip.AddrPort) (int, error)

	// LocalAddr returns the bound local address
	LocalAddr() netip.AddrPort

	// Close closes the socket
	Close() error
}
