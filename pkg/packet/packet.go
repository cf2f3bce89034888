// Package packet inspects raw IP packets for logging and builds small IPv4
// packets for tests and load generation. Forwarding never depends on it: the
// tunnel carries payloads verbatim whatever they contain.
package packet

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Version returns the IP version nibble, or 0 for an empty packet.
func Version(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	return int(b[0] >> 4)
}

// Describe returns a one-line summary such as
// "ipv4 10.0.0.1 -> 10.0.0.2 proto=1 len=84".
func Describe(b []byte) string {
	switch Version(b) {
	case 4:
		h, err := ipv4.ParseHeader(b)
		if err != nil {
			return fmt.Sprintf("ipv4 malformed len=%d", len(b))
		}
		return fmt.Sprintf("ipv4 %s -> %s proto=%d ttl=%d len=%d", h.Src, h.Dst, h.Protocol, h.TTL, len(b))
	case 6:
		h, err := ipv6.ParseHeader(b)
		if err != nil {
			return fmt.Sprintf("ipv6 malformed len=%d", len(b))
		}
		return fmt.Sprintf("ipv6 %s -> %s next=%d hop=%d len=%d", h.Src, h.Dst, h.NextHeader, h.HopLimit, len(b))
	}
	return fmt.Sprintf("non-ip len=%d", len(b))
}

// BuildIPv4 builds a minimal IPv4 packet with a valid header checksum.
func BuildIPv4(src, dst net.IP, proto byte, payload []byte) []byte {
	ihl := ipv4.HeaderLen
	total := ihl + len(payload)
	p := make([]byte, total)
	p[0] = 0x45
	p[2] = byte(total >> 8)
	p[3] = byte(total & 0xff)
	p[8] = 64
	p[9] = proto
	copy(p[12:16], src.To4())
	copy(p[16:20], dst.To4())
	var sum uint32
	for i := 0; i < ihl; i += 2 {
		if i == 10 {
			continue
		}
		sum += uint32(p[i])<<8 | uint32(p[i+1])
	}
	for (sum >> 16) != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	cs := ^uint16(sum)
	p[10] = byte(cs >> 8)
	p[11] = byte(cs)
	copy(p[ihl:], payload)
	return p
}
