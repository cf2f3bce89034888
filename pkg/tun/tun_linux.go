//go:build linux

package tun

import (
	"fmt"

	"github.com/songgao/water"
	"github.com/vishvananda/netlink"

	"github.com/irctrakz/udptun/pkg/core"
)

// OpenWater allocates a TUN interface through /dev/net/tun with
// IFF_TUN | IFF_NO_PI, so reads and writes carry bare IP packets.
func OpenWater(name string) (core.PacketDevice, error) {
	iface, err := water.New(water.Config{
		DeviceType:             water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{Name: name},
	})
	if err != nil {
		return nil, fmt.Errorf("allocate tun %s: %w", name, err)
	}
	return iface, nil
}

// Configure sets the MTU, assigns address (CIDR) and brings the link up.
// Zero values leave the corresponding setting untouched.
func Configure(name string, mtu int, address string, up bool) error {
	if mtu <= 0 && address == "" && !up {
		return nil
	}
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("lookup link %s: %w", name, err)
	}
	if mtu > 0 && link.Attrs().MTU != mtu {
		if err := netlink.LinkSetMTU(link, mtu); err != nil {
			return fmt.Errorf("set mtu %d on %s: %w", mtu, name, err)
		}
	}
	if address != "" {
		addr, err := netlink.ParseAddr(address)
		if err != nil {
			return fmt.Errorf("parse address %q: %w", address, err)
		}
		if err := netlink.AddrReplace(link, addr); err != nil {
			return fmt.Errorf("assign %s to %s: %w", address, name, err)
		}
	}
	if up {
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("set %s up: %w", name, err)
		}
	}
	return nil
}
