//go:build !linux

package tun

import (
	"fmt"
	"runtime"

	"github.com/irctrakz/udptun/pkg/core"
)

// OpenWater is only implemented on Linux.
func OpenWater(name string) (core.PacketDevice, error) {
	return nil, fmt.Errorf("water tun backend is not supported on %s", runtime.GOOS)
}

// Configure is only implemented on Linux; non-zero settings are rejected.
func Configure(name string, mtu int, address string, up bool) error {
	if address != "" || up {
		return fmt.Errorf("interface configuration is not supported on %s", runtime.GOOS)
	}
	return nil
}
