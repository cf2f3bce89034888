// Package tun opens the virtual network interface the tunnel reads packets
// from and writes packets to.
package tun

import (
	"fmt"

	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/logging"
)

// Open creates the interface described by cfg with the selected backend and
// applies the optional MTU, address and link state.
func Open(cfg core.TunnelConfig) (core.PacketDevice, error) {
	var (
		dev core.PacketDevice
		err error
	)
	switch cfg.Device {
	case core.DeviceWater, "":
		dev, err = OpenWater(cfg.TunName)
	case core.DeviceWireGuard:
		dev, err = OpenWireGuard(cfg.TunName, cfg.MTU)
	default:
		return nil, fmt.Errorf("unknown device backend %q", cfg.Device)
	}
	if err != nil {
		return nil, err
	}

	if err := Configure(dev.Name(), cfg.MTU, cfg.Address, cfg.BringUp); err != nil {
		dev.Close()
		return nil, err
	}

	logging.Infof("TUN device %s opened (backend=%s mtu=%d)", dev.Name(), backendName(cfg.Device), cfg.MTU)
	return dev, nil
}

func backendName(b string) string {
	if b == "" {
		return core.DeviceWater
	}
	return b
}
