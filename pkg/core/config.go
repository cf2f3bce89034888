package core

import (
	"fmt"
	"strings"
)

// Role selects how the tunnel finds its peer. It is fixed for the process lifetime.
type Role int

const (
	// Client sends to a fixed configured endpoint.
	Client Role = iota
	// Server learns its peer from inbound datagrams.
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// ParseRole accepts "server" or "client".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "server":
		return Server, nil
	case "client", "":
		return Client, nil
	}
	return Client, fmt.Errorf("unknown role %q", s)
}

// Device backends understood by the tun package.
const (
	DeviceWater     = "water"
	DeviceWireGuard = "wireguard"
)

// TunnelConfig contains configuration for one tunnel endpoint.
type TunnelConfig struct {
	// TunName is the name of the TUN interface.
	TunName string `json:"tun_name" yaml:"tunName"`

	// Host is the IPv4 address the server binds, or the client's target.
	Host string `json:"host" yaml:"host"`

	// Port is the UDP port the server binds, or the client's target port.
	Port int `json:"port" yaml:"port"`

	// Server selects the server role; false means client.
	Server bool `json:"server" yaml:"server"`

	// MTU of the TUN interface.
	MTU int `json:"mtu" yaml:"mtu"`

	// Device is the TUN backend, "water" or "wireguard".
	Device string `json:"device" yaml:"device"`

	// Address is an optional CIDR assigned to the interface after creation.
	Address string `json:"address" yaml:"address"`

	// BringUp sets the link up after creation.
	BringUp bool `json:"bring_up" yaml:"bringUp"`
}

// Role returns the role selected by the Server flag.
func (c TunnelConfig) Role() Role {
	if c.Server {
		return Server
	}
	return Client
}
