package core

import (
	"testing"
)

// TestTunnelConfigRole tests the role derived from the server flag.
func TestTunnelConfigRole(t *testing.T) {
	config := TunnelConfig{
		TunName: "tun1",
		Host:    "127.0.0.1",
		Port:    1234,
	}

	if config.Role() != Client {
		t.Errorf("Expected client role, got %s", config.Role())
	}

	config.Server = true
	if config.Role() != Server {
		t.Errorf("Expected server role, got %s", config.Role())
	}
}

// TestParseRole tests parsing of role names.
func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"server", Server, false},
		{" Server ", Server, false},
		{"client", Client, false},
		{"", Client, false},
		{"relay", Client, true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// TestRoleString tests the printable role names.
func TestRoleString(t *testing.T) {
	if Server.String() != "server" {
		t.Errorf("Expected 'server', got '%s'", Server.String())
	}
	if Client.String() != "client" {
		t.Errorf("Expected 'client', got '%s'", Client.String())
	}
}
