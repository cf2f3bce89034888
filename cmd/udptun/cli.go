package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/irctrakz/udptun/pkg/config"
)

// options holds the raw command-line values. Only flags the user actually set
// override the file and environment layers.
type options struct {
	configPath string
	envFile    string

	tunName string
	host    string
	port    uint16
	server  bool
	mtu     int
	device  string
	address string
	up      bool

	logLevel  string
	logFormat string
	logFile   string

	metricsInterval string
	metricsFormat   string

	pcap       string
	healthAddr string
}

func newRootCmd(run func(*config.Config) error) *cobra.Command {
	def := config.DefaultConfig()
	o := &options{}

	cmd := &cobra.Command{
		Use:   "udptun",
		Short: "Forward raw IP packets between a TUN interface and one UDP peer.",
		Long: `udptun copies every packet read from a TUN interface into one UDP datagram
and writes every accepted datagram back to the interface.

A server binds --host:--port and adopts the sender of each datagram as its
peer. A client sends to --host:--port and only accepts datagrams from it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "path to a .json or .yaml config file")
	f.StringVar(&o.envFile, "env-file", "", "path to a dotenv file with UDPTUN_* variables")

	f.StringVar(&o.tunName, "tun-if-name", def.Tunnel.TunName, "name of the TUN interface")
	f.StringVar(&o.host, "host", def.Tunnel.Host, "IPv4 address to bind (server) or to send to (client)")
	f.Uint16Var(&o.port, "port", uint16(def.Tunnel.Port), "UDP port to bind (server) or to send to (client)")
	f.BoolVarP(&o.server, "server", "s", def.Tunnel.Server, "run as server (true/false) and learn the peer from inbound datagrams")
	// --server takes a value: "--server true", "-s 1", "--server=false".
	f.Lookup("server").NoOptDefVal = ""
	f.IntVar(&o.mtu, "mtu", def.Tunnel.MTU, "MTU of the TUN interface")
	f.StringVar(&o.device, "device", def.Tunnel.Device, "TUN backend: water or wireguard")
	f.StringVar(&o.address, "address", def.Tunnel.Address, "CIDR address to assign to the interface")
	f.BoolVar(&o.up, "up", def.Tunnel.BringUp, "set the interface up after creation")

	f.StringVar(&o.logLevel, "log-level", def.Logging.Level, "log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", def.Logging.Format, "log format: text or json")
	f.StringVar(&o.logFile, "log-file", def.Logging.File, "also write logs to this rotated file")

	f.StringVar(&o.metricsInterval, "metrics-interval", def.Metrics.Interval, "rate report interval")
	f.StringVar(&o.metricsFormat, "metrics-format", def.Metrics.Format, "rate report format: text or json")

	f.StringVar(&o.pcap, "pcap", def.Debug.Pcap, "write forwarded packets to this pcap file")
	f.StringVar(&o.healthAddr, "health-addr", def.Debug.HealthAddr, "listen address for /health and /metrics")
	return cmd
}

// apply copies every explicitly set flag into cfg.
func (o *options) apply(fs *pflag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "tun-if-name":
			cfg.Tunnel.TunName = o.tunName
		case "host":
			cfg.Tunnel.Host = o.host
		case "port":
			cfg.Tunnel.Port = int(o.port)
		case "server":
			cfg.Tunnel.Server = o.server
		case "mtu":
			cfg.Tunnel.MTU = o.mtu
		case "device":
			cfg.Tunnel.Device = o.device
		case "address":
			cfg.Tunnel.Address = o.address
		case "up":
			cfg.Tunnel.BringUp = o.up
		case "log-level":
			cfg.Logging.Level = o.logLevel
		case "log-format":
			cfg.Logging.Format = o.logFormat
		case "log-file":
			cfg.Logging.File = o.logFile
		case "metrics-interval":
			cfg.Metrics.Interval = o.metricsInterval
		case "metrics-format":
			cfg.Metrics.Format = o.metricsFormat
		case "pcap":
			cfg.Debug.Pcap = o.pcap
		case "health-addr":
			cfg.Debug.HealthAddr = o.healthAddr
		}
	})
}

// load layers defaults, config file, env file, environment and flags, in
// that order. The result is validated.
func (o *options) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		if err := config.LoadFromFile(o.configPath, cfg); err != nil {
			return nil, err
		}
	}
	if o.envFile != "" {
		if err := config.LoadEnvFile(o.envFile); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	o.apply(fs, cfg)

	if config.Truthy(os.Getenv("DEBUG")) {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
