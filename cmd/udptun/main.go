package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/irctrakz/udptun/pkg/config"
	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/forward"
	"github.com/irctrakz/udptun/pkg/logging"
	"github.com/irctrakz/udptun/pkg/metrics"
	"github.com/irctrakz/udptun/pkg/pcap"
	"github.com/irctrakz/udptun/pkg/session"
	"github.com/irctrakz/udptun/pkg/transport"
	"github.com/irctrakz/udptun/pkg/tun"
)

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		logging.Fatalf("%v", err)
	}
}

// run opens the device and socket, starts the reporter and the pumps, and
// blocks until a fatal fault or a termination signal.
func run(cfg *config.Config) error {
	if err := cfg.ApplyLogging(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if logging.IsDebug() {
		logging.Debugf("DEBUG enabled: per-packet logging")
	}

	role := cfg.Tunnel.Role()
	dev, err := tun.Open(cfg.Tunnel)
	if err != nil {
		return fmt.Errorf("tun open: %w", err)
	}

	tr, err := transport.Listen(role, cfg.Tunnel.Host, cfg.Tunnel.Port)
	if err != nil {
		dev.Close()
		return fmt.Errorf("socket: %w", err)
	}

	engine, closeTap, err := newEngine(cfg, dev, tr)
	if err != nil {
		return err
	}
	defer closeTap()

	if !cfg.Metrics.Disabled {
		go metrics.NewReporter(engine.Metrics(), cfg.Metrics.IntervalDuration(), cfg.Metrics.Format).Run()
	}
	if cfg.Debug.HealthAddr != "" {
		go serveHealth(cfg.Debug.HealthAddr, engine)
	}

	logging.Infof("udptun %s: %s <-> %s", role, dev.Name(), describeEndpoint(cfg.Tunnel.Host, cfg.Tunnel.Port, role))

	errCh := make(chan error, 1)
	go func() { errCh <- engine.Run() }()

	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logging.FatalWithFields(fatalFields(err, engine.Session()), "forwarding stopped: %v", err)
	case sig := <-sigc:
		logging.Infof("received %s, shutting down", sig)
		tr.Close()
		dev.Close()
	}
	return nil
}

// newEngine builds the session and the engine on an open device and socket.
// On error both are closed. The returned func closes the capture file, if any.
func newEngine(cfg *config.Config, dev core.PacketDevice, tr core.Transport) (*forward.Engine, func(), error) {
	var s *session.PeerSession
	if cfg.Tunnel.Role() == core.Server {
		s = session.NewServer()
	} else {
		s = session.NewClient(cfg.Endpoint())
	}

	var opts []forward.Option
	closeTap := func() {}
	if cfg.Debug.Pcap != "" {
		w, err := pcap.Create(cfg.Debug.Pcap)
		if err != nil {
			tr.Close()
			dev.Close()
			return nil, nil, fmt.Errorf("pcap: %w", err)
		}
		closeTap = func() { w.Close() }
		opts = append(opts, forward.WithTap(w))
		logging.Infof("capturing forwarded packets to %s", cfg.Debug.Pcap)
	}
	return forward.New(dev, tr, s, metrics.New(), opts...), closeTap, nil
}

// fatalFields describes a forwarding fault for the final log line.
func fatalFields(err error, s *session.PeerSession) logrus.Fields {
	fields := logrus.Fields{"role": s.Role().String()}
	if ep, ok := s.Peer(); ok {
		fields["peer"] = ep.String()
	}
	var fe *forward.FatalError
	if errors.As(err, &fe) {
		fields["op"] = fe.Op
		if fe.Err == nil {
			fields["bytes"] = fmt.Sprintf("%d/%d", fe.N, fe.Want)
		}
	}
	return fields
}

func describeEndpoint(host string, port int, role core.Role) string {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if role == core.Server {
		return "listening on " + addr
	}
	return "peer " + addr
}
