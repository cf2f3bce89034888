// Package forward moves raw IP packets between the TUN device and the UDP
// socket. Each direction is one blocking loop with a single packet in flight,
// so packets leave in the order they arrived.
package forward

import (
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/logging"
	"github.com/irctrakz/udptun/pkg/metrics"
	"github.com/irctrakz/udptun/pkg/packet"
	"github.com/irctrakz/udptun/pkg/session"
)

// Tap receives a copy of every packet after it was forwarded.
type Tap interface {
	WritePacket(b []byte)
}

// Engine owns the two pumps of one tunnel endpoint.
type Engine struct {
	dev     core.PacketDevice
	tr      core.Transport
	session *session.PeerSession
	metrics *metrics.Metrics
	tap     Tap
}

// Option configures an Engine.
type Option func(*Engine)

// WithTap mirrors forwarded packets to t.
func WithTap(t Tap) Option {
	return func(e *Engine) { e.tap = t }
}

// New creates an engine. The session's role decides the peer policy.
func New(dev core.PacketDevice, tr core.Transport, s *session.PeerSession, m *metrics.Metrics, opts ...Option) *Engine {
	e := &Engine{dev: dev, tr: tr, session: s, metrics: m}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Session returns the peer session.
func (e *Engine) Session() *session.PeerSession { return e.session }

// Metrics returns the engine counters.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Run starts both pumps and returns the first fatal fault. The other pump
// keeps running; the caller is expected to terminate the process.
func (e *Engine) Run() error {
	errCh := make(chan error, 2)
	go func() { errCh <- e.Inbound() }()
	go func() { errCh <- e.Outbound() }()
	return <-errCh
}

// Inbound pumps datagrams from the socket to the device. It only returns a
// *FatalError.
func (e *Engine) Inbound() error {
	buf := make([]byte, core.MaxPacketSize)
	server := e.session.Role() == core.Server
	for {
		n, from, err := e.tr.ReadFrom(buf)
		if err != nil {
			return ioFault(OpSocketReceive, err)
		}
		e.metrics.ReceivedTransport.Add(n)
		pkt := buf[:n]

		if server {
			e.adopt(from)
		} else if !e.session.Accepts(from) {
			continue
		}

		if logging.IsDebug() {
			logging.DebugWithFields(logrus.Fields{"from": from.String()}, "sock->tun: %s", packet.Describe(pkt))
		}
		w, err := e.dev.Write(pkt)
		if err != nil {
			return ioFault(OpDeviceWrite, err)
		}
		if w != n {
			return shortFault(OpDeviceWrite, w, n)
		}
		e.metrics.SentDevice.Add(w)
		if e.tap != nil {
			e.tap.WritePacket(pkt)
		}
	}
}

// Outbound pumps packets from the device to the current peer. Until a server
// has learned its peer every packet is dropped. It only returns a *FatalError.
func (e *Engine) Outbound() error {
	buf := make([]byte, core.MaxPacketSize)
	for {
		n, err := e.dev.Read(buf)
		if err != nil {
			return ioFault(OpDeviceRead, err)
		}
		if n <= 0 {
			return ioFault(OpDeviceRead, errEmptyRead)
		}
		e.metrics.ReceivedDevice.Add(n)

		peer, ok := e.session.Peer()
		if !ok {
			continue
		}
		pkt := buf[:n]
		if logging.IsDebug() {
			logging.DebugWithFields(logrus.Fields{"to": peer.String()}, "tun->sock: %s", packet.Describe(pkt))
		}
		w, err := e.tr.WriteTo(pkt, peer)
		if err != nil {
			return ioFault(OpSocketSend, err)
		}
		if w != n {
			return shortFault(OpSocketSend, w, n)
		}
		e.metrics.SentTransport.Add(w)
		if e.tap != nil {
			e.tap.WritePacket(pkt)
		}
	}
}

// adopt makes from the server's peer, logging only when the peer changes.
func (e *Engine) adopt(from netip.AddrPort) {
	old, had := e.session.SetPeer(from)
	if had && old == session.Normalize(from) {
		return
	}
	fields := logrus.Fields{"peer": from.String()}
	if had {
		fields["previous"] = old.String()
	}
	logging.InfoWithFields(fields, "peer adopted")
}
