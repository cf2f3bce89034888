package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/irctrakz/udptun/pkg/core"
)

// Datagram is one payload with its remote endpoint.
type Datagram struct {
	Payload []byte
	Addr    netip.AddrPort
}

// MockTransport is an in-process core.Transport for tests. Datagrams queued
// with Deliver are returned by ReadFrom in order; WriteTo records every send
// and, when connected to another MockTransport, delivers it there.
type MockTransport struct {
	local    netip.AddrPort
	incoming chan Datagram
	closed   chan struct{}
	once     sync.Once

	mu        sync.Mutex
	sent      []Datagram
	peer      *MockTransport
	sendErr   error
	shortSend bool
	notify    chan struct{}
}

var _ core.Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock socket bound to local.
func NewMockTransport(local netip.AddrPort) *MockTransport {
	return &MockTransport{
		local:    local,
		incoming: make(chan Datagram, 1024),
		closed:   make(chan struct{}),
		notify:   make(chan struct{}, 1),
	}
}

// Connect wires t and other together so sends on one arrive at the other.
func (t *MockTransport) Connect(other *MockTransport) {
	t.mu.Lock()
	t.peer = other
	t.mu.Unlock()

	other.mu.Lock()
	other.peer = t
	other.mu.Unlock()
}

// Deliver queues a datagram as if it had been received from from.
func (t *MockTransport) Deliver(payload []byte, from netip.AddrPort) error {
	select {
	case <-t.closed:
		return net.ErrClosed
	default:
	}
	d := Datagram{Payload: append([]byte(nil), payload...), Addr: from}
	select {
	case t.incoming <- d:
		return nil
	default:
		return fmt.Errorf("mock transport %s: receive queue full", t.local)
	}
}

// ReadFrom blocks until a datagram is queued or the transport is closed.
func (t *MockTransport) ReadFrom(p []byte) (int, netip.AddrPort, error) {
	select {
	case <-t.closed:
		return 0, netip.AddrPort{}, net.ErrClosed
	case d := <-t.incoming:
		n := copy(p, d.Payload)
		return n, d.Addr, nil
	}
}

// WriteTo records the datagram and forwards it to the connected peer when
// ep is that peer's local address.
func (t *MockTransport) WriteTo(p []byte, ep netip.AddrPort) (int, error) {
	t.mu.Lock()
	if t.sendErr != nil {
		err := t.sendErr
		t.mu.Unlock()
		return 0, err
	}
	if t.shortSend && len(p) > 0 {
		t.mu.Unlock()
		return len(p) - 1, nil
	}
	t.sent = append(t.sent, Datagram{Payload: append([]byte(nil), p...), Addr: ep})
	peer := t.peer
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}

	if peer != nil && peer.local == ep {
		if err := peer.Deliver(p, t.local); err != nil && !errors.Is(err, net.ErrClosed) {
			return 0, err
		}
	}
	return len(p), nil
}

// LocalAddr returns the mock's local address.
func (t *MockTransport) LocalAddr() netip.AddrPort { return t.local }

// Close unblocks readers; later reads return net.ErrClosed.
func (t *MockTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// SetSendError makes every following WriteTo fail with err (nil clears it).
func (t *MockTransport) SetSendError(err error) {
	t.mu.Lock()
	t.sendErr = err
	t.mu.Unlock()
}

// SetShortSend makes every following WriteTo report one byte less than asked.
func (t *MockTransport) SetShortSend(short bool) {
	t.mu.Lock()
	t.shortSend = short
	t.mu.Unlock()
}

// Sent returns copies of all recorded sends.
func (t *MockTransport) Sent() []Datagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Datagram, len(t.sent))
	for i, d := range t.sent {
		out[i] = Datagram{Payload: append([]byte(nil), d.Payload...), Addr: d.Addr}
	}
	return out
}

// WaitForSends waits until at least n datagrams were sent or the timeout
// expires, and returns the sends recorded so far.
func (t *MockTransport) WaitForSends(n int, timeout time.Duration) []Datagram {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		sent := t.Sent()
		if len(sent) >= n {
			return sent
		}
		select {
		case <-t.notify:
		case <-time.After(5 * time.Millisecond):
		case <-deadline.C:
			return t.Sent()
		}
	}
}
