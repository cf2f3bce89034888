package tun

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/logging"
)

// MockDevice is an in-memory core.PacketDevice for tests that doesn't require
// kernel access or elevated privileges. Packets handed to Inject are returned
// by Read in order; packets passed to Write are recorded for inspection.
type MockDevice struct {
	name     string
	packetCh chan []byte
	closed   chan struct{}
	once     sync.Once

	mu             sync.Mutex
	packetsWritten [][]byte
	writeErr       error
	shortWrite     bool
	written        chan struct{}
}

var _ core.PacketDevice = (*MockDevice)(nil)

// NewMockDevice creates a mock device with room for queued reads.
func NewMockDevice(name string) *MockDevice {
	return &MockDevice{
		name:     name,
		packetCh: make(chan []byte, 1024),
		closed:   make(chan struct{}),
		written:  make(chan struct{}, 1),
	}
}

// Name returns the device name
func (m *MockDevice) Name() string { return m.name }

// Read blocks until an injected packet is available or the device is closed.
func (m *MockDevice) Read(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, io.EOF
	case data := <-m.packetCh:
		if len(data) > len(p) {
			return 0, io.ErrShortBuffer
		}
		return copy(p, data), nil
	}
}

// Write records a copy of p. A configured error or short write is returned instead.
func (m *MockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.closed:
		return 0, errors.New("mock device closed")
	default:
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if m.shortWrite && len(p) > 0 {
		return len(p) - 1, nil
	}

	dataCopy := make([]byte, len(p))
	copy(dataCopy, p)
	m.packetsWritten = append(m.packetsWritten, dataCopy)
	select {
	case m.written <- struct{}{}:
	default:
	}

	logging.Debugf("Mock device %s wrote packet of length %d", m.name, len(p))
	return len(p), nil
}

// Close unblocks readers; later reads return io.EOF.
func (m *MockDevice) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// Inject queues a packet to be returned by Read.
func (m *MockDevice) Inject(data []byte) error {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	select {
	case <-m.closed:
		return fmt.Errorf("device %s closed", m.name)
	default:
	}
	select {
	case m.packetCh <- dataCopy:
		return nil
	default:
		return fmt.Errorf("packet channel full, packet dropped")
	}
}

// SetWriteError makes every following Write fail with err (nil clears it).
func (m *MockDevice) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// SetShortWrite makes every following Write report one byte less than asked.
func (m *MockDevice) SetShortWrite(short bool) {
	m.mu.Lock()
	m.shortWrite = short
	m.mu.Unlock()
}

// WrittenPackets returns copies of the packets written so far.
func (m *MockDevice) WrittenPackets() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.packetsWritten))
	for i, packet := range m.packetsWritten {
		result[i] = make([]byte, len(packet))
		copy(result[i], packet)
	}
	return result
}

// WaitForWrites waits until at least n packets were written or the timeout
// expires, and returns the packets written so far.
func (m *MockDevice) WaitForWrites(n int, timeout time.Duration) [][]byte {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		pkts := m.WrittenPackets()
		if len(pkts) >= n {
			return pkts
		}
		select {
		case <-m.written:
		case <-time.After(5 * time.Millisecond):
		case <-deadline.C:
			return m.WrittenPackets()
		}
	}
}
