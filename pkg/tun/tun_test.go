package tun

import (
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wtun "golang.zx2c4.com/wireguard/tun"

	"github.com/irctrakz/udptun/pkg/core"
)

var testPacket = []byte{0x45, 0x00, 0x00, 0x14, 0x00, 0x00, 0x40, 0x00, 0x40, 0x01, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x01, 0x0a, 0x00, 0x00, 0x02}

func TestMockDeviceReadWrite(t *testing.T) {
	dev := NewMockDevice("mock-tun")
	assert.Equal(t, "mock-tun", dev.Name())

	require.NoError(t, dev.Inject(testPacket))
	buf := make([]byte, core.MaxPacketSize)
	n, err := dev.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, testPacket, buf[:n])

	n, err = dev.Write(testPacket)
	require.NoError(t, err)
	assert.Equal(t, len(testPacket), n)

	written := dev.WrittenPackets()
	require.Len(t, written, 1)
	assert.Equal(t, testPacket, written[0])
}

func TestMockDeviceInjectCopies(t *testing.T) {
	dev := NewMockDevice("mock-tun")
	data := []byte{1, 2, 3}
	require.NoError(t, dev.Inject(data))
	data[0] = 0xff

	buf := make([]byte, 16)
	n, err := dev.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf[:n])
}

func TestMockDeviceFaults(t *testing.T) {
	dev := NewMockDevice("mock-tun")

	dev.SetShortWrite(true)
	n, err := dev.Write(testPacket)
	require.NoError(t, err)
	assert.Equal(t, len(testPacket)-1, n)

	dev.SetShortWrite(false)
	dev.SetWriteError(errors.New("io failure"))
	_, err = dev.Write(testPacket)
	assert.EqualError(t, err, "io failure")

	assert.Empty(t, dev.WrittenPackets())
}

func TestMockDeviceCloseUnblocksRead(t *testing.T) {
	dev := NewMockDevice("mock-tun")
	done := make(chan error, 1)
	go func() {
		_, err := dev.Read(make([]byte, 16))
		done <- err
	}()

	require.NoError(t, dev.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return after close")
	}
	assert.Error(t, dev.Inject(testPacket))
	require.NoError(t, dev.Close())
}

func TestMockDeviceWaitForWrites(t *testing.T) {
	dev := NewMockDevice("mock-tun")
	go func() {
		time.Sleep(20 * time.Millisecond)
		dev.Write([]byte{1})
		dev.Write([]byte{2})
	}()
	pkts := dev.WaitForWrites(2, 2*time.Second)
	require.Len(t, pkts, 2)
	assert.Equal(t, []byte{2}, pkts[1])
}

// fakeWG is a wireguard-go tun.Device returning scripted batches.
type fakeWG struct {
	mu      sync.Mutex
	batches [][][]byte
	writes  [][]byte
	offsets []int
	events  chan wtun.Event
	batch   int
}

func newFakeWG(batch int, batches ...[][]byte) *fakeWG {
	return &fakeWG{batches: batches, events: make(chan wtun.Event), batch: batch}
}

func (f *fakeWG) File() *os.File { return nil }
func (f *fakeWG) MTU() (int, error) { return 1500, nil }
func (f *fakeWG) Name() (string, error) { return "wgfake0", nil }
func (f *fakeWG) Events() <-chan wtun.Event { return f.events }
func (f *fakeWG) BatchSize() int { return f.batch }
func (f *fakeWG) Close() error { close(f.events); return nil }

func (f *fakeWG) Read(bufs [][]byte, sizes []int, offset int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return 0, io.EOF
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	for i, pkt := range b {
		sizes[i] = copy(bufs[i][offset:], pkt)
	}
	return len(b), nil
}

func (f *fakeWG) Write(bufs [][]byte, offset int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range bufs {
		f.writes = append(f.writes, append([]byte(nil), b[offset:]...))
		f.offsets = append(f.offsets, offset)
	}
	return len(bufs), nil
}

func TestWireGuardAdapterSplitsBatches(t *testing.T) {
	fake := newFakeWG(2, [][]byte{{1}, {2, 2}}, [][]byte{}, [][]byte{{3, 3, 3}})
	dev := newWGDevice(fake, "wgfake0")
	defer dev.Close()

	buf := make([]byte, core.MaxPacketSize)
	var got [][]byte
	for i := 0; i < 3; i++ {
		n, err := dev.Read(buf)
		require.NoError(t, err)
		got = append(got, append([]byte(nil), buf[:n]...))
	}
	assert.Equal(t, [][]byte{{1}, {2, 2}, {3, 3, 3}}, got)

	_, err := dev.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWireGuardAdapterShortBuffer(t *testing.T) {
	fake := newFakeWG(1, [][]byte{{1, 2, 3, 4}})
	dev := newWGDevice(fake, "wgfake0")
	defer dev.Close()

	_, err := dev.Read(make([]byte, 2))
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestWireGuardAdapterWrite(t *testing.T) {
	fake := newFakeWG(1)
	dev := newWGDevice(fake, "wgfake0")
	defer dev.Close()

	n, err := dev.Write(testPacket)
	require.NoError(t, err)
	assert.Equal(t, len(testPacket), n)

	require.Len(t, fake.writes, 1)
	assert.Equal(t, testPacket, fake.writes[0])
	assert.Equal(t, wgOffset, fake.offsets[0])
	assert.Equal(t, "wgfake0", dev.Name())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(core.TunnelConfig{TunName: "tun9", Device: "tap"})
	assert.Error(t, err)
}
