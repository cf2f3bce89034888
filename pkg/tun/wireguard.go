package tun

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	wtun "golang.zx2c4.com/wireguard/tun"

	"github.com/irctrakz/udptun/pkg/core"
	"github.com/irctrakz/udptun/pkg/logging"
)

// wgOffset leaves headroom in front of each packet for the virtio header the
// Linux backend prepends when offloads are enabled.
const wgOffset = 16

// wgDevice adapts wireguard-go's batch tun.Device to one packet per call.
type wgDevice struct {
	dev  wtun.Device
	name string

	rmu   sync.Mutex
	bufs  [][]byte
	sizes []int
	count int
	next  int

	wmu  sync.Mutex
	wbuf []byte
}

// OpenWireGuard creates a TUN interface through wireguard-go.
func OpenWireGuard(name string, mtu int) (core.PacketDevice, error) {
	if mtu <= 0 {
		mtu = 1500
	}
	dev, err := wtun.CreateTUN(name, mtu)
	if err != nil {
		return nil, fmt.Errorf("create wireguard tun %s: %w", name, err)
	}
	ifname, err := dev.Name()
	if err != nil {
		ifname = name
	}
	return newWGDevice(dev, ifname), nil
}

func newWGDevice(dev wtun.Device, name string) *wgDevice {
	batch := dev.BatchSize()
	if batch < 1 {
		batch = 1
	}
	d := &wgDevice{
		dev:   dev,
		name:  name,
		bufs:  make([][]byte, batch),
		sizes: make([]int, batch),
		wbuf:  make([]byte, wgOffset+core.MaxPacketSize),
	}
	for i := range d.bufs {
		d.bufs[i] = make([]byte, wgOffset+core.MaxPacketSize)
	}
	go d.watchEvents()
	return d
}

// Name returns the interface name.
func (d *wgDevice) Name() string { return d.name }

// Read returns the next packet of the current batch, reading a new batch
// from the device when the previous one is exhausted.
func (d *wgDevice) Read(p []byte) (int, error) {
	d.rmu.Lock()
	defer d.rmu.Unlock()

	for d.next >= d.count {
		n, err := d.dev.Read(d.bufs, d.sizes, wgOffset)
		if err != nil {
			return 0, err
		}
		d.count, d.next = n, 0
	}
	i := d.next
	d.next++
	pkt := d.bufs[i][wgOffset : wgOffset+d.sizes[i]]
	if len(pkt) > len(p) {
		return 0, io.ErrShortBuffer
	}
	return copy(p, pkt), nil
}

// Write hands p to the device as a batch of one.
func (d *wgDevice) Write(p []byte) (int, error) {
	if len(p) > core.MaxPacketSize {
		return 0, io.ErrShortWrite
	}
	d.wmu.Lock()
	defer d.wmu.Unlock()

	buf := d.wbuf[:wgOffset+len(p)]
	copy(buf[wgOffset:], p)
	n, err := d.dev.Write([][]byte{buf}, wgOffset)
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, io.ErrShortWrite
	}
	return len(p), nil
}

// Close closes the device; its event channel is closed by wireguard-go.
func (d *wgDevice) Close() error { return d.dev.Close() }

func (d *wgDevice) watchEvents() {
	for e := range d.dev.Events() {
		switch {
		case e&wtun.EventUp != 0:
			logging.Infof("TUN device %s is up", d.name)
		case e&wtun.EventDown != 0:
			logging.WarnWithFields(logrus.Fields{"device": d.name}, "TUN device is down")
		case e&wtun.EventMTUUpdate != 0:
			if mtu, err := d.dev.MTU(); err == nil {
				logging.Infof("TUN device %s MTU changed to %d", d.name, mtu)
			}
		}
	}
}
