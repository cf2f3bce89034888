// Package pcap writes forwarded packets to a capture file (LINKTYPE_RAW), so
// traffic crossing the tunnel can be inspected with standard tools.
package pcap

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

// Writer appends packets to a capture stream. It is safe for concurrent use
// by both pumps. Write errors disable the writer; capture is best effort and
// never interrupts forwarding.
type Writer struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	failed bool
	now    func() time.Time
}

// Create opens path and writes the global header.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the global header to w and returns a Writer on it.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{w: pw, now: time.Now}, nil
}

// WritePacket records one packet. Packets larger than the snap length are
// truncated in the capture.
func (p *Writer) WritePacket(b []byte) {
	if p == nil || len(b) == 0 {
		return
	}
	incl := len(b)
	if incl > snapLen {
		incl = snapLen
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed {
		return
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     p.now(),
		CaptureLength: incl,
		Length:        len(b),
	}
	if err := p.w.WritePacket(ci, b[:incl]); err != nil {
		p.failed = true
	}
}

// Close closes the underlying file, if the writer owns one.
func (p *Writer) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
