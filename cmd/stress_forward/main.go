// stress_forward pushes packets through a client and a server engine joined by
// in-memory sockets and reports throughput and counter totals.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/irctrakz/udptun/pkg/forward"
	"github.com/irctrakz/udptun/pkg/logging"
	"github.com/irctrakz/udptun/pkg/metrics"
	"github.com/irctrakz/udptun/pkg/packet"
	"github.com/irctrakz/udptun/pkg/session"
	"github.com/irctrakz/udptun/pkg/transport"
	"github.com/irctrakz/udptun/pkg/tun"
)

func main() {
	var (
		count   = flag.Int("packets", 20000, "packets to push client -> server")
		pktSize = flag.Int("size", 512, "IP payload size (bytes)")
		burst   = flag.Int("burst", 256, "packets injected before waiting for the server to catch up")
		reply   = flag.Bool("reply", true, "echo the same number of packets server -> client")
	)
	flag.Parse()

	logging.SetLevel(logging.WarnLevel)

	if *burst < 1 {
		*burst = 1
	}
	if *burst > 1000 {
		*burst = 1000
	}
	payload := make([]byte, *pktSize)
	rand.Read(payload)
	pkt := packet.BuildIPv4([]byte{10, 0, 0, 1}, []byte{10, 0, 0, 2}, 17, payload)

	srvAddr := netip.MustParseAddrPort("192.0.2.1:1234")
	cliAddr := netip.MustParseAddrPort("192.0.2.2:40000")
	srvTr := transport.NewMockTransport(srvAddr)
	cliTr := transport.NewMockTransport(cliAddr)
	srvTr.Connect(cliTr)
	srvDev := tun.NewMockDevice("stress-srv")
	cliDev := tun.NewMockDevice("stress-cli")

	srv := forward.New(srvDev, srvTr, session.NewServer(), metrics.New())
	cli := forward.New(cliDev, cliTr, session.NewClient(srvAddr), metrics.New())
	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run() }()
	go func() { errCh <- cli.Run() }()

	fwd, err := push(cliDev, srvDev, pkt, *count, *burst, errCh)
	report("client -> server", fwd, *count, len(pkt), err)
	if err != nil {
		os.Exit(1)
	}

	if *reply {
		back, err := push(srvDev, cliDev, pkt, *count, *burst, errCh)
		report("server -> client", back, *count, len(pkt), err)
		if err != nil {
			os.Exit(1)
		}
	}

	fmt.Printf("server totals: %v\n", srv.Metrics().Totals())
	fmt.Printf("client totals: %v\n", cli.Metrics().Totals())
	if got := srv.Metrics().SentDevice.Total(); got != uint64(*count*len(pkt)) {
		fmt.Printf("ERROR: server wrote %d bytes to its device, expected %d\n", got, *count*len(pkt))
	}
}

// push injects count packets into from and waits until to has written them.
func push(from, to *tun.MockDevice, pkt []byte, count, burst int, errCh <-chan error) (time.Duration, error) {
	base := len(to.WrittenPackets())
	start := time.Now()
	for sent := 0; sent < count; {
		n := burst
		if count-sent < n {
			n = count - sent
		}
		for i := 0; i < n; i++ {
			if err := from.Inject(pkt); err != nil {
				return time.Since(start), err
			}
		}
		sent += n
		want := base + sent
		if got := len(to.WaitForWrites(want, 5*time.Second)); got < want {
			select {
			case err := <-errCh:
				return time.Since(start), err
			default:
			}
			return time.Since(start), fmt.Errorf("stalled at %d/%d packets", got-base, count)
		}
	}
	return time.Since(start), nil
}

func report(dir string, d time.Duration, count, size int, err error) {
	if err != nil {
		fmt.Printf("%s: ERROR after %v: %v\n", dir, d, err)
		return
	}
	secs := d.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}
	fmt.Printf("%s: %d packets x %d bytes in %v (%.0f pkt/s, %s)\n",
		dir, count, size, d, float64(count)/secs, metrics.FormatRate("rate", float64(count*size)/secs))
}
