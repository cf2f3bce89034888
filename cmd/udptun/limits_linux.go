//go:build linux

package main

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// serverLimits collects best-effort host limits that can throttle a UDP
// tunnel: descriptor usage and socket buffer ceilings.
func serverLimits() map[string]uint64 {
	out := map[string]uint64{}
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err == nil {
		out["nofile_soft"] = rl.Cur
		out["nofile_hard"] = rl.Max
	}
	if ents, err := os.ReadDir("/proc/self/fd"); err == nil {
		out["open_fds"] = uint64(len(ents))
		if soft := out["nofile_soft"]; soft > 0 {
			out["fd_util_pct"] = (out["open_fds"] * 100) / soft
		}
	}
	if v, ok := readUint("/proc/sys/net/core/rmem_max"); ok {
		out["rmem_max"] = v
	}
	if v, ok := readUint("/proc/sys/net/core/wmem_max"); ok {
		out["wmem_max"] = v
	}
	// pages, converted to bytes
	if a, ok := readUintTriplet("/proc/sys/net/ipv4/udp_mem"); ok {
		pg := uint64(os.Getpagesize())
		out["udp_mem_low_bytes"], out["udp_mem_pressure_bytes"], out["udp_mem_high_bytes"] = a[0]*pg, a[1]*pg, a[2]*pg
	}
	return out
}

func readUint(path string) (uint64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readUintTriplet(path string) ([3]uint64, bool) {
	var res [3]uint64
	b, err := os.ReadFile(path)
	if err != nil {
		return res, false
	}
	f := strings.Fields(string(b))
	if len(f) < 3 {
		return res, false
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(f[i], 10, 64)
		if err != nil {
			return res, false
		}
		res[i] = v
	}
	return res, true
}
