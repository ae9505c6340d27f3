//go:build linux

package host

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// load averages are fixed point with this many fractional bits
const loadShift = 16

func DefaultProbe() (Sample, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Sample{}, errors.Wrap(err, "sysinfo")
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return Sample{
		CPUs:         runtime.NumCPU(),
		Load1:        float64(info.Loads[0]) / float64(1<<loadShift),
		TotalMem:     uint64(info.Totalram) * unit,
		AvailableMem: (uint64(info.Freeram) + uint64(info.Bufferram)) * unit,
	}, nil
}
