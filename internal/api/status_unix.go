//go:build unix

package api

import (
	"runtime"
	"syscall"
	"time"
)

// processUsage returns the CPU time consumed and the peak resident set
// size in bytes.
func processUsage() (cpu time.Duration, maxRSS uint64, ok bool) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, 0, false
	}
	cpu = time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	maxRSS = uint64(ru.Maxrss)
	if runtime.GOOS != "darwin" {
		maxRSS *= 1024 // kilobytes everywhere but macOS
	}
	return cpu, maxRSS, true
}
