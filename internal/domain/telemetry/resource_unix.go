//go:build !windows

package telemetry

import "syscall"

// processCPUSeconds returns total user+system CPU time consumed by this
// process so far, via getrusage(RUSAGE_SELF). No pack dependency covers
// CPU sampling, so this follows the same stdlib syscall approach already
// used for graceful-shutdown signaling (cmd/process_unix.go).
func processCPUSeconds() (float64, error) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	user := float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
	sys := float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
	return user + sys, nil
}

// processRSSBytes returns the process's maximum resident set size.
// ru.Maxrss is reported in kilobytes on Linux (the only unix target this
// proxy ships for).
func processRSSBytes() (uint64, error) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return uint64(ru.Maxrss) * 1024, nil
}
