//go:build windows

package telemetry

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// processCPUSeconds returns total kernel+user CPU time consumed by this
// process so far, via GetProcessTimes.
func processCPUSeconds() (float64, error) {
	h := windows.CurrentProcess()
	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return 0, err
	}
	return filetimeSeconds(kernel) + filetimeSeconds(user), nil
}

// processRSSBytes returns the process's current working set size.
func processRSSBytes() (uint64, error) {
	h := windows.CurrentProcess()
	var counters windows.PROCESS_MEMORY_COUNTERS
	if err := windows.GetProcessMemoryInfo(h, &counters, uint32(unsafe.Sizeof(counters))); err != nil {
		return 0, err
	}
	return uint64(counters.WorkingSetSize), nil
}

func filetimeSeconds(ft windows.Filetime) float64 {
	ns100 := int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime)
	return float64(ns100) / 1e7
}
