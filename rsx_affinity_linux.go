//go:build linux

// rsx_affinity_linux.go - Pins the offload worker to the configured RSX cores

package main

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// applyWorkerAffinity locks the calling goroutine to its OS thread and
// restricts that thread to cpus. The lock is held for the life of the
// goroutine so the mask keeps applying.
func applyWorkerAffinity(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity %v: %w", cpus, err)
	}
	return nil
}
