//go:build !linux

// rsx_affinity_other.go - Affinity hint fallback for platforms without sched_setaffinity

package main

import "runtime"

// applyWorkerAffinity only locks the OS thread; the CPU mask is ignored.
func applyWorkerAffinity(cpus []int) error {
	if len(cpus) > 0 {
		runtime.LockOSThread()
	}
	return nil
}
