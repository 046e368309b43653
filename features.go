// features.go - Build feature registry and the features report

package main

import (
	"fmt"
	"io"
	"runtime"
	"sort"
)

// Version is overridden at link time.
var Version = "dev"

// compiledFeatures tracks build-time feature flags via init() registration.
var compiledFeatures []string

func printFeatures(w io.Writer, cfg Config) {
	fmt.Fprintf(w, "IntuitionRSX %s\n", Version)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  CPUs:       %d\n", runtime.NumCPU())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Compiled features:")

	features := append([]string(nil), compiledFeatures...)
	sort.Strings(features)
	for _, f := range features {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if len(features) == 0 {
		fmt.Fprintln(w, "  (none)")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Offload:")
	fmt.Fprintf(w, "  multithreaded:      %v\n", cfg.Video.MultithreadedRSX)
	fmt.Fprintf(w, "  immediate transfer: %d bytes\n", cfg.Video.ImmediateTransferSize)
	fmt.Fprintf(w, "  thread scheduler:   %v %v\n", cfg.Core.ThreadSchedulerEnabled, cfg.Core.RSXAffinity)
	fmt.Fprintf(w, "  spins (sync/idle):  %d/%d\n", cfg.Offload.SyncSpins, cfg.Offload.IdleSpins)
}
