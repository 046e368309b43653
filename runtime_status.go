// runtime_status.go - Live session status shared with the periodic reporter

package main

import (
	"context"
	"sync"
	"time"
)

type runtimeStatusSnapshot struct {
	backend string
	dma     *DMAManager
	frame   uint64
	started time.Time
}

type runtimeStatusStore struct {
	mu sync.RWMutex
	runtimeStatusSnapshot
}

func (s *runtimeStatusStore) setSession(backend string, dma *DMAManager) {
	s.mu.Lock()
	s.backend = backend
	s.dma = dma
	s.frame = 0
	s.started = time.Now()
	s.mu.Unlock()
}

func (s *runtimeStatusStore) setFrame(frame uint64) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

func (s *runtimeStatusStore) clear() {
	s.mu.Lock()
	s.runtimeStatusSnapshot = runtimeStatusSnapshot{}
	s.mu.Unlock()
}

func (s *runtimeStatusStore) snapshot() runtimeStatusSnapshot {
	s.mu.RLock()
	snap := s.runtimeStatusSnapshot
	s.mu.RUnlock()
	return snap
}

var runtimeStatus = &runtimeStatusStore{}

// reportRuntimeStatus logs the session status every interval until ctx ends.
func reportRuntimeStatus(ctx context.Context, store *runtimeStatusStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := store.snapshot()
			if snap.dma == nil {
				continue
			}
			stats := snap.dma.Stats()
			logInfo("offload status",
				"backend", snap.backend,
				"frame", snap.frame,
				"uptime", time.Since(snap.started).Round(time.Millisecond),
				"worker", stats.State.String(),
				"enqueued", stats.Enqueued,
				"processed", stats.Processed,
				"immediate", stats.Immediate)
		}
	}
}
