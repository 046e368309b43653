// runtime_status_test.go - Tests for the session status store and reporter

package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeStatusStore_Lifecycle(t *testing.T) {
	store := &runtimeStatusStore{}
	dma := NewDMAManager(DefaultConfig())

	store.setSession("vulkan", dma)
	store.setFrame(41)
	snap := store.snapshot()
	assert.Equal(t, "vulkan", snap.backend)
	assert.Same(t, dma, snap.dma)
	assert.Equal(t, uint64(41), snap.frame)
	assert.False(t, snap.started.IsZero())

	store.clear()
	assert.Nil(t, store.snapshot().dma)
}

// syncBuffer guards a bytes.Buffer written by the reporter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReportRuntimeStatus_LogsActiveSession(t *testing.T) {
	out := &syncBuffer{}
	initLoggerWithWriter(out, "INFO", "text")
	t.Cleanup(func() { initLoggerWithWriter(os.Stderr, "INFO", "text") })

	store := &runtimeStatusStore{}
	dma := NewDMAManager(DefaultConfig())
	dma.Init()
	defer dma.Join()
	store.setSession("software", dma)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reportRuntimeStatus(ctx, store, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "worker=running")
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
	assert.Contains(t, out.String(), "msg=\"offload status\"")
	assert.Contains(t, out.String(), "backend=software")
}

func TestPrintFeatures(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Video.ImmediateTransferSize = 1024

	printFeatures(&buf, cfg)

	out := buf.String()
	assert.Contains(t, out, "IntuitionRSX "+Version)
	assert.Contains(t, out, "immediate transfer: 1024 bytes")
	assert.Contains(t, out, "multithreaded:      true")
	for _, f := range compiledFeatures {
		assert.Contains(t, out, "  "+f+"\n")
	}
}
