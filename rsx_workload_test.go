// rsx_workload_test.go - End-to-end frame workload runs against the software queue

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTestWorkload(t *testing.T, cfg Config, wl workloadConfig) workloadResult {
	t.Helper()
	dma := NewDMAManager(cfg)
	dma.Init()
	defer dma.Join()

	ring, err := NewCommandBufferRing(NewSoftwareCommandQueue(false), dma, 4, time.Second, nil)
	require.NoError(t, err)
	defer ring.Destroy()

	res, err := newFrameWorkload(wl, dma, ring).Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestFrameWorkload_VerifiedOffload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Video.ImmediateTransferSize = 512

	res := runTestWorkload(t, cfg, workloadConfig{
		Frames:        8,
		DrawsPerFrame: 32,
		MaxUpload:     16 * 1024,
		Seed:          3,
		Verify:        true,
	})

	assert.Equal(t, 8, res.Frames)
	assert.Equal(t, 8, res.Submitted)
	assert.Equal(t, 8*32, res.Draws)
	assert.NotZero(t, res.Uploaded)
	assert.NotZero(t, res.Indices)
}

func TestFrameWorkload_VerifiedInline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Video.MultithreadedRSX = false

	res := runTestWorkload(t, cfg, workloadConfig{
		Frames:        4,
		DrawsPerFrame: 16,
		MaxUpload:     8 * 1024,
		Seed:          9,
		Verify:        true,
	})
	assert.Equal(t, 4, res.Frames)
}

func TestFrameWorkload_StopsOnCancel(t *testing.T) {
	dma := NewDMAManager(DefaultConfig())
	dma.Init()
	defer dma.Join()

	ring, err := NewCommandBufferRing(NewSoftwareCommandQueue(false), dma, 2, time.Second, nil)
	require.NoError(t, err)
	defer ring.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newFrameWorkload(workloadConfig{Frames: 100}, dma, ring).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Frames)
}

func TestFrameWorkload_ReportsFrameToStatus(t *testing.T) {
	dma := NewDMAManager(DefaultConfig())
	dma.Init()
	defer dma.Join()

	ring, err := NewCommandBufferRing(NewSoftwareCommandQueue(false), dma, 2, time.Second, nil)
	require.NoError(t, err)
	defer ring.Destroy()

	runtimeStatus.setSession("software", dma)
	defer runtimeStatus.clear()

	_, err = newFrameWorkload(workloadConfig{Frames: 3, DrawsPerFrame: 4, MaxUpload: 1024}, dma, ring).Run(context.Background())
	require.NoError(t, err)

	snap := runtimeStatus.snapshot()
	assert.Equal(t, uint64(3), snap.frame)
	assert.Equal(t, "software", snap.backend)
}
