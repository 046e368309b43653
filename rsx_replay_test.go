// rsx_replay_test.go - Tests for Lua replay scripts

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newTestReplay(t *testing.T, immediate uint32) (*offloadReplay, *DMAManager) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Video.ImmediateTransferSize = immediate
	dma := NewDMAManager(cfg)
	r := newOffloadReplay(dma, NewGuestMemory(1<<20))
	t.Cleanup(r.Close)
	return r, dma
}

func TestReplay_CopyAndChecksum(t *testing.T) {
	r, dma := newTestReplay(t, 64)

	err := r.RunString(context.Background(), `
		local src = alloc(8192)
		local dst = alloc(8192)
		for i = 0, 8191 do poke(src + i, i % 251) end
		copy(dst, src, 8192)
		sync()
		assert(checksum(dst, 8192) == checksum(src, 8192), "copy mismatch")
		assert(peek(dst + 300) == 300 % 251)
		result_stats = stats()
	`)
	require.NoError(t, err)

	stats := dma.Stats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Processed)
}

func TestReplay_CopyVectorAndPoke32(t *testing.T) {
	r, _ := newTestReplay(t, 2)

	err := r.RunString(context.Background(), `
		local dst = alloc(16)
		copy_vector(dst, {0xDE, 0xAD, 0xBE, 0xEF})
		sync()
		assert(peek32(dst) == 0xDEADBEEF, "vector copy mismatch")
		poke32(dst + 4, 0x01020304)
		assert(peek(dst + 4) == 1 and peek(dst + 7) == 4)
		fill(dst + 8, 8, 0x7f)
		assert(peek(dst + 15) == 0x7f)
	`)
	require.NoError(t, err)
}

func TestReplay_EmulateIndexedMatchesDirect(t *testing.T) {
	r, _ := newTestReplay(t, 64)

	err := r.RunString(context.Background(), `
		n = index_size("quads", 400)
		dst = alloc(n)
		written = emulate_indexed(dst, "quads", 400)
		sync()
	`)
	require.NoError(t, err)

	n := uint32(r.L.GetGlobal("n").(lua.LNumber))
	dst := uint32(r.L.GetGlobal("dst").(lua.LNumber))
	require.Equal(t, IndexBufferSize(PRIMITIVE_QUADS, 400), n)
	assert.Equal(t, lua.LNumber(n), r.L.GetGlobal("written"))

	want := make([]byte, n)
	WriteIndexArrayForNonIndexedNonNativePrimitive(want, PRIMITIVE_QUADS, 400)
	assert.Equal(t, want, r.mem.Slice(dst, n))
}

func TestReplay_OutOfBoundsRaises(t *testing.T) {
	r, _ := newTestReplay(t, 64)

	err := r.RunString(context.Background(), `copy(0, 1048000, 4096)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of bounds")

	err = r.RunString(context.Background(), `peek(-1)`)
	assert.Error(t, err)
}

func TestReplay_UnknownPrimitive(t *testing.T) {
	r, _ := newTestReplay(t, 64)
	err := r.RunString(context.Background(), `emulate_indexed(0, "hexagons", 6)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown primitive type")
}

func TestReplay_JoinEndsSession(t *testing.T) {
	r, dma := newTestReplay(t, 64)

	err := r.RunString(context.Background(), `
		local dst = alloc(4096)
		copy_vector(dst, {1, 2, 3})
		join()
		s = stats()
		assert(s.state == "finished")
		copy(dst, dst + 2048, 1024)
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call init() first")
	assert.Equal(t, WORKER_FINISHED, dma.Stats().State)

	require.NoError(t, r.RunString(context.Background(), `
		init()
		local s = stats()
		assert(s.enqueued == 0 and s.processed == 0)
	`))
}

func TestReplay_RunFile(t *testing.T) {
	r, dma := newTestReplay(t, 64)

	path := filepath.Join(t.TempDir(), "burst.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		local a = alloc(65536)
		local b = alloc(65536)
		fill(a, 65536, 9)
		for i = 0, 15 do copy(b + i * 4096, a + i * 4096, 4096) end
		sync()
	`), 0644))

	require.NoError(t, r.RunFile(context.Background(), path))
	assert.Equal(t, uint64(16), dma.Stats().Processed)

	err := r.RunFile(context.Background(), filepath.Join(t.TempDir(), "absent.lua"))
	assert.Error(t, err)
}

func TestReplay_ContextCancel(t *testing.T) {
	r, _ := newTestReplay(t, 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunString(ctx, `while true do end`)
	assert.Error(t, err)
}

func TestReplay_DirectAccessSeesQueuedWrites(t *testing.T) {
	r, dma := newTestReplay(t, 64)

	// No explicit sync(): peek and checksum must still see the queued copies.
	err := r.RunString(context.Background(), `
		local src = alloc(65536)
		local dst = alloc(65536)
		fill(src, 65536, 0x5a)
		for i = 0, 15 do copy(dst + i * 4096, src + i * 4096, 4096) end
		assert(peek(dst + 65535) == 0x5a, "peek raced the worker")
		for i = 0, 15 do copy(dst + i * 4096, src, 4096) end
		assert(checksum(dst, 65536) == checksum(src, 65536), "checksum raced the worker")
		copy_vector(dst, {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
			17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32,
			33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48,
			49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 63, 64, 65})
		assert(peek32(dst) == 0x01020304, "peek32 raced the worker")
	`)
	require.NoError(t, err)

	stats := dma.Stats()
	assert.Equal(t, uint64(33), stats.Enqueued)
	assert.Equal(t, stats.Enqueued, stats.Processed)
}
