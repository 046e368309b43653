// rsx_workload.go - Synthetic frame workload exercising the offload manager and command buffer ring

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine

License: GPLv3 or later
*/

/*
rsx_workload.go - Frame Workload

Each frame stages random vertex data in guest memory, uploads it with a mix
of Copy and CopyVector (some uploads deliberately overwrite the previous
draw's destination after a Sync), emulates index buffers for non-native primitives and
submits the frame's command buffer. Submit syncs the offload worker, after
which the vertex and index heaps are compared with a reference memory that
received the same operations sequentially on the calling goroutine.

Guest layout:

    0x0000000 - 0x0FFFFFF  staging (upload sources)
    0x1000000 - 0x27FFFFF  vertex heap
    0x2800000 - 0x2FFFFFF  index heap
*/

package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	WORKLOAD_STAGING_BASE = 0x0000000
	WORKLOAD_STAGING_SIZE = 0x1000000
	WORKLOAD_VERTEX_BASE  = 0x1000000
	WORKLOAD_VERTEX_SIZE  = 0x1800000
	WORKLOAD_INDEX_BASE   = 0x2800000
	WORKLOAD_INDEX_SIZE   = 0x0800000
	WORKLOAD_MEMORY_SIZE  = 0x3000000

	workloadMaxVertices = 4096
)

var emulatedPrimitives = []PrimitiveType{
	PRIMITIVE_LINE_LOOP,
	PRIMITIVE_TRIANGLE_FAN,
	PRIMITIVE_QUADS,
	PRIMITIVE_QUAD_STRIP,
	PRIMITIVE_POLYGON,
}

type workloadConfig struct {
	Frames        int
	DrawsPerFrame int
	MaxUpload     int
	Seed          uint64
	Verify        bool
}

type workloadResult struct {
	Frames    int
	Draws     int
	Uploaded  uint64
	Indices   uint64
	Elapsed   time.Duration
	Submitted int
}

type frameWorkload struct {
	cfg     workloadConfig
	dma     *DMAManager
	ring    *CommandBufferRing
	mem     *GuestMemory
	ref     *GuestMemory
	rng     *rand.Rand
	scratch []byte
}

func newFrameWorkload(cfg workloadConfig, dma *DMAManager, ring *CommandBufferRing) *frameWorkload {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = 256 * 1024
	}
	if cfg.DrawsPerFrame <= 0 {
		cfg.DrawsPerFrame = 64
	}
	w := &frameWorkload{
		cfg:     cfg,
		dma:     dma,
		ring:    ring,
		mem:     NewGuestMemory(WORKLOAD_MEMORY_SIZE),
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		scratch: make([]byte, cfg.MaxUpload),
	}
	if cfg.Verify {
		w.ref = NewGuestMemory(WORKLOAD_MEMORY_SIZE)
	}
	return w
}

// Run drives cfg.Frames frames, stopping early if ctx is cancelled.
func (w *frameWorkload) Run(ctx context.Context) (workloadResult, error) {
	var res workloadResult
	start := time.Now()

	for frame := range w.cfg.Frames {
		if err := ctx.Err(); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		if err := w.runFrame(frame, &res); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		res.Frames++
		runtimeStatus.setFrame(uint64(res.Frames))
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

func (w *frameWorkload) fillRandom(buf []byte) {
	for i := 0; i < len(buf); i += 8 {
		v := w.rng.Uint64()
		for j := 0; j < 8 && i+j < len(buf); j++ {
			buf[i+j] = byte(v >> (8 * j))
		}
	}
}

func (w *frameWorkload) runFrame(frame int, res *workloadResult) error {
	var staging, vertex, index uint32
	var prevDst, prevLen uint32

	for range w.cfg.DrawsPerFrame {
		n := uint32(1 + w.rng.IntN(w.cfg.MaxUpload))
		if staging+n > WORKLOAD_STAGING_SIZE || vertex+n > WORKLOAD_VERTEX_SIZE {
			break
		}

		dst := WORKLOAD_VERTEX_BASE + vertex
		overlap := prevLen > 0 && w.rng.IntN(4) == 0
		if overlap {
			dst = prevDst
			n = min(n, prevLen)
			// An inline rewrite would otherwise race the queued upload.
			w.dma.Sync()
		}

		switch w.rng.IntN(2) {
		case 0:
			src := WORKLOAD_STAGING_BASE + staging
			staged := w.mem.Slice(src, n)
			w.fillRandom(staged)
			w.dma.Copy(w.mem.Slice(dst, n), staged, n)
			if w.ref != nil {
				copy(w.ref.Slice(dst, n), staged)
			}
			staging += n
		default:
			data := w.scratch[:n]
			w.fillRandom(data)
			w.dma.CopyVector(w.mem.Slice(dst, n), data, n)
			if w.ref != nil {
				copy(w.ref.Slice(dst, n), data)
			}
			// The manager snapshotted the data; clobber it.
			clear(data)
		}
		res.Uploaded += uint64(n)

		if !overlap {
			prevDst, prevLen = dst, n
			vertex += n
		}

		prim := emulatedPrimitives[w.rng.IntN(len(emulatedPrimitives))]
		count := uint32(4 + w.rng.IntN(workloadMaxVertices))
		size := IndexBufferSize(prim, count)
		if index+size <= WORKLOAD_INDEX_SIZE {
			addr := WORKLOAD_INDEX_BASE + index
			w.dma.EmulateAsIndexed(w.mem.Slice(addr, size), prim, count)
			if w.ref != nil {
				WriteIndexArrayForNonIndexedNonNativePrimitive(w.ref.Slice(addr, size), prim, count)
			}
			index += size
			res.Indices += uint64(IndexCountForPrimitive(prim, count))
		}
		res.Draws++
	}

	chunk := w.ring.Current()
	if err := w.ring.Submit(chunk); err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	res.Submitted++

	if w.ref != nil {
		if !bytes.Equal(w.mem.Slice(WORKLOAD_VERTEX_BASE, vertex), w.ref.Slice(WORKLOAD_VERTEX_BASE, vertex)) {
			return fmt.Errorf("frame %d: vertex heap diverged from sequential reference", frame)
		}
		if !bytes.Equal(w.mem.Slice(WORKLOAD_INDEX_BASE, index), w.ref.Slice(WORKLOAD_INDEX_BASE, index)) {
			return fmt.Errorf("frame %d: index heap diverged from sequential reference", frame)
		}
	}

	if _, err := w.ring.Next(); err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	return nil
}
