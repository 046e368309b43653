// rsx_replay.go - Lua-scripted replay of RSX upload traffic through the offload manager

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
rsx_replay.go - Offload Replay Scripts

Captured upload bursts are reproduced as small Lua scripts driving a
DMAManager over a private GuestMemory. Scripts see guest addresses only:

    alloc(size)                   -> addr
    poke(addr, b) / peek(addr)    byte access
    poke32(addr, v) / peek32(addr)
    fill(addr, len, b)
    copy(dst, src, len)           DMAManager.Copy
    copy_vector(dst, {b, ...})    DMAManager.CopyVector
    emulate_indexed(dst, prim, n) DMAManager.EmulateAsIndexed, returns bytes
    index_size(prim, n)           bytes needed for emulate_indexed
    checksum(addr, len)           CRC-32 of a guest range
    init() / sync() / join()
    stats()                       -> {enqueued, processed, immediate, state}

Scripts are untrusted input, so every range is checked here before it
reaches the offload core. Direct guest access (poke, peek, fill, checksum)
syncs the offload worker first, so a script never observes a half-applied
queue whether or not it calls sync() itself.
*/

package main

import (
	"context"
	"fmt"
	"hash/crc32"

	lua "github.com/yuin/gopher-lua"
)

type offloadReplay struct {
	L      *lua.LState
	mem    *GuestMemory
	heap   *guestAllocator
	dma    *DMAManager
	active bool
}

func newOffloadReplay(dma *DMAManager, mem *GuestMemory) *offloadReplay {
	r := &offloadReplay{
		L:    lua.NewState(),
		mem:  mem,
		heap: newGuestAllocator(mem),
		dma:  dma,
	}
	r.register()
	return r
}

func (r *offloadReplay) Close() {
	if r.active {
		r.dma.Join()
		r.active = false
	}
	r.L.Close()
}

// RunString executes src, starting an offload session if none is active.
func (r *offloadReplay) RunString(ctx context.Context, src string) error {
	r.begin(ctx)
	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("replay script: %w", err)
	}
	return nil
}

func (r *offloadReplay) RunFile(ctx context.Context, path string) error {
	r.begin(ctx)
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("replay %s: %w", path, err)
	}
	return nil
}

func (r *offloadReplay) begin(ctx context.Context) {
	r.L.SetContext(ctx)
	if !r.active {
		r.dma.Init()
		r.active = true
	}
}

func (r *offloadReplay) register() {
	fns := map[string]lua.LGFunction{
		"alloc":           r.luaAlloc,
		"poke":            r.luaPoke,
		"peek":            r.luaPeek,
		"poke32":          r.luaPoke32,
		"peek32":          r.luaPeek32,
		"fill":            r.luaFill,
		"copy":            r.luaCopy,
		"copy_vector":     r.luaCopyVector,
		"emulate_indexed": r.luaEmulateIndexed,
		"index_size":      r.luaIndexSize,
		"checksum":        r.luaChecksum,
		"init":            r.luaInit,
		"sync":            r.luaSync,
		"join":            r.luaJoin,
		"stats":           r.luaStats,
	}
	for name, fn := range fns {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
}

// checkRange validates [addr, addr+length) against guest memory.
func (r *offloadReplay) checkRange(L *lua.LState, addr, length int) (uint32, uint32) {
	if addr < 0 || length < 0 || uint64(addr)+uint64(length) > uint64(r.mem.Size()) {
		L.RaiseError("guest range 0x%x+%d out of bounds (size 0x%x)", addr, length, r.mem.Size())
	}
	return uint32(addr), uint32(length)
}

// settle waits out queued tasks before the script touches guest memory
// directly.
func (r *offloadReplay) settle() {
	r.dma.Sync()
}

func (r *offloadReplay) checkActive(L *lua.LState) {
	if !r.active {
		L.RaiseError("offload session joined; call init() first")
	}
}

func (r *offloadReplay) luaAlloc(L *lua.LState) int {
	size := L.CheckInt(1)
	if size < 0 {
		L.ArgError(1, "negative size")
	}
	addr, ok := r.heap.alloc(uint32(size))
	if !ok {
		L.RaiseError("guest memory exhausted allocating %d bytes", size)
	}
	L.Push(lua.LNumber(addr))
	return 1
}

func (r *offloadReplay) luaPoke(L *lua.LState) int {
	r.settle()
	addr, _ := r.checkRange(L, L.CheckInt(1), 1)
	r.mem.Write8(addr, uint8(L.CheckInt(2)))
	return 0
}

func (r *offloadReplay) luaPeek(L *lua.LState) int {
	r.settle()
	addr, _ := r.checkRange(L, L.CheckInt(1), 1)
	L.Push(lua.LNumber(r.mem.Read8(addr)))
	return 1
}

func (r *offloadReplay) luaPoke32(L *lua.LState) int {
	r.settle()
	addr, _ := r.checkRange(L, L.CheckInt(1), 4)
	r.mem.Write32(addr, uint32(L.CheckInt64(2)))
	return 0
}

func (r *offloadReplay) luaPeek32(L *lua.LState) int {
	r.settle()
	addr, _ := r.checkRange(L, L.CheckInt(1), 4)
	L.Push(lua.LNumber(r.mem.Read32(addr)))
	return 1
}

func (r *offloadReplay) luaFill(L *lua.LState) int {
	r.settle()
	addr, length := r.checkRange(L, L.CheckInt(1), L.CheckInt(2))
	value := uint8(L.CheckInt(3))
	buf := r.mem.Slice(addr, length)
	for i := range buf {
		buf[i] = value
	}
	return 0
}

func (r *offloadReplay) luaCopy(L *lua.LState) int {
	r.checkActive(L)
	length := L.CheckInt(3)
	dst, n := r.checkRange(L, L.CheckInt(1), length)
	src, _ := r.checkRange(L, L.CheckInt(2), length)
	r.dma.Copy(r.mem.Slice(dst, n), r.mem.Slice(src, n), n)
	return 0
}

func (r *offloadReplay) luaCopyVector(L *lua.LState) int {
	r.checkActive(L)
	tbl := L.CheckTable(2)
	data := make([]byte, tbl.Len())
	for i := range data {
		v, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok {
			L.ArgError(2, fmt.Sprintf("element %d is not a number", i+1))
		}
		data[i] = byte(v)
	}
	dst, n := r.checkRange(L, L.CheckInt(1), len(data))
	r.dma.CopyVector(r.mem.Slice(dst, n), data, n)
	return 0
}

func (r *offloadReplay) checkPrimitive(L *lua.LState, n int) PrimitiveType {
	prim, err := ParsePrimitiveType(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return prim
}

func (r *offloadReplay) luaEmulateIndexed(L *lua.LState) int {
	r.checkActive(L)
	prim := r.checkPrimitive(L, 2)
	count := L.CheckInt(3)
	if count < 0 {
		L.ArgError(3, "negative vertex count")
	}
	size := IndexBufferSize(prim, uint32(count))
	dst, n := r.checkRange(L, L.CheckInt(1), int(size))
	r.dma.EmulateAsIndexed(r.mem.Slice(dst, n), prim, uint32(count))
	L.Push(lua.LNumber(size))
	return 1
}

func (r *offloadReplay) luaIndexSize(L *lua.LState) int {
	prim := r.checkPrimitive(L, 1)
	count := L.CheckInt(2)
	if count < 0 {
		L.ArgError(2, "negative vertex count")
	}
	L.Push(lua.LNumber(IndexBufferSize(prim, uint32(count))))
	return 1
}

func (r *offloadReplay) luaChecksum(L *lua.LState) int {
	r.settle()
	addr, length := r.checkRange(L, L.CheckInt(1), L.CheckInt(2))
	L.Push(lua.LNumber(crc32.ChecksumIEEE(r.mem.Slice(addr, length))))
	return 1
}

func (r *offloadReplay) luaInit(L *lua.LState) int {
	r.dma.Init()
	r.active = true
	return 0
}

func (r *offloadReplay) luaSync(L *lua.LState) int {
	r.dma.Sync()
	return 0
}

func (r *offloadReplay) luaJoin(L *lua.LState) int {
	r.dma.Join()
	r.active = false
	return 0
}

func (r *offloadReplay) luaStats(L *lua.LState) int {
	stats := r.dma.Stats()
	tbl := L.NewTable()
	L.SetField(tbl, "enqueued", lua.LNumber(stats.Enqueued))
	L.SetField(tbl, "processed", lua.LNumber(stats.Processed))
	L.SetField(tbl, "immediate", lua.LNumber(stats.Immediate))
	L.SetField(tbl, "state", lua.LString(stats.State.String()))
	L.Push(tbl)
	return 1
}
