// guest_memory.go - Flat guest address space shared by the RSX front end and the offload worker

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
guest_memory.go - Guest Memory for the RSX offload core

The emulated console exposes a single big-endian address space. Command
processing reads vertex and index data out of it and the offload worker
writes transformed data back into it, always through byte windows returned
by Slice.

Core Features:

    A contiguous block of guest memory allocated once per session.
    Big-endian 8/32-bit accessors matching the emulated CPU's view.
    Slice returns the backing bytes of a range without copying, so offloaded
    tasks write straight into guest memory.

Concurrency:

    GuestMemory performs no locking. Ranges handed to the offload worker
    belong to the worker until DMAManager.Sync returns; the caller must not
    touch them in the meantime. Accessors on disjoint ranges are safe to use
    from different goroutines.

Bounds:

    Addresses are not validated beyond Go's own slice checks. A bad address
    is a caller bug and panics.
*/

package main

import "encoding/binary"

const (
	DEFAULT_GUEST_MEMORY_SIZE = 16 * 1024 * 1024
	GUEST_PAGE_SIZE           = 0x1000
)

type GuestMemory struct {
	memory []byte
}

func NewGuestMemory(size int) *GuestMemory {
	if size <= 0 {
		size = DEFAULT_GUEST_MEMORY_SIZE
	}
	return &GuestMemory{memory: make([]byte, size)}
}

// Size returns the size of the address space in bytes.
func (m *GuestMemory) Size() uint32 {
	return uint32(len(m.memory))
}

// Slice returns the guest bytes in [addr, addr+length) without copying.
func (m *GuestMemory) Slice(addr, length uint32) []byte {
	end := uint64(addr) + uint64(length)
	return m.memory[addr:end:end]
}

func (m *GuestMemory) Read8(addr uint32) uint8 {
	return m.memory[addr]
}

func (m *GuestMemory) Write8(addr uint32, value uint8) {
	m.memory[addr] = value
}

func (m *GuestMemory) Read32(addr uint32) uint32 {
	return binary.BigEndian.Uint32(m.memory[addr : addr+4])
}

func (m *GuestMemory) Write32(addr uint32, value uint32) {
	binary.BigEndian.PutUint32(m.memory[addr:addr+4], value)
}

// Reset zeroes the whole address space a page at a time.
func (m *GuestMemory) Reset() {
	for i := 0; i < len(m.memory); i += GUEST_PAGE_SIZE {
		end := min(i+GUEST_PAGE_SIZE, len(m.memory))
		clear(m.memory[i:end])
	}
}

// guestAllocator hands out page-aligned ranges from the bottom of a
// GuestMemory. It never frees; a session resets it wholesale.
type guestAllocator struct {
	mem  *GuestMemory
	next uint32
}

func newGuestAllocator(mem *GuestMemory) *guestAllocator {
	return &guestAllocator{mem: mem}
}

// alloc returns the base address of a fresh range of at least size bytes,
// or false when the address space is exhausted.
func (a *guestAllocator) alloc(size uint32) (uint32, bool) {
	if size == 0 {
		size = 1
	}
	aligned := (uint64(size) + GUEST_PAGE_SIZE - 1) &^ (GUEST_PAGE_SIZE - 1)
	if uint64(a.next)+aligned > uint64(a.mem.Size()) {
		return 0, false
	}
	base := a.next
	a.next += uint32(aligned)
	return base, true
}

func (a *guestAllocator) reset() {
	a.next = 0
}
