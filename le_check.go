//go:build amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm

// le_check.go - IntuitionRSX requires a little-endian host.
//
// Emulated index buffers are written as little-endian u16 and handed to the
// host GPU as native index data. The sibling file be_unsupported.go
// contains a deliberate compile error for any architecture not listed here.

package main
