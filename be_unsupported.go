//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// Synthesized index buffers are stored little-endian and consumed by the
// host GPU as native-order u16 values.
var _ = "IntuitionRSX requires a little-endian host" + 1
