// rsx_primitive.go - RSX primitive topologies and index synthesis for non-native primitives

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
rsx_primitive.go - Primitive Topologies and Index Emulation

The RSX draws line loops, triangle fans, quads, quad strips and polygons
directly. Modern backends only accept lists and strips, so draws using the
other topologies are rewritten as indexed triangle (or line) lists. The
index values are synthesized here; the vertex data is left untouched.

Index buffers are consumed by the host GPU, so they are written in host
byte order as 16-bit values.
*/

package main

import (
	"encoding/binary"
	"fmt"
)

type PrimitiveType uint8

// Values follow the NV4097 SET_BEGIN_END encoding.
const (
	PRIMITIVE_INVALID PrimitiveType = iota
	PRIMITIVE_POINTS
	PRIMITIVE_LINES
	PRIMITIVE_LINE_LOOP
	PRIMITIVE_LINE_STRIP
	PRIMITIVE_TRIANGLES
	PRIMITIVE_TRIANGLE_STRIP
	PRIMITIVE_TRIANGLE_FAN
	PRIMITIVE_QUADS
	PRIMITIVE_QUAD_STRIP
	PRIMITIVE_POLYGON
)

const INDEX_SIZE_U16 = 2

var primitiveNames = map[PrimitiveType]string{
	PRIMITIVE_POINTS:         "points",
	PRIMITIVE_LINES:          "lines",
	PRIMITIVE_LINE_LOOP:      "line_loop",
	PRIMITIVE_LINE_STRIP:     "line_strip",
	PRIMITIVE_TRIANGLES:      "triangles",
	PRIMITIVE_TRIANGLE_STRIP: "triangle_strip",
	PRIMITIVE_TRIANGLE_FAN:   "triangle_fan",
	PRIMITIVE_QUADS:          "quads",
	PRIMITIVE_QUAD_STRIP:     "quad_strip",
	PRIMITIVE_POLYGON:        "polygon",
}

func (p PrimitiveType) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}
	return fmt.Sprintf("primitive(%d)", uint8(p))
}

// ParsePrimitiveType maps a topology name back to its PrimitiveType.
func ParsePrimitiveType(name string) (PrimitiveType, error) {
	for p, n := range primitiveNames {
		if n == name {
			return p, nil
		}
	}
	return PRIMITIVE_INVALID, fmt.Errorf("unknown primitive type %q", name)
}

// IsNativePrimitive reports whether a backend can draw p without index emulation.
func IsNativePrimitive(p PrimitiveType) bool {
	switch p {
	case PRIMITIVE_POINTS, PRIMITIVE_LINES, PRIMITIVE_LINE_STRIP,
		PRIMITIVE_TRIANGLES, PRIMITIVE_TRIANGLE_STRIP:
		return true
	}
	return false
}

// IndexCountForPrimitive returns how many indices the emulated draw of
// vertexCount vertices needs.
func IndexCountForPrimitive(p PrimitiveType, vertexCount uint32) uint32 {
	switch p {
	case PRIMITIVE_LINE_LOOP:
		if vertexCount == 0 {
			return 0
		}
		return vertexCount + 1
	case PRIMITIVE_TRIANGLE_FAN, PRIMITIVE_POLYGON:
		if vertexCount < 3 {
			return 0
		}
		return (vertexCount - 2) * 3
	case PRIMITIVE_QUADS:
		return (vertexCount / 4) * 6
	case PRIMITIVE_QUAD_STRIP:
		if vertexCount < 4 {
			return 0
		}
		return ((vertexCount - 2) / 2) * 6
	default:
		return vertexCount
	}
}

// IndexBufferSize returns the byte size of the emulated index buffer.
func IndexBufferSize(p PrimitiveType, vertexCount uint32) uint32 {
	return IndexCountForPrimitive(p, vertexCount) * INDEX_SIZE_U16
}

// WriteIndexArrayForNonIndexedNonNativePrimitive fills dst with the 16-bit
// indices that draw vertexCount vertices of p as a list. dst must hold at
// least IndexBufferSize(p, vertexCount) bytes.
func WriteIndexArrayForNonIndexedNonNativePrimitive(dst []byte, p PrimitiveType, vertexCount uint32) {
	put := func(slot, value uint32) {
		binary.LittleEndian.PutUint16(dst[slot*INDEX_SIZE_U16:], uint16(value))
	}

	switch p {
	case PRIMITIVE_LINE_LOOP:
		if vertexCount == 0 {
			return
		}
		for i := range vertexCount {
			put(i, i)
		}
		put(vertexCount, 0)

	case PRIMITIVE_TRIANGLE_FAN, PRIMITIVE_POLYGON:
		if vertexCount < 3 {
			return
		}
		for i := range vertexCount - 2 {
			put(3*i, 0)
			put(3*i+1, i+1)
			put(3*i+2, i+2)
		}

	case PRIMITIVE_QUADS:
		for i := range vertexCount / 4 {
			// First triangle
			put(6*i, 4*i)
			put(6*i+1, 4*i+1)
			put(6*i+2, 4*i+2)
			// Second triangle
			put(6*i+3, 4*i+2)
			put(6*i+4, 4*i+3)
			put(6*i+5, 4*i)
		}

	case PRIMITIVE_QUAD_STRIP:
		if vertexCount < 4 {
			return
		}
		for i := range (vertexCount - 2) / 2 {
			put(6*i, 2*i)
			put(6*i+1, 2*i+1)
			put(6*i+2, 2*i+2)
			put(6*i+3, 2*i+2)
			put(6*i+4, 2*i+1)
			put(6*i+5, 2*i+3)
		}

	default:
		for i := range vertexCount {
			put(i, i)
		}
	}
}
