// rsx_offload_task.go - Deferred memory operations executed by the offload worker

package main

import "fmt"

type offloadKind uint8

const (
	OFFLOAD_RAW_COPY offloadKind = iota
	OFFLOAD_VECTOR_COPY
	OFFLOAD_INDEX_EMULATE
	offloadKindCount
)

func (k offloadKind) String() string {
	switch k {
	case OFFLOAD_RAW_COPY:
		return "raw_copy"
	case OFFLOAD_VECTOR_COPY:
		return "vector_copy"
	case OFFLOAD_INDEX_EMULATE:
		return "index_emulate"
	}
	return fmt.Sprintf("offload_kind(%d)", uint8(k))
}

// offloadTask is one queued memory operation. The set of implementations is
// closed: only the types in this file satisfy it.
type offloadTask interface {
	kind() offloadKind
	size() uint32
}

// rawCopyTask copies from guest memory the caller keeps alive until Sync.
type rawCopyTask struct {
	dst []byte
	src []byte
}

// vectorCopyTask owns a private copy of its source bytes.
type vectorCopyTask struct {
	dst  []byte
	data []byte
}

// indexEmulateTask synthesizes count vertices' worth of indices into dst.
type indexEmulateTask struct {
	dst       []byte
	primitive PrimitiveType
	count     uint32
}

func (t rawCopyTask) kind() offloadKind      { return OFFLOAD_RAW_COPY }
func (t vectorCopyTask) kind() offloadKind   { return OFFLOAD_VECTOR_COPY }
func (t indexEmulateTask) kind() offloadKind { return OFFLOAD_INDEX_EMULATE }

func (t rawCopyTask) size() uint32    { return uint32(len(t.src)) }
func (t vectorCopyTask) size() uint32 { return uint32(len(t.data)) }
func (t indexEmulateTask) size() uint32 {
	return IndexBufferSize(t.primitive, t.count)
}

// applyOffloadTask performs t against guest memory. Any type outside the
// closed set means a corrupted queue and is fatal.
func applyOffloadTask(t offloadTask) {
	switch task := t.(type) {
	case rawCopyTask:
		copy(task.dst, task.src)
	case vectorCopyTask:
		copy(task.dst, task.data)
	case indexEmulateTask:
		WriteIndexArrayForNonIndexedNonNativePrimitive(task.dst, task.primitive, task.count)
	default:
		panic(fmt.Sprintf("rsx: unreachable offload task kind %T", t))
	}
}
