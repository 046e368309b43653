// rsx_offload_queue.go - Lock-free intrusive work queue between the RSX thread and the offload worker

package main

import "sync/atomic"

type taskNode struct {
	task offloadTask
	next *taskNode
}

// offloadQueue is an intrusive push list. Producers link nodes onto the
// head with a CAS; the consumer detaches the whole list with one swap. It
// is used with a single producer but push is safe from several.
type offloadQueue struct {
	head atomic.Pointer[taskNode]
}

func (q *offloadQueue) push(t offloadTask) {
	n := &taskNode{task: t}
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// popAll detaches every pending task and returns them oldest first.
// Pushes after the swap land in a fresh list.
func (q *offloadQueue) popAll() taskSlice {
	n := q.head.Swap(nil)

	// The list is newest first; reverse it in place.
	var fifo *taskNode
	for n != nil {
		next := n.next
		n.next = fifo
		fifo = n
		n = next
	}
	return taskSlice{head: fifo}
}

// taskSlice is a detached batch. Each task is produced once; popping
// consumes it.
type taskSlice struct {
	head *taskNode
}

func (s taskSlice) empty() bool {
	return s.head == nil
}

func (s taskSlice) front() offloadTask {
	return s.head.task
}

func (s *taskSlice) popFront() {
	n := s.head
	s.head = n.next
	n.next = nil
	n.task = nil
}
