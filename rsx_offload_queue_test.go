// rsx_offload_queue_test.go - Tests for the offload work queue

package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markerTask carries an id through the queue; it never reaches applyOffloadTask.
type markerTask struct {
	producer int
	seq      int
}

func (markerTask) kind() offloadKind { return OFFLOAD_RAW_COPY }
func (markerTask) size() uint32      { return 0 }

func collect(s taskSlice) []markerTask {
	var out []markerTask
	for ; !s.empty(); s.popFront() {
		out = append(out, s.front().(markerTask))
	}
	return out
}

func TestOffloadQueue_PopAllIsFIFO(t *testing.T) {
	var q offloadQueue
	for i := range 10 {
		q.push(markerTask{seq: i})
	}

	got := collect(q.popAll())
	require.Len(t, got, 10)
	for i, task := range got {
		assert.Equal(t, i, task.seq)
	}
}

func TestOffloadQueue_PopAllEmpty(t *testing.T) {
	var q offloadQueue
	batch := q.popAll()
	assert.True(t, batch.empty())
}

func TestOffloadQueue_PopAllLeavesQueueEmpty(t *testing.T) {
	var q offloadQueue
	q.push(markerTask{seq: 1})
	q.push(markerTask{seq: 2})

	first := q.popAll()
	q.push(markerTask{seq: 3})
	second := q.popAll()

	assert.Equal(t, []markerTask{{seq: 1}, {seq: 2}}, collect(first))
	assert.Equal(t, []markerTask{{seq: 3}}, collect(second))
	assert.True(t, q.popAll().empty())
}

func TestOffloadQueue_BatchIsSingleUse(t *testing.T) {
	var q offloadQueue
	q.push(markerTask{seq: 7})

	batch := q.popAll()
	require.False(t, batch.empty())
	assert.Equal(t, 7, batch.front().(markerTask).seq)
	batch.popFront()
	assert.True(t, batch.empty())
}

func TestOffloadQueue_ConcurrentPushAndDrain(t *testing.T) {
	const producers = 4
	const perProducer = 5000

	var q offloadQueue
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.push(markerTask{producer: p, seq: i})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	next := make([]int, producers)
	total := 0
	drainOnce := func() {
		for _, task := range collect(q.popAll()) {
			// Each producer's pushes must come out in push order.
			require.Equal(t, next[task.producer], task.seq, "producer %d out of order", task.producer)
			next[task.producer]++
			total++
		}
	}
	for {
		select {
		case <-done:
			drainOnce()
			assert.Equal(t, producers*perProducer, total)
			return
		default:
			drainOnce()
		}
	}
}
