package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestQueue_DrainLimit(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	assert.Equal(t, []int{0, 1, 2}, q.Drain(3))
	assert.Equal(t, 7, q.Len())
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, q.Drain(0))
	assert.Nil(t, q.Drain(4))
}

func TestQueue_InterleavedPushDrainPop(t *testing.T) {
	tests := []struct {
		name    string
		backlog int
		push    int
		drain   int
		pop     bool
	}{
		{name: "drain keeps pace", backlog: 0, push: 5, drain: 5},
		{name: "steady backlog", backlog: 30, push: 20, drain: 20},
		{name: "drain below rate then pop", backlog: 3, push: 4, drain: 3, pop: true},
		{name: "drain above rate", backlog: 100, push: 2, drain: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue[int]()
			next, want := 0, 0
			for ; next < tt.backlog; next++ {
				q.Push(next)
			}

			for round := 0; round < 20000; round++ {
				for i := 0; i < tt.push; i++ {
					q.Push(next)
					next++
				}
				for _, v := range q.Drain(tt.drain) {
					require.Equal(t, want, v)
					want++
				}
				if tt.pop {
					if v, ok := q.Pop(); ok {
						require.Equal(t, want, v)
						want++
					}
				}
			}

			assert.Equal(t, next-want, q.Len())
			assert.Less(t, cap(q.items), 1024+2*q.Len())
		})
	}
}

func TestQueue_PartialDrainReclaimsSlots(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 30; i++ {
		q.Push(i)
	}
	for round := 0; round < 100000; round++ {
		for i := 0; i < 20; i++ {
			q.Push(i)
		}
		require.Len(t, q.Drain(20), 20)
	}

	assert.Equal(t, 30, q.Len())
	assert.Less(t, cap(q.items), 1024)
	assert.Less(t, q.head, 1024)
}

func TestQueue_RemoveAndIndex(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Push("b")
	q.Push("c")
	_, _ = q.Pop()

	assert.Equal(t, 1, q.Index(func(s string) bool { return s == "c" }))
	assert.True(t, q.Remove(func(s string) bool { return s == "b" }))
	assert.False(t, q.Remove(func(s string) bool { return s == "b" }))
	assert.Equal(t, 0, q.Index(func(s string) bool { return s == "c" }))

	v, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	const total = 10000
	q := NewQueue[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(i)
		}
	}()

	got := make([]int, 0, total)
	for len(got) < total {
		if v, ok := q.Pop(); ok {
			got = append(got, v)
		}
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}

func TestPriorityQueue_StableOrder(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("low-1", 0)
	pq.Enqueue("high-1", 2)
	pq.Enqueue("low-2", 0)
	pq.Enqueue("high-2", 2)
	pq.Enqueue("mid", 1)

	head, ok := pq.Peek()
	require.True(t, ok)
	assert.Equal(t, "high-1", head)

	assert.Equal(t, []string{"high-1", "high-2", "mid", "low-1", "low-2"}, pq.DequeueAll())
	assert.True(t, pq.IsEmpty())

	_, ok = pq.Dequeue()
	assert.False(t, ok)
}

func TestIterator_FilterFind(t *testing.T) {
	it := From([]int{1, 2, 3, 4, 5, 6})
	even := it.Filter(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{2, 4, 6}, even.Collect())
	assert.Equal(t, 3, even.Count())

	v, ok := it.Find(func(v int) bool { return v > 4 })
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	sorted := From([]int{3, 1, 2}).Sort(func(a, b int) bool { return a < b }).Collect()
	assert.Equal(t, []int{1, 2, 3}, sorted)
}
