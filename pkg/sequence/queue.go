package sequence

import "sync"

// Queue is an unbounded FIFO safe for one producer and one consumer running
// on different goroutines (and for any number of either).
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(value T) {
	q.mu.Lock()
	q.items = append(q.items, value)
	q.mu.Unlock()
}

// Pop removes the oldest element.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	value := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.compact()

	return value, true
}

// compact reclaims the consumed prefix once it dominates the backing array.
func (q *Queue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// Drain pops at most limit elements; a limit <= 0 drains everything.
func (q *Queue[T]) Drain(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	available := len(q.items) - q.head
	if limit <= 0 || limit > available {
		limit = available
	}
	if limit == 0 {
		return nil
	}

	out := make([]T, limit)
	copy(out, q.items[q.head:q.head+limit])
	clear(q.items[q.head : q.head+limit])
	q.head += limit
	q.compact()
	return out
}

func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Remove deletes the first element for which match returns true.
func (q *Queue[T]) Remove(match func(T) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := q.head; i < len(q.items); i++ {
		if match(q.items[i]) {
			copy(q.items[i:], q.items[i+1:])
			var zero T
			q.items[len(q.items)-1] = zero
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

// Index returns the position of the first element for which match returns
// true, counted from the head, or -1.
func (q *Queue[T]) Index(match func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := q.head; i < len(q.items); i++ {
		if match(q.items[i]) {
			return i - q.head
		}
	}
	return -1
}
