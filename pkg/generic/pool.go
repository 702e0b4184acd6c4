package generic

import "sync"

type Pool[T any] struct {
	pool sync.Pool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

func NewHotPool[T any](generate func() T, hotSize int) *Pool[T] {
	p := NewPool[T](generate)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}

// Buffer is a fixed capacity byte slice handed out by a BufferPool.
type Buffer struct {
	B []byte
}

// BufferPool recycles fixed size datagram buffers.
type BufferPool struct {
	size int
	pool *Pool[*Buffer]
}

func NewBufferPool(size, hotSize int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: NewHotPool(func() *Buffer {
			return &Buffer{B: make([]byte, size)}
		}, hotSize),
	}
}

// Get returns a buffer resliced to the full pool size.
func (p *BufferPool) Get() *Buffer {
	b := p.pool.Get()
	b.B = b.B[:p.size]
	return b
}

// Put ignores buffers that were grown or shrunk below the pool size.
func (p *BufferPool) Put(b *Buffer) {
	if b == nil || cap(b.B) != p.size {
		return
	}
	p.pool.Put(b)
}

func (p *BufferPool) Size() int {
	return p.size
}
