package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool_Get(t *testing.T) {
	p := NewBufferPool(1500, 2)
	b := p.Get()
	assert.Len(t, b.B, 1500)

	b.B = b.B[:10]
	p.Put(b)

	again := p.Get()
	assert.Len(t, again.B, 1500)
	assert.Equal(t, 1500, p.Size())
}

func TestBufferPool_PutForeign(t *testing.T) {
	p := NewBufferPool(64, 0)
	p.Put(&Buffer{B: make([]byte, 128)})
	p.Put(nil)
	assert.Len(t, p.Get().B, 64)
}
