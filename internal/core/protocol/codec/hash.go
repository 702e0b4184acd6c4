package codec

import (
	"fmt"
	"hash/fnv"
)

// ComponentHash identifies a component type on the wire. It is the 32-bit
// FNV-1a digest of the component's canonical name.
type ComponentHash uint32

const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// Hash computes the FNV-1a digest over the UTF-8 bytes of name.
func Hash(name string) ComponentHash {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return ComponentHash(h.Sum32())
}

func (h ComponentHash) String() string {
	return fmt.Sprintf("0x%08X", uint32(h))
}
