package fbpool

import (
	"errors"

	"github.com/ferrethan485/SmartX/internal/irq"
)

// ErrHeapExhausted is returned by Heap.Alloc when no bucket, nor any larger
// bucket split down to size, has a free block left.
var ErrHeapExhausted = errors.New("fbpool: segregated heap exhausted")

// ErrBlockTooLarge is returned by Heap.Alloc when the request exceeds the
// largest configured bucket.
var ErrBlockTooLarge = errors.New("fbpool: requested size exceeds largest bucket")

// Block is a variable-size allocation returned by Heap.Alloc. It must be
// returned via Heap.Free — there is no garbage collection of heap blocks
// beyond Go's own, and reusing the underlying arena depends on Free being
// called.
type Block struct {
	data   []byte
	bucket int
}

// Bytes returns the full backing storage for the block.
func (b *Block) Bytes() []byte { return b.data }

type bucket struct {
	size int
	free [][]byte
}

// Heap is a segregated, power-of-two bucket allocator (L2). Buckets are
// split on demand from the next larger bucket when empty; blocks are never
// coalesced back into larger buckets on Free, matching
// original_source/hpool.c's explicit no-coalescing design.
type Heap struct {
	gate    irq.Gate
	buckets []*bucket
}

// NewHeap builds amount buckets, bucket i sized factor*2^i bytes, each
// preloaded with counts[i] blocks (counts may be shorter than amount; a
// missing entry means the bucket starts empty and can only be populated by
// splitting a larger one).
func NewHeap(amount int, factor uint32, counts []int) *Heap {
	if amount > 32 {
		amount = 32
	}
	h := &Heap{buckets: make([]*bucket, amount)}
	for i := 0; i < amount; i++ {
		size := int(factor) << uint(i)
		b := &bucket{size: size}
		n := 0
		if i < len(counts) {
			n = counts[i]
		}
		for k := 0; k < n; k++ {
			b.free = append(b.free, make([]byte, size))
		}
		h.buckets[i] = b
	}
	return h
}

func (h *Heap) bucketFor(size uint32) int {
	for i, b := range h.buckets {
		if uint32(b.size) >= size {
			return i
		}
	}
	return -1
}

// Alloc returns a block of at least size bytes from the smallest bucket
// that fits. If that bucket is empty, it splits the next larger non-empty
// bucket down, one halving per level, pushing the unused half into the free
// list of each bucket below the source, down to and including the requested
// one.
func (h *Heap) Alloc(size uint32) (*Block, error) {
	idx := h.bucketFor(size)
	if idx < 0 {
		return nil, ErrBlockTooLarge
	}

	var data []byte
	var ferr error
	h.gate.Do(func() {
		data, ferr = h.allocLocked(idx)
	})
	if ferr != nil {
		return nil, ferr
	}
	return &Block{data: data, bucket: idx}, nil
}

func (h *Heap) allocLocked(idx int) ([]byte, error) {
	b := h.buckets[idx]
	if n := len(b.free); n > 0 {
		blk := b.free[n-1]
		b.free = b.free[:n-1]
		return blk, nil
	}

	// find the smallest larger bucket with a free block
	source := -1
	for j := idx + 1; j < len(h.buckets); j++ {
		if len(h.buckets[j].free) > 0 {
			source = j
			break
		}
	}
	if source < 0 {
		return nil, ErrHeapExhausted
	}

	sb := h.buckets[source]
	n := len(sb.free)
	big := sb.free[n-1]
	sb.free = sb.free[:n-1]

	// split from source down to idx, one halving per level
	for j := source; j > idx; j-- {
		half := len(big) / 2
		lower, upper := big[:half], big[half:]
		h.buckets[j-1].free = append(h.buckets[j-1].free, upper)
		big = lower
	}
	return big, nil
}

// Free returns a block to its originating bucket. Blocks are never merged
// with neighbors; the bucket simply accumulates its own-size free list.
func (h *Heap) Free(b *Block) error {
	if b == nil || b.bucket < 0 || b.bucket >= len(h.buckets) {
		return ErrWrongPool
	}
	h.gate.Do(func() {
		h.buckets[b.bucket].free = append(h.buckets[b.bucket].free, b.data)
	})
	return nil
}

// BucketFree reports the current free-block count of bucket i, for
// introspection/testing.
func (h *Heap) BucketFree(i int) int {
	var n int
	h.gate.Do(func() { n = len(h.buckets[i].free) })
	return n
}
