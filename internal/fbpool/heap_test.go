package fbpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeapAllocFromExactBucket(t *testing.T) {
	h := NewHeap(4, 8, []int{2, 2, 2, 2}) // sizes 8,16,32,64
	blk, err := h.Alloc(8)
	require.NoError(t, err)
	require.Len(t, blk.Bytes(), 8)
	require.Equal(t, 1, h.BucketFree(0))
}

func TestHeapSplitsFromLargerBucket(t *testing.T) {
	h := NewHeap(3, 4, []int{0, 0, 1}) // sizes 4,8,16; only bucket 2 seeded
	blk, err := h.Alloc(4)
	require.NoError(t, err)
	require.Len(t, blk.Bytes(), 4)

	// splitting 16 -> 8 (spare pushed to bucket 1) -> 4 (spare pushed to bucket 0)
	require.Equal(t, 0, h.BucketFree(2))
	require.Equal(t, 1, h.BucketFree(1))
	require.Equal(t, 1, h.BucketFree(0)) // one 4-byte half handed out, its twin freed
}

func TestHeapFreeDoesNotCoalesce(t *testing.T) {
	h := NewHeap(2, 4, []int{1, 0})
	blk, err := h.Alloc(4)
	require.NoError(t, err)
	require.NoError(t, h.Free(blk))
	require.Equal(t, 1, h.BucketFree(0))
	require.Equal(t, 0, h.BucketFree(1))
}

func TestHeapExhaustion(t *testing.T) {
	h := NewHeap(1, 4, []int{1})
	_, err := h.Alloc(4)
	require.NoError(t, err)
	_, err = h.Alloc(4)
	require.ErrorIs(t, err, ErrHeapExhausted)
}

func TestHeapRequestTooLarge(t *testing.T) {
	h := NewHeap(1, 4, []int{1})
	_, err := h.Alloc(100)
	require.ErrorIs(t, err, ErrBlockTooLarge)
}
