// Package fbpool implements the deterministic fixed-block pool (L2) that
// every dynamic event and chain cell in the runtime is drawn from: a
// singly-linked free list over a caller-sized, preallocated arena. Pool has
// no coalescing and no variable-size allocation — callers size the pool for
// their worst-case live-block count at compile time. Variable-size requests
// go to this package's separate segregated-bucket Heap (heap.go).
//
// The original C implementation (original_source/mpool.c) recovers a
// block's owning pool from a pointer prefix written just before the
// payload, so pool_put can be called with a bare pointer from anywhere.
// That trick does not translate to safe Go; instead Get returns a *Handle
// that carries its owner explicitly, which is the idiomatic Go shape for
// "arena + raw reference" the spec's own design notes call for.
package fbpool

import (
	"errors"

	"github.com/ferrethan485/SmartX/internal/irq"
)

var (
	// ErrExhausted is returned by Get when no free block remains. This is
	// a transient-exhaustion condition, not a programming error: callers
	// are expected to handle it (drop the allocation, log, proceed).
	ErrExhausted = errors.New("fbpool: exhausted")
	// ErrWrongPool is a programming-error fault: Put was called with a
	// handle that was not issued by this pool.
	ErrWrongPool = errors.New("fbpool: handle belongs to a different pool")
	// ErrDoublePut is a programming-error fault: the handle was already
	// returned to its pool.
	ErrDoublePut = errors.New("fbpool: double put")
)

type node[T any] struct {
	next  *node[T]
	owner *Pool[T]
	value T
}

// Handle is an opaque reference to a block obtained from a Pool. It is the
// Go analogue of the block pointer the C core hands around, minus the
// unsafe pointer-prefix recovery.
type Handle[T any] struct {
	n *node[T]
}

// Value returns a pointer to the block's payload. The pointer is valid
// until the handle is returned with Put.
func (h *Handle[T]) Value() *T {
	return &h.n.value
}

// Pool is a fixed-block pool over a preallocated arena of capacity blocks.
type Pool[T any] struct {
	gate     irq.Gate
	free     *node[T]
	total    int
	freeCnt  int
	minCnt   int
	arena    []node[T]
}

// New preallocates capacity blocks and threads them onto the free list.
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{
		arena:   make([]node[T], capacity),
		total:   capacity,
		freeCnt: capacity,
		minCnt:  capacity,
	}
	for i := range p.arena {
		p.arena[i].owner = p
		if i+1 < capacity {
			p.arena[i].next = &p.arena[i+1]
		}
	}
	if capacity > 0 {
		p.free = &p.arena[0]
	}
	return p
}

// Get pops the head of the free list. A nil, ErrExhausted return is a hard
// configuration error — the pool was sized too small for the workload's
// peak live-block count — and the caller decides how to degrade.
func (p *Pool[T]) Get() (*Handle[T], error) {
	var n *node[T]
	p.gate.Do(func() {
		if p.free == nil {
			return
		}
		n = p.free
		p.free = n.next
		n.next = nil
		p.freeCnt--
		if p.freeCnt < p.minCnt {
			p.minCnt = p.freeCnt
		}
	})
	if n == nil {
		return nil, ErrExhausted
	}
	var zero T
	n.value = zero
	return &Handle[T]{n: n}, nil
}

// Put returns a block to its pool. Calling Put with a handle from another
// pool, or putting the same handle twice, is a fault. A handle from another
// pool is always reported as ErrWrongPool; a repeated Put is reported as
// ErrDoublePut only when every block is already free, and otherwise goes
// undetected.
func (p *Pool[T]) Put(h *Handle[T]) error {
	if h == nil || h.n == nil {
		return ErrWrongPool
	}
	var ferr error
	p.gate.Do(func() {
		if h.n.owner != p {
			ferr = ErrWrongPool
			return
		}
		if p.freeCnt >= p.total {
			ferr = ErrDoublePut
			return
		}
		h.n.next = p.free
		p.free = h.n
		p.freeCnt++
	})
	return ferr
}

// AllRecycled reports whether every block has been returned to the pool.
func (p *Pool[T]) AllRecycled() bool {
	var ok bool
	p.gate.Do(func() { ok = p.freeCnt >= p.total })
	return ok
}

// Margin returns the historical minimum of free blocks observed, useful for
// right-sizing a pool from an application's observed peak usage.
func (p *Pool[T]) Margin() int {
	var m int
	p.gate.Do(func() { m = p.minCnt })
	return m
}

// Free returns the current number of free blocks.
func (p *Pool[T]) Free() int {
	var f int
	p.gate.Do(func() { f = p.freeCnt })
	return f
}

// Total returns the pool's fixed capacity.
func (p *Pool[T]) Total() int {
	return p.total
}
