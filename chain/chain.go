// Package chain implements the priority-ordered doubly-linked circular
// chains (L4) used for the scheduler inbox, each active object's event and
// defer chains, and the enroll register. Cells are drawn from a single
// fixed-block pool sized at startup (CPOOL_AMOUNT); the pool is passed in
// explicitly rather than reached for as a package global, per the runtime's
// own design note to avoid hidden singletons.
package chain

import (
	"github.com/ferrethan485/SmartX/internal/fbpool"
)

// ErrCellsExhausted is a programming-error fault: the chain pool ran out of
// cells, meaning CPOOL_AMOUNT was sized too small for the application.
var ErrCellsExhausted = fbpool.ErrExhausted

// Cell is a chain node: two pointers plus one payload slot, exactly the
// shape spec.md's Chain cell describes.
type Cell struct {
	next, prev *Cell
	Priority   uint16
	Payload    any

	handle *fbpool.Handle[Cell]
}

// CellPool is the fixed-block pool all chain cells are drawn from.
type CellPool struct {
	blocks *fbpool.Pool[Cell]
}

// NewCellPool preallocates capacity cells.
func NewCellPool(capacity int) *CellPool {
	return &CellPool{blocks: fbpool.New[Cell](capacity)}
}

// Margin reports the historical low watermark of free cells.
func (p *CellPool) Margin() int { return p.blocks.Margin() }

// Chain is a priority-ordered circular doubly-linked list. Its zero value
// is an empty chain.
type Chain struct {
	head *Cell
	len  int
}

// Insert places payload into the chain ordered by priority (smaller value
// first); among equal priorities, new entries land behind existing ones —
// insertion walks from the tail backwards so the common case of a
// lower-priority arrival completes in O(1) amortized when priorities
// cluster near the tail.
func (c *Chain) Insert(pool *CellPool, priority uint16, payload any) error {
	h, err := pool.blocks.Get()
	if err != nil {
		return ErrCellsExhausted
	}
	cell := h.Value()
	cell.Priority = priority
	cell.Payload = payload
	cell.handle = h

	if c.head == nil {
		cell.next, cell.prev = cell, cell
		c.head = cell
		c.len++
		return nil
	}

	if priority < c.head.Priority {
		insertAfter(c.head.prev, cell)
		c.head = cell
		c.len++
		return nil
	}

	// walk from the tail backwards for the common case
	cursor := c.head.prev
	for cursor != c.head && cursor.Priority > priority {
		cursor = cursor.prev
	}
	insertAfter(cursor, cell)
	c.len++
	return nil
}

func insertAfter(after, cell *Cell) {
	cell.next = after.next
	cell.prev = after
	after.next.prev = cell
	after.next = cell
}

// PopHead removes and returns the highest-priority (head) payload.
func (c *Chain) PopHead(pool *CellPool) (any, bool) {
	if c.head == nil {
		return nil, false
	}
	cell := c.head
	payload := cell.Payload

	if cell.next == cell {
		c.head = nil
	} else {
		cell.prev.next = cell.next
		cell.next.prev = cell.prev
		c.head = cell.next
	}
	c.len--
	releaseCell(pool, cell)
	return payload, true
}

// PeekHead returns the head payload and its priority without removing it.
func (c *Chain) PeekHead() (payload any, priority uint16, ok bool) {
	if c.head == nil {
		return nil, 0, false
	}
	return c.head.Payload, c.head.Priority, true
}

// Remove deletes the first cell whose payload equals target (by ==, so
// target is normally a pointer). It reports whether anything was removed.
func (c *Chain) Remove(pool *CellPool, target any) bool {
	if c.head == nil {
		return false
	}
	cursor := c.head
	for i := 0; i < c.len; i++ {
		next := cursor.next
		if cursor.Payload == target {
			if cursor.next == cursor {
				c.head = nil
			} else {
				cursor.prev.next = cursor.next
				cursor.next.prev = cursor.prev
				if c.head == cursor {
					c.head = cursor.next
				}
			}
			c.len--
			releaseCell(pool, cursor)
			return true
		}
		cursor = next
	}
	return false
}

func releaseCell(pool *CellPool, cell *Cell) {
	h := cell.handle
	cell.next, cell.prev, cell.Payload, cell.handle = nil, nil, nil, nil
	_ = pool.blocks.Put(h)
}

// Flush empties the chain, calling release(payload) for each entry before
// returning its cell to the pool — release is where a caller drops an
// event's refcount for the chain it was linked into.
func (c *Chain) Flush(pool *CellPool, release func(payload any)) {
	for {
		payload, ok := c.PopHead(pool)
		if !ok {
			return
		}
		if release != nil {
			release(payload)
		}
	}
}

// HeadCell returns the chain's head cell, or nil if empty. It is exposed
// for callers that need a stable, non-destructive cursor over the chain —
// the scheduler's publication cursor and polling scan, and
// enroll.Register.DescriptorsHead.
func (c *Chain) HeadCell() *Cell { return c.head }

// Next returns the cell following c in its chain (circular: the cell after
// the tail is the head again).
func (cell *Cell) Next() *Cell { return cell.next }

// Value returns the cell's payload.
func (cell *Cell) Value() any { return cell.Payload }

// Len returns the number of entries currently linked.
func (c *Chain) Len() int { return c.len }

// Empty reports whether the chain has no entries.
func (c *Chain) Empty() bool { return c.head == nil }

// Walk calls fn for each payload in priority order, stopping early if fn
// returns false. It is intended for tests and introspection, not the hot
// dispatch path.
func (c *Chain) Walk(fn func(payload any, priority uint16) bool) {
	if c.head == nil {
		return
	}
	cursor := c.head
	for i := 0; i < c.len; i++ {
		if !fn(cursor.Payload, cursor.Priority) {
			return
		}
		cursor = cursor.next
	}
}
