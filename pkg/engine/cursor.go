package engine

import "sync/atomic"

// Cursor hands out record indices. Every call to Next returns a distinct,
// strictly increasing value starting at 0, even under concurrent use.
// Callers compare the value against the store length themselves.
type Cursor struct {
	next atomic.Int64
}

// Next claims the next index.
func (c *Cursor) Next() int {
	return int(c.next.Add(1) - 1)
}

// Reset rewinds the cursor to 0. It must not be called while workers are
// claiming from it.
func (c *Cursor) Reset() {
	c.next.Store(0)
}
