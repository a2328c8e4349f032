package editor

import "github.com/reelcut/video-editor/backend/internal/models"

// Timed is implemented by every segment variant
type Timed[T any] interface {
	Span() models.Segment
	WithSpan(models.Segment) T
}

// Collection is an insertion-ordered set of segments keyed by id
type Collection[T Timed[T]] struct {
	items []T
}

// SetAll replaces the whole collection
func (c *Collection[T]) SetAll(items []T) {
	c.items = append([]T(nil), items...)
}

// Add appends item, or replaces the element with the same id in place
func (c *Collection[T]) Add(item T) {
	if i := c.index(item.Span().ID); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

// Update applies fn to the element with the given id. Returns false if the
// id is unknown.
func (c *Collection[T]) Update(id string, fn func(T) T) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	updated := fn(c.items[i])
	// the id is the key and never changes through an update
	span := updated.Span()
	span.ID = id
	c.items[i] = updated.WithSpan(span)
	return true
}

// Remove deletes the element with the given id
func (c *Collection[T]) Remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

func (c *Collection[T]) Get(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Items returns a copy in insertion order
func (c *Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) Len() int {
	return len(c.items)
}

func (c *Collection[T]) Clear() {
	c.items = nil
}

// Shift moves every element by -shift and clips it to [0, length]. Elements
// left with an empty range are dropped. Returns the ids of dropped elements.
func (c *Collection[T]) Shift(shift, length float64) []string {
	var dropped []string
	kept := c.items[:0]
	for _, item := range c.items {
		span, ok := shiftSpan(item.Span(), shift, length)
		if !ok {
			dropped = append(dropped, item.Span().ID)
			continue
		}
		kept = append(kept, item.WithSpan(span))
	}
	c.items = kept
	return dropped
}

func (c *Collection[T]) index(id string) int {
	for i, item := range c.items {
		if item.Span().ID == id {
			return i
		}
	}
	return -1
}

func shiftSpan(s models.Segment, shift, length float64) (models.Segment, bool) {
	s.Start = max(0, s.Start-shift)
	s.End = min(length, s.End-shift)
	if s.End <= s.Start {
		return s, false
	}
	return s, true
}
