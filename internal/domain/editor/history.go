package editor

// history is a bounded LIFO stack. Pushing onto a full stack evicts the
// oldest entry.
type history[T any] struct {
	items []T
	limit int
}

func newHistory[T any](limit int) *history[T] {
	return &history[T]{items: make([]T, 0, min(limit, 16)), limit: limit}
}

func (h *history[T]) push(v T) {
	if len(h.items) == h.limit {
		var zero T
		h.items[0] = zero
		h.items = append(h.items[:0], h.items[1:]...)
	}
	h.items = append(h.items, v)
}

func (h *history[T]) pop() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	last := len(h.items) - 1
	v := h.items[last]
	h.items[last] = zero
	h.items = h.items[:last]
	return v, true
}

func (h *history[T]) len() int {
	return len(h.items)
}

func (h *history[T]) clear() {
	clear(h.items)
	h.items = h.items[:0]
}
