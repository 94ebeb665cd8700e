package pq

// Item is an element that can live in a Queue. Items must be comparable
// (typically pointers) so membership can be confirmed against the slot the
// item claims to occupy.
type Item[T any] interface {
	comparable
	// Less reports whether the receiver sorts before other.
	Less(other T) bool
	HeapIndex() int
	SetHeapIndex(i int)
}

// Queue is a binary min-heap that keeps every item's slot in the item
// itself, so Contains is O(1) and keys can be lowered in place.
// Items not in the queue hold index -1.
type Queue[T Item[T]] struct {
	items []T
}

func New[T Item[T]](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{items: make([]T, 0, capacity)}
}

func (q *Queue[T]) Len() int { return len(q.items) }

func (q *Queue[T]) Push(item T) {
	item.SetHeapIndex(len(q.items))
	q.items = append(q.items, item)
	q.up(len(q.items) - 1)
}

// PopMin removes and returns the smallest item. ok is false on an empty queue.
func (q *Queue[T]) PopMin() (item T, ok bool) {
	n := len(q.items)
	if n == 0 {
		return item, false
	}
	item = q.items[0]
	last := n - 1
	q.swap(0, last)
	var zero T
	q.items[last] = zero
	q.items = q.items[:last]
	if last > 0 {
		q.down(0)
	}
	item.SetHeapIndex(-1)
	return item, true
}

func (q *Queue[T]) Contains(item T) bool {
	i := item.HeapIndex()
	return i >= 0 && i < len(q.items) && q.items[i] == item
}

// DecreaseKey restores heap order after the caller lowered item's key.
func (q *Queue[T]) DecreaseKey(item T) {
	if !q.Contains(item) {
		return
	}
	q.up(item.HeapIndex())
}

// Fix restores heap order after an arbitrary key change.
func (q *Queue[T]) Fix(item T) {
	if !q.Contains(item) {
		return
	}
	i := item.HeapIndex()
	if !q.down(i) {
		q.up(i)
	}
}

// Reset empties the queue, detaching every remaining item.
func (q *Queue[T]) Reset() {
	var zero T
	for i, it := range q.items {
		it.SetHeapIndex(-1)
		q.items[i] = zero
	}
	q.items = q.items[:0]
}

func (q *Queue[T]) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].SetHeapIndex(i)
	q.items[j].SetHeapIndex(j)
}

func (q *Queue[T]) up(j int) {
	for j > 0 {
		parent := (j - 1) / 2
		if !q.items[j].Less(q.items[parent]) {
			break
		}
		q.swap(parent, j)
		j = parent
	}
}

func (q *Queue[T]) down(i0 int) bool {
	n := len(q.items)
	i := i0
	for {
		l := 2*i + 1
		if l >= n {
			break
		}
		j := l
		if r := l + 1; r < n && q.items[r].Less(q.items[l]) {
			j = r
		}
		if !q.items[j].Less(q.items[i]) {
			break
		}
		q.swap(i, j)
		i = j
	}
	return i > i0
}
