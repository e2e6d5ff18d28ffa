package queue

import "errors"

type Queue[E any] struct {
	elements []E
}

func (q *Queue[E]) Push(e E) {
	q.elements = append(q.elements, e)
}

func (q *Queue[E]) Empty() bool {
	return len(q.elements) == 0
}

func (q *Queue[E]) Len() int {
	return len(q.elements)
}

var ErrEmpty = errors.New("Queue is empty")

func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	e := q.elements[0]
	q.elements = q.elements[1:]
	return e
}

// Worklist is a FIFO queue that holds every element at most once. Pushing an
// element that is already queued has no effect.
type Worklist[E comparable] struct {
	queue   Queue[E]
	members map[E]struct{}
}

// Push enqueues e unless it is already queued, and reports whether it was
// added.
func (w *Worklist[E]) Push(e E) bool {
	if _, found := w.members[e]; found {
		return false
	}
	if w.members == nil {
		w.members = make(map[E]struct{})
	}
	w.members[e] = struct{}{}
	w.queue.Push(e)
	return true
}

func (w *Worklist[E]) Pop() E {
	e := w.queue.Pop()
	delete(w.members, e)
	return e
}

func (w *Worklist[E]) Empty() bool {
	return w.queue.Empty()
}

func (w *Worklist[E]) Len() int {
	return w.queue.Len()
}

func (w *Worklist[E]) Contains(e E) bool {
	_, found := w.members[e]
	return found
}
