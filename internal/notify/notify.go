// Package notify keeps subscriber callbacks in registration order.
package notify

import "sync"

type entry[T any] struct {
	id int
	fn func(T)
}

// List is a set of callbacks invoked in the order they were added.
// The zero value is ready to use.
type List[T any] struct {
	mu      sync.Mutex
	entries []entry[T]
	nextID  int
}

// Add registers fn and returns a func that removes it. Removing twice is a no-op.
func (l *List[T]) Add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered callbacks.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Notify calls every callback with v, in registration order, on the
// calling goroutine. Callbacks may add or remove entries; changes apply
// from the next Notify.
func (l *List[T]) Notify(v T) {
	l.mu.Lock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
