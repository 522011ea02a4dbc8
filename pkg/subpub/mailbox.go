package subpub

import "sync"

// mailbox is an unbounded multi-producer single-consumer FIFO queue.
// put never blocks; take blocks while the queue is empty.
type mailbox[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{} // holds at most one pending wake-up
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ready: make(chan struct{}, 1)}
}

// put appends v. Values from one producer are taken in the order they were put.
func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// take removes and returns the oldest value. Only one goroutine may call it.
func (m *mailbox[T]) take() T {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			v := m.items[0]
			var zero T
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()
			return v
		}
		m.mu.Unlock()
		<-m.ready
	}
}

// len returns the number of queued values.
func (m *mailbox[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
