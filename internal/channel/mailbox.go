package channel

// Mailbox is a Channel backed by a plain chan. A size of 0 makes every Send
// wait for the receiver.
type Mailbox[T any] struct {
	ch chan T
}

func NewMailbox[T any](size int) *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, max(size, 0))}
}

func (m *Mailbox[T]) Send(v T) {
	m.ch <- v
}

func (m *Mailbox[T]) Receive() <-chan T {
	return m.ch
}

// Len is always 0 for an unbuffered mailbox.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}

func (m *Mailbox[T]) Cap() int {
	return cap(m.ch)
}

func (m *Mailbox[T]) Close() {
	close(m.ch)
}
