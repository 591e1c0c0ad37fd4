// Package channel wraps Go channels behind small interfaces so a component's
// inbox can be swapped between buffered and unbuffered builds.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Drain hands every value already waiting in r to fn and returns how many it
// took. It never blocks.
func Drain[T any](r Receiver[T], fn func(T)) int {
	n := 0
	for {
		select {
		case v, ok := <-r.Receive():
			if !ok {
				return n
			}
			fn(v)
			n++
		default:
			return n
		}
	}
}
