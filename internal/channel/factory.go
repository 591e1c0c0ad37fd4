//go:build !debug

package channel

// New creates a mailbox holding up to size values.
func New[T any](size int) Channel[T] {
	return NewMailbox[T](size)
}
