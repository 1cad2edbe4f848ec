package hub

import "fmt"

// PanicError reports a connection whose Send panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("send panicked: %v", e.Value)
}
