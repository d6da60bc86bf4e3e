package xhr

import "sync/atomic"

// Methods is the method table every Request dispatches through. Replacing
// the process-wide table changes the behavior of all requests, including
// ones already opened.
type Methods struct {
	Open             func(r *Request, method, url string) error
	SetRequestHeader func(r *Request, key, value string) error
	Send             func(r *Request, body []byte) error
}

var native = &Methods{
	Open:             nativeOpen,
	SetRequestHeader: nativeSetRequestHeader,
	Send:             nativeSend,
}

var prototype atomic.Pointer[Methods]

func init() {
	prototype.Store(native)
}

// Native returns the built-in method table.
func Native() *Methods {
	return native
}

// Prototype returns the method table currently in effect.
func Prototype() *Methods {
	return prototype.Load()
}

// SetPrototype replaces the process-wide method table. A nil table restores
// the native one.
func SetPrototype(m *Methods) {
	if m == nil {
		m = native
	}
	prototype.Store(m)
}
