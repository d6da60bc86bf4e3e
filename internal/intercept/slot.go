package intercept

import (
	"net/http"

	"github.com/sadopc/netwatch/internal/xhr"
)

// Slot is read and write access to one process-wide value that interception
// replaces.
type Slot[T any] struct {
	Load  func() T
	Store func(T)
}

// TransportVar returns a slot backed by a RoundTripper variable, usually
// &http.DefaultTransport.
func TransportVar(p *http.RoundTripper) Slot[http.RoundTripper] {
	return Slot[http.RoundTripper]{
		Load:  func() http.RoundTripper { return *p },
		Store: func(rt http.RoundTripper) { *p = rt },
	}
}

// XHRPrototype returns a slot backed by the xhr method table.
func XHRPrototype() Slot[*xhr.Methods] {
	return Slot[*xhr.Methods]{
		Load:  xhr.Prototype,
		Store: xhr.SetPrototype,
	}
}

// IsNativeTransport reports whether rt is a plain *http.Transport. Wrappers
// installed by other layers are treated as non-native even when they would
// behave correctly.
func IsNativeTransport(rt http.RoundTripper) bool {
	_, ok := rt.(*http.Transport)
	return ok
}
