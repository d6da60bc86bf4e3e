package intercept

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/xhr"
)

var errNoTransport = errors.New("intercept: no transport")

// Kind names one of the two interceptable request APIs.
type Kind int

const (
	KindXHR Kind = iota + 1
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindXHR:
		return "xhr"
	case KindTransport:
		return "transport"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Controller is the only writer of the two interception slots. Each kind is
// installed and uninstalled independently.
type Controller struct {
	mu    sync.Mutex
	hooks map[Kind]installer
	log   *zap.Logger

	xhrAdapter       *XHRAdapter
	transportAdapter *TransportAdapter
	transportSlot    Slot[http.RoundTripper]
}

// NewController creates a controller whose adapters publish to sink. By
// default it patches xhr.Prototype and http.DefaultTransport.
func NewController(sink record.Listener, opts ...Option) *Controller {
	o := buildOptions(opts)
	xhrSlot := XHRPrototype()
	if o.xhrSlot != nil {
		xhrSlot = *o.xhrSlot
	}
	transportSlot := TransportVar(&http.DefaultTransport)
	if o.transportSlot != nil {
		transportSlot = *o.transportSlot
	}

	xa := NewXHRAdapter(sink, opts...)
	ta := NewTransportAdapter(sink, opts...)

	return &Controller{
		log:              o.log,
		xhrAdapter:       xa,
		transportAdapter: ta,
		transportSlot:    transportSlot,
		hooks: map[Kind]installer{
			KindXHR: &hook[*xhr.Methods]{
				kind: KindXHR,
				slot: xhrSlot,
				wrap: xa.Wrap,
				same: func(a, b *xhr.Methods) bool { return a == b },
				log:  o.log,
			},
			KindTransport: &hook[http.RoundTripper]{
				kind:   KindTransport,
				slot:   transportSlot,
				wrap:   ta.Wrap,
				accept: IsNativeTransport,
				same:   sameRoundTripper,
				log:    o.log,
			},
		},
	}
}

// Install wraps the API named by kind. It reports whether the adapter is
// installed afterwards; installing twice is a no-op and an API whose current
// value is not native is left alone.
func (c *Controller) Install(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hooks[kind]
	if !ok {
		return false
	}
	return h.install()
}

// Uninstall restores the value captured by the first Install. It is a no-op
// when kind is not installed.
func (c *Controller) Uninstall(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.hooks[kind]; ok {
		h.uninstall()
	}
}

// Installed reports whether kind is currently wrapped.
func (c *Controller) Installed(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hooks[kind]
	return ok && h.installed()
}

// UninstallAll restores both APIs.
func (c *Controller) UninstallAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kind := range []Kind{KindTransport, KindXHR} {
		c.hooks[kind].uninstall()
	}
}

// XHR returns the xhr adapter.
func (c *Controller) XHR() *XHRAdapter {
	return c.xhrAdapter
}

// Transport returns the transport adapter.
func (c *Controller) Transport() *TransportAdapter {
	return c.transportAdapter
}

// RoundTripper returns a round tripper that forwards every call to the
// current transport slot value, read under the controller lock. Clients built
// on it can run while the transport kind is toggled; clients reading
// http.DefaultTransport directly cannot.
func (c *Controller) RoundTripper() http.RoundTripper {
	return currentTransport{c: c}
}

type currentTransport struct {
	c *Controller
}

func (t currentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.c.mu.Lock()
	rt := t.c.transportSlot.Load()
	t.c.mu.Unlock()
	if rt == nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, errNoTransport
	}
	return rt.RoundTrip(req)
}

type installer interface {
	install() bool
	uninstall()
	installed() bool
}

// hook tracks one slot. orig is captured on every Uninstalled to Installed
// transition, strictly before the wrapped value is stored.
type hook[T any] struct {
	kind   Kind
	slot   Slot[T]
	wrap   func(T) T
	accept func(T) bool
	same   func(a, b T) bool
	log    *zap.Logger

	active  bool
	orig    T
	wrapped T
}

func (h *hook[T]) install() bool {
	if h.active {
		h.log.Debug("interceptor already installed", zap.Stringer("kind", h.kind))
		return true
	}
	cur := h.slot.Load()
	if h.accept != nil && !h.accept(cur) {
		h.log.Info("interceptor declined: current value is not native", zap.Stringer("kind", h.kind))
		return false
	}
	h.orig = cur
	h.wrapped = h.wrap(cur)
	h.slot.Store(h.wrapped)
	h.active = true
	h.log.Debug("interceptor installed", zap.Stringer("kind", h.kind))
	return true
}

func (h *hook[T]) uninstall() {
	if !h.active {
		return
	}
	if !h.same(h.slot.Load(), h.wrapped) {
		h.log.Warn("slot was replaced on top of the interceptor; restoring the original", zap.Stringer("kind", h.kind))
	}
	h.slot.Store(h.orig)
	var zero T
	h.orig, h.wrapped = zero, zero
	h.active = false
	h.log.Debug("interceptor uninstalled", zap.Stringer("kind", h.kind))
}

func (h *hook[T]) installed() bool {
	return h.active
}

func sameRoundTripper(a, b http.RoundTripper) bool {
	ra, ok := a.(*roundTripper)
	if !ok {
		return false
	}
	rb, ok := b.(*roundTripper)
	return ok && ra == rb
}
