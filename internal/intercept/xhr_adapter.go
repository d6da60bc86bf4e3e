package intercept

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/xhr"
)

// XHRAdapter turns calls made through the xhr method table into record
// events. Per-request state lives in a side table keyed by the request
// handle.
type XHRAdapter struct {
	sink    record.Listener
	now     func() time.Time
	maxBody int64
	log     *zap.Logger

	mu    sync.Mutex
	calls map[*xhr.Request]*xhrCall
}

type xhrCall struct {
	id      string
	headers map[string]string
	sent    bool
}

// NewXHRAdapter creates an adapter publishing to sink.
func NewXHRAdapter(sink record.Listener, opts ...Option) *XHRAdapter {
	o := buildOptions(opts)
	return &XHRAdapter{
		sink:    sink,
		now:     o.now,
		maxBody: o.maxBody,
		log:     o.log,
		calls:   make(map[*xhr.Request]*xhrCall),
	}
}

// Wrap returns a method table that records calls and forwards them to orig.
func (a *XHRAdapter) Wrap(orig *xhr.Methods) *xhr.Methods {
	return &xhr.Methods{
		Open: func(r *xhr.Request, method, url string) error {
			if err := orig.Open(r, method, url); err != nil {
				return err
			}
			call := &xhrCall{id: uuid.NewString(), headers: make(map[string]string)}
			a.mu.Lock()
			a.calls[r] = call
			a.mu.Unlock()
			r.OnReadyStateChange(func(s xhr.ReadyState) { a.observe(r, call, s) })
			return nil
		},
		SetRequestHeader: func(r *xhr.Request, key, value string) error {
			err := orig.SetRequestHeader(r, key, value)
			if err == nil && key != "" && value != "" {
				a.mu.Lock()
				if call := a.calls[r]; call != nil && !call.sent {
					call.headers[key] = value
				}
				a.mu.Unlock()
			}
			return err
		},
		Send: func(r *xhr.Request, body []byte) error {
			a.mu.Lock()
			call := a.calls[r]
			if call == nil || call.sent {
				a.mu.Unlock()
				return orig.Send(r, body)
			}
			call.sent = true
			headers := maps.Clone(call.headers)
			a.mu.Unlock()

			a.sink.OnSend(call.id, record.Record{
				Source:      record.SourceXHR,
				URL:         r.URL(),
				Method:      r.Method(),
				RequestBody: capBody(string(body), a.maxBody),
				ReqHeaders:  headers,
				StartTime:   a.now(),
			})

			err := orig.Send(r, body)
			if err != nil {
				a.forget(r, call)
				a.sink.OnUpdate(call.id, record.Patch{Done: true, Err: err.Error(), At: a.now()})
			}
			return err
		},
	}
}

// Tracked returns the number of requests with a side-table entry.
func (a *XHRAdapter) Tracked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *XHRAdapter) observe(r *xhr.Request, call *xhrCall, s xhr.ReadyState) {
	a.mu.Lock()
	current := a.calls[r] == call
	live := current && call.sent
	a.mu.Unlock()
	if !live {
		// Sent around the adapter after an uninstall: nothing to publish,
		// but the entry must not outlive the request.
		if current && s == xhr.Done {
			a.forget(r, call)
		}
		return
	}

	switch s {
	case xhr.HeadersReceived:
		h := r.ResponseHeaders()
		p := record.Patch{ResHeaders: flattenHeaders(h), At: a.now()}.
			WithStatus(r.Status()).
			WithContentType(h.Get("Content-Type"))
		if n, ok := contentLength(h); ok {
			p = p.WithSize(n)
		}
		a.sink.OnUpdate(call.id, p)

	case xhr.Done:
		a.forget(r, call)
		body := r.ResponseText()
		size := int64(len(body))
		if n, ok := contentLength(r.ResponseHeaders()); ok {
			size = n
		}
		p := record.Patch{Done: true, At: a.now()}.
			WithResponseBody(capBody(body, a.maxBody)).
			WithSize(size)
		if status := r.Status(); status > 0 {
			p = p.WithStatus(status)
		}
		if err := r.Err(); err != nil {
			p.Err = err.Error()
		}
		a.log.Debug("xhr request done", zap.String("id", call.id), zap.Int("status", r.Status()))
		a.sink.OnUpdate(call.id, p)
	}
}

func (a *XHRAdapter) forget(r *xhr.Request, call *xhrCall) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls[r] == call {
		delete(a.calls, r)
	}
}
