// Package xhr is a callback-style HTTP request API. A Request is opened,
// given headers, then sent; progress is observed through ready-state change
// callbacks. Open, SetRequestHeader and Send dispatch through a process-wide
// method table that can be swapped at runtime.
package xhr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ReadyState is the lifecycle position of a Request.
type ReadyState int

const (
	Unsent ReadyState = iota
	Opened
	HeadersReceived
	Loading
	Done
)

func (s ReadyState) String() string {
	switch s {
	case Unsent:
		return "unsent"
	case Opened:
		return "opened"
	case HeadersReceived:
		return "headers-received"
	case Loading:
		return "loading"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// ErrInvalidState is returned when a method is called in a ready state that
// does not allow it.
var ErrInvalidState = errors.New("xhr: invalid state")

// Request is one callback-style HTTP call. A zero Request sends through the
// default client.
type Request struct {
	client *Client

	mu         sync.Mutex
	state      ReadyState
	sent       bool
	method     string
	url        string
	headers    http.Header
	timeout    time.Duration
	status     int
	statusText string
	resHeaders http.Header
	body       []byte
	err        error
	cancel     context.CancelFunc
	done       chan struct{}
	observers  []func(ReadyState)
}

// New returns an unsent request that uses the default client.
func New() *Request {
	return DefaultClient().NewRequest()
}

// Open prepares the request. It dispatches through the current prototype.
func (r *Request) Open(method, rawURL string) error {
	return Prototype().Open(r, method, rawURL)
}

// SetRequestHeader sets a request header. It dispatches through the current
// prototype.
func (r *Request) SetRequestHeader(key, value string) error {
	return Prototype().SetRequestHeader(r, key, value)
}

// Send starts the call and returns immediately. It dispatches through the
// current prototype.
func (r *Request) Send(body []byte) error {
	return Prototype().Send(r, body)
}

// OnReadyStateChange registers fn to run on every ready-state transition.
// Callbacks run on the goroutine performing the call, in registration order.
func (r *Request) OnReadyStateChange(fn func(ReadyState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// SetTimeout bounds the whole call. Zero means the client default.
func (r *Request) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Abort cancels an in-flight call. The request then finishes with a
// context.Canceled error. Abort on a request that was never sent does
// nothing.
func (r *Request) Abort() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the request is done or ctx ends.
func (r *Request) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return ErrInvalidState
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadyState returns the current ready state.
func (r *Request) ReadyState() ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Method returns the method given to Open.
func (r *Request) Method() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method
}

// URL returns the URL given to Open.
func (r *Request) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// Status returns the response status code, or 0 before headers arrive and
// after a network error.
func (r *Request) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// StatusText returns the response status line text.
func (r *Request) StatusText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusText
}

// ResponseHeaders returns a copy of the response headers.
func (r *Request) ResponseHeaders() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resHeaders.Clone()
}

// ResponseText returns the response body read so far.
func (r *Request) ResponseText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.body)
}

// Err returns the network error that ended the call, if any.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func nativeOpen(r *Request, method, rawURL string) error {
	if method == "" {
		return fmt.Errorf("opening request: method is required")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("opening request: invalid URL: %w", err)
	}

	r.mu.Lock()
	if r.sent && r.state != Done {
		r.mu.Unlock()
		return fmt.Errorf("opening request while in flight: %w", ErrInvalidState)
	}
	r.state = Opened
	r.sent = false
	r.method = strings.ToUpper(method)
	r.url = rawURL
	r.headers = make(http.Header)
	r.status = 0
	r.statusText = ""
	r.resHeaders = nil
	r.body = nil
	r.err = nil
	r.cancel = nil
	r.done = make(chan struct{})
	r.mu.Unlock()

	r.notify(Opened)
	return nil
}

func nativeSetRequestHeader(r *Request, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Opened || r.sent {
		return fmt.Errorf("setting header %q: %w", key, ErrInvalidState)
	}
	if key == "" {
		return nil
	}
	r.headers.Set(key, value)
	return nil
}

func nativeSend(r *Request, body []byte) error {
	r.mu.Lock()
	if r.state != Opened || r.sent {
		r.mu.Unlock()
		return fmt.Errorf("sending request: %w", ErrInvalidState)
	}
	r.sent = true
	if r.client == nil {
		r.client = DefaultClient()
	}
	client := r.client

	timeout := r.timeout
	if timeout == 0 {
		timeout = client.timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	r.cancel = cancel

	method, target := r.method, r.url
	headers := r.headers.Clone()
	done := r.done
	r.mu.Unlock()

	go r.run(ctx, cancel, client, done, method, target, headers, body)
	return nil
}

func (r *Request) run(ctx context.Context, cancel context.CancelFunc, client *Client, done chan struct{}, method, target string, headers http.Header, body []byte) {
	defer close(done)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		r.finish(fmt.Errorf("creating request: %w", err))
		return
	}
	httpReq.Header = headers

	resp, err := client.http.Do(httpReq)
	if err != nil {
		r.finish(fmt.Errorf("sending request: %w", err))
		return
	}
	defer resp.Body.Close()

	r.mu.Lock()
	r.status = resp.StatusCode
	r.statusText = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	r.resHeaders = resp.Header.Clone()
	r.state = HeadersReceived
	r.mu.Unlock()
	r.notify(HeadersReceived)

	r.mu.Lock()
	r.state = Loading
	r.mu.Unlock()
	r.notify(Loading)

	data, err := io.ReadAll(resp.Body)
	r.mu.Lock()
	r.body = data
	r.mu.Unlock()
	if err != nil {
		r.finish(fmt.Errorf("reading response: %w", err))
		return
	}
	r.finish(nil)
}

func (r *Request) finish(err error) {
	r.mu.Lock()
	r.state = Done
	r.err = err
	if err != nil {
		r.status = 0
	}
	r.mu.Unlock()
	r.notify(Done)
}

func (r *Request) notify(state ReadyState) {
	r.mu.Lock()
	observers := make([]func(ReadyState), len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
