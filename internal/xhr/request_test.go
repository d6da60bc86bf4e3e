package xhr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(c.CloseIdleConnections)
	return c
}

func waitDone(t *testing.T, r *Request) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestRequest_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept header, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	req := newTestClient(t).NewRequest()
	if err := req.Open("get", server.URL+"/a"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if req.Method() != "GET" {
		t.Errorf("expected upper-cased method, got %s", req.Method())
	}
	if err := req.SetRequestHeader("Accept", "application/json"); err != nil {
		t.Fatalf("SetRequestHeader failed: %v", err)
	}
	if err := req.Send(nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitDone(t, req)

	if req.ReadyState() != Done {
		t.Errorf("expected done, got %s", req.ReadyState())
	}
	if req.Status() != 200 {
		t.Errorf("expected 200, got %d", req.Status())
	}
	if req.StatusText() != "OK" {
		t.Errorf("expected OK, got %q", req.StatusText())
	}
	if req.ResponseText() != `{"status":"ok"}` {
		t.Errorf("unexpected body %q", req.ResponseText())
	}
	if req.ResponseHeaders().Get("Content-Type") != "application/json" {
		t.Error("missing response content type")
	}
	if req.Err() != nil {
		t.Errorf("unexpected error: %v", req.Err())
	}
}

func TestRequest_POSTBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"name":"test"}` {
			t.Errorf("unexpected body %q", body)
		}
		w.WriteHeader(201)
	}))
	defer server.Close()

	req := newTestClient(t).NewRequest()
	req.Open("POST", server.URL)
	req.Send([]byte(`{"name":"test"}`))
	waitDone(t, req)

	if req.Status() != 201 {
		t.Errorf("expected 201, got %d", req.Status())
	}
}

func TestRequest_ReadyStateSequence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	req := newTestClient(t).NewRequest()

	var mu sync.Mutex
	var states []ReadyState
	req.OnReadyStateChange(func(s ReadyState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	req.Open("GET", server.URL)
	req.Send(nil)
	waitDone(t, req)

	mu.Lock()
	defer mu.Unlock()
	want := []ReadyState{Opened, HeadersReceived, Loading, Done}
	if len(states) != len(want) {
		t.Fatalf("expected %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestRequest_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	req := newTestClient(t).NewRequest()
	req.Open("GET", target)
	req.Send(nil)
	waitDone(t, req)

	if req.Err() == nil {
		t.Fatal("expected network error")
	}
	if req.Status() != 0 {
		t.Errorf("expected status 0, got %d", req.Status())
	}
}

func TestRequest_Abort(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	req := newTestClient(t).NewRequest()
	req.Open("GET", server.URL)
	req.Send(nil)
	req.Abort()
	waitDone(t, req)

	if !errors.Is(req.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", req.Err())
	}
}

func TestRequest_InvalidState(t *testing.T) {
	req := newTestClient(t).NewRequest()

	if err := req.Send(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("send before open: expected ErrInvalidState, got %v", err)
	}
	if err := req.SetRequestHeader("A", "1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("header before open: expected ErrInvalidState, got %v", err)
	}
	if err := req.Wait(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("wait before open: expected ErrInvalidState, got %v", err)
	}
	if err := req.Open("", "http://example.com"); err == nil {
		t.Error("expected error for empty method")
	}
}

func TestRequest_SendTwice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	req := newTestClient(t).NewRequest()
	req.Open("GET", server.URL)
	if err := req.Send(nil); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := req.Send(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second send, got %v", err)
	}
	waitDone(t, req)

	// A finished request can be reopened.
	if err := req.Open("GET", server.URL); err != nil {
		t.Errorf("reopen failed: %v", err)
	}
	if req.ReadyState() != Opened || req.Status() != 0 {
		t.Errorf("reopen must reset state, got %s %d", req.ReadyState(), req.Status())
	}
}

func TestPrototypeDispatch(t *testing.T) {
	orig := Prototype()
	defer SetPrototype(orig)

	var opened string
	SetPrototype(&Methods{
		Open: func(r *Request, method, url string) error {
			opened = method + " " + url
			return orig.Open(r, method, url)
		},
		SetRequestHeader: orig.SetRequestHeader,
		Send:             orig.Send,
	})

	req := newTestClient(t).NewRequest()
	if err := req.Open("GET", "/a"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != "GET /a" {
		t.Errorf("prototype not used, got %q", opened)
	}

	SetPrototype(nil)
	if Prototype() != Native() {
		t.Error("nil prototype must restore the native table")
	}
}

func TestRequest_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	c, err := NewClient(Config{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		req := c.NewRequest()
		req.Open("GET", server.URL)
		req.Send(nil)
		waitDone(t, req)
	}
	c.CloseIdleConnections()
	server.Close()
}
