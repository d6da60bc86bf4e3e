package intercept

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/store"
	"github.com/sadopc/netwatch/internal/xhr"
)

func newXHRClient(t *testing.T) *xhr.Client {
	t.Helper()
	c, err := xhr.NewClient(xhr.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.CloseIdleConnections)
	return c
}

func waitXHR(t *testing.T, r *xhr.Request) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func statusServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Trace", "abc")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func onlyRecord(t *testing.T, s *store.Store) record.Record {
	t.Helper()
	list := s.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}
	return list[0]
}

func TestXHRAdapterLifecycle(t *testing.T) {
	server := statusServer(404, `{"error":"missing"}`)
	defer server.Close()

	s := store.New()
	adapter := NewXHRAdapter(s, WithLogger(zaptest.NewLogger(t)))
	m := adapter.Wrap(xhr.Native())

	var states []xhr.ReadyState
	req := newXHRClient(t).NewRequest()

	if err := m.Open(req, "GET", server.URL+"/a"); err != nil {
		t.Fatalf("open: %v", err)
	}
	req.OnReadyStateChange(func(st xhr.ReadyState) {
		if st != xhr.HeadersReceived {
			return
		}
		// The adapter observer is registered first, so the status is
		// already merged when later observers run.
		list := s.List()
		if len(list) != 1 || list[0].Status != 404 || list[0].Done {
			t.Errorf("after headers: unexpected records %+v", list)
		}
		states = append(states, st)
	})
	m.SetRequestHeader(req, "Accept", "application/json")

	if s.Len() != 0 {
		t.Fatal("record must not exist before send")
	}
	if err := m.Send(req, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitXHR(t, req)

	r := onlyRecord(t, s)
	if r.Source != record.SourceXHR || r.Method != "GET" || r.URL != server.URL+"/a" {
		t.Errorf("unexpected record %s %s %s", r.Source, r.Method, r.URL)
	}
	if r.Name != "a" {
		t.Errorf("expected name a, got %q", r.Name)
	}
	if !r.Done || !r.HasErr || r.Status != 404 {
		t.Errorf("expected done 404 with error, got done=%v status=%v hasErr=%v", r.Done, r.Status, r.HasErr)
	}
	if r.Type != "application" || r.SubType != "json" {
		t.Errorf("expected application/json, got %s/%s", r.Type, r.SubType)
	}
	if r.ResponseBody != `{"error":"missing"}` {
		t.Errorf("unexpected body %q", r.ResponseBody)
	}
	if r.Size != int64(len(`{"error":"missing"}`)) {
		t.Errorf("unexpected size %d", r.Size)
	}
	if r.ResHeaders["X-Trace"] != "abc" {
		t.Errorf("missing response header: %v", r.ResHeaders)
	}
	if r.ReqHeaders["Accept"] != "application/json" {
		t.Errorf("missing request header: %v", r.ReqHeaders)
	}
	if len(states) != 1 {
		t.Error("headers-received observer did not run")
	}
	if adapter.Tracked() != 0 {
		t.Errorf("side table entry not removed, %d left", adapter.Tracked())
	}
}

func TestXHRAdapterHeaderPolicy(t *testing.T) {
	server := statusServer(200, "ok")
	defer server.Close()

	rec := &recorder{}
	m := NewXHRAdapter(rec).Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()

	m.Open(req, "POST", server.URL)
	m.SetRequestHeader(req, "", "orphan")
	m.SetRequestHeader(req, "X-Empty", "")
	m.SetRequestHeader(req, "X-Dup", "first")
	m.SetRequestHeader(req, "X-Dup", "second")
	m.Send(req, []byte("payload"))
	waitXHR(t, req)

	events := rec.all()
	if len(events) == 0 || events[0].kind != "send" {
		t.Fatalf("expected send first, got %+v", events)
	}
	headers := events[0].rec.ReqHeaders
	if len(headers) != 1 {
		t.Errorf("expected exactly one header, got %v", headers)
	}
	if headers["X-Dup"] != "second" {
		t.Errorf("expected last write to win, got %q", headers["X-Dup"])
	}
	if events[0].rec.RequestBody != "payload" {
		t.Errorf("unexpected request body %q", events[0].rec.RequestBody)
	}
}

func TestXHRAdapterEventSequence(t *testing.T) {
	server := statusServer(200, "ok")
	defer server.Close()

	rec := &recorder{}
	m := NewXHRAdapter(rec).Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()

	m.Open(req, "GET", server.URL)
	m.Send(req, nil)
	waitXHR(t, req)

	events := rec.all()
	if len(events) != 3 {
		t.Fatalf("expected send, headers update, done update; got %d events", len(events))
	}
	id := events[0].id
	var dones int
	for i, e := range events {
		if e.id != id {
			t.Errorf("event %d has id %s, want %s", i, e.id, id)
		}
		if e.patch.Done {
			dones++
		}
	}
	if events[0].kind != "send" {
		t.Error("send must come first")
	}
	if dones != 1 || !events[2].patch.Done {
		t.Errorf("expected exactly one terminal update, got %d", dones)
	}
}

func TestXHRAdapterNetworkError(t *testing.T) {
	server := statusServer(200, "")
	target := server.URL
	server.Close()

	s := store.New()
	m := NewXHRAdapter(s).Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()
	m.Open(req, "GET", target)
	m.Send(req, nil)
	waitXHR(t, req)

	r := onlyRecord(t, s)
	if !r.Done || !r.HasErr || r.Status.Numeric() {
		t.Errorf("expected failed record without status, got %+v", r)
	}
	if r.Err == "" {
		t.Error("expected error text")
	}
	if r.StatusText() != "error" {
		t.Errorf("expected error status text, got %s", r.StatusText())
	}
}

func TestXHRAdapterPassThroughWithoutEntry(t *testing.T) {
	server := statusServer(200, "ok")
	defer server.Close()

	rec := &recorder{}
	m := NewXHRAdapter(rec).Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()

	// Opened through the native table, so the adapter never saw it.
	if err := xhr.Native().Open(req, "GET", server.URL); err != nil {
		t.Fatal(err)
	}
	if err := m.SetRequestHeader(req, "A", "1"); err != nil {
		t.Errorf("header pass-through failed: %v", err)
	}
	if err := m.Send(req, nil); err != nil {
		t.Errorf("send pass-through failed: %v", err)
	}
	waitXHR(t, req)

	if req.Status() != 200 {
		t.Errorf("expected the call to go through, got %d", req.Status())
	}
	if len(rec.all()) != 0 {
		t.Errorf("expected no events, got %d", len(rec.all()))
	}
}

func TestXHRAdapterForgetsUnsentEntry(t *testing.T) {
	server := statusServer(200, "ok")
	defer server.Close()

	rec := &recorder{}
	adapter := NewXHRAdapter(rec)
	m := adapter.Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()

	if err := m.Open(req, "GET", server.URL); err != nil {
		t.Fatal(err)
	}
	if adapter.Tracked() != 1 {
		t.Fatalf("expected one entry after open, got %d", adapter.Tracked())
	}
	// Sent through the native table, as after an uninstall.
	if err := xhr.Native().Send(req, nil); err != nil {
		t.Fatal(err)
	}
	waitXHR(t, req)

	if adapter.Tracked() != 0 {
		t.Errorf("entry kept after the request finished, %d left", adapter.Tracked())
	}
	if len(rec.all()) != 0 {
		t.Errorf("expected no events, got %d", len(rec.all()))
	}
}

func TestXHRAdapterReopenReplacesEntry(t *testing.T) {
	server := statusServer(200, "ok")
	defer server.Close()

	rec := &recorder{}
	adapter := NewXHRAdapter(rec)
	m := adapter.Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()

	m.Open(req, "GET", server.URL+"/first")
	m.Open(req, "GET", server.URL+"/second")
	if adapter.Tracked() != 1 {
		t.Fatalf("expected one entry after reopen, got %d", adapter.Tracked())
	}
	m.Send(req, nil)
	waitXHR(t, req)

	events := rec.all()
	if len(events) != 3 {
		t.Fatalf("stale observer produced events: %d", len(events))
	}
	if events[0].rec.URL != server.URL+"/second" {
		t.Errorf("expected the second URL, got %s", events[0].rec.URL)
	}
}

func TestXHRAdapterSendFailure(t *testing.T) {
	rec := &recorder{}
	adapter := NewXHRAdapter(rec)
	m := adapter.Wrap(&xhr.Methods{
		Open:             xhr.Native().Open,
		SetRequestHeader: xhr.Native().SetRequestHeader,
		Send: func(*xhr.Request, []byte) error {
			return xhr.ErrInvalidState
		},
	})
	req := newXHRClient(t).NewRequest()
	m.Open(req, "GET", "http://127.0.0.1:1/")
	if err := m.Send(req, nil); err == nil {
		t.Fatal("expected the original error")
	}

	events := rec.all()
	if len(events) != 2 || !events[1].patch.Done || events[1].patch.Err == "" {
		t.Errorf("expected send plus failed done, got %+v", events)
	}
	if adapter.Tracked() != 0 {
		t.Error("failed send must drop the side-table entry")
	}
}

func TestXHRAdapterCapsBody(t *testing.T) {
	server := statusServer(200, "0123456789")
	defer server.Close()

	s := store.New()
	m := NewXHRAdapter(s, WithMaxBodyBytes(4)).Wrap(xhr.Native())
	req := newXHRClient(t).NewRequest()
	m.Open(req, "GET", server.URL)
	m.Send(req, nil)
	waitXHR(t, req)

	r := onlyRecord(t, s)
	if r.ResponseBody != "0123" {
		t.Errorf("expected capped body, got %q", r.ResponseBody)
	}
	if r.Size != 10 {
		t.Errorf("size must count the whole body, got %d", r.Size)
	}
}
