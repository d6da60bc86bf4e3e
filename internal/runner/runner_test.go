package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sadopc/netwatch/internal/intercept"
	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/store"
	"github.com/sadopc/netwatch/internal/xhr"
)

const sampleTargets = `
name: smoke
targets:
  - name: users
    api: xhr
    method: get
    url: http://127.0.0.1:8080/users
    headers: {Accept: application/json}
  - api: transport
    method: POST
    url: http://127.0.0.1:8080/notes
    body: '{"text":"hi"}'
  - url: http://127.0.0.1:8080/plain
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleTargets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Name != "smoke" || len(f.Targets) != 3 {
		t.Fatalf("unexpected file %+v", f)
	}
	if f.Targets[0].Method != "GET" || f.Targets[0].Headers["Accept"] != "application/json" {
		t.Errorf("unexpected first target %+v", f.Targets[0])
	}
	if f.Targets[1].API != APITransport || f.Targets[1].Name != "/notes" {
		t.Errorf("unexpected second target %+v", f.Targets[1])
	}
	if f.Targets[2].API != APIXHR || f.Targets[2].Method != "GET" {
		t.Errorf("defaults not applied: %+v", f.Targets[2])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "name: x\n"},
		{"missing url", "targets:\n  - name: a\n"},
		{"relative url", "targets:\n  - url: /users\n"},
		{"bad api", "targets:\n  - url: http://h/a\n    api: grpc\n"},
		{"bad yaml", "targets: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	os.WriteFile(path, []byte(sampleTargets), 0o644)
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(f.Targets) != 3 {
		t.Errorf("expected 3 targets, got %d", len(f.Targets))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func echoServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(r.Method + " " + string(body)))
		}
	}))
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	client, err := xhr.NewClient(xhr.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.CloseIdleConnections)
	return New(Config{Timeout: 5 * time.Second, Logger: zaptest.NewLogger(t), XHR: client})
}

func TestRun(t *testing.T) {
	server := echoServer()
	defer server.Close()

	targets := []Target{
		{Name: "xhr", API: APIXHR, Method: "POST", URL: server.URL + "/a", Body: "x"},
		{Name: "transport", API: APITransport, Method: "PUT", URL: server.URL + "/b", Body: "yz"},
		{Name: "missing", API: APITransport, Method: "GET", URL: server.URL + "/missing"},
	}
	results := newRunner(t).Run(context.Background(), targets)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Status != 200 || results[0].Size != int64(len("POST x")) || results[0].Error != "" {
		t.Errorf("unexpected xhr result %+v", results[0])
	}
	if results[1].Status != 200 || results[1].Size != int64(len("PUT yz")) {
		t.Errorf("unexpected transport result %+v", results[1])
	}
	if results[2].Status != 404 || results[2].Error != "" {
		t.Errorf("a 404 is not a call error: %+v", results[2])
	}
}

func TestRunNetworkError(t *testing.T) {
	server := echoServer()
	url := server.URL + "/gone"
	server.Close()

	r := newRunner(t)
	for _, api := range []API{APIXHR, APITransport} {
		res := r.Do(context.Background(), Target{Name: "gone", API: api, Method: "GET", URL: url})
		if res.Error == "" || res.Status != 0 {
			t.Errorf("%s: expected a network error, got %+v", api, res)
		}
	}
}

func TestWaitDone(t *testing.T) {
	s := store.New()
	s.Add("a", record.Record{URL: "/a"})

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Update("a", record.Patch{Done: true}.WithStatus(200))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitDone(ctx, s, 1); err != nil {
		t.Fatalf("WaitDone: %v", err)
	}

	short, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	if err := WaitDone(short, s, 2); err == nil {
		t.Error("expected timeout waiting for a second record")
	}
}

// Both APIs are captured when the interceptors are installed on the
// process-wide slots.
func TestRunCapturedByInterceptors(t *testing.T) {
	if !intercept.IsNativeTransport(http.DefaultTransport) {
		t.Skip("default transport already wrapped by the environment")
	}
	server := echoServer()
	defer server.Close()

	s := store.New()
	c := intercept.NewController(s, intercept.WithLogger(zaptest.NewLogger(t)))
	c.Install(intercept.KindXHR)
	c.Install(intercept.KindTransport)
	defer c.UninstallAll()

	targets := []Target{
		{Name: "a", API: APIXHR, Method: "GET", URL: server.URL + "/a"},
		{Name: "b", API: APITransport, Method: "GET", URL: server.URL + "/b"},
	}
	newRunner(t).Run(context.Background(), targets)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := WaitDone(ctx, s, 2); err != nil {
		t.Fatal(err)
	}
	sources := map[record.Source]bool{}
	for _, r := range s.List() {
		sources[r.Source] = true
	}
	if !sources[record.SourceXHR] || !sources[record.SourceTransport] {
		t.Errorf("expected one record per API, got %v", sources)
	}
}

func TestRunUsesConfiguredTransport(t *testing.T) {
	server := echoServer()
	defer server.Close()

	var transport http.RoundTripper = &http.Transport{}
	defer transport.(*http.Transport).CloseIdleConnections()
	s := store.New()
	c := intercept.NewController(s,
		intercept.WithLogger(zaptest.NewLogger(t)),
		intercept.WithTransportSlot(intercept.TransportVar(&transport)),
	)
	c.Install(intercept.KindTransport)
	defer c.UninstallAll()

	r := New(Config{Timeout: 5 * time.Second, Logger: zaptest.NewLogger(t), Transport: c.RoundTripper()})
	res := r.Do(context.Background(), Target{Name: "b", API: APITransport, Method: "GET", URL: server.URL + "/b"})
	if res.Status != 200 {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.Len() != 1 {
		t.Errorf("expected the call to pass the installed wrapper, got %d records", s.Len())
	}
}

func outputRecords() []record.Record {
	t0 := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ok := record.Defaults(record.Record{ID: "1", Source: record.SourceXHR, URL: "http://h/users"}, t0)
	ok.Apply(record.Patch{Done: true, At: t0.Add(12 * time.Millisecond)}.
		WithStatus(200).WithContentType("application/json").WithSize(2048).WithResponseBody(`{"a":1}`), t0)
	bad := record.Defaults(record.Record{ID: "2", Source: record.SourceTransport, URL: "http://h/b"}, t0)
	bad.Apply(record.Patch{Done: true, Err: "connection refused"}, t0)
	return []record.Record{ok, bad}
}

func TestPrintText(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, outputRecords(), true)
	out := buf.String()

	for _, want := range []string{"✓ xhr", "✗ transport", "200", "error", "2.0 KiB", "12ms",
		"└ Error: connection refused", `"a": 1`, "Requests: 2 total, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Print(&buf, FormatJSON, outputRecords(), false, "dev"); err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0]["status"] != float64(200) || decoded[1]["status"] != "pending" {
		t.Errorf("unexpected JSON %v", decoded)
	}

	buf.Reset()
	PrintJSON(&buf, nil)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestPrintHARAndUnknown(t *testing.T) {
	var buf bytes.Buffer
	if err := Print(&buf, FormatHAR, outputRecords(), false, "dev"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"entries"`) {
		t.Error("expected HAR output")
	}
	if err := Print(&buf, "junit", nil, false, "dev"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExitCode(t *testing.T) {
	records := outputRecords()
	if ExitCode(records[:1]) != 0 {
		t.Error("expected 0 for successful records")
	}
	if ExitCode(records) != 1 {
		t.Error("expected 1 with a failed record")
	}
	if ExitCode(nil) != 0 {
		t.Error("expected 0 for no records")
	}
}
