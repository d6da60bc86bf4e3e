package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/sadopc/netwatch/internal/record"
)

func sample() []record.Record {
	return []record.Record{
		{URL: "https://api.example.com/users", Method: "GET", Status: 200, Source: record.SourceXHR, Done: true,
			ResHeaders: map[string]string{"Content-Type": "application/json"}, Type: "application", SubType: "json"},
		{URL: "https://api.example.com/users", Method: "POST", Status: 500, Source: record.SourceTransport, Done: true, HasErr: true,
			ResponseBody: `{"error":"boom"}`},
		{URL: "https://api.example.com/slow", Method: "GET", Source: record.SourceTransport, Time: 2 * time.Second},
	}
}

func TestMatch(t *testing.T) {
	records := sample()
	tests := []struct {
		expr string
		want []bool
	}{
		{"", []bool{true, true, true}},
		{"r.status >= 400", []bool{false, true, false}},
		{`r.method === "POST" && r.hasErr`, []bool{false, true, false}},
		{"!r.done", []bool{false, false, true}},
		{`r.source == "xhr"`, []bool{true, false, false}},
		{`r.contentType == "application/json"`, []bool{true, false, false}},
		{`r.resHeaders["Content-Type"] !== undefined`, []bool{true, false, false}},
		{`r.responseBody.indexOf("boom") >= 0`, []bool{false, true, false}},
		{"r.time > 1000", []bool{false, false, true}},
		{`/slow$/.test(r.url)`, []bool{false, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr, time.Second)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			for i, r := range records {
				got, err := f.Match(r)
				if err != nil {
					t.Fatalf("Match: %v", err)
				}
				if got != tt.want[i] {
					t.Errorf("record %d: got %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestApply(t *testing.T) {
	f, err := Compile(`r.source == "transport"`, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.Apply(sample())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Method != "POST" || got[1].URL != "https://api.example.com/slow" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestCompileError(t *testing.T) {
	if _, err := Compile("r.status >=", 0); err == nil {
		t.Error("expected a syntax error")
	}
}

func TestRuntimeError(t *testing.T) {
	f, _ := Compile("r.missing.field", 0)
	if _, err := f.Match(sample()[0]); err == nil {
		t.Error("expected a runtime error")
	}
	if _, err := f.Apply(sample()); err == nil {
		t.Error("Apply must surface the error")
	}
}

func TestTimeout(t *testing.T) {
	f, err := Compile("(function(){ while(true){} })()", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Match(sample()[0])
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
