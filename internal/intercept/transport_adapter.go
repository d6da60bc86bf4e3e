package intercept

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/record"
)

// TransportAdapter turns round trips into record events.
type TransportAdapter struct {
	sink    record.Listener
	now     func() time.Time
	maxBody int64
	log     *zap.Logger
}

// NewTransportAdapter creates an adapter publishing to sink.
func NewTransportAdapter(sink record.Listener, opts ...Option) *TransportAdapter {
	o := buildOptions(opts)
	return &TransportAdapter{
		sink:    sink,
		now:     o.now,
		maxBody: o.maxBody,
		log:     o.log,
	}
}

// Wrap returns a round tripper that records every call and forwards it to
// next. Responses and errors reach the caller unchanged, apart from the
// response body being read through an observer.
func (a *TransportAdapter) Wrap(next http.RoundTripper) http.RoundTripper {
	return &roundTripper{next: next, a: a}
}

type roundTripper struct {
	next http.RoundTripper
	a    *TransportAdapter
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	a := t.a
	id := uuid.NewString()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	a.sink.OnSend(id, record.Record{
		Source:      record.SourceTransport,
		URL:         req.URL.String(),
		Method:      method,
		RequestBody: a.requestBody(req),
		ReqHeaders:  flattenHeaders(req.Header),
		StartTime:   a.now(),
	})

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		a.sink.OnUpdate(id, record.Patch{Done: true, Err: err.Error(), At: a.now()})
		return resp, err
	}

	p := record.Patch{ResHeaders: flattenHeaders(resp.Header), At: a.now()}.
		WithStatus(resp.StatusCode).
		WithContentType(resp.Header.Get("Content-Type"))
	if resp.ContentLength >= 0 {
		p = p.WithSize(resp.ContentLength)
	}
	a.sink.OnUpdate(id, p)

	if resp.Body == nil || resp.Body == http.NoBody || resp.StatusCode == http.StatusSwitchingProtocols {
		a.sink.OnUpdate(id, record.Patch{Done: true, At: a.now()})
		return resp, nil
	}
	if _, rw := resp.Body.(io.Writer); rw {
		a.sink.OnUpdate(id, record.Patch{Done: true, At: a.now()})
		return resp, nil
	}

	declared := resp.ContentLength
	resp.Body = newBodyObserver(resp.Body, a.maxBody, func(body string, n int64, readErr error) {
		p := record.Patch{Done: true, At: a.now()}.WithResponseBody(body)
		if declared < 0 || n > declared {
			p = p.WithSize(n)
		}
		if readErr != nil {
			p.Err = readErr.Error()
		}
		a.log.Debug("transport request done", zap.String("id", id), zap.Int64("bytes", n))
		a.sink.OnUpdate(id, p)
	})
	return resp, nil
}

// requestBody reads a copy of the request body when the request can replay
// it. Bodies that can only be read once are left alone.
func (a *TransportAdapter) requestBody(req *http.Request) string {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return ""
	}
	rc, err := req.GetBody()
	if err != nil {
		a.log.Debug("request body not replayable", zap.Error(err))
		return ""
	}
	defer rc.Close()

	var r io.Reader = rc
	if a.maxBody > 0 {
		r = io.LimitReader(rc, a.maxBody)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return string(data)
}
