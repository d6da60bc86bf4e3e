// Package runner issues the calls of a targets file through the two request
// APIs, so an installed monitor has traffic to capture.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/store"
	"github.com/sadopc/netwatch/internal/xhr"
)

// Runner issues targets. xhr targets go through the xhr prototype and
// transport targets through an http.Client on the default transport, so both
// pass whatever interceptors are installed at call time.
type Runner struct {
	xhr     *xhr.Client
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Config holds runner configuration.
type Config struct {
	Timeout time.Duration
	Logger  *zap.Logger
	// XHR is the client for xhr targets. Nil uses xhr.DefaultClient.
	XHR *xhr.Client
	// Transport carries transport targets. It must resolve the default
	// transport per call, as monitor.Transport does. Nil reads
	// http.DefaultTransport directly, which is only safe while nothing
	// swaps it.
	Transport http.RoundTripper
}

// Result is the outcome of one target as the caller saw it.
type Result struct {
	Name     string        `json:"name"`
	API      API           `json:"api"`
	Method   string        `json:"method"`
	URL      string        `json:"url"`
	Status   int           `json:"status"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// New creates a runner.
func New(cfg Config) *Runner {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.XHR == nil {
		cfg.XHR = xhr.DefaultClient()
	}
	return &Runner{
		xhr:     cfg.XHR,
		http:    &http.Client{Transport: cfg.Transport, Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
		log:     cfg.Logger,
	}
}

// Run issues every target concurrently and returns the results in target
// order. Errors are reported per result.
func (r *Runner) Run(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Do(ctx, t)
		}()
	}
	wg.Wait()
	return results
}

// Do issues one target and waits for it to finish.
func (r *Runner) Do(ctx context.Context, t Target) Result {
	res := Result{Name: t.Name, API: t.API, Method: t.Method, URL: t.URL}
	start := time.Now()

	var err error
	switch t.API {
	case APITransport:
		res.Status, res.Size, err = r.doTransport(ctx, t)
	default:
		res.Status, res.Size, err = r.doXHR(ctx, t)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		r.log.Debug("target failed", zap.String("target", t.Name), zap.Error(err))
	}
	return res
}

func (r *Runner) doXHR(ctx context.Context, t Target) (int, int64, error) {
	req := r.xhr.NewRequest()
	req.SetTimeout(r.timeout)
	if err := req.Open(t.Method, t.URL); err != nil {
		return 0, 0, err
	}
	for k, v := range t.Headers {
		if err := req.SetRequestHeader(k, v); err != nil {
			return 0, 0, err
		}
	}
	var body []byte
	if t.Body != "" {
		body = []byte(t.Body)
	}
	if err := req.Send(body); err != nil {
		return 0, 0, err
	}
	if err := req.Wait(ctx); err != nil {
		req.Abort()
		return 0, 0, err
	}
	if err := req.Err(); err != nil {
		return 0, 0, err
	}
	return req.Status(), int64(len(req.ResponseText())), nil
}

func (r *Runner) doTransport(ctx context.Context, t Target) (int, int64, error) {
	var body io.Reader
	if t.Body != "" {
		body = bytes.NewReader([]byte(t.Body))
	}
	req, err := http.NewRequestWithContext(ctx, t.Method, t.URL, body)
	if err != nil {
		return 0, 0, fmt.Errorf("building request: %w", err)
	}
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, n, err
}

// WaitDone blocks until s holds at least want records and every record is
// done, or ctx ends.
func WaitDone(ctx context.Context, s *store.Store, want int) error {
	changes, unsubscribe := s.Subscribe(64)
	defer unsubscribe()

	settled := func() bool {
		list := s.List()
		if len(list) < want {
			return false
		}
		for _, rec := range list {
			if !rec.Done {
				return false
			}
		}
		return true
	}

	// Changes can be dropped when the buffer is full, so poll as well.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for !settled() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for records: %w", ctx.Err())
		case <-changes:
		case <-tick.C:
		}
	}
	return nil
}
