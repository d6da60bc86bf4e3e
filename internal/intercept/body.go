package intercept

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// bodyObserver passes a response body through to its reader while keeping a
// capped copy. finish runs exactly once, at EOF, on a read error or on Close.
type bodyObserver struct {
	rc     io.ReadCloser
	max    int64
	finish func(body string, n int64, err error)

	mu   sync.Mutex
	buf  bytes.Buffer
	n    int64
	once sync.Once
}

func newBodyObserver(rc io.ReadCloser, max int64, finish func(string, int64, error)) *bodyObserver {
	return &bodyObserver{rc: rc, max: max, finish: finish}
}

func (o *bodyObserver) Read(p []byte) (int, error) {
	n, err := o.rc.Read(p)
	if n > 0 {
		o.mu.Lock()
		o.n += int64(n)
		keep := n
		if o.max > 0 {
			room := o.max - int64(o.buf.Len())
			if room < int64(keep) {
				keep = int(max(room, 0))
			}
		}
		o.buf.Write(p[:keep])
		o.mu.Unlock()
	}
	switch {
	case errors.Is(err, io.EOF):
		o.done(nil)
	case err != nil:
		o.done(err)
	}
	return n, err
}

func (o *bodyObserver) Close() error {
	err := o.rc.Close()
	o.done(nil)
	return err
}

func (o *bodyObserver) done(err error) {
	o.once.Do(func() {
		o.mu.Lock()
		body, n := o.buf.String(), o.n
		o.mu.Unlock()
		o.finish(body, n, err)
	})
}
