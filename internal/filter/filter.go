// Package filter selects captured records with a JavaScript predicate.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/sadopc/netwatch/internal/record"
)

// ErrTimeout is returned when a predicate runs past the filter timeout.
var ErrTimeout = errors.New("filter timeout exceeded")

// Filter evaluates a compiled expression against records. The expression
// sees the record as the global `r`, for example
//
//	r.status >= 400 && r.method === "POST"
type Filter struct {
	src     string
	prog    *goja.Program
	timeout time.Duration
}

// Compile parses expr. An empty expression matches every record.
func Compile(expr string, timeout time.Duration) (*Filter, error) {
	if timeout == 0 {
		timeout = time.Second
	}
	f := &Filter{src: strings.TrimSpace(expr), timeout: timeout}
	if f.src == "" {
		return f, nil
	}
	prog, err := goja.Compile("filter", "("+f.src+")", true)
	if err != nil {
		return nil, fmt.Errorf("compiling filter: %w", err)
	}
	f.prog = prog
	return f, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.src
}

// Match reports whether r satisfies the expression, using JavaScript
// truthiness on the result.
func (f *Filter) Match(r record.Record) (bool, error) {
	if f.prog == nil {
		return true, nil
	}

	vm := goja.New()
	if err := vm.Set("r", newView(r)); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ErrTimeout)
		case <-done:
		}
	}()

	v, err := vm.RunProgram(f.prog)
	close(done)

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return false, ErrTimeout
		}
		return false, fmt.Errorf("filter error: %w", err)
	}
	return v.ToBoolean(), nil
}

// Apply returns the records matching f, in order. Evaluation stops at the
// first error.
func (f *Filter) Apply(records []record.Record) ([]record.Record, error) {
	if f.prog == nil {
		return records, nil
	}
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		ok, err := f.Match(r)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.URL, err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
