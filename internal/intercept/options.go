package intercept

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/xhr"
)

// DefaultMaxBodyBytes caps captured request and response bodies.
const DefaultMaxBodyBytes = 1 << 20

// Option configures adapters and the controller. Slot options only affect
// the controller.
type Option func(*options)

type options struct {
	now     func() time.Time
	maxBody int64
	log     *zap.Logger

	xhrSlot       *Slot[*xhr.Methods]
	transportSlot *Slot[http.RoundTripper]
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		maxBody: DefaultMaxBodyBytes,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used to timestamp events.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxBodyBytes caps captured body text. Zero or less disables the cap.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBody = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithXHRSlot makes a controller patch s instead of the xhr prototype.
func WithXHRSlot(s Slot[*xhr.Methods]) Option {
	return func(o *options) { o.xhrSlot = &s }
}

// WithTransportSlot makes a controller patch s instead of
// http.DefaultTransport.
func WithTransportSlot(s Slot[http.RoundTripper]) Option {
	return func(o *options) { o.transportSlot = &s }
}
