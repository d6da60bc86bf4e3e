// Package monitor hosts network interception: it installs the interceptors,
// feeds the record store and drives a presenter while active.
package monitor

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/config"
	"github.com/sadopc/netwatch/internal/intercept"
	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/store"
)

var (
	// ErrNotFound is returned by Inspect for an unknown or cleared id.
	ErrNotFound = errors.New("monitor: record not found")
	// ErrNotDone is returned by Inspect for a record still in flight.
	ErrNotDone = errors.New("monitor: record not done")
	// ErrInitialized is returned by Initialize on a monitor already running.
	ErrInitialized = errors.New("monitor: already initialized")
)

// Presenter renders the record map. A nil map means there are no records.
// Render may be called from any goroutine.
type Presenter interface {
	Render(records map[string]record.Record)
}

// DetailViewer shows one completed record.
type DetailViewer interface {
	ShowDetail(Detail)
}

// Detail is the payload handed to a DetailViewer.
type Detail struct {
	URL          string
	RequestBody  string
	ResponseBody string
	Type         string
	SubType      string
	ResHeaders   map[string]string
	ReqHeaders   map[string]string
}

// SettingsStore supplies the transport toggle. *config.Settings implements
// it.
type SettingsStore interface {
	InterceptTransport() bool
	OnChange(fn func(key string, cfg config.Config)) func()
}

// Host is what the hosting shell hands to Initialize. Both fields are
// optional: without settings the transport interceptor is always on, without
// a viewer Inspect only returns the detail.
type Host struct {
	Settings SettingsStore
	Viewer   DetailViewer
}

// Monitor is the network panel. It is safe for concurrent use.
type Monitor struct {
	store *store.Store
	bus   *intercept.Bus
	ctrl  *intercept.Controller
	log   *zap.Logger

	mu             sync.Mutex
	initialized    bool
	active         bool
	presenter      Presenter
	viewer         DetailViewer
	removeSettings func()
	removeRender   func()
	unsubscribe    func()
}

// Option configures a Monitor.
type Option func(*options)

type options struct {
	log       *zap.Logger
	now       func() time.Time
	intercept []intercept.Option
}

// WithLogger sets the logger shared by the monitor, store and interceptors.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock sets the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithInterceptOptions passes options through to the interception
// controller.
func WithInterceptOptions(opts ...intercept.Option) Option {
	return func(o *options) { o.intercept = append(o.intercept, opts...) }
}

// New creates a monitor. Nothing is intercepted until Initialize.
func New(opts ...Option) *Monitor {
	o := options{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := store.New(store.WithClock(o.now), store.WithLogger(o.log.Named("store")))
	bus := intercept.NewBus(o.log.Named("bus"))
	icOpts := append([]intercept.Option{
		intercept.WithClock(o.now),
		intercept.WithLogger(o.log.Named("intercept")),
	}, o.intercept...)

	return &Monitor{
		store: s,
		bus:   bus,
		ctrl:  intercept.NewController(bus, icOpts...),
		log:   o.log,
	}
}

// Initialize binds the host collaborators and starts intercepting. The xhr
// interceptor is always installed; the transport interceptor follows the
// settings toggle, now and on every later change.
func (m *Monitor) Initialize(host Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return ErrInitialized
	}

	m.viewer = host.Viewer
	m.unsubscribe = m.bus.Subscribe(m.store)
	m.removeRender = m.store.OnChange(func(store.Change) { m.render() })

	m.ctrl.Install(intercept.KindXHR)
	if host.Settings == nil || host.Settings.InterceptTransport() {
		m.ctrl.Install(intercept.KindTransport)
	}
	if host.Settings != nil {
		m.removeSettings = host.Settings.OnChange(m.onSetting)
	}

	m.initialized = true
	m.log.Info("network monitor initialized",
		zap.Bool("transport", m.ctrl.Installed(intercept.KindTransport)),
	)
	return nil
}

func (m *Monitor) onSetting(key string, cfg config.Config) {
	if key != config.KeyInterceptTransport {
		return
	}
	if cfg.Network.InterceptTransport {
		if !m.ctrl.Install(intercept.KindTransport) {
			m.log.Warn("transport interception unavailable: default transport is not native")
		}
		return
	}
	m.ctrl.Uninstall(intercept.KindTransport)
}

// Activate starts rendering into p: once now, then after every change.
func (m *Monitor) Activate(p Presenter) {
	m.mu.Lock()
	m.presenter = p
	m.active = true
	m.mu.Unlock()
	m.render()
}

// Deactivate stops rendering. Requests are still captured.
func (m *Monitor) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
}

// Teardown stops rendering, uninstalls both interceptors and unregisters
// from the settings store. Records are kept.
func (m *Monitor) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = false
	m.presenter = nil
	m.ctrl.UninstallAll()
	for _, fn := range []func(){m.removeSettings, m.removeRender, m.unsubscribe} {
		if fn != nil {
			fn()
		}
	}
	m.removeSettings, m.removeRender, m.unsubscribe = nil, nil, nil
	m.initialized = false
	m.log.Info("network monitor torn down")
}

// Clear drops every record.
func (m *Monitor) Clear() {
	m.store.Clear()
}

// Records returns the record map, or nil when there are none.
func (m *Monitor) Records() map[string]record.Record {
	return m.store.Snapshot()
}

// List returns the records in capture order.
func (m *Monitor) List() []record.Record {
	return m.store.List()
}

// Store returns the backing record store.
func (m *Monitor) Store() *store.Store {
	return m.store
}

// Transport returns a round tripper that always uses the current default
// transport, wrapped or not. Use it for calls made while the transport
// setting may change.
func (m *Monitor) Transport() http.RoundTripper {
	return m.ctrl.RoundTripper()
}

// Intercepting reports whether kind is currently installed.
func (m *Monitor) Intercepting(kind intercept.Kind) bool {
	return m.ctrl.Installed(kind)
}

// Active reports whether the monitor is rendering.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Inspect hands the record stored under id to the detail viewer. Only
// completed records can be inspected.
func (m *Monitor) Inspect(id string) (Detail, error) {
	r, ok := m.store.Get(id)
	if !ok {
		return Detail{}, ErrNotFound
	}
	if !r.Done {
		return Detail{}, ErrNotDone
	}
	d := Detail{
		URL:          r.URL,
		RequestBody:  r.RequestBody,
		ResponseBody: r.ResponseBody,
		Type:         r.Type,
		SubType:      r.SubType,
		ResHeaders:   r.ResHeaders,
		ReqHeaders:   r.ReqHeaders,
	}

	m.mu.Lock()
	viewer := m.viewer
	m.mu.Unlock()
	if viewer != nil {
		viewer.ShowDetail(d)
	}
	return d, nil
}

func (m *Monitor) render() {
	m.mu.Lock()
	p, active := m.presenter, m.active
	m.mu.Unlock()
	if !active || p == nil {
		return
	}
	p.Render(m.store.Snapshot())
}
