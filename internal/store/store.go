// Package store keeps the captured request records and tells presenters when
// they change.
package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/record"
)

// ChangeKind says what happened to the store.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota + 1
	ChangeUpdate
	ChangeClear
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Change describes one store mutation. Record is empty for ChangeClear.
type Change struct {
	Kind   ChangeKind
	ID     string
	Record record.Record
}

type handler struct {
	key int
	fn  func(Change)
}

// Store is the keyed container of records. It is the single source of truth
// for presenters and is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record.Record
	order   []string

	hmu      sync.Mutex
	handlers []handler
	subs     map[int]chan Change
	nextKey  int

	now func() time.Time
	log *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for default start times and updates that
// carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*record.Record),
		subs:    make(map[int]chan Change),
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add merges initial over the default record shape and stores it under id.
// Adding an id that already exists replaces the record.
func (s *Store) Add(id string, initial record.Record) {
	r := record.Defaults(initial, s.now())
	r.ID = id

	s.mu.Lock()
	if _, exists := s.records[id]; !exists {
		s.order = append(s.order, id)
	}
	s.records[id] = &r
	snapshot := r.Clone()
	s.mu.Unlock()

	s.log.Debug("record added", zap.String("id", id), zap.String("method", r.Method), zap.String("url", r.URL))
	s.notify(Change{Kind: ChangeAdd, ID: id, Record: snapshot})
}

// Update merges p into the record stored under id. Unknown ids are ignored;
// the result reports whether a record was updated.
func (s *Store) Update(id string, p record.Patch) bool {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		s.log.Debug("update for unknown record ignored", zap.String("id", id))
		return false
	}
	r.Apply(p, s.now())
	snapshot := r.Clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdate, ID: id, Record: snapshot})
	return true
}

// Clear drops every record. Requests still in flight keep publishing updates
// for their ids; those are ignored.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.records)
	s.records = make(map[string]*record.Record)
	s.order = nil
	s.mu.Unlock()

	s.log.Debug("records cleared", zap.Int("count", n))
	s.notify(Change{Kind: ChangeClear})
}

// Get returns a snapshot of the record stored under id.
func (s *Store) Get(id string) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return record.Record{}, false
	}
	return r.Clone(), true
}

// Snapshot returns a copy of every record keyed by id, or nil when the store
// is empty.
func (s *Store) Snapshot() map[string]record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil
	}
	out := make(map[string]record.Record, len(s.records))
	for id, r := range s.records {
		out[id] = r.Clone()
	}
	return out
}

// List returns the records in the order they were added.
func (s *Store) List() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// OnChange registers fn to run after every add, update and clear. Handlers run
// synchronously on the goroutine that mutated the store, after the store lock
// has been released. The returned func unregisters fn.
func (s *Store) OnChange(fn func(Change)) func() {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	key := s.nextKey
	s.nextKey++
	s.handlers = append(s.handlers, handler{key: key, fn: fn})
	return func() {
		s.hmu.Lock()
		defer s.hmu.Unlock()
		for i, h := range s.handlers {
			if h.key == key {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a channel receiving every change and a func that
// unsubscribes and closes the channel. Changes are dropped for a subscriber
// whose buffer is full.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Change, buffer)

	s.hmu.Lock()
	key := s.nextKey
	s.nextKey++
	s.subs[key] = ch
	s.hmu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.hmu.Lock()
			delete(s.subs, key)
			s.hmu.Unlock()
			close(ch)
		})
	}
}

// OnSend implements record.Listener.
func (s *Store) OnSend(id string, initial record.Record) {
	s.Add(id, initial)
}

// OnUpdate implements record.Listener.
func (s *Store) OnUpdate(id string, p record.Patch) {
	s.Update(id, p)
}

func (s *Store) notify(c Change) {
	s.hmu.Lock()
	handlers := make([]func(Change), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h.fn)
	}
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			s.log.Warn("subscriber too slow, change dropped", zap.Stringer("kind", c.Kind), zap.String("id", c.ID))
		}
	}
	s.hmu.Unlock()

	for _, h := range handlers {
		h(c)
	}
}
