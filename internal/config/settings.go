package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// KeyInterceptTransport is the settings key of NetworkConfig.InterceptTransport.
const KeyInterceptTransport = "network.intercept_transport"

// Settings is the runtime view of the configuration file. Changes made
// through it are persisted, and handlers are told about every changed key.
type Settings struct {
	path string
	log  *zap.Logger

	mu  sync.Mutex
	cfg Config

	hmu      sync.Mutex
	handlers []settingsHandler
	nextKey  int
}

type settingsHandler struct {
	key int
	fn  func(key string, cfg Config)
}

// NewSettings wraps cfg. An empty path keeps changes in memory only.
func NewSettings(path string, cfg Config, log *zap.Logger) *Settings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settings{path: path, cfg: cfg, log: log}
}

// OpenSettings loads path and wraps the result.
func OpenSettings(path string, log *zap.Logger) (*Settings, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewSettings(path, cfg, log), nil
}

// Path returns the backing file path.
func (s *Settings) Path() string {
	return s.path
}

// Config returns the current configuration.
func (s *Settings) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// InterceptTransport reports whether the transport interceptor is enabled.
func (s *Settings) InterceptTransport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Network.InterceptTransport
}

// SetInterceptTransport changes the toggle, persists it and runs the change
// handlers before returning. Setting the current value does nothing.
func (s *Settings) SetInterceptTransport(on bool) error {
	s.mu.Lock()
	if s.cfg.Network.InterceptTransport == on {
		s.mu.Unlock()
		return nil
	}
	s.cfg.Network.InterceptTransport = on
	cfg := s.cfg
	s.mu.Unlock()

	var saveErr error
	if s.path != "" {
		if err := Save(s.path, cfg); err != nil {
			saveErr = fmt.Errorf("persisting %s: %w", KeyInterceptTransport, err)
		}
	}
	s.notify(KeyInterceptTransport, cfg)
	return saveErr
}

// OnChange registers fn to run whenever a key changes. The returned func
// removes it.
func (s *Settings) OnChange(fn func(key string, cfg Config)) func() {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	key := s.nextKey
	s.nextKey++
	s.handlers = append(s.handlers, settingsHandler{key: key, fn: fn})
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

// Reload re-reads the backing file and notifies handlers of changed keys.
func (s *Settings) Reload() error {
	if s.path == "" {
		return nil
	}
	next, err := LoadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.cfg
	s.cfg = next
	s.mu.Unlock()

	if prev.Network.InterceptTransport != next.Network.InterceptTransport {
		s.log.Info("setting changed on disk",
			zap.String("key", KeyInterceptTransport),
			zap.Bool("value", next.Network.InterceptTransport),
		)
		s.notify(KeyInterceptTransport, next)
	}
	return nil
}

// Watch reloads the settings whenever the backing file changes on disk. It
// blocks until ctx is done.
func (s *Settings) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and Save replace the file by rename.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("settings watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.log.Warn("reloading settings", zap.Error(err))
			}
		}
	}
}

func (s *Settings) notify(key string, cfg Config) {
	s.hmu.Lock()
	handlers := make([]func(string, Config), len(s.handlers))
	for i, h := range s.handlers {
		handlers[i] = h.fn
	}
	s.hmu.Unlock()

	for _, fn := range handlers {
		fn(key, cfg)
	}
}
