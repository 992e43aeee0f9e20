package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Loader loads a Config and optionally watches it for changes, applying
// them additively: a reload never tears down the running pool or any
// already-started source. It only surfaces newly added sources, groups,
// control sockets, FD writers and QA sinks through OnChange callbacks,
// and an updated KernelFeeder/log configuration.
type Loader struct {
	path string

	mu     sync.RWMutex
	config *Config

	watcher  *fsnotify.Watcher
	onChange []func(prev, next *Config)

	ctx    context.Context
	cancel context.CancelFunc
	errCh  chan error

	debounce time.Duration
	timer    *time.Timer
}

// NewLoader creates a Loader for the config file at path.
func NewLoader(path string) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:     path,
		ctx:      ctx,
		cancel:   cancel,
		errCh:    make(chan error, 1),
		debounce: 100 * time.Millisecond,
	}
}

// Load reads, validates, and stores the configuration file.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the most recently loaded configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers a callback invoked after a successful reload, with
// the previous and the newly loaded configuration. Callbacks should diff
// the two and apply only additive changes.
func (l *Loader) OnChange(cb func(prev, next *Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors returns a channel of reload errors encountered by Watch.
func (l *Loader) Errors() <-chan error {
	return l.errCh
}

// Watch starts watching the config file's directory for changes and
// triggers a debounced reload on write or create events matching the
// config file's name.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	l.watcher = watcher
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	name := filepath.Base(l.path)
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.scheduleReload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			select {
			case l.errCh <- err:
			default:
			}
		}
	}
}

func (l *Loader) scheduleReload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, l.reload)
}

func (l *Loader) reload() {
	next, err := Load(l.path)
	if err != nil {
		select {
		case l.errCh <- err:
		default:
		}
		return
	}
	if err := next.Validate(); err != nil {
		select {
		case l.errCh <- fmt.Errorf("config: %w", err):
		default:
		}
		return
	}

	l.mu.Lock()
	prev := l.config
	l.config = next
	callbacks := append([]func(prev, next *Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(prev, next)
	}
}

// Close stops watching and releases the underlying file watcher.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// DiffNewSources returns the sources present in next but absent (by
// SerialID) from prev, for additive reload handling.
func DiffNewSources(prev, next *Config) []SourceConfig {
	existing := make(map[string]bool, len(prev.Sources))
	for _, s := range prev.Sources {
		existing[s.SerialID] = true
	}
	var added []SourceConfig
	for _, s := range next.Sources {
		if !existing[s.SerialID] {
			added = append(added, s)
		}
	}
	return added
}

// DiffNewControlSockets returns the control sockets present in next but
// absent (by Address) from prev.
func DiffNewControlSockets(prev, next *Config) []SocketConfig {
	existing := make(map[string]bool, len(prev.ControlSockets))
	for _, s := range prev.ControlSockets {
		existing[s.Address] = true
	}
	var added []SocketConfig
	for _, s := range next.ControlSockets {
		if !existing[s.Address] {
			added = append(added, s)
		}
	}
	return added
}
