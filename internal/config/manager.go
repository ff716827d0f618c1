package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"steamwatch/internal/apperr"
	"steamwatch/pkg/logx"
)

// Manager loads the configuration and, in daemon mode, republishes it when
// the file changes.
type Manager struct {
	path   string
	lookup LookupFunc

	mu  sync.RWMutex
	cfg *Config

	// subsMu guards subs and makes publish and Unsubscribe exclusive, so a
	// channel is never sent on while it is being closed.
	subsMu sync.Mutex
	subs   []chan *Config

	log logx.Logger

	// lastHash is the content hash of the committed config; editors often
	// emit several write events for one save.
	lastHash uint64
}

// NewManager reads path (may be empty for environment-only setups) and
// overlays the variables returned by lookup.
func NewManager(path string, lookup LookupFunc) *Manager {
	return &Manager{path: strings.TrimSpace(path), lookup: lookup}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

func (m *Manager) Path() string { return m.path }

// Parse builds a validated config from the file and the environment without
// committing it. Every failure is an *apperr.ConfigError except a file that
// cannot be read.
func (m *Manager) Parse() (*Config, error) {
	var cfg Config
	if m.path != "" {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeStrict(m.path, b, &cfg); err != nil {
			return nil, &apperr.ConfigError{Invalid: []string{fmt.Sprintf("config file %s: %v", m.path, err)}}
		}
	}
	if err := ApplyEnv(&cfg, m.lookup); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeStrict(path string, data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	jb, err := toJSON(path, data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("trailing data")
		}
		return err
	}
	return nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

// publish delivers cfg to every subscriber. A full subscriber loses its
// oldest pending config so the newest one always gets through.
func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
		}
	}
}

// Reload parses the file again and publishes the result if it is valid and
// differs from the committed config. It reports whether anything was
// published.
func (m *Manager) Reload() (bool, error) {
	cfg, err := m.Parse()
	if err != nil {
		return false, err
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	m.Commit(cfg)
	m.publish(cfg)
	return true, nil
}

const (
	reloadDebounce     = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watch follows the config file until ctx is done. Invalid edits are logged
// and ignored; the last good config stays in effect. Without a config file
// there is nothing to watch and Watch returns at once.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	log := m.log.With(logx.String("path", m.path))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			published, err := m.Reload()
			switch {
			case err != nil:
				log.Warn("config rejected; keeping previous", logx.Err(err))
			case published:
				log.Info("config reloaded")
			default:
				log.Debug("config unchanged")
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	// fsnotify watchers occasionally break (closed channels, editor quirks);
	// recreate them with a jittered exponential backoff.
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	wait := func() bool {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, restartBackoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warn("config watch init failed", logx.Err(err))
			if !wait() {
				return nil
			}
			continue
		}
		// Watch the directory: editors replace files by rename.
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			log.Warn("config watch add failed", logx.Err(err), logx.String("dir", dir))
			if !wait() {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		log.Debug("config watcher started")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					log.Warn("config watch overflow; forcing reload")
					debounce()
					continue
				}
				log.Warn("config watch error", logx.Err(err))
			}
		}
		_ = w.Close()
		log.Warn("config watcher stopped; restarting")
		if !wait() {
			return nil
		}
	}
	return nil
}
