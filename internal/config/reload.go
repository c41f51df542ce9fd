package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Reloader polls the config file and swaps in each valid new revision,
// handing the apply callback the fresh config together with the diff against
// the previous one. Polling keeps the dependency surface flat; a reload
// cadence of seconds is plenty for personality and fleet tweaks.
type Reloader struct {
	path   string
	every  time.Duration
	settle time.Duration
	apply  func(cfg *Config, d ConfigDiff)

	mu     sync.Mutex
	cfg    *Config
	digest [sha256.Size]byte
	mtime  time.Time

	quit     chan struct{}
	quitOnce sync.Once
}

// ReloadOption configures a [Reloader].
type ReloadOption func(*Reloader)

// WithPollInterval sets how often the file is checked. The default is 5
// seconds.
func WithPollInterval(d time.Duration) ReloadOption {
	return func(r *Reloader) {
		if d > 0 {
			r.every = d
		}
	}
}

// WatchConfig loads path and starts polling it for edits. apply runs once per
// accepted revision whose hot-reloadable fields actually changed; it may be
// nil. Revisions that fail to parse or validate are rejected and the current
// config stays in effect.
func WatchConfig(path string, apply func(cfg *Config, d ConfigDiff), opts ...ReloadOption) (*Reloader, error) {
	r := &Reloader{
		path:   path,
		every:  5 * time.Second,
		settle: 200 * time.Millisecond,
		apply:  apply,
		quit:   make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}

	cfg, raw, mtime, err := r.read()
	if err != nil {
		return nil, fmt.Errorf("config: initial load of %s: %w", path, err)
	}
	r.cfg = cfg
	r.digest = sha256.Sum256(raw)
	r.mtime = mtime

	go r.loop()
	return r, nil
}

// Snapshot returns the most recently accepted config.
func (r *Reloader) Snapshot() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Close stops the polling goroutine. Safe to call more than once.
func (r *Reloader) Close() {
	r.quitOnce.Do(func() { close(r.quit) })
}

func (r *Reloader) loop() {
	tick := time.NewTicker(r.every)
	defer tick.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-tick.C:
			r.tick()
		}
	}
}

// tick checks the file once. The mtime comparison keeps the common no-change
// poll down to a single stat; content is hashed only after the mtime moved.
func (r *Reloader) tick() {
	info, err := os.Stat(r.path)
	if err != nil {
		slog.Warn("config reload: stat failed", "path", r.path, "err", err)
		return
	}

	r.mu.Lock()
	seen := r.mtime
	r.mu.Unlock()
	if info.ModTime().Equal(seen) {
		return
	}
	// Let the writer finish before reading; editors save in bursts.
	if time.Since(info.ModTime()) < r.settle {
		return
	}

	cfg, raw, mtime, err := r.read()
	if err != nil {
		slog.Warn("config reload: new revision rejected, keeping current", "path", r.path, "err", err)
		return
	}
	digest := sha256.Sum256(raw)

	r.mu.Lock()
	if digest == r.digest {
		// Touched but byte-identical.
		r.mtime = mtime
		r.mu.Unlock()
		return
	}
	prev := r.cfg
	r.cfg = cfg
	r.digest = digest
	r.mtime = mtime
	r.mu.Unlock()

	d := Diff(prev, cfg)
	slog.Info("config reloaded", "path", r.path, "hot_changes", d.Changed())
	// Apply outside the lock so the callback can call Snapshot.
	if r.apply != nil && d.Changed() {
		r.apply(cfg, d)
	}
}

// read loads and validates the file, returning the parsed config alongside
// the raw bytes and the file's modification time.
func (r *Reloader) read() (*Config, []byte, time.Time, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	return cfg, raw, info.ModTime(), nil
}
