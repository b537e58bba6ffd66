package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"tooldispatch/internal/infra/telemetry"
)

const defaultReloadDebounce = 200 * time.Millisecond

type ProviderOptions struct {
	Build BuildOptions
	// WatchFiles are the declarative files whose edits trigger a reload.
	WatchFiles []string
	Health     *telemetry.HealthTracker
	Debounce   time.Duration
}

// Provider holds the current catalogue and swaps in a freshly built one on
// reload. Readers always get a complete snapshot.
type Provider struct {
	logger   *zap.Logger
	sources  []Source
	opts     ProviderOptions
	debounce time.Duration

	current  atomic.Pointer[Catalog]
	revision atomic.Uint64

	subsMu sync.Mutex
	subs   map[chan *Catalog]struct{}

	reloadMu  sync.Mutex
	watchOnce sync.Once
}

// NewProvider builds the initial catalogue from sources.
func NewProvider(ctx context.Context, sources []Source, opts ProviderOptions, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Build.Logger == nil {
		opts.Build.Logger = logger
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	p := &Provider{
		logger:   logger.Named("catalog_provider"),
		sources:  append([]Source(nil), sources...),
		opts:     opts,
		debounce: debounce,
		subs:     make(map[chan *Catalog]struct{}),
	}
	p.store(p.build(ctx, 1))
	return p
}

// Snapshot returns the current catalogue.
func (p *Provider) Snapshot() *Catalog {
	return p.current.Load()
}

// Reload rebuilds the catalogue and swaps it in when the metadata or the
// set of failing sources changed.
func (p *Provider) Reload(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	prev := p.current.Load()
	next := p.build(ctx, p.revision.Load()+1)
	if prev != nil && prev.ETag() == next.ETag() && sameFailures(prev.Failures(), next.Failures()) {
		return prev, nil
	}
	p.store(next)
	p.logger.Info("catalog reloaded",
		zap.Uint64("revision", next.Revision()),
		zap.Int("tools", next.Len()),
	)
	p.broadcast(next)
	return next, nil
}

// Watch subscribes to catalogue swaps. The first call starts the file
// watcher; it stops when ctx is done.
func (p *Provider) Watch(ctx context.Context) <-chan *Catalog {
	ch := make(chan *Catalog, 1)
	p.subsMu.Lock()
	p.subs[ch] = struct{}{}
	p.subsMu.Unlock()

	p.watchOnce.Do(func() {
		if len(p.opts.WatchFiles) > 0 {
			go p.runWatcher(ctx)
		}
	})

	go func() {
		<-ctx.Done()
		p.subsMu.Lock()
		delete(p.subs, ch)
		p.subsMu.Unlock()
	}()
	return ch
}

func (p *Provider) build(ctx context.Context, revision uint64) *Catalog {
	opts := p.opts.Build
	opts.Revision = revision
	return Build(ctx, p.sources, opts)
}

func (p *Provider) store(catalog *Catalog) {
	p.revision.Store(catalog.Revision())
	p.current.Store(catalog)
	if p.opts.Health == nil {
		return
	}
	if failures := catalog.Failures(); len(failures) > 0 {
		p.opts.Health.Set("catalog", fmt.Errorf("%d catalog source(s) failed", len(failures)))
		return
	}
	p.opts.Health.Set("catalog", nil)
}

func (p *Provider) broadcast(catalog *Catalog) {
	p.subsMu.Lock()
	subs := make([]chan *Catalog, 0, len(p.subs))
	for ch := range p.subs {
		subs = append(subs, ch)
	}
	p.subsMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- catalog:
		default:
		}
	}
}

func (p *Provider) runWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("catalog watcher failed", zap.Error(err))
		return
	}
	defer watcher.Close()

	for _, dir := range watchDirs(p.opts.WatchFiles) {
		if err := watcher.Add(dir); err != nil {
			p.logger.Warn("catalog watcher add failed", zap.String("path", dir), zap.Error(err))
		}
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-watcher.Errors:
			if err != nil {
				p.logger.Warn("catalog watcher error", zap.Error(err))
			}
		case event := <-watcher.Events:
			if !p.watches(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(p.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.debounce)
		case <-timerChan(timer):
			timer = nil
			if _, err := p.Reload(ctx); err != nil {
				p.logger.Warn("catalog reload failed", zap.Error(err))
			}
		}
	}
}

func (p *Provider) watches(path string) bool {
	if path == "" {
		return false
	}
	cleaned := filepath.Clean(path)
	for _, file := range p.opts.WatchFiles {
		if filepath.Clean(file) == cleaned {
			return true
		}
	}
	return false
}

func watchDirs(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	dirs := make([]string, 0, len(files))
	for _, file := range files {
		dir := filepath.Dir(file)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}

func sameFailures(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for name, msg := range a {
		if b[name] != msg {
			return false
		}
	}
	return true
}
