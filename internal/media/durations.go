package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"replay-manager/internal/platform/logger"
)

// DefaultWarmWorkers bounds concurrent probes during Warm.
const DefaultWarmWorkers = 4

// FileID identifies one version of a file. A rewritten file has a new
// FileID, so results cached for the old contents are never reused for it.
type FileID struct {
	Path    string
	ModTime int64
	Size    int64
}

// NewFileID returns the identity of path at modTime with size bytes.
func NewFileID(path string, modTime time.Time, size int64) FileID {
	return FileID{Path: path, ModTime: modTime.UnixNano(), Size: size}
}

func (id FileID) flightKey() string {
	return fmt.Sprintf("%d:%d:%s", id.ModTime, id.Size, id.Path)
}

// DurationCache memoises probe results by file identity. Failed probes are
// not cached so a later call may succeed once the file is complete.
type DurationCache struct {
	prober Prober
	log    *slog.Logger

	mu    sync.RWMutex
	cache map[FileID]float64
	group singleflight.Group
}

// NewDurationCache wraps prober. A nil prober yields a cache that always reports unknown.
func NewDurationCache(prober Prober, log *slog.Logger) *DurationCache {
	if log == nil {
		log = logger.Discard()
	}
	return &DurationCache{prober: prober, log: log, cache: make(map[FileID]float64)}
}

// Cached returns the duration for id without probing.
func (c *DurationCache) Cached(id FileID) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.cache[id]
	return d, ok
}

// Get returns the cached duration or probes the file. Concurrent calls for
// the same identity share one probe. ok is false when the duration is unknown.
func (c *DurationCache) Get(ctx context.Context, id FileID) (float64, bool) {
	if d, ok := c.Cached(id); ok {
		return d, true
	}
	if c.prober == nil {
		return 0, false
	}

	v, err, _ := c.group.Do(id.flightKey(), func() (any, error) {
		if d, ok := c.Cached(id); ok {
			return d, nil
		}
		d, err := c.prober.Probe(ctx, id.Path)
		if err != nil {
			return 0.0, err
		}
		c.mu.Lock()
		c.cache[id] = d
		c.mu.Unlock()
		return d, nil
	})
	if err != nil {
		c.log.Debug("probe failed", slog.String("path", id.Path), slog.String("error", err.Error()))
		return 0, false
	}
	return v.(float64), true
}

// Forget drops every cached duration for paths, whatever their identity.
func (c *DurationCache) Forget(paths ...string) {
	if len(paths) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		drop[p] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.cache {
		if _, ok := drop[id.Path]; ok {
			delete(c.cache, id)
		}
	}
}

// Warm probes every uncached file with at most workers concurrent probes and
// calls onResult for each known duration. It returns once all probes finish.
func (c *DurationCache) Warm(ctx context.Context, ids []FileID, workers int, onResult func(id FileID, seconds float64)) {
	if workers <= 0 {
		workers = DefaultWarmWorkers
	}
	p := pool.New().WithMaxGoroutines(workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			if d, ok := c.Get(ctx, id); ok && onResult != nil {
				onResult(id, d)
			}
		})
	}
	p.Wait()
}
