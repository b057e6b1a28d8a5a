package media

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultThumbnailCacheSize is the number of thumbnails kept in memory.
const DefaultThumbnailCacheSize = 256

// PlaceholderSVG is served when a thumbnail cannot be rendered.
const PlaceholderSVG = `<svg width="320" height="180" xmlns="http://www.w3.org/2000/svg"><rect width="320" height="180" fill="#1e1e1e"/><text x="160" y="100" font-size="48" fill="#666" text-anchor="middle">&#127916;</text></svg>`

// ThumbnailCache keeps rendered thumbnails keyed by file identity, so a
// rewritten file gets a fresh thumbnail.
type ThumbnailCache struct {
	renderer Thumbnailer
	cache    *lru.Cache[FileID, []byte]
	group    singleflight.Group
}

// NewThumbnailCache returns a cache of at most size thumbnails.
func NewThumbnailCache(renderer Thumbnailer, size int) (*ThumbnailCache, error) {
	if size <= 0 {
		size = DefaultThumbnailCacheSize
	}
	c, err := lru.New[FileID, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ThumbnailCache{renderer: renderer, cache: c}, nil
}

// Get returns the thumbnail for the file identified by path, modTime and size,
// rendering it on a miss. Concurrent misses for one file share a render.
// Failures are not cached.
func (c *ThumbnailCache) Get(ctx context.Context, path string, modTime time.Time, size int64) ([]byte, error) {
	id := NewFileID(path, modTime, size)
	if b, ok := c.cache.Get(id); ok {
		return b, nil
	}
	v, err, _ := c.group.Do(id.flightKey(), func() (any, error) {
		if b, ok := c.cache.Get(id); ok {
			return b, nil
		}
		b, err := c.renderer.Thumbnail(ctx, path)
		if err != nil {
			return nil, err
		}
		c.cache.Add(id, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Len returns the number of cached thumbnails.
func (c *ThumbnailCache) Len() int { return c.cache.Len() }
