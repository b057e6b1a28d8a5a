package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProber struct {
	calls   atomic.Int32
	delay   time.Duration
	results map[string]float64
}

func (p *countingProber) Probe(_ context.Context, path string) (float64, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	d, ok := p.results[path]
	if !ok {
		return 0, errors.New("no duration")
	}
	return d, nil
}

var (
	idA = NewFileID("/a.mp4", time.Unix(1700000000, 0), 10)
	idB = NewFileID("/b.mp4", time.Unix(1700000000, 0), 20)
	idC = NewFileID("/c.mp4", time.Unix(1700000000, 0), 30)
)

func TestDurationCache_caches_success(t *testing.T) {
	p := &countingProber{results: map[string]float64{"/a.mp4": 3.5}}
	c := NewDurationCache(p, nil)

	d, ok := c.Get(context.Background(), idA)
	require.True(t, ok)
	assert.Equal(t, 3.5, d)

	d, ok = c.Get(context.Background(), idA)
	require.True(t, ok)
	assert.Equal(t, 3.5, d)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestDurationCache_failure_is_unknown_and_not_cached(t *testing.T) {
	p := &countingProber{results: map[string]float64{}}
	c := NewDurationCache(p, nil)

	_, ok := c.Get(context.Background(), NewFileID("/missing.mp4", time.Time{}, 0))
	assert.False(t, ok)
	_, ok = c.Get(context.Background(), NewFileID("/missing.mp4", time.Time{}, 0))
	assert.False(t, ok)
	assert.Equal(t, int32(2), p.calls.Load())

	_, ok = c.Cached(NewFileID("/missing.mp4", time.Time{}, 0))
	assert.False(t, ok)
}

func TestDurationCache_nil_prober(t *testing.T) {
	c := NewDurationCache(nil, nil)
	_, ok := c.Get(context.Background(), idA)
	assert.False(t, ok)
}

func TestDurationCache_concurrent_gets_share_probe(t *testing.T) {
	p := &countingProber{delay: 50 * time.Millisecond, results: map[string]float64{"/a.mp4": 1}}
	c := NewDurationCache(p, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get(context.Background(), idA)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestDurationCache_Warm(t *testing.T) {
	p := &countingProber{results: map[string]float64{"/a.mp4": 1, "/b.mp4": 2}}
	c := NewDurationCache(p, nil)

	var mu sync.Mutex
	got := map[string]float64{}
	c.Warm(context.Background(), []FileID{idA, idB, idC}, 2, func(id FileID, d float64) {
		mu.Lock()
		got[id.Path] = d
		mu.Unlock()
	})

	assert.Equal(t, map[string]float64{"/a.mp4": 1, "/b.mp4": 2}, got)
	d, ok := c.Cached(idB)
	assert.True(t, ok)
	assert.Equal(t, 2.0, d)
}

// gatedProber blocks its first probe until release is closed and returns
// first for it; every later probe returns later.
type gatedProber struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	first   float64
	later   float64
}

func (p *gatedProber) Probe(_ context.Context, _ string) (float64, error) {
	if p.calls.Add(1) == 1 {
		close(p.entered)
		<-p.release
		return p.first, nil
	}
	return p.later, nil
}

func TestDurationCache_rewritten_file_gets_fresh_duration(t *testing.T) {
	p := &gatedProber{entered: make(chan struct{}), release: make(chan struct{}), first: 10, later: 20}
	c := NewDurationCache(p, nil)

	oldID := NewFileID("/a.mp4", time.Unix(1700000000, 0), 1024)
	newID := NewFileID("/a.mp4", time.Unix(1700000005, 0), 4096)

	done := make(chan float64, 1)
	go func() {
		d, _ := c.Get(context.Background(), oldID)
		done <- d
	}()
	<-p.entered

	// the file grew while the first probe was still running
	c.Forget("/a.mp4")
	d, ok := c.Get(context.Background(), newID)
	require.True(t, ok)
	assert.Equal(t, 20.0, d)

	close(p.release)
	assert.Equal(t, 10.0, <-done)

	d, ok = c.Cached(newID)
	require.True(t, ok)
	assert.Equal(t, 20.0, d, "late result for the old contents must not replace the new one")
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestDurationCache_Forget_drops_every_identity(t *testing.T) {
	p := &countingProber{results: map[string]float64{"/a.mp4": 2}}
	c := NewDurationCache(p, nil)
	older := NewFileID("/a.mp4", time.Unix(1600000000, 0), 5)
	c.Get(context.Background(), idA)
	c.Get(context.Background(), older)

	c.Forget("/a.mp4")
	_, ok := c.Cached(idA)
	assert.False(t, ok)
	_, ok = c.Cached(older)
	assert.False(t, ok)
}
