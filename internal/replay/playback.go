package replay

import (
	"fmt"
	"strings"
	"sync"
)

// Phase is the coarse playback state.
type Phase string

const (
	PhaseIdle  Phase = "IDLE"
	PhaseReady Phase = "READY"
	PhaseLive  Phase = "LIVE"
)

// MediaStatus is the player status reported by the external poller.
type MediaStatus string

const (
	StatusNone      MediaStatus = "none"
	StatusPlaying   MediaStatus = "playing"
	StatusOpening   MediaStatus = "opening"
	StatusBuffering MediaStatus = "buffering"
	StatusPaused    MediaStatus = "paused"
	StatusStopped   MediaStatus = "stopped"
	StatusEnded     MediaStatus = "ended"
	StatusError     MediaStatus = "error"
)

// ParseMediaStatus accepts the status names above, case-insensitively.
func ParseMediaStatus(s string) (MediaStatus, error) {
	st := MediaStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusNone, StatusPlaying, StatusOpening, StatusBuffering,
		StatusPaused, StatusStopped, StatusEnded, StatusError:
		return st, nil
	case "":
		return StatusNone, nil
	}
	return "", fmt.Errorf("%w: media status %q", ErrInvalidArgument, s)
}

// PlaybackState holds at most one of a READY and a LIVE clip.
type PlaybackState struct {
	ReadyPath string `json:"ready_path,omitempty"`
	LivePath  string `json:"live_path,omitempty"`
}

// Phase derives the coarse state.
func (s PlaybackState) Phase() Phase {
	switch {
	case s.LivePath != "":
		return PhaseLive
	case s.ReadyPath != "":
		return PhaseReady
	default:
		return PhaseIdle
	}
}

// Transition applies a status report to cur. outputConfirmed must be true
// when the host has a single output, or when the program output is showing
// the target scene in a preview/program setup.
func Transition(cur PlaybackState, status MediaStatus, outputConfirmed bool) PlaybackState {
	switch status {
	case StatusEnded:
		return PlaybackState{}
	case StatusPlaying:
		if cur.ReadyPath != "" && outputConfirmed {
			return PlaybackState{LivePath: cur.ReadyPath}
		}
	case StatusStopped:
		if cur.LivePath != "" {
			return PlaybackState{}
		}
	}
	return cur
}

// Playback is the concurrency-safe holder of the current PlaybackState.
type Playback struct {
	mu    sync.RWMutex
	state PlaybackState
}

// Get returns the current state.
func (p *Playback) Get() PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Set replaces the current state.
func (p *Playback) Set(s PlaybackState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// Load marks path READY, discarding any READY or LIVE clip.
func (p *Playback) Load(path string) {
	p.Set(PlaybackState{ReadyPath: path})
}

// Report applies a status report and returns the resulting state.
func (p *Playback) Report(status MediaStatus, outputConfirmed bool) (before, after PlaybackState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before = p.state
	p.state = Transition(p.state, status, outputConfirmed)
	return before, p.state
}

// ClearLive drops the LIVE clip, keeping a READY one.
func (p *Playback) ClearLive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.LivePath = ""
}
