package replay

import (
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"replay-manager/internal/media"
)

// Entry is one clip in the library. Entries are shared by pointer between
// scans; an entry whose file is unchanged keeps its identity and its probed
// duration.
type Entry struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
	Ext     string
	MIME    string

	durationBits atomic.Uint64
	probed       atomic.Bool
}

func newEntry(path, name string, modTime time.Time, size int64) *Entry {
	ext := strings.ToLower(filepath.Ext(name))
	return &Entry{
		Path:    path,
		Name:    name,
		ModTime: modTime,
		Size:    size,
		Ext:     ext,
		MIME:    media.MIMEForExt(ext),
	}
}

// Duration returns the probed duration in seconds, if known.
func (e *Entry) Duration() (float64, bool) {
	if !e.probed.Load() {
		return 0, false
	}
	return math.Float64frombits(e.durationBits.Load()), true
}

func (e *Entry) setDuration(seconds float64) {
	e.durationBits.Store(math.Float64bits(seconds))
	e.probed.Store(true)
}

func (e *Entry) fileID() media.FileID {
	return media.NewFileID(e.Path, e.ModTime, e.Size)
}

func (e *Entry) unchanged(modTime time.Time, size int64) bool {
	return e.ModTime.Equal(modTime) && e.Size == size
}

// QueueItem is one pending clip in the playlist queue.
type QueueItem struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Settings are the host integration settings persisted with the aggregate.
type Settings struct {
	ReplayFolder    string `json:"replay_folder"`
	MediaSourceName string `json:"media_source_name"`
	TargetSceneName string `json:"target_scene_name"`
	AutoSwitchScene bool   `json:"auto_switch_scene"`
	FilterMask      string `json:"filter_mask"`
	RefreshInterval int    `json:"refresh_interval"`
}

// Defaults and bounds for the persisted playback preferences.
const (
	DefaultSpeed           = 1.0
	MinSpeed               = 0.1
	MaxSpeed               = 2.0
	DefaultTheme           = "default"
	DefaultZoom            = 200
	MinZoom                = 120
	MaxZoom                = 320
	DefaultUpdateChannel   = "stable"
	DefaultCategoryColor   = "#888"
	DefaultMediaSourceName = "Replay Source"
	DefaultRefreshInterval = 3
)

// Aggregate is the in-memory metadata aggregate. It is not safe for
// concurrent use; Service guards it with a single lock.
type Aggregate struct {
	Favorites       map[string]struct{}
	Hidden          map[string]struct{}
	Categories      map[string]string
	VideoCategories map[string]string
	Queue           Playlist
	Highlights      []string
	Speed           float64
	Theme           string
	Zoom            int
	UpdateChannel   string
	Settings        Settings
}

// DefaultAggregate returns an empty aggregate with default preferences.
func DefaultAggregate() *Aggregate {
	return &Aggregate{
		Favorites:       map[string]struct{}{},
		Hidden:          map[string]struct{}{},
		Categories:      map[string]string{},
		VideoCategories: map[string]string{},
		Queue:           Playlist{},
		Highlights:      []string{},
		Speed:           DefaultSpeed,
		Theme:           DefaultTheme,
		Zoom:            DefaultZoom,
		UpdateChannel:   DefaultUpdateChannel,
		Settings: Settings{
			MediaSourceName: DefaultMediaSourceName,
			RefreshInterval: DefaultRefreshInterval,
		},
	}
}

// Prune drops favorites, hidden paths and category assignments whose path
// fails alive. It reports whether anything was removed.
func (a *Aggregate) Prune(alive func(path string) bool) bool {
	changed := false
	for p := range a.Favorites {
		if !alive(p) {
			delete(a.Favorites, p)
			changed = true
		}
	}
	for p := range a.Hidden {
		if !alive(p) {
			delete(a.Hidden, p)
			changed = true
		}
	}
	for p := range a.VideoCategories {
		if !alive(p) {
			delete(a.VideoCategories, p)
			changed = true
		}
	}
	return changed
}

// Document is the persisted form of Aggregate. Keys match the data file
// written by earlier releases so existing files keep loading.
type Document struct {
	Favorites       []string          `json:"favorites"`
	Queue           []QueueItem       `json:"playlist_queue"`
	Categories      map[string]string `json:"categories"`
	VideoCategories map[string]string `json:"video_categories"`
	Hidden          []string          `json:"hidden_videos"`
	Theme           string            `json:"current_theme"`
	Zoom            int               `json:"card_zoom"`
	Speed           float64           `json:"current_speed"`
	Highlights      []string          `json:"highlights_files"`
	UpdateChannel   string            `json:"update_channel"`
	Settings
}

// Document converts the aggregate to its persisted form. Sets are written sorted.
func (a *Aggregate) Document() Document {
	return Document{
		Favorites:       sortedKeys(a.Favorites),
		Queue:           append([]QueueItem{}, a.Queue...),
		Categories:      copyMap(a.Categories),
		VideoCategories: copyMap(a.VideoCategories),
		Hidden:          sortedKeys(a.Hidden),
		Theme:           a.Theme,
		Zoom:            a.Zoom,
		Speed:           a.Speed,
		Highlights:      append([]string{}, a.Highlights...),
		UpdateChannel:   a.UpdateChannel,
		Settings:        a.Settings,
	}
}

// AggregateFromDocument hydrates an aggregate, applying defaults for zero
// values and dropping assignments to categories that do not exist.
func AggregateFromDocument(d Document) *Aggregate {
	a := DefaultAggregate()
	for _, p := range d.Favorites {
		a.Favorites[p] = struct{}{}
	}
	for _, p := range d.Hidden {
		a.Hidden[p] = struct{}{}
	}
	for name, color := range d.Categories {
		a.Categories[name] = color
	}
	for p, name := range d.VideoCategories {
		if _, ok := a.Categories[name]; ok {
			a.VideoCategories[p] = name
		}
	}
	for _, item := range d.Queue {
		if item.Path == "" || a.Queue.IndexOf(item.Path) >= 0 {
			continue
		}
		if item.Name == "" {
			item.Name = filepath.Base(item.Path)
		}
		a.Queue = append(a.Queue, item)
	}
	a.Highlights = append(a.Highlights, d.Highlights...)
	if d.Speed > 0 {
		a.Speed = clampSpeed(d.Speed)
	}
	if d.Theme != "" {
		a.Theme = d.Theme
	}
	if d.Zoom > 0 {
		a.Zoom = clampZoom(d.Zoom)
	}
	if validUpdateChannel(d.UpdateChannel) {
		a.UpdateChannel = d.UpdateChannel
	}
	a.Settings = d.Settings
	if a.Settings.MediaSourceName == "" {
		a.Settings.MediaSourceName = DefaultMediaSourceName
	}
	if a.Settings.RefreshInterval <= 0 {
		a.Settings.RefreshInterval = DefaultRefreshInterval
	}
	return a
}

// ActionKind tags an Action.
type ActionKind string

const (
	ActionLoadClip   ActionKind = "load_replay"
	ActionSetSpeed   ActionKind = "set_speed"
	ActionOpenFolder ActionKind = "open_folder"
)

// Action is a playback command delivered at most once to the external poller.
type Action struct {
	ID        string     `json:"id"`
	Kind      ActionKind `json:"action"`
	Path      string     `json:"path,omitempty"`
	Speed     float64    `json:"speed,omitempty"`
	AutoPlay  bool       `json:"auto_play"`
	CreatedAt time.Time  `json:"created_at"`
}

// LoadClipAction prepares path in the player without starting it.
func LoadClipAction(path string, speed float64) Action {
	return Action{ID: uuid.NewString(), Kind: ActionLoadClip, Path: path, Speed: speed, CreatedAt: time.Now().UTC()}
}

// SetSpeedAction changes the player speed.
func SetSpeedAction(speed float64) Action {
	return Action{ID: uuid.NewString(), Kind: ActionSetSpeed, Speed: speed, CreatedAt: time.Now().UTC()}
}

// OpenFolderAction asks the host to reveal the replay folder.
func OpenFolderAction() Action {
	return Action{ID: uuid.NewString(), Kind: ActionOpenFolder, CreatedAt: time.Now().UTC()}
}

func clampSpeed(s float64) float64 {
	return math.Max(MinSpeed, math.Min(MaxSpeed, s))
}

func clampZoom(z int) int {
	return max(MinZoom, min(MaxZoom, z))
}

func validUpdateChannel(c string) bool {
	return c == "stable" || c == "beta"
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
