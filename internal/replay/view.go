package replay

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"replay-manager/internal/media"
)

const timestampLayout = "2006-01-02 15:04:05"

// EntryView is the API form of a library entry merged with its metadata
// and playback flags. Index is the ordinal in the full snapshot.
type EntryView struct {
	Index         int      `json:"index"`
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	Modified      float64  `json:"modified"`
	Timestamp     string   `json:"timestamp"`
	Size          int64    `json:"size"`
	SizeStr       string   `json:"size_str"`
	Favorite      bool     `json:"favorite"`
	Hidden        bool     `json:"hidden"`
	Category      *string  `json:"category"`
	CategoryColor *string  `json:"category_color"`
	InQueue       bool     `json:"in_queue"`
	QueueIndex    int      `json:"queue_index"`
	Extension     string   `json:"extension"`
	MIMEType      string   `json:"mime_type"`
	Duration      *float64 `json:"duration"`
	DurationStr   *string  `json:"duration_str"`
	IsPlaying     bool     `json:"is_playing"`
	IsReady       bool     `json:"is_ready"`
}

// LibraryView is the response of the library listing.
type LibraryView struct {
	Replays        []EntryView `json:"replays"`
	Count          int         `json:"count"`
	TotalCount     int         `json:"total_count"`
	Folder         string      `json:"folder"`
	Filter         string      `json:"filter"`
	FavoritesCount int         `json:"favorites_count"`
	HiddenCount    int         `json:"hidden_count"`
	QueueCount     int         `json:"queue_count"`
	LastScanTime   string      `json:"last_scan_time"`
}

// CategoryView is a category with its assignment count.
type CategoryView struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// HighlightView describes a registered highlights file still on disk.
type HighlightView struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	SizeStr     string   `json:"size_str"`
	Created     string   `json:"created"`
	Duration    *float64 `json:"duration"`
	DurationStr *string  `json:"duration_str"`
}

// ConfigView is the current configuration.
type ConfigView struct {
	Settings
	Speed         float64 `json:"current_speed"`
	Theme         string  `json:"current_theme"`
	Zoom          int     `json:"card_zoom"`
	UpdateChannel string  `json:"update_channel"`
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatSize renders bytes as "x.y MB" below one GiB and "x.yz GB" above.
func FormatSize(size int64) string {
	mb := float64(size) / (1024 * 1024)
	if mb < 1024 {
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.2f GB", mb/1024)
}

func durationFields(d float64, ok bool) (*float64, *string) {
	if !ok {
		return nil, nil
	}
	str := FormatDuration(d)
	return &d, &str
}

// entryViewLocked merges e with the aggregate. Callers hold mu.
func (s *Service) entryViewLocked(index int, e *Entry, pb PlaybackState) EntryView {
	v := EntryView{
		Index:      index,
		Path:       e.Path,
		Name:       e.Name,
		Modified:   float64(e.ModTime.UnixNano()) / float64(time.Second),
		Timestamp:  e.ModTime.Local().Format(timestampLayout),
		Size:       e.Size,
		SizeStr:    FormatSize(e.Size),
		QueueIndex: s.agg.Queue.IndexOf(e.Path),
		Extension:  e.Ext,
		MIMEType:   e.MIME,
		IsPlaying:  pb.LivePath == e.Path,
		IsReady:    pb.ReadyPath == e.Path,
	}
	_, v.Favorite = s.agg.Favorites[e.Path]
	_, v.Hidden = s.agg.Hidden[e.Path]
	v.InQueue = v.QueueIndex >= 0
	if name, ok := s.agg.VideoCategories[e.Path]; ok {
		color := s.agg.Categories[name]
		v.Category, v.CategoryColor = &name, &color
	}
	v.Duration, v.DurationStr = durationFields(e.Duration())
	return v
}

// Replays lists the visible library entries, newest first.
func (s *Service) Replays() LibraryView {
	lib := s.scanner.Snapshot()
	pb := s.playback.Get()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := LibraryView{
		Replays:        []EntryView{},
		TotalCount:     lib.Len(),
		Folder:         s.agg.Settings.ReplayFolder,
		Filter:         s.agg.Settings.FilterMask,
		FavoritesCount: len(s.agg.Favorites),
		HiddenCount:    len(s.agg.Hidden),
		QueueCount:     len(s.agg.Queue),
	}
	if !lib.ScannedAt.IsZero() {
		out.LastScanTime = lib.ScannedAt.Local().Format("15:04:05")
	}
	for i, e := range lib.Entries {
		if _, hidden := s.agg.Hidden[e.Path]; hidden {
			continue
		}
		out.Replays = append(out.Replays, s.entryViewLocked(i, e, pb))
	}
	out.Count = len(out.Replays)
	return out
}

// Favorites lists favorite entries present in the library.
func (s *Service) Favorites() []EntryView {
	lib := s.scanner.Snapshot()
	pb := s.playback.Get()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []EntryView{}
	for i, e := range lib.Entries {
		if _, ok := s.agg.Favorites[e.Path]; ok {
			out = append(out, s.entryViewLocked(i, e, pb))
		}
	}
	return out
}

// Queue returns a copy of the playlist queue.
func (s *Service) Queue() []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueueItem{}, s.agg.Queue...)
}

// Categories lists categories by name with their assignment counts.
func (s *Service) Categories() []CategoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int, len(s.agg.Categories))
	for _, c := range s.agg.VideoCategories {
		counts[c]++
	}
	out := make([]CategoryView, 0, len(s.agg.Categories))
	for name, color := range s.agg.Categories {
		out = append(out, CategoryView{Name: name, Color: color, Count: counts[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Hidden lists hidden paths, sorted.
func (s *Service) Hidden() []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueueItem, 0, len(s.agg.Hidden))
	for _, p := range sortedKeys(s.agg.Hidden) {
		out = append(out, QueueItem{Path: p, Name: filepath.Base(p)})
	}
	return out
}

// Highlights lists registered highlights files that still exist.
func (s *Service) Highlights() []HighlightView {
	s.mu.Lock()
	paths := append([]string{}, s.agg.Highlights...)
	s.mu.Unlock()

	lib := s.scanner.Snapshot()
	out := []HighlightView{}
	for _, p := range paths {
		fi, err := s.fs.Stat(p)
		if err != nil {
			continue
		}
		v := HighlightView{
			Path:    p,
			Name:    filepath.Base(p),
			Size:    fi.Size(),
			SizeStr: FormatSize(fi.Size()),
			Created: fi.ModTime().Local().Format(timestampLayout),
		}
		if e, ok := lib.Lookup(p); ok {
			v.Duration, v.DurationStr = durationFields(e.Duration())
		} else if s.durations != nil {
			v.Duration, v.DurationStr = durationFields(s.durations.Cached(media.NewFileID(p, fi.ModTime(), fi.Size())))
		}
		out = append(out, v)
	}
	return out
}

// Config returns the current configuration.
func (s *Service) Config() ConfigView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConfigView{
		Settings:      s.agg.Settings,
		Speed:         s.agg.Speed,
		Theme:         s.agg.Theme,
		Zoom:          s.agg.Zoom,
		UpdateChannel: s.agg.UpdateChannel,
	}
}

// ExportSettings is the settings section of a configuration bundle. On
// import a nil field leaves the current value unchanged.
type ExportSettings struct {
	ReplayFolder    *string  `json:"replay_folder,omitempty"`
	MediaSourceName *string  `json:"media_source_name,omitempty"`
	TargetSceneName *string  `json:"target_scene_name,omitempty"`
	AutoSwitchScene *bool    `json:"auto_switch_scene,omitempty"`
	FilterMask      *string  `json:"filter_mask,omitempty"`
	RefreshInterval *int     `json:"refresh_interval,omitempty"`
	Speed           *float64 `json:"current_speed,omitempty"`
	Theme           *string  `json:"current_theme,omitempty"`
	Zoom            *int     `json:"card_zoom,omitempty"`
	UpdateChannel   *string  `json:"update_channel,omitempty"`
}

// ConfigBundle is a portable copy of the user configuration. On import a
// nil section is skipped.
type ConfigBundle struct {
	Version         string            `json:"version,omitempty"`
	ExportDate      string            `json:"export_date,omitempty"`
	Settings        *ExportSettings   `json:"settings,omitempty"`
	Categories      map[string]string `json:"categories"`
	VideoCategories map[string]string `json:"video_categories"`
	Hidden          []string          `json:"hidden_videos"`
	Favorites       []string          `json:"favorites"`
}

func (b ConfigBundle) empty() bool {
	return b.Settings == nil && b.Categories == nil && b.VideoCategories == nil &&
		b.Hidden == nil && b.Favorites == nil
}

// ExportConfig returns the current configuration as a bundle.
func (s *Service) ExportConfig() ConfigBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.agg.Settings
	speed, theme, zoom, channel := s.agg.Speed, s.agg.Theme, s.agg.Zoom, s.agg.UpdateChannel
	return ConfigBundle{
		Version:    s.version,
		ExportDate: s.now().Format(time.RFC3339),
		Settings: &ExportSettings{
			ReplayFolder:    &st.ReplayFolder,
			MediaSourceName: &st.MediaSourceName,
			TargetSceneName: &st.TargetSceneName,
			AutoSwitchScene: &st.AutoSwitchScene,
			FilterMask:      &st.FilterMask,
			RefreshInterval: &st.RefreshInterval,
			Speed:           &speed,
			Theme:           &theme,
			Zoom:            &zoom,
			UpdateChannel:   &channel,
		},
		Categories:      copyMap(s.agg.Categories),
		VideoCategories: copyMap(s.agg.VideoCategories),
		Hidden:          sortedKeys(s.agg.Hidden),
		Favorites:       sortedKeys(s.agg.Favorites),
	}
}

// ImportConfig applies the sections present in b, persists and rescans.
// Invalid values are skipped: a folder that is not an existing directory,
// an empty media source name, an unknown update channel and assignments to
// unknown categories.
func (s *Service) ImportConfig(b ConfigBundle) error {
	if b.empty() {
		return fmt.Errorf("%w: empty configuration", ErrInvalidArgument)
	}

	folderOK := false
	if b.Settings != nil && b.Settings.ReplayFolder != nil && *b.Settings.ReplayFolder != "" {
		folderOK, _ = afero.IsDir(s.fs, *b.Settings.ReplayFolder)
	}

	s.mu.Lock()
	if st := b.Settings; st != nil {
		if folderOK {
			s.agg.Settings.ReplayFolder = *st.ReplayFolder
		}
		if st.MediaSourceName != nil && strings.TrimSpace(*st.MediaSourceName) != "" {
			s.agg.Settings.MediaSourceName = *st.MediaSourceName
		}
		if st.TargetSceneName != nil {
			s.agg.Settings.TargetSceneName = *st.TargetSceneName
		}
		if st.AutoSwitchScene != nil {
			s.agg.Settings.AutoSwitchScene = *st.AutoSwitchScene
		}
		if st.FilterMask != nil {
			s.agg.Settings.FilterMask = *st.FilterMask
		}
		if st.RefreshInterval != nil && *st.RefreshInterval >= 1 {
			s.agg.Settings.RefreshInterval = *st.RefreshInterval
		}
		if st.Speed != nil {
			s.agg.Speed = clampSpeed(*st.Speed)
		}
		if st.Theme != nil && *st.Theme != "" {
			s.agg.Theme = *st.Theme
		}
		if st.Zoom != nil {
			s.agg.Zoom = clampZoom(*st.Zoom)
		}
		if st.UpdateChannel != nil && validUpdateChannel(*st.UpdateChannel) {
			s.agg.UpdateChannel = *st.UpdateChannel
		}
	}
	if b.Categories != nil {
		s.agg.Categories = copyMap(b.Categories)
	}
	if b.VideoCategories != nil {
		s.agg.VideoCategories = copyMap(b.VideoCategories)
	}
	for p, c := range s.agg.VideoCategories {
		if _, ok := s.agg.Categories[c]; !ok {
			delete(s.agg.VideoCategories, p)
		}
	}
	if b.Hidden != nil {
		s.agg.Hidden = make(map[string]struct{}, len(b.Hidden))
		for _, p := range b.Hidden {
			s.agg.Hidden[p] = struct{}{}
		}
	}
	if b.Favorites != nil {
		s.agg.Favorites = make(map[string]struct{}, len(b.Favorites))
		for _, p := range b.Favorites {
			s.agg.Favorites[p] = struct{}{}
		}
	}
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info("configuration imported")
	s.Rescan()
	return nil
}
