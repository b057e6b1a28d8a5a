package replay

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"replay-manager/internal/media"
	"replay-manager/internal/platform/logger"
	"replay-manager/internal/platform/metrics"
)

// Bridge is the contract of the external player poller. It pulls at most
// one action per tick and pushes back the player status.
type Bridge interface {
	PollNextAction() (Action, bool)
	ReportStatus(status MediaStatus, outputConfirmed bool) PlaybackState
}

var _ Bridge = (*Service)(nil)

// Options configures a Service. FS and Store are required.
type Options struct {
	FS        afero.Fs
	Store     Store
	Durations *media.DurationCache
	Concat    media.Concatenator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics

	// Folder, when set, overrides the persisted replay folder at startup.
	Folder           string
	Version          string
	ActionQueueSize  int
	HighlightTimeout time.Duration
	TempDir          string
	WarmWorkers      int
}

// Service owns the library snapshot, the metadata aggregate, the playback
// state and the action queue. The aggregate is guarded by mu; playback and
// actions have their own leaf locks and are never held while taking mu.
// rescanMu serializes rescans and is always taken before mu.
// Subprocesses and file removal never run under mu.
type Service struct {
	fs        afero.Fs
	store     Store
	durations *media.DurationCache
	scanner   *Scanner
	assembler *Assembler
	actions   *ActionQueue
	playback  Playback
	log       *slog.Logger
	metrics   *metrics.Metrics
	version   string
	workers   int
	now       func() time.Time

	rescanMu sync.Mutex

	mu  sync.Mutex
	agg *Aggregate

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewService loads the aggregate from opts.Store. A load failure is logged
// and the service starts from defaults.
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	store := opts.Store
	if store == nil {
		store = NewInMemoryStore()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	agg, err := store.Load()
	if err != nil {
		log.Warn("metadata load failed, using defaults", slog.String("error", err.Error()))
	}
	if agg == nil {
		agg = DefaultAggregate()
	}
	if opts.Folder != "" {
		agg.Settings.ReplayFolder = opts.Folder
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		fs:        fs,
		store:     store,
		durations: opts.Durations,
		scanner:   NewScanner(fs, log),
		assembler: NewAssembler(fs, opts.Concat, opts.TempDir, opts.HighlightTimeout, log),
		actions:   NewActionQueue(opts.ActionQueueSize, log),
		log:       log,
		metrics:   opts.Metrics,
		version:   version,
		workers:   opts.WarmWorkers,
		now:       time.Now,
		agg:       agg,
		bgCtx:     ctx,
		bgCancel:  cancel,
	}
}

// Close stops background probing and waits for it to finish.
func (s *Service) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// Version returns the build version reported by the API.
func (s *Service) Version() string { return s.version }

// Library returns the current snapshot.
func (s *Service) Library() *Library { return s.scanner.Snapshot() }

// Playback returns the current playback state.
func (s *Service) Playback() PlaybackState { return s.playback.Get() }

// PendingActions returns the number of undelivered actions.
func (s *Service) PendingActions() int { return s.actions.Len() }

// ActionBacklog returns the undelivered actions, oldest first, and how many
// actions were displaced before delivery since startup.
func (s *Service) ActionBacklog() ([]Action, int) {
	return s.actions.Pending(), s.actions.Dropped()
}

// QueueLen returns the number of queued clips.
func (s *Service) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agg.Queue)
}

// Entry returns the entry at index in the current snapshot.
func (s *Service) Entry(index int) (*Entry, error) {
	lib := s.scanner.Snapshot()
	e, ok := lib.At(index)
	if !ok {
		return nil, fmt.Errorf("%w: library index %d of %d", ErrInvalidIndex, index, lib.Len())
	}
	return e, nil
}

// Rescan lists the replay folder, drops metadata for vanished clips and
// starts probing durations that are not yet known. Rescans run one at a time.
func (s *Service) Rescan() ScanResult {
	s.rescanMu.Lock()
	defer s.rescanMu.Unlock()

	s.mu.Lock()
	folder, mask := s.agg.Settings.ReplayFolder, s.agg.Settings.FilterMask
	s.mu.Unlock()

	res := s.scanner.Scan(folder, mask)
	if s.durations != nil {
		s.durations.Forget(res.Changed...)
		s.durations.Forget(res.Removed...)
	}

	// An unreadable folder keeps metadata so a transient error does not wipe it.
	if folder != "" && res.Err == nil {
		s.mu.Lock()
		st := s.agg.Settings
		switch {
		case st.ReplayFolder != folder || st.FilterMask != mask:
			// Settings moved on while listing; the rescan that follows the
			// change prunes against the right folder.
			s.log.Debug("settings changed during scan, skipping cleanup",
				slog.String("scanned", folder), slog.String("current", st.ReplayFolder))
		case s.agg.Prune(s.scanner.Snapshot().Contains):
			s.log.Info("pruned metadata for vanished clips", slog.Int("removed", len(res.Removed)))
			s.persistLocked()
		}
		s.mu.Unlock()
	}

	if s.metrics != nil {
		s.metrics.IncScans()
		s.metrics.SetLibraryEntries(res.Library.Len())
	}
	s.warm(res.Library)
	return res
}

func (s *Service) warm(lib *Library) {
	if s.durations == nil {
		return
	}
	pending := make(map[media.FileID]*Entry)
	var ids []media.FileID
	for _, e := range lib.Entries {
		if _, ok := e.Duration(); ok {
			continue
		}
		id := e.fileID()
		if d, ok := s.durations.Cached(id); ok {
			e.setDuration(d)
			continue
		}
		pending[id] = e
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.durations.Warm(s.bgCtx, ids, s.workers, func(id media.FileID, seconds float64) {
			pending[id].setDuration(seconds)
		})
	}()
}

// Run rescans at the configured refresh interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	interval := s.refreshInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Rescan()
			if next := s.refreshInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *Service) refreshInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(max(1, s.agg.Settings.RefreshInterval)) * time.Second
}

// persistLocked writes the aggregate. Failures are logged and swallowed;
// the in-memory aggregate stays authoritative. Callers hold mu.
func (s *Service) persistLocked() {
	if err := s.store.Save(s.agg); err != nil {
		s.log.Error("persist metadata", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.IncFailures(KindPersistence)
		}
	}
	if s.metrics != nil {
		s.metrics.SetQueueLength(len(s.agg.Queue))
	}
}

func (s *Service) enqueue(a Action) {
	displaced := s.actions.Enqueue(a)
	s.log.Debug("action enqueued", slog.String("id", a.ID), slog.String("action", string(a.Kind)))
	if s.metrics != nil {
		s.metrics.IncActionsEnqueued()
		if displaced > 0 {
			s.metrics.AddActionsDropped(displaced)
		}
	}
}

func (s *Service) requireEntry(path string) (*Entry, error) {
	e, ok := s.scanner.Snapshot().Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return e, nil
}

// LoadClip prepares path in the player: playback becomes READY and a
// LoadClip action is queued for the poller.
func (s *Service) LoadClip(path string) error {
	if _, err := s.requireEntry(path); err != nil {
		return err
	}
	s.mu.Lock()
	speed := s.agg.Speed
	s.mu.Unlock()

	s.playback.Load(path)
	s.enqueue(LoadClipAction(path, speed))
	return nil
}

// DeleteClip removes the clip from disk along with every reference to it.
func (s *Service) DeleteClip(path string) error {
	if _, err := s.requireEntry(path); err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %w", ErrInvalidArgument, path, err)
	}

	s.mu.Lock()
	s.agg.Queue.RemovePath(path)
	delete(s.agg.Favorites, path)
	delete(s.agg.Hidden, path)
	delete(s.agg.VideoCategories, path)
	s.persistLocked()
	s.mu.Unlock()

	if st := s.playback.Get(); st.ReadyPath == path || st.LivePath == path {
		s.playback.Set(PlaybackState{})
	}
	s.log.Info("clip deleted", slog.String("path", path))
	s.Rescan()
	return nil
}

// ToggleFavorite flips the favorite flag of path and returns the new value.
func (s *Service) ToggleFavorite(path string) (bool, error) {
	if _, err := s.requireEntry(path); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, fav := s.agg.Favorites[path]
	if fav {
		delete(s.agg.Favorites, path)
	} else {
		s.agg.Favorites[path] = struct{}{}
	}
	s.persistLocked()
	return !fav, nil
}

// QueueAdd appends path to the playlist queue.
func (s *Service) QueueAdd(path string) error {
	e, err := s.requireEntry(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.agg.Queue.Append(QueueItem{Path: e.Path, Name: e.Name}); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// QueueRemove deletes the queue item at index.
func (s *Service) QueueRemove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.agg.Queue.Remove(index); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// QueueClear empties the queue.
func (s *Service) QueueClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.Queue = Playlist{}
	s.persistLocked()
}

// QueueReorder moves the item at from to position to.
func (s *Service) QueueReorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.agg.Queue.Reorder(from, to); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// QueueMoveToTop moves the item at index to the head.
func (s *Service) QueueMoveToTop(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved, err := s.agg.Queue.MoveToTop(index)
	if err != nil {
		return err
	}
	if moved {
		s.persistLocked()
	}
	return nil
}

// QueueMoveToBottom moves the item at index to the tail.
func (s *Service) QueueMoveToBottom(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved, err := s.agg.Queue.MoveToBottom(index)
	if err != nil {
		return err
	}
	if moved {
		s.persistLocked()
	}
	return nil
}

// AdvanceResult reports the outcome of Advance.
type AdvanceResult struct {
	// Next is the new head, loaded as READY; nil when the queue ran out.
	Next *QueueItem `json:"next"`
	// HasNext reports whether more items follow Next.
	HasNext bool `json:"has_next"`
}

// Advance pops the queue head. The new head, if any, is loaded READY and a
// LoadClip action is queued; an emptied queue resets playback to IDLE.
func (s *Service) Advance() (AdvanceResult, error) {
	s.mu.Lock()
	if _, err := s.agg.Queue.Pop(); err != nil {
		s.mu.Unlock()
		return AdvanceResult{}, err
	}
	s.persistLocked()
	head, ok := s.agg.Queue.Head()
	hasNext := len(s.agg.Queue) > 1
	speed := s.agg.Speed
	s.mu.Unlock()

	if !ok {
		s.playback.Set(PlaybackState{})
		return AdvanceResult{}, nil
	}
	s.playback.Load(head.Path)
	s.enqueue(LoadClipAction(head.Path, speed))
	return AdvanceResult{Next: &head, HasNext: hasNext}, nil
}

// CreateCategory adds a category; an empty color gets the default.
func (s *Service) CreateCategory(name, color string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is empty", ErrInvalidArgument)
	}
	if color = strings.TrimSpace(color); color == "" {
		color = DefaultCategoryColor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agg.Categories[name]; ok {
		return fmt.Errorf("%w: category %q", ErrDuplicateName, name)
	}
	s.agg.Categories[name] = color
	s.persistLocked()
	return nil
}

// DeleteCategory removes a category and every assignment to it.
func (s *Service) DeleteCategory(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agg.Categories[name]; !ok {
		return fmt.Errorf("%w: category %q", ErrNotFound, name)
	}
	delete(s.agg.Categories, name)
	for p, c := range s.agg.VideoCategories {
		if c == name {
			delete(s.agg.VideoCategories, p)
		}
	}
	s.persistLocked()
	return nil
}

// RenameCategory renames a category, keeping its color and assignments.
func (s *Service) RenameCategory(oldName, newName string) error {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	s.mu.Lock()
	defer s.mu.Unlock()
	color, ok := s.agg.Categories[oldName]
	if !ok {
		return fmt.Errorf("%w: category %q", ErrNotFound, oldName)
	}
	if newName == "" {
		return fmt.Errorf("%w: category name is empty", ErrInvalidArgument)
	}
	if _, ok := s.agg.Categories[newName]; ok {
		return fmt.Errorf("%w: category %q", ErrDuplicateName, newName)
	}
	delete(s.agg.Categories, oldName)
	s.agg.Categories[newName] = color
	for p, c := range s.agg.VideoCategories {
		if c == oldName {
			s.agg.VideoCategories[p] = newName
		}
	}
	s.persistLocked()
	return nil
}

// RecolorCategory changes a category color.
func (s *Service) RecolorCategory(name, color string) error {
	name, color = strings.TrimSpace(name), strings.TrimSpace(color)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agg.Categories[name]; !ok {
		return fmt.Errorf("%w: category %q", ErrNotFound, name)
	}
	if color == "" {
		return fmt.Errorf("%w: color is empty", ErrInvalidArgument)
	}
	s.agg.Categories[name] = color
	s.persistLocked()
	return nil
}

// AssignCategory assigns category to path; an empty category clears it.
func (s *Service) AssignCategory(path, category string) error {
	if _, err := s.requireEntry(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if category == "" {
		delete(s.agg.VideoCategories, path)
	} else {
		if _, ok := s.agg.Categories[category]; !ok {
			return fmt.Errorf("%w: category %q", ErrNotFound, category)
		}
		s.agg.VideoCategories[path] = category
	}
	s.persistLocked()
	return nil
}

// Hide removes path from the library listing.
func (s *Service) Hide(path string) error {
	if _, err := s.requireEntry(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.Hidden[path] = struct{}{}
	s.persistLocked()
	return nil
}

// Unhide restores a hidden path.
func (s *Service) Unhide(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agg.Hidden[path]; !ok {
		return fmt.Errorf("%w: %s is not hidden", ErrNotFound, path)
	}
	delete(s.agg.Hidden, path)
	s.persistLocked()
	return nil
}

// UnhideAll restores every hidden path and returns how many there were.
func (s *Service) UnhideAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.agg.Hidden)
	s.agg.Hidden = map[string]struct{}{}
	s.persistLocked()
	return n
}

// SetSpeed stores the clamped playback speed and forwards it to the player.
func (s *Service) SetSpeed(speed float64) float64 {
	s.mu.Lock()
	s.agg.Speed = clampSpeed(speed)
	speed = s.agg.Speed
	s.persistLocked()
	s.mu.Unlock()

	s.enqueue(SetSpeedAction(speed))
	return speed
}

// SetTheme stores the UI theme; empty selects the default.
func (s *Service) SetTheme(theme string) string {
	if theme = strings.TrimSpace(theme); theme == "" {
		theme = DefaultTheme
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.Theme = theme
	s.persistLocked()
	return theme
}

// SetZoom stores the clamped card zoom.
func (s *Service) SetZoom(zoom int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.Zoom = clampZoom(zoom)
	s.persistLocked()
	return s.agg.Zoom
}

// SetUpdateChannel stores the update channel, "stable" or "beta".
func (s *Service) SetUpdateChannel(channel string) error {
	if !validUpdateChannel(channel) {
		return fmt.Errorf("%w: update channel %q", ErrInvalidArgument, channel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.UpdateChannel = channel
	s.persistLocked()
	return nil
}

// ClearLive drops the LIVE flag after a manual stop in the UI.
func (s *Service) ClearLive() {
	s.playback.ClearLive()
}

// OpenFolder asks the host to reveal the replay folder.
func (s *Service) OpenFolder() error {
	s.mu.Lock()
	folder := s.agg.Settings.ReplayFolder
	s.mu.Unlock()
	if folder == "" {
		return fmt.Errorf("%w: no replay folder configured", ErrInvalidArgument)
	}
	s.enqueue(OpenFolderAction())
	return nil
}

// CreateHighlights concatenates the queued clips that still exist into a
// new file in the replay folder, registers it and rescans.
func (s *Service) CreateHighlights(ctx context.Context) (string, error) {
	s.mu.Lock()
	folder := s.agg.Settings.ReplayFolder
	sources := make([]string, 0, len(s.agg.Queue))
	for _, item := range s.agg.Queue {
		sources = append(sources, item.Path)
	}
	s.mu.Unlock()

	resolved := s.assembler.Resolve(s.scanner.Snapshot(), sources)
	out, err := s.assembler.Assemble(ctx, folder, resolved)
	if err != nil {
		timedOut := media.IsTimeout(err)
		if errors.Is(err, ErrToolFailure) && s.metrics != nil {
			s.metrics.IncToolFailures("ffmpeg", timedOut)
		}
		s.log.Warn("create highlights",
			slog.Int("clips", len(resolved)),
			slog.Bool("timed_out", timedOut),
			slog.String("error", err.Error()))
		return "", err
	}

	s.mu.Lock()
	s.agg.Highlights = append(s.agg.Highlights, out)
	s.persistLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncHighlightsCreated()
	}
	s.Rescan()
	return out, nil
}

func (s *Service) registeredHighlight(path string) bool {
	for _, h := range s.agg.Highlights {
		if h == path {
			return true
		}
	}
	return false
}

// DeleteHighlight removes a registered highlights file and its registration.
func (s *Service) DeleteHighlight(path string) error {
	s.mu.Lock()
	registered := s.registeredHighlight(path)
	s.mu.Unlock()
	if !registered {
		return fmt.Errorf("%w: highlight %s", ErrNotFound, path)
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %w", ErrInvalidArgument, path, err)
	}

	s.mu.Lock()
	kept := s.agg.Highlights[:0]
	for _, h := range s.agg.Highlights {
		if h != path {
			kept = append(kept, h)
		}
	}
	s.agg.Highlights = kept
	s.agg.Queue.RemovePath(path)
	s.persistLocked()
	s.mu.Unlock()

	s.Rescan()
	return nil
}

// LoadHighlight prepares a registered highlights file in the player.
func (s *Service) LoadHighlight(path string) error {
	s.mu.Lock()
	registered := s.registeredHighlight(path)
	speed := s.agg.Speed
	s.mu.Unlock()
	if !registered {
		return fmt.Errorf("%w: highlight %s", ErrNotFound, path)
	}
	if ok, _ := afero.Exists(s.fs, path); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	s.playback.Load(path)
	s.enqueue(LoadClipAction(path, speed))
	return nil
}

// SettingsPatch carries a partial settings update; nil fields are kept.
type SettingsPatch struct {
	ReplayFolder    *string `json:"replay_folder"`
	MediaSourceName *string `json:"media_source_name"`
	TargetSceneName *string `json:"target_scene_name"`
	AutoSwitchScene *bool   `json:"auto_switch_scene"`
	FilterMask      *string `json:"filter_mask"`
	RefreshInterval *int    `json:"refresh_interval"`
}

// UpdateSettings applies p, persists and rescans. A folder that is not an
// existing directory, an empty media source name or a refresh interval below
// one second is rejected and nothing is applied.
func (s *Service) UpdateSettings(p SettingsPatch) (Settings, error) {
	if p.ReplayFolder != nil && *p.ReplayFolder != "" {
		if ok, _ := afero.IsDir(s.fs, *p.ReplayFolder); !ok {
			return Settings{}, fmt.Errorf("%w: %s is not a directory", ErrInvalidArgument, *p.ReplayFolder)
		}
	}
	if p.MediaSourceName != nil && strings.TrimSpace(*p.MediaSourceName) == "" {
		return Settings{}, fmt.Errorf("%w: media source name is empty", ErrInvalidArgument)
	}
	if p.RefreshInterval != nil && *p.RefreshInterval < 1 {
		return Settings{}, fmt.Errorf("%w: refresh interval %d", ErrInvalidArgument, *p.RefreshInterval)
	}

	s.mu.Lock()
	st := &s.agg.Settings
	if p.ReplayFolder != nil && *p.ReplayFolder != "" {
		st.ReplayFolder = *p.ReplayFolder
	}
	if p.MediaSourceName != nil {
		st.MediaSourceName = *p.MediaSourceName
	}
	if p.TargetSceneName != nil {
		st.TargetSceneName = *p.TargetSceneName
	}
	if p.AutoSwitchScene != nil {
		st.AutoSwitchScene = *p.AutoSwitchScene
	}
	if p.FilterMask != nil {
		st.FilterMask = *p.FilterMask
	}
	if p.RefreshInterval != nil {
		st.RefreshInterval = *p.RefreshInterval
	}
	out := *st
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info("settings updated",
		slog.String("folder", out.ReplayFolder),
		slog.String("filter", out.FilterMask))
	s.Rescan()
	return out, nil
}

// PollNextAction implements Bridge.
func (s *Service) PollNextAction() (Action, bool) {
	return s.actions.DequeueIfPresent()
}

// ReportStatus implements Bridge.
func (s *Service) ReportStatus(status MediaStatus, outputConfirmed bool) PlaybackState {
	before, after := s.playback.Report(status, outputConfirmed)
	if before != after {
		s.log.Info("playback transition",
			slog.String("status", string(status)),
			slog.String("from", string(before.Phase())),
			slog.String("to", string(after.Phase())),
			slog.String("path", cmp.Or(after.LivePath, after.ReadyPath, before.LivePath, before.ReadyPath)))
	}
	return after
}

// OpenClip opens the entry at index in the current snapshot for reading.
func (s *Service) OpenClip(index int) (afero.File, *Entry, error) {
	e, err := s.Entry(index)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.fs.Open(e.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrNotFound, e.Path, err)
	}
	return f, e, nil
}
