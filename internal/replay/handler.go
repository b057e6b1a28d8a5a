package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"replay-manager/internal/media"
	"replay-manager/internal/platform/logger"
	"replay-manager/internal/platform/metrics"
)

// Repository is reported by the version endpoint.
const Repository = "replay-manager"

const sniffLen = 3072

// Handler exposes the Service over the JSON control API using go-chi.
type Handler struct {
	svc     *Service
	thumbs  *media.ThumbnailCache
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. thumbs and m may be nil; without a thumbnail
// cache every thumbnail is the placeholder.
func NewHandler(svc *Service, thumbs *media.ThumbnailCache, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{svc: svc, thumbs: thumbs, log: log, metrics: m}
}

// Register mounts every route under /api on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/replays", h.Replays)
		r.Get("/config", h.Config)
		r.Get("/scan", h.Scan)
		r.Post("/scan", h.Scan)
		r.Get("/favorites", h.Favorites)
		r.Get("/queue", h.Queue)
		r.Get("/categories", h.Categories)
		r.Get("/hidden", h.Hidden)
		r.Get("/highlights", h.Highlights)
		r.Get("/version", h.Version)
		r.Get("/playback", h.Playback)
		r.Get("/thumbnail/{index}", h.Thumbnail)
		r.Get("/video/{index}", h.Video)

		r.Post("/load", h.LoadClip)
		r.Post("/delete", h.DeleteClip)
		r.Post("/toggle-favorite", h.ToggleFavorite)
		r.Route("/queue", func(r chi.Router) {
			r.Post("/add", h.QueueAdd)
			r.Post("/remove", h.QueueRemove)
			r.Post("/clear", h.QueueClear)
			r.Post("/reorder", h.QueueReorder)
			r.Post("/move-to-top", h.QueueMoveToTop)
			r.Post("/move-to-bottom", h.QueueMoveToBottom)
			r.Post("/play-next", h.QueuePlayNext)
		})
		r.Route("/category", func(r chi.Router) {
			r.Post("/create", h.CategoryCreate)
			r.Post("/delete", h.CategoryDelete)
			r.Post("/rename", h.CategoryRename)
			r.Post("/update-color", h.CategoryRecolor)
			r.Post("/assign", h.CategoryAssign)
		})
		r.Post("/hide", h.Hide)
		r.Post("/unhide", h.Unhide)
		r.Post("/unhide-all", h.UnhideAll)
		r.Post("/speed", h.Speed)
		r.Post("/theme", h.Theme)
		r.Post("/zoom", h.Zoom)
		r.Post("/update-channel", h.UpdateChannel)
		r.Post("/playing/clear", h.PlayingClear)
		r.Post("/create-highlights", h.CreateHighlights)
		r.Post("/highlights/delete", h.HighlightDelete)
		r.Post("/highlights/load", h.HighlightLoad)
		r.Post("/open-folder", h.OpenFolder)
		r.Post("/settings", h.Settings)
		r.Post("/config/export", h.ConfigExport)
		r.Post("/config/import", h.ConfigImport)

		r.Get("/bridge/next-action", h.BridgeNextAction)
		r.Get("/bridge/pending", h.BridgePending)
		r.Post("/bridge/status", h.BridgeStatus)
	})
}

type pathRequest struct {
	Path string `json:"path"`
}

type indexRequest struct {
	Index *int `json:"index"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK writes {"success": true} merged with extra.
func writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// statusFor maps an error kind onto an HTTP status for binary endpoints,
// which cannot carry a JSON envelope.
func statusFor(kind string) int {
	switch kind {
	case KindNotFound, KindInvalidIndex:
		return http.StatusNotFound
	case KindInvalidArg:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) logFailure(r *http.Request, kind string, err error) {
	lvl := slog.LevelInfo
	if kind == KindInternal || kind == KindPersistence {
		lvl = slog.LevelError
	}
	h.log.Log(r.Context(), lvl, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("kind", kind),
		slog.String("error", err.Error()))
	if h.metrics != nil {
		h.metrics.IncFailures(kind)
	}
}

// fail writes the error envelope. Domain failures are answered with 200;
// only unclassified errors are a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := ErrorKind(err)
	h.logFailure(r, kind, err)
	status := http.StatusOK
	if kind == KindInternal {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"success": false, "error": kind, "message": err.Error()})
}

func (h *Handler) failBinary(w http.ResponseWriter, r *http.Request, err error) {
	kind := ErrorKind(err)
	h.logFailure(r, kind, err)
	http.Error(w, kind, statusFor(kind))
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.log.Debug("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	h.fail(w, r, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	return false
}

func (h *Handler) decodePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req pathRequest
	if !h.decode(w, r, &req) {
		return "", false
	}
	if req.Path == "" {
		h.fail(w, r, fmt.Errorf("%w: path is required", ErrInvalidArgument))
		return "", false
	}
	return req.Path, true
}

func (h *Handler) decodeIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req indexRequest
	if !h.decode(w, r, &req) {
		return 0, false
	}
	if req.Index == nil {
		h.fail(w, r, fmt.Errorf("%w: index is required", ErrInvalidIndex))
		return 0, false
	}
	return *req.Index, true
}

// Replays handles GET /api/replays.
func (h *Handler) Replays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Replays())
}

// Config handles GET /api/config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Config())
}

// Scan handles GET and POST /api/scan.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Rescan()
	writeOK(w, map[string]any{"count": res.Library.Len()})
}

// Favorites handles GET /api/favorites.
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	favs := h.svc.Favorites()
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs, "count": len(favs)})
}

// Queue handles GET /api/queue.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	q := h.svc.Queue()
	writeJSON(w, http.StatusOK, map[string]any{"queue": q, "count": len(q)})
}

// Categories handles GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.svc.Categories()})
}

// Hidden handles GET /api/hidden.
func (h *Handler) Hidden(w http.ResponseWriter, r *http.Request) {
	hidden := h.svc.Hidden()
	writeJSON(w, http.StatusOK, map[string]any{"hidden": hidden, "count": len(hidden)})
}

// Highlights handles GET /api/highlights.
func (h *Handler) Highlights(w http.ResponseWriter, r *http.Request) {
	hl := h.svc.Highlights()
	writeJSON(w, http.StatusOK, map[string]any{"highlights": hl, "count": len(hl)})
}

// Version handles GET /api/version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": h.svc.Version(), "repository": Repository})
}

// Playback handles GET /api/playback.
func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Playback()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":           st.Phase(),
		"ready_path":      st.ReadyPath,
		"live_path":       st.LivePath,
		"pending_actions": h.svc.PendingActions(),
	})
}

func urlIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	return i, nil
}

// Thumbnail handles GET /api/thumbnail/{index}. Any failure to render
// yields the SVG placeholder.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	index, err := urlIndex(r)
	if err != nil {
		h.failBinary(w, r, err)
		return
	}
	e, err := h.svc.Entry(index)
	if err != nil {
		h.failBinary(w, r, err)
		return
	}
	if h.thumbs != nil {
		img, err := h.thumbs.Get(r.Context(), e.Path, e.ModTime, e.Size)
		if err == nil {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Cache-Control", "max-age=3600")
			w.WriteHeader(http.StatusOK)
			w.Write(img)
			return
		}
		h.log.Debug("thumbnail failed", slog.String("path", e.Path), slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.IncToolFailures("ffmpeg", media.IsTimeout(err))
		}
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, media.PlaceholderSVG)
}

// Video handles GET /api/video/{index} with Range support.
func (h *Handler) Video(w http.ResponseWriter, r *http.Request) {
	index, err := urlIndex(r)
	if err != nil {
		h.failBinary(w, r, err)
		return
	}
	f, e, err := h.svc.OpenClip(index)
	if err != nil {
		h.failBinary(w, r, err)
		return
	}
	defer f.Close()

	ctype := media.Sniff(io.LimitReader(f, sniffLen))
	if ctype == "" {
		ctype = e.MIME
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		h.failBinary(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ctype)
	http.ServeContent(w, r, e.Name, e.ModTime, f)
}

// LoadClip handles POST /api/load.
func (h *Handler) LoadClip(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.LoadClip(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"path": path, "state": h.svc.Playback().Phase()})
}

// DeleteClip handles POST /api/delete.
func (h *Handler) DeleteClip(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.DeleteClip(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// ToggleFavorite handles POST /api/toggle-favorite.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	fav, err := h.svc.ToggleFavorite(path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"favorite": fav})
}

// QueueAdd handles POST /api/queue/add.
func (h *Handler) QueueAdd(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.QueueAdd(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"queue_count": h.svc.QueueLen()})
}

// QueueRemove handles POST /api/queue/remove. Body: {"queue_index": 0}.
func (h *Handler) QueueRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QueueIndex *int `json:"queue_index"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.QueueIndex == nil {
		h.fail(w, r, fmt.Errorf("%w: queue_index is required", ErrInvalidIndex))
		return
	}
	if err := h.svc.QueueRemove(*req.QueueIndex); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// QueueClear handles POST /api/queue/clear.
func (h *Handler) QueueClear(w http.ResponseWriter, r *http.Request) {
	h.svc.QueueClear()
	writeOK(w, nil)
}

// QueueReorder handles POST /api/queue/reorder. Body: {"from": 0, "to": 2}.
func (h *Handler) QueueReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.From == nil || req.To == nil {
		h.fail(w, r, fmt.Errorf("%w: from and to are required", ErrInvalidIndex))
		return
	}
	if err := h.svc.QueueReorder(*req.From, *req.To); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// QueueMoveToTop handles POST /api/queue/move-to-top.
func (h *Handler) QueueMoveToTop(w http.ResponseWriter, r *http.Request) {
	index, valid := h.decodeIndex(w, r)
	if !valid {
		return
	}
	if err := h.svc.QueueMoveToTop(index); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// QueueMoveToBottom handles POST /api/queue/move-to-bottom.
func (h *Handler) QueueMoveToBottom(w http.ResponseWriter, r *http.Request) {
	index, valid := h.decodeIndex(w, r)
	if !valid {
		return
	}
	if err := h.svc.QueueMoveToBottom(index); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// QueuePlayNext handles POST /api/queue/play-next.
func (h *Handler) QueuePlayNext(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Advance()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"next": res.Next, "has_next": res.HasNext})
}

type categoryRequest struct {
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	OldName  string  `json:"old_name"`
	NewName  string  `json:"new_name"`
	Path     string  `json:"path"`
	Category *string `json:"category"`
}

// CategoryCreate handles POST /api/category/create.
func (h *Handler) CategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.CreateCategory(req.Name, req.Color); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// CategoryDelete handles POST /api/category/delete.
func (h *Handler) CategoryDelete(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.DeleteCategory(req.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// CategoryRename handles POST /api/category/rename.
func (h *Handler) CategoryRename(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.RenameCategory(req.OldName, req.NewName); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// CategoryRecolor handles POST /api/category/update-color.
func (h *Handler) CategoryRecolor(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.RecolorCategory(req.Name, req.Color); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// CategoryAssign handles POST /api/category/assign. A null or empty
// category clears the assignment.
func (h *Handler) CategoryAssign(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	category := ""
	if req.Category != nil {
		category = *req.Category
	}
	if err := h.svc.AssignCategory(req.Path, category); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// Hide handles POST /api/hide.
func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.Hide(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// Unhide handles POST /api/unhide.
func (h *Handler) Unhide(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.Unhide(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// UnhideAll handles POST /api/unhide-all.
func (h *Handler) UnhideAll(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"count": h.svc.UnhideAll()})
}

// Speed handles POST /api/speed.
func (h *Handler) Speed(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Speed float64 `json:"speed"`
	}{Speed: DefaultSpeed}
	if !h.decode(w, r, &req) {
		return
	}
	writeOK(w, map[string]any{"speed": h.svc.SetSpeed(req.Speed)})
}

// Theme handles POST /api/theme.
func (h *Handler) Theme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	writeOK(w, map[string]any{"theme": h.svc.SetTheme(req.Theme)})
}

// Zoom handles POST /api/zoom.
func (h *Handler) Zoom(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Zoom int `json:"zoom"`
	}{Zoom: DefaultZoom}
	if !h.decode(w, r, &req) {
		return
	}
	writeOK(w, map[string]any{"zoom": h.svc.SetZoom(req.Zoom)})
}

// UpdateChannel handles POST /api/update-channel.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetUpdateChannel(req.Channel); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"channel": req.Channel})
}

// PlayingClear handles POST /api/playing/clear.
func (h *Handler) PlayingClear(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearLive()
	writeOK(w, nil)
}

// CreateHighlights handles POST /api/create-highlights. The source is the
// current queue.
func (h *Handler) CreateHighlights(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.CreateHighlights(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"path": out, "name": filepath.Base(out)})
}

// HighlightDelete handles POST /api/highlights/delete.
func (h *Handler) HighlightDelete(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.DeleteHighlight(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// HighlightLoad handles POST /api/highlights/load.
func (h *Handler) HighlightLoad(w http.ResponseWriter, r *http.Request) {
	path, valid := h.decodePath(w, r)
	if !valid {
		return
	}
	if err := h.svc.LoadHighlight(path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"path": path})
}

// OpenFolder handles POST /api/open-folder.
func (h *Handler) OpenFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.OpenFolder(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// Settings handles POST /api/settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	var patch SettingsPatch
	if !h.decode(w, r, &patch) {
		return
	}
	st, err := h.svc.UpdateSettings(patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{
		"replay_folder":     st.ReplayFolder,
		"media_source_name": st.MediaSourceName,
		"target_scene_name": st.TargetSceneName,
		"auto_switch_scene": st.AutoSwitchScene,
		"filter_mask":       st.FilterMask,
		"refresh_interval":  st.RefreshInterval,
	})
}

// ConfigExport handles POST /api/config/export.
func (h *Handler) ConfigExport(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"config": h.svc.ExportConfig()})
}

// ConfigImport handles POST /api/config/import. Body: {"config": {...}}.
func (h *Handler) ConfigImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config ConfigBundle `json:"config"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ImportConfig(req.Config); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// BridgeNextAction handles GET /api/bridge/next-action. It pops at most one
// action; "action" is null when nothing is pending.
func (h *Handler) BridgeNextAction(w http.ResponseWriter, r *http.Request) {
	a, found := h.svc.PollNextAction()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"action": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"action": a})
}

// BridgePending handles GET /api/bridge/pending. It lists undelivered
// actions without consuming them.
func (h *Handler) BridgePending(w http.ResponseWriter, r *http.Request) {
	pending, dropped := h.svc.ActionBacklog()
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": pending,
		"count":   len(pending),
		"dropped": dropped,
	})
}

// BridgeStatus handles POST /api/bridge/status.
// Body: {"media_state": "playing", "output_confirmed": true}.
func (h *Handler) BridgeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MediaState      string `json:"media_state"`
		OutputConfirmed bool   `json:"output_confirmed"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	status, err := ParseMediaStatus(req.MediaState)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st := h.svc.ReportStatus(status, req.OutputConfirmed)
	writeOK(w, map[string]any{"state": st.Phase(), "ready_path": st.ReadyPath, "live_path": st.LivePath})
}
