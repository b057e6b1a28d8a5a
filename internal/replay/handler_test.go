package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replay-manager/internal/media"
	"replay-manager/internal/platform/metrics"
)

type fakeThumbnailer struct{ err error }

func (f fakeThumbnailer) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\xff\xd8jpeg:" + path), nil
}

func newTestRouter(t *testing.T, env *testEnv, thumbErr error) *chi.Mux {
	t.Helper()
	thumbs, err := media.NewThumbnailCache(fakeThumbnailer{err: thumbErr}, 8)
	require.NoError(t, err)
	h := NewHandler(env.svc, thumbs, nil, nil)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandler_Replays(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	rec := do(t, r, http.MethodGet, "/api/replays", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view LibraryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, testFolder, view.Folder)
	require.Len(t, view.Replays, 3)
	assert.Equal(t, env.c, view.Replays[0].Path)
	assert.Equal(t, "0.0 MB", view.Replays[0].SizeStr)
	assert.Equal(t, "video/mp4", view.Replays[0].MIMEType)
}

func TestHandler_load_and_bridge(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	rec := do(t, r, http.MethodPost, "/api/load", map[string]any{"path": env.a})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "READY", body["state"])

	rec = do(t, r, http.MethodGet, "/api/bridge/next-action", nil)
	body = decodeBody(t, rec)
	action, ok := body["action"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "load_replay", action["action"])
	assert.Equal(t, env.a, action["path"])

	rec = do(t, r, http.MethodGet, "/api/bridge/next-action", nil)
	body = decodeBody(t, rec)
	assert.Nil(t, body["action"])

	rec = do(t, r, http.MethodPost, "/api/bridge/status", map[string]any{"media_state": "playing", "output_confirmed": true})
	body = decodeBody(t, rec)
	assert.Equal(t, "LIVE", body["state"])
	assert.Equal(t, env.a, body["live_path"])

	rec = do(t, r, http.MethodPost, "/api/bridge/status", map[string]any{"media_state": "warp"})
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, KindInvalidArg, body["error"])

	rec = do(t, r, http.MethodGet, "/api/playback", nil)
	body = decodeBody(t, rec)
	assert.Equal(t, "LIVE", body["state"])
}

func TestHandler_error_envelope(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	tests := []struct {
		name   string
		target string
		body   any
		kind   string
	}{
		{"unknown clip", "/api/load", map[string]any{"path": "/replays/nope.mp4"}, KindNotFound},
		{"missing path", "/api/toggle-favorite", map[string]any{}, KindInvalidArg},
		{"bad queue index", "/api/queue/remove", map[string]any{"queue_index": 3}, KindInvalidIndex},
		{"missing reorder indices", "/api/queue/reorder", map[string]any{"from": 0}, KindInvalidIndex},
		{"empty queue advance", "/api/queue/play-next", nil, KindQueueEmpty},
		{"empty highlights", "/api/create-highlights", nil, KindNoInput},
		{"unknown category", "/api/category/delete", map[string]any{"name": "x"}, KindNotFound},
		{"bad channel", "/api/update-channel", map[string]any{"channel": "alpha"}, KindInvalidArg},
		{"not hidden", "/api/unhide", map[string]any{"path": env.a}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.kind, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHandler_malformed_body(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/load", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, KindInvalidArg, body["error"])
}

func TestHandler_queue_flow(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	for _, p := range []string{env.a, env.b, env.c} {
		rec := do(t, r, http.MethodPost, "/api/queue/add", map[string]any{"path": p})
		require.Equal(t, true, decodeBody(t, rec)["success"])
	}
	rec := do(t, r, http.MethodPost, "/api/queue/add", map[string]any{"path": env.a})
	assert.Equal(t, KindAlreadyQueued, decodeBody(t, rec)["error"])

	do(t, r, http.MethodPost, "/api/queue/move-to-bottom", map[string]any{"index": 0})
	do(t, r, http.MethodPost, "/api/queue/reorder", map[string]any{"from": 2, "to": 0})

	rec = do(t, r, http.MethodGet, "/api/queue", nil)
	var q struct {
		Queue []QueueItem `json:"queue"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, 3, q.Count)
	assert.Equal(t, []string{env.a, env.b, env.c}, paths(q.Queue))

	rec = do(t, r, http.MethodPost, "/api/queue/play-next", nil)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["has_next"])
	next := body["next"].(map[string]any)
	assert.Equal(t, env.b, next["path"])
}

func TestHandler_categories(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	do(t, r, http.MethodPost, "/api/category/create", map[string]any{"name": "goals"})
	rec := do(t, r, http.MethodPost, "/api/category/create", map[string]any{"name": "goals"})
	assert.Equal(t, KindDuplicateName, decodeBody(t, rec)["error"])

	rec = do(t, r, http.MethodPost, "/api/category/assign", map[string]any{"path": env.a, "category": "goals"})
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	rec = do(t, r, http.MethodPost, "/api/category/rename", map[string]any{"old_name": "goals", "new_name": "best"})
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = do(t, r, http.MethodGet, "/api/categories", nil)
	var cats struct {
		Categories []CategoryView `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	assert.Equal(t, []CategoryView{{Name: "best", Color: DefaultCategoryColor, Count: 1}}, cats.Categories)

	rec = do(t, r, http.MethodPost, "/api/category/assign", map[string]any{"path": env.a, "category": nil})
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestHandler_preferences(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	rec := do(t, r, http.MethodPost, "/api/speed", map[string]any{"speed": 3})
	assert.Equal(t, 2.0, decodeBody(t, rec)["speed"])
	rec = do(t, r, http.MethodPost, "/api/zoom", map[string]any{"zoom": 10})
	assert.Equal(t, float64(MinZoom), decodeBody(t, rec)["zoom"])
	rec = do(t, r, http.MethodPost, "/api/theme", map[string]any{"theme": "dark"})
	assert.Equal(t, "dark", decodeBody(t, rec)["theme"])

	rec = do(t, r, http.MethodGet, "/api/config", nil)
	body := decodeBody(t, rec)
	assert.Equal(t, 2.0, body["current_speed"])
	assert.Equal(t, "dark", body["current_theme"])
	assert.Equal(t, testFolder, body["replay_folder"])
}

func TestHandler_Thumbnail(t *testing.T) {
	env := newTestEnv(t)

	r := newTestRouter(t, env, nil)
	rec := do(t, r, http.MethodGet, "/api/thumbnail/0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = do(t, r, http.MethodGet, "/api/thumbnail/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/thumbnail/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	failing := newTestRouter(t, env, errors.New("no decoder"))
	rec = do(t, failing, http.MethodGet, "/api/thumbnail/0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, media.PlaceholderSVG, rec.Body.String())
}

func TestHandler_Video_range(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/video/2", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, 100, rec.Body.Len())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
}

func TestHandler_Version(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)
	body := decodeBody(t, do(t, r, http.MethodGet, "/api/version", nil))
	assert.Equal(t, "dev", body["version"])
	assert.Equal(t, Repository, body["repository"])
}

func TestHandler_config_export_import(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)
	do(t, r, http.MethodPost, "/api/hide", map[string]any{"path": env.a})

	rec := do(t, r, http.MethodPost, "/api/config/export", nil)
	var exported struct {
		Success bool         `json:"success"`
		Config  ConfigBundle `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	require.True(t, exported.Success)
	assert.Equal(t, []string{env.a}, exported.Config.Hidden)

	other := newTestEnv(t)
	r2 := newTestRouter(t, other, nil)
	rec = do(t, r2, http.MethodPost, "/api/config/import", map[string]any{"config": exported.Config})
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.Equal(t, 1, other.svc.Replays().HiddenCount)

	rec = do(t, r2, http.MethodPost, "/api/config/import", map[string]any{"config": map[string]any{}})
	assert.Equal(t, KindInvalidArg, decodeBody(t, rec)["error"])
}

func TestHandler_bridge_pending_does_not_consume(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(t, env, nil)

	require.NoError(t, env.svc.LoadClip(env.a))
	require.NoError(t, env.svc.LoadClip(env.b))
	env.svc.SetSpeed(0.5)

	rec := do(t, r, http.MethodGet, "/api/bridge/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.EqualValues(t, 1, body["dropped"], "second load supersedes the first")

	rec = do(t, r, http.MethodGet, "/api/bridge/next-action", nil)
	action, ok := decodeBody(t, rec)["action"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, env.b, action["path"])
}

func TestHandler_failures_counted_once(t *testing.T) {
	env := newTestEnv(t)
	m := metrics.New()
	thumbs, err := media.NewThumbnailCache(fakeThumbnailer{}, 8)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(metrics.RequestMiddleware(m))
	NewHandler(env.svc, thumbs, nil, m).Register(r)

	rec := do(t, r, http.MethodGet, "/api/thumbnail/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/load", map[string]any{"path": "/replays/gone.mp4"})
	assert.Equal(t, http.StatusOK, rec.Code)

	scrape := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := scrape.Body.String()
	assert.Contains(t, out, "replay_errors_total 1\n")
	assert.Contains(t, out, `replay_failures_total{kind="InvalidIndex"} 1`)
	assert.Contains(t, out, `replay_failures_total{kind="NotFound"} 1`)
}
