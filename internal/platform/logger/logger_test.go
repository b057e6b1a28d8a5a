package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_levels(t *testing.T) {
	log := New(Options{Level: "warn", Format: "text"})
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}
	if !New(Options{}).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default level should be info")
	}
}

func TestNew_writes_rotating_file(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "replay.log")
	log := New(Options{Level: "info", Format: "json", File: file})
	log.Info("hello", "k", "v")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("expected json line in log file, got %s", data)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("abc"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue", nil))

	out := buf.String()
	for _, want := range []string{`"path":"/api/queue"`, `"status":418`, `"size":3`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}
