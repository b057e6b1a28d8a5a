package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv_fallback(t *testing.T) {
	t.Setenv("REPLAY_TEST_KEY", "")
	if got := GetEnv("REPLAY_TEST_KEY", "dflt"); got != "dflt" {
		t.Errorf("expected fallback, got %q", got)
	}
	t.Setenv("REPLAY_TEST_KEY", "set")
	if got := GetEnv("REPLAY_TEST_KEY", "dflt"); got != "set" {
		t.Errorf("expected set, got %q", got)
	}
}

func TestGetEnvInt_invalid_uses_fallback(t *testing.T) {
	t.Setenv("REPLAY_TEST_INT", "abc")
	if got := GetEnvInt("REPLAY_TEST_INT", 7); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	t.Setenv("REPLAY_TEST_INT", "42")
	if got := GetEnvInt("REPLAY_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	cases := map[string]bool{"yes": true, "true": true, "1": true, "off": false, "0": false}
	for in, want := range cases {
		t.Setenv("REPLAY_TEST_BOOL", in)
		if got := GetEnvBool("REPLAY_TEST_BOOL", !want); got != want {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
	t.Setenv("REPLAY_TEST_BOOL", "maybe")
	if !GetEnvBool("REPLAY_TEST_BOOL", true) {
		t.Error("unparseable value should use fallback")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("REPLAY_TEST_DUR", "300")
	if got := GetEnvDuration("REPLAY_TEST_DUR", time.Second); got != 300*time.Second {
		t.Errorf("bare int should be seconds, got %v", got)
	}
	t.Setenv("REPLAY_TEST_DUR", "1500ms")
	if got := GetEnvDuration("REPLAY_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", got)
	}
	t.Setenv("REPLAY_TEST_DUR", "soon")
	if got := GetEnvDuration("REPLAY_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("expected fallback, got %v", got)
	}
}

func TestLoad_reads_dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("REPLAY_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REPLAY_TEST_DOTENV", "")
	os.Unsetenv("REPLAY_TEST_DOTENV")
	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("REPLAY_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
}

func TestLoad_missing_file_errors(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
