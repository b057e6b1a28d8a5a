package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default timeouts for external tool invocations.
const (
	DefaultProbeTimeout     = 5 * time.Second
	DefaultThumbnailTimeout = 5 * time.Second
	DefaultConcatTimeout    = 300 * time.Second
)

// ThumbnailWidth is the width thumbnails are scaled to; height keeps aspect.
const ThumbnailWidth = 320

// Prober reports the duration of a media file in seconds.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Concatenator joins the clips listed in a concat manifest into output
// without re-encoding.
type Concatenator interface {
	Concat(ctx context.Context, manifestPath, outputPath string) error
}

// Thumbnailer renders a single still frame of a clip as JPEG bytes.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, path string) ([]byte, error)
}

// ToolError describes a failed or timed out subprocess.
type ToolError struct {
	Tool     string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s: timed out", e.Tool)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit %d: %s", e.Tool, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit %d: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a ToolError caused by the timeout.
func IsTimeout(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && te.TimedOut
}

// FFmpeg runs the ffmpeg and ffprobe binaries. Zero timeouts use the defaults.
type FFmpeg struct {
	FFmpegPath       string
	FFprobePath      string
	ProbeTimeout     time.Duration
	ThumbnailTimeout time.Duration
	ConcatTimeout    time.Duration
}

var (
	_ Prober       = (*FFmpeg)(nil)
	_ Concatenator = (*FFmpeg)(nil)
	_ Thumbnailer  = (*FFmpeg)(nil)
)

// NewFFmpeg returns an FFmpeg using the given binaries, falling back to
// "ffmpeg" and "ffprobe" on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Available reports whether both binaries resolve.
func (f *FFmpeg) Available() bool {
	_, errA := exec.LookPath(f.FFmpegPath)
	_, errB := exec.LookPath(f.FFprobePath)
	return errA == nil && errB == nil
}

// Probe implements Prober using ffprobe's format duration.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, orDuration(f.ProbeTimeout, DefaultProbeTimeout), f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return ParseDuration(string(out))
}

// Concat implements Concatenator with the concat demuxer and stream copy.
func (f *FFmpeg) Concat(ctx context.Context, manifestPath, outputPath string) error {
	_, err := f.run(ctx, orDuration(f.ConcatTimeout, DefaultConcatTimeout), f.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-y", outputPath,
	)
	return err
}

// Thumbnail implements Thumbnailer; the first frame is written to stdout as MJPEG.
func (f *FFmpeg) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	out, err := f.run(ctx, orDuration(f.ThumbnailTimeout, DefaultThumbnailTimeout), f.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", ThumbnailWidth),
		"-f", "image2pipe", "-vcodec", "mjpeg",
		"pipe:1",
	)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &ToolError{Tool: filepath.Base(f.FFmpegPath), Err: errors.New("empty thumbnail output")}
	}
	return out, nil
}

// ParseDuration parses a single floating point seconds value as printed by ffprobe.
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func (f *FFmpeg) run(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	te := &ToolError{
		Tool:     filepath.Base(bin),
		ExitCode: -1,
		Stderr:   lastLine(stderr.String()),
		Err:      err,
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		te.TimedOut = true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		te.ExitCode = ee.ExitCode()
	}
	return nil, te
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}

func orDuration(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
