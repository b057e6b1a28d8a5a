package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"replay-manager/internal/media"
	"replay-manager/internal/platform/logger"
)

// DefaultHighlightTimeout bounds one concatenation run.
const DefaultHighlightTimeout = 300 * time.Second

const highlightPrefix = "Highlights_"

// Assembler concatenates clips into one highlights file without re-encoding.
type Assembler struct {
	fs      afero.Fs
	tool    media.Concatenator
	tempDir string
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewAssembler returns an assembler writing manifests under tempDir
// (os.TempDir when empty).
func NewAssembler(fs afero.Fs, tool media.Concatenator, tempDir string, timeout time.Duration, log *slog.Logger) *Assembler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if timeout <= 0 {
		timeout = DefaultHighlightTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Assembler{fs: fs, tool: tool, tempDir: tempDir, timeout: timeout, now: time.Now, log: log}
}

// Resolve keeps the paths that are present in lib, in order.
func (a *Assembler) Resolve(lib *Library, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if lib.Contains(p) {
			out = append(out, p)
			continue
		}
		a.log.Debug("highlight source vanished", slog.String("path", p))
	}
	return out
}

// Assemble concatenates sources into a new Highlights_YYYYMMDD_HHMMSS.mp4
// in folder and returns its path. The manifest is always removed; on
// failure any partial output is removed too.
func (a *Assembler) Assemble(ctx context.Context, folder string, sources []string) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoInput
	}
	if a.tool == nil {
		return "", fmt.Errorf("%w: no concatenation tool configured", ErrToolFailure)
	}

	manifest, err := a.writeManifest(sources)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := a.fs.Remove(manifest); err != nil {
			a.log.Warn("remove manifest", slog.String("path", manifest), slog.String("error", err.Error()))
		}
	}()

	output := a.outputPath(folder)
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	a.log.Info("assembling highlights",
		slog.Int("clips", len(sources)),
		slog.String("output", output))

	if err := a.tool.Concat(runCtx, manifest, output); err != nil {
		_ = a.fs.Remove(output)
		return "", fmt.Errorf("%w: %w", ErrToolFailure, err)
	}
	if ok, _ := afero.Exists(a.fs, output); !ok {
		return "", fmt.Errorf("%w: output %s was not written", ErrToolFailure, output)
	}

	a.log.Info("highlights created",
		slog.String("output", output),
		slog.Duration("took", time.Since(start)))
	return output, nil
}

func (a *Assembler) writeManifest(sources []string) (string, error) {
	if err := a.fs.MkdirAll(a.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: manifest dir: %w", ErrToolFailure, err)
	}
	f, err := afero.TempFile(a.fs, a.tempDir, "highlights-*.txt")
	if err != nil {
		return "", fmt.Errorf("%w: manifest: %w", ErrToolFailure, err)
	}
	name := f.Name()
	werr := media.WriteManifest(f, sources)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = a.fs.Remove(name)
		return "", fmt.Errorf("%w: manifest: %w", ErrToolFailure, werr)
	}
	return name, nil
}

// outputPath picks a name that does not exist yet; two runs within the same
// second get a numeric suffix.
func (a *Assembler) outputPath(folder string) string {
	stamp := a.now().Format("20060102_150405")
	base := filepath.Join(folder, highlightPrefix+stamp)
	candidate := base + ".mp4"
	for n := 2; ; n++ {
		if ok, _ := afero.Exists(a.fs, candidate); !ok {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d.mp4", base, n)
	}
}
