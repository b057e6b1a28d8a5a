package media

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// VideoExtensions is the allow-list of clip extensions, lowercase with dot.
var VideoExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".flv", ".webm"}

var extMIME = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".flv":  "video/x-flv",
}

// IsVideoExt reports whether ext (any case, with dot) is an allowed clip extension.
func IsVideoExt(ext string) bool {
	_, ok := extMIME[strings.ToLower(ext)]
	return ok
}

// MIMEForExt maps a clip extension to its MIME type; unknown extensions
// default to video/mp4.
func MIMEForExt(ext string) string {
	if m, ok := extMIME[strings.ToLower(ext)]; ok {
		return m
	}
	return "video/mp4"
}

// Sniff detects a MIME type from content. Returns "" when r cannot be read
// or the content is not recognised as video.
func Sniff(r io.Reader) string {
	m, err := mimetype.DetectReader(r)
	if err != nil || m == nil {
		return ""
	}
	if !strings.HasPrefix(m.String(), "video/") {
		return ""
	}
	return m.String()
}
