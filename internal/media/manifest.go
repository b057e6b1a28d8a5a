package media

import (
	"bufio"
	"io"
	"strings"
)

// WriteManifest writes a concat demuxer manifest listing paths in order.
// Backslashes become forward slashes and single quotes are escaped the way
// the demuxer expects ('\'').
func WriteManifest(w io.Writer, paths []string) error {
	bw := bufio.NewWriter(w)
	for _, p := range paths {
		p = strings.ReplaceAll(p, `\`, "/")
		p = strings.ReplaceAll(p, "'", `'\''`)
		if _, err := bw.WriteString("file '" + p + "'\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
