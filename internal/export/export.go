// Package export names and writes files produced by the studio.
//
// Exported files follow the pattern
//
//	<base-name>_<suffix>_<timestamp>.<ext>
//
// where base-name is the uploaded file name without its extension, suffix says
// which artifact the file holds, and timestamp is the UTC ISO-8601 time with
// ':' and '.' replaced by '-' (e.g. 2026-10-17T09-41-07-123Z).
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Suffix identifies the kind of exported artifact.
type Suffix string

// Known suffixes.
const (
	SuffixOriginal          Suffix = "original"
	SuffixEdited            Suffix = "edited"
	SuffixBackgroundRemoved Suffix = "bg_removed"
	SuffixCropped           Suffix = "cropped"
)

// Fallback base names when the upload name has no part before its extension.
const (
	DefaultBaseName     = "download"
	DefaultCropBaseName = "image"
)

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// Timestamp renders t as an ISO-8601 UTC string with millisecond precision
// and the ':' and '.' separators replaced by '-'.
func Timestamp(t time.Time) string {
	return timestampReplacer.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
}

// BaseName strips the last extension from name. Names without an extension
// (or with nothing before it) yield fallback.
func BaseName(name, fallback string) string {
	name = filepath.Base(name)
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return fallback
	}
	return name[:i]
}

// FileName builds the export file name for an artifact.
func FileName(original string, suffix Suffix, ext string, now time.Time) string {
	fallback := DefaultBaseName
	if suffix == SuffixCropped {
		fallback = DefaultCropBaseName
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%s_%s_%s.%s", BaseName(original, fallback), suffix, Timestamp(now), ext)
}

// Writer saves exported artifacts into a directory.
type Writer struct {
	Dir string
}

// NewWriter returns a Writer rooted at dir. An empty dir means the current
// working directory.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{Dir: dir}
}

// Save writes data under name and returns the full path.
func (w *Writer) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(w.Dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
