// Package layout computes the per-channel directory tree under the archive
// root and finds media written into it.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoFile is returned when no file matches a video ID.
var ErrNoFile = errors.New("no matching file")

// Subdirectory names inside a channel directory.
const (
	VideoDir       = "video"
	DescriptionDir = "description"
	InfoDir        = "info"
	ThumbnailDir   = "thumbnail"
)

// Thumbnail extensions the download tool writes next to the media file.
var thumbnailExts = []string{".webp", ".jpg"}

// Layout roots every channel directory.
type Layout struct {
	Root string
}

// Dirs are the directories for one channel.
type Dirs struct {
	Base        string
	Video       string
	Description string
	Info        string
	Thumbnail   string
}

// Channel returns the directories for handle. A leading "@" is dropped.
func (l Layout) Channel(handle string) Dirs {
	base := filepath.Join(l.Root, strings.TrimPrefix(handle, "@"))
	return Dirs{
		Base:        base,
		Video:       filepath.Join(base, VideoDir),
		Description: filepath.Join(base, DescriptionDir),
		Info:        filepath.Join(base, InfoDir),
		Thumbnail:   filepath.Join(base, ThumbnailDir),
	}
}

// ThumbnailPath is where the letterboxed thumbnail for videoID is written.
func (d Dirs) ThumbnailPath(videoID string) string {
	return filepath.Join(d.Thumbnail, videoID+".jpg")
}

// DescriptionPath is the description sidecar for videoID.
func (d Dirs) DescriptionPath(videoID string) string {
	return filepath.Join(d.Description, videoID+".description")
}

// InfoPath is the info JSON sidecar for videoID.
func (d Dirs) InfoPath(videoID string) string {
	return filepath.Join(d.Info, videoID+".info.json")
}

// FindVideoFile returns the media file for videoID in dir: the first
// "<videoID>.*" match that is not a thumbnail.
func FindVideoFile(dir, videoID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(videoID)+".*"))
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", videoID, err)
	}
	for _, m := range matches {
		if !isThumbnail(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("video %s in %s: %w", videoID, dir, ErrNoFile)
}

// FindThumbnailSource returns the thumbnail the download tool wrote for
// videoID in dir, preferring WebP over JPEG.
func FindThumbnailSource(dir, videoID string) (string, error) {
	for _, ext := range thumbnailExts {
		p := filepath.Join(dir, videoID+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("thumbnail %s in %s: %w", videoID, dir, ErrNoFile)
}

// IsThumbnailSource reports whether name is a thumbnail the download tool writes.
func IsThumbnailSource(name string) bool {
	return isThumbnail(name)
}

func isThumbnail(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, t := range thumbnailExts {
		if ext == t {
			return true
		}
	}
	return false
}

// Rebase moves savedPath under the root for handle, keeping the file name.
// The second result is false when savedPath already lives under that root.
func (l Layout) Rebase(savedPath, handle string) (string, bool) {
	want := filepath.Join(l.Channel(handle).Video, filepath.Base(savedPath))
	// <root>/<handle>/video/<file>: the root is three levels up.
	currentRoot := filepath.Dir(filepath.Dir(filepath.Dir(savedPath)))
	if filepath.Clean(currentRoot) == filepath.Clean(l.Root) {
		return savedPath, false
	}
	return want, true
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// globEscape escapes glob metacharacters in s.
func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
