package download

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/voyagen/ytarchive/internal/layout"
)

// FormatSelection prefers an mp4 video with m4a audio, then any mp4, then the
// best streams available in any container.
const FormatSelection = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4] / bv*+ba/b"

// Downloader transfers one video into a channel's directory tree.
type Downloader interface {
	Download(ctx context.Context, videoURL string, dirs layout.Dirs) error
}

// Ytdlp runs the yt-dlp binary.
type Ytdlp struct {
	Path           string // binary name or path; "yt-dlp" when empty
	CookiesBrowser string // browser to read cookies from; none when empty
}

func (y *Ytdlp) path() string {
	if y.Path == "" {
		return "yt-dlp"
	}
	return y.Path
}

// Args builds the yt-dlp command line for videoURL. The media file and the
// thumbnail land in dirs.Video; description and info JSON in their own dirs.
func (y *Ytdlp) Args(videoURL string, dirs layout.Dirs) []string {
	args := []string{
		"--format", FormatSelection,
		"--continue",
		"--no-overwrites",
		"--no-part",
		"--no-progress",
		"--write-description",
		"--write-info-json",
		"--write-thumbnail",
		"--paths", "home:" + dirs.Video,
		"--paths", "description:" + dirs.Description,
		"--paths", "infojson:" + dirs.Info,
		"--output", "%(id)s.%(ext)s",
		"--output", "description:%(id)s.%(ext)s",
		"--output", "infojson:%(id)s.%(ext)s",
	}
	if y.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", y.CookiesBrowser)
	}
	return append(args, "--", videoURL)
}

// Download runs yt-dlp and folds its stderr into the returned error.
func (y *Ytdlp) Download(ctx context.Context, videoURL string, dirs layout.Dirs) error {
	for _, d := range []string{dirs.Video, dirs.Description, dirs.Info} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}

	cmd := exec.CommandContext(ctx, y.path(), y.Args(videoURL, dirs)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := lastErrorLine(stderr.String()); msg != "" {
			return fmt.Errorf("yt-dlp: %w: %s", err, msg)
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// lastErrorLine picks the most useful line from yt-dlp's stderr: the last
// "ERROR:" line if there is one, else the last non-empty line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); strings.HasPrefix(l, "ERROR:") {
			return l
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
