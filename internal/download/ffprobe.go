package download

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// ErrNoVideoStream is returned when a media file has no video track.
var ErrNoVideoStream = errors.New("no video stream")

// Inspector extracts duration and resolution from a saved media file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (duration, resolution string, err error)
}

// FFProbe runs the ffprobe binary.
type FFProbe struct {
	Path string // binary name or path; "ffprobe" when empty
}

// Inspect returns the duration as "<m>m<s>s" and the resolution as "<w>x<h>".
func (f *FFProbe) Inspect(ctx context.Context, path string) (string, string, error) {
	bin := f.Path
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration:format=duration",
		"-of", "json",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("ffprobe %s: %w: %s", path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseProbe(stdout.Bytes())
}

type probeOutput struct {
	Streams []struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Duration string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (string, string, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", "", fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return "", "", ErrNoVideoStream
	}
	s := out.Streams[0]
	raw := out.Format.Duration
	if raw == "" {
		raw = s.Duration
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", "", fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return FormatDuration(int64(secs * 1000)), fmt.Sprintf("%dx%d", s.Width, s.Height), nil
}

// FormatDuration renders milliseconds as whole minutes and seconds, e.g. "12m34s".
func FormatDuration(ms int64) string {
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
