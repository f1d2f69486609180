package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voyagen/ytarchive/internal/download"
	"github.com/voyagen/ytarchive/internal/models"
)

// Report file names, relative to the configured report directory.
const (
	SyncReportFile          = "report.txt"
	VideoDownloadReportFile = "video_download.log"
	PlaylistDownloadFile    = "playlist_download.log"
	ListDownloadFile        = "path_download.log"
)

const timeLayout = "2006-01-02 15:04:05"

// ChannelOutcome is what a sync did for one channel. StageErrors holds one
// line per stage that failed; a channel can have downloads and stage errors.
type ChannelOutcome struct {
	Name        string
	Downloaded  []models.Video
	Failed      []models.Video
	StageErrors []string
}

// SyncReport accumulates per-channel outcomes of a multi-channel sync.
type SyncReport struct {
	Started  time.Time
	Finished time.Time
	Channels []*ChannelOutcome
}

func (r *SyncReport) channel(name string) *ChannelOutcome {
	for _, c := range r.Channels {
		if c.Name == name {
			return c
		}
	}
	c := &ChannelOutcome{Name: name}
	r.Channels = append(r.Channels, c)
	return c
}

// Failed reports whether any channel had a failed download or stage.
func (r *SyncReport) Failed() bool {
	for _, c := range r.Channels {
		if len(c.Failed) > 0 || len(c.StageErrors) > 0 {
			return true
		}
	}
	return false
}

// String renders the report. Both video sections always appear, with an
// explicit "(none)" wherever a list is empty.
func (r *SyncReport) String() string {
	var b strings.Builder
	header(&b, "SYNC REPORT", r.Started, r.Finished)

	section(&b, "DOWNLOADED VIDEOS")
	if len(r.Channels) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range r.Channels {
		underline(&b, c.Name)
		videoLines(&b, c.Downloaded, false)
	}

	section(&b, "FAILED VIDEOS")
	if len(r.Channels) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range r.Channels {
		underline(&b, c.Name)
		videoLines(&b, c.Failed, true)
	}

	var stageErrs []*ChannelOutcome
	for _, c := range r.Channels {
		if len(c.StageErrors) > 0 {
			stageErrs = append(stageErrs, c)
		}
	}
	if len(stageErrs) > 0 {
		section(&b, "FAILED STAGES")
		for _, c := range stageErrs {
			underline(&b, c.Name)
			for _, e := range c.StageErrors {
				b.WriteString(e + "\n")
			}
		}
	}
	return b.String()
}

// DownloadReport is the outcome of one download batch outside a sync.
type DownloadReport struct {
	Started    time.Time
	Finished   time.Time
	Downloaded []models.Video
	Failed     []models.Video
}

func newDownloadReport(started, finished time.Time, res download.Result) *DownloadReport {
	return &DownloadReport{
		Started:    started,
		Finished:   finished,
		Downloaded: res.Downloaded,
		Failed:     res.Failed,
	}
}

// String renders the report in the same layout as SyncReport.
func (r *DownloadReport) String() string {
	var b strings.Builder
	header(&b, "DOWNLOAD REPORT", r.Started, r.Finished)
	section(&b, "DOWNLOADED VIDEOS")
	videoLines(&b, r.Downloaded, false)
	section(&b, "FAILED VIDEOS")
	videoLines(&b, r.Failed, true)
	return b.String()
}

func header(b *strings.Builder, title string, started, finished time.Time) {
	const width = 47
	border := strings.Repeat("#", width)
	pad := "#####" + strings.Repeat(" ", width-10) + "#####"
	inner := width - 10
	left := (inner - len(title)) / 2
	titled := "#####" + strings.Repeat(" ", left) + title + strings.Repeat(" ", inner-left-len(title)) + "#####"

	for _, l := range []string{border, pad, titled, pad, border} {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(b, "Started: %s\n", started.Format(timeLayout))
	fmt.Fprintf(b, "Finished: %s\n", finished.Format(timeLayout))
}

func section(b *strings.Builder, title string) {
	line := "###### " + title + " #######"
	border := strings.Repeat("#", len(line))
	fmt.Fprintf(b, "\n%s\n%s\n%s\n", border, line, border)
}

func underline(b *strings.Builder, name string) {
	bar := strings.Repeat("=", len(name))
	fmt.Fprintf(b, "%s\n%s\n%s\n", bar, name, bar)
}

func videoLines(b *strings.Builder, videos []models.Video, withError bool) {
	if len(videos) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, v := range videos {
		if withError {
			fmt.Fprintf(b, "%s: %s -- %s\n", v.ID, v.Title, v.DownloadError)
			continue
		}
		fmt.Fprintf(b, "%s: %s\n", v.ID, v.Title)
	}
}

// writeReport saves text to name under dir, creating dir if needed.
func writeReport(dir, name, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
