// Package download runs the per-video download state machine: skip checks,
// the transfer itself, locating and inspecting the result, and recording
// the outcome in the cache.
package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/layout"
	"github.com/voyagen/ytarchive/internal/models"
)

// ErrNoHandle is returned when a video's channel has no cached handle, so
// its directory cannot be computed.
var ErrNoHandle = errors.New("channel handle not cached")

// Recorder is the slice of the cache the pipeline writes outcomes to.
type Recorder interface {
	SaveDownloadedVideoDetails(ctx context.Context, videoID, path, duration, resolution string) error
	SaveDownloadError(ctx context.Context, videoID, message string) error
}

// Result is the outcome of one batch. Failed videos carry DownloadError.
type Result struct {
	Downloaded []models.Video
	Failed     []models.Video
}

// Pipeline downloads videos one at a time.
type Pipeline struct {
	rec    Recorder
	dl     Downloader
	probe  Inspector
	layout layout.Layout
	log    zerolog.Logger

	exists    func(string) bool
	letterbox func(src, dst string) error
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(rec Recorder, dl Downloader, probe Inspector, l layout.Layout, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		rec:       rec,
		dl:        dl,
		probe:     probe,
		layout:    l,
		log:       log.With().Str("component", "download").Logger(),
		exists:    layout.Exists,
		letterbox: Letterbox,
	}
}

// Run walks videos in order. skip holds IDs to leave alone; handles maps
// channel ID to username for directory layout. A failed video is recorded
// and the batch moves on. Run stops early only when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, videos []models.Video, skip []string, handles map[string]string) Result {
	var res Result
	skipSet := SkipSet(skip)
	for i, v := range videos {
		if ctx.Err() != nil {
			p.log.Warn().Int("remaining", len(videos)-i).Msg("download batch cancelled")
			break
		}
		log := p.log.With().Str("video_id", v.ID).Logger()

		if d := Decide(v, skipSet, p.exists); d != Attempt {
			log.Info().Stringer("reason", d).Msg("skipping")
			continue
		}
		if v.SavedPath != "" {
			log.Info().Str("saved_path", v.SavedPath).Msg("recorded file is missing, downloading again")
		}

		log.Info().Int("n", i+1).Int("of", len(videos)).Msg("downloading")
		done, err := p.Download(ctx, v, handles[v.ChannelID])
		if err != nil {
			var de *DownloadError
			msg := err.Error()
			if errors.As(err, &de) {
				msg = de.Err.Error()
			}
			log.Error().Err(err).Msg("download failed")
			v.DownloadError = msg
			if rerr := p.rec.SaveDownloadError(ctx, v.ID, msg); rerr != nil {
				log.Error().Err(rerr).Msg("could not record download error")
			}
			res.Failed = append(res.Failed, v)
			continue
		}
		res.Downloaded = append(res.Downloaded, *done)
	}
	return res
}

// Download attempts one video without the skip checks and records success.
// On failure it returns a *DownloadError and records nothing; Run records it.
func (p *Pipeline) Download(ctx context.Context, v models.Video, handle string) (*models.Video, error) {
	if handle == "" {
		return nil, &DownloadError{VideoID: v.ID, Err: fmt.Errorf("%w: channel %s", ErrNoHandle, v.ChannelID)}
	}
	dirs := p.layout.Channel(handle)
	log := p.log.With().Str("video_id", v.ID).Logger()

	if err := p.dl.Download(ctx, v.URL(), dirs); err != nil {
		return nil, &DownloadError{VideoID: v.ID, Err: err}
	}
	path, err := layout.FindVideoFile(dirs.Video, v.ID)
	if err != nil {
		return nil, &DownloadError{VideoID: v.ID, Err: err}
	}

	duration, resolution, err := p.probe.Inspect(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not read media info")
	}
	if err := p.rec.SaveDownloadedVideoDetails(ctx, v.ID, path, duration, resolution); err != nil {
		return nil, &DownloadError{VideoID: v.ID, Err: fmt.Errorf("record download: %w", err)}
	}
	v.SavedPath, v.Duration, v.Resolution, v.DownloadError = path, duration, resolution, ""
	log.Info().Str("path", path).Str("duration", duration).Str("resolution", resolution).Msg("saved")

	p.thumbnail(dirs, v.ID)
	return &v, nil
}

// thumbnail letterboxes whichever thumbnail the tool wrote. Absence and
// failures are logged only.
func (p *Pipeline) thumbnail(dirs layout.Dirs, videoID string) {
	src, err := layout.FindThumbnailSource(dirs.Video, videoID)
	if err != nil {
		p.log.Warn().Str("video_id", videoID).Msg("no webp or jpg thumbnail found")
		return
	}
	if err := p.letterbox(src, dirs.ThumbnailPath(videoID)); err != nil {
		p.log.Warn().Err(err).Str("video_id", videoID).Msg("thumbnail build failed")
	}
}
