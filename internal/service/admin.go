package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voyagen/ytarchive/internal/layout"
	"github.com/voyagen/ytarchive/internal/store"
)

// UpdateVideoInfo re-reads duration and resolution from every saved file of
// a cached channel. Files that cannot be inspected are logged and skipped.
// It returns how many videos were updated.
func (a *Archiver) UpdateVideoInfo(ctx context.Context, name string) (int, error) {
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return 0, err
	}
	videos, err := a.store.ListVideos(ctx, ch.ID, store.VideoFilter{})
	if err != nil && !errors.Is(err, store.ErrNotCached) {
		return 0, fmt.Errorf("ListVideos: %w", err)
	}
	updated := 0
	for i, v := range videos {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if v.SavedPath == "" {
			continue
		}
		log := a.log.With().Str("video_id", v.ID).Logger()
		log.Debug().Int("n", i+1).Int("of", len(videos)).Msg("reading media info")
		duration, resolution, err := a.probe.Inspect(ctx, v.SavedPath)
		if err != nil {
			log.Warn().Err(err).Str("path", v.SavedPath).Msg("could not read media info")
			continue
		}
		if err := a.store.SaveDownloadedVideoDetails(ctx, v.ID, v.SavedPath, duration, resolution); err != nil {
			return updated, fmt.Errorf("SaveDownloadedVideoDetails: %w", err)
		}
		updated++
	}
	return updated, nil
}

// UpdateRootPath moves every recorded saved path whose root differs from
// the configured root under the configured root, keeping the file name. It
// returns how many paths changed.
func (a *Archiver) UpdateRootPath(ctx context.Context) (int, error) {
	videos, err := a.store.ListDownloadedVideos(ctx)
	if err != nil {
		return 0, fmt.Errorf("ListDownloadedVideos: %w", err)
	}
	handles, err := a.store.ChannelHandles(ctx)
	if err != nil {
		return 0, fmt.Errorf("ChannelHandles: %w", err)
	}
	changed := 0
	for _, v := range videos {
		handle, ok := handles[v.ChannelID]
		if !ok {
			a.log.Warn().Str("video_id", v.ID).Str("channel_id", v.ChannelID).Msg("channel not cached, path left alone")
			continue
		}
		next, moved := a.layout.Rebase(v.SavedPath, handle)
		if !moved {
			continue
		}
		if err := a.store.SaveVideoPath(ctx, v.ID, next); err != nil {
			return changed, fmt.Errorf("SaveVideoPath: %w", err)
		}
		a.log.Debug().Str("video_id", v.ID).Str("from", v.SavedPath).Str("to", next).Msg("saved path rebased")
		changed++
	}
	return changed, nil
}

// BuildThumbnails letterboxes every thumbnail in the channel's video
// directory that has no output yet. Conversion failures are logged and
// skipped. It returns how many thumbnails were written.
func (a *Archiver) BuildThumbnails(ctx context.Context, name string) (int, error) {
	dirs := a.layout.Channel(name)
	entries, err := os.ReadDir(dirs.Video)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dirs.Video, err)
	}
	a.log.Info().Str("input", dirs.Video).Str("output", dirs.Thumbnail).Msg("building thumbnails")

	built := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return built, err
		}
		if e.IsDir() || !layout.IsThumbnailSource(e.Name()) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		dst := dirs.ThumbnailPath(id)
		if a.exists(dst) {
			continue
		}
		if err := a.letterbox(filepath.Join(dirs.Video, e.Name()), dst); err != nil {
			a.log.Warn().Err(err).Str("file", e.Name()).Msg("thumbnail build failed")
			continue
		}
		built++
	}
	return built, nil
}
