// Package service is the reconciliation layer between the local cache, the
// remote API and the download pipeline. Every collection lookup is
// cache-first: a non-empty cached result is returned as is, otherwise the
// remote collection is fetched and persisted item by item.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/classify"
	"github.com/voyagen/ytarchive/internal/config"
	"github.com/voyagen/ytarchive/internal/download"
	"github.com/voyagen/ytarchive/internal/fetcher"
	"github.com/voyagen/ytarchive/internal/layout"
	"github.com/voyagen/ytarchive/internal/models"
	"github.com/voyagen/ytarchive/internal/store"
)

// Remote is the fetcher surface the archiver uses.
type Remote interface {
	ResolveChannel(ctx context.Context, username string) (*models.Channel, error)
	ChannelByID(ctx context.Context, channelID string) (*models.Channel, error)
	ChannelVideos(ctx context.Context, channelID string, each func(models.Video) error) error
	Playlists(ctx context.Context, channelID string, each func(models.Playlist) error) error
	PlaylistItems(ctx context.Context, playlistID string) ([]fetcher.RawPlaylistItem, error)
	Video(ctx context.Context, videoID string) (*models.Video, *models.Channel, error)
}

// Downloads runs a download batch.
type Downloads interface {
	Run(ctx context.Context, videos []models.Video, skip []string, handles map[string]string) download.Result
}

var _ Remote = (*fetcher.Fetcher)(nil)
var _ Downloads = (*download.Pipeline)(nil)

// Archiver carries out archive operations against one cache.
type Archiver struct {
	store  store.Store
	remote Remote
	dl     Downloads
	probe  download.Inspector
	layout layout.Layout
	cfg    *config.Config
	out    io.Writer
	log    zerolog.Logger

	now       func() time.Time
	exists    func(string) bool
	letterbox func(src, dst string) error
}

// New builds an Archiver. Reports are printed to out and saved under
// cfg.ReportDir.
func New(s store.Store, remote Remote, dl Downloads, probe download.Inspector, cfg *config.Config, out io.Writer, log zerolog.Logger) *Archiver {
	return &Archiver{
		store:     s,
		remote:    remote,
		dl:        dl,
		probe:     probe,
		layout:    layout.Layout{Root: cfg.RootPath},
		cfg:       cfg,
		out:       out,
		log:       log.With().Str("component", "archiver").Logger(),
		now:       time.Now,
		exists:    layout.Exists,
		letterbox: download.Letterbox,
	}
}

// ResolveChannel returns the cached channel for username, fetching and
// saving it when it has never been cached.
func (a *Archiver) ResolveChannel(ctx context.Context, username string) (*models.Channel, error) {
	ch, err := a.store.GetChannelByUsername(ctx, username)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, store.ErrNotCached) {
		return nil, fmt.Errorf("GetChannelByUsername: %w", err)
	}
	ch, err = a.remote.ResolveChannel(ctx, username)
	if err != nil {
		return nil, err
	}
	return a.cacheResolved(ctx, username, ch)
}

// cacheResolved saves ch, resolved remotely from username, and returns the
// cached row.
func (a *Archiver) cacheResolved(ctx context.Context, username string, ch *models.Channel) (*models.Channel, error) {
	// A channel first seen as a playlist item owner is cached under its
	// title. The typed handle becomes its lookup key from now on.
	cached, err := a.store.GetChannelByID(ctx, ch.ID)
	switch {
	case err == nil && cached.Username == username:
		return cached, nil
	case err == nil:
		if err := a.store.SaveChannelUsername(ctx, ch.ID, username); err != nil {
			return nil, fmt.Errorf("SaveChannelUsername: %w", err)
		}
		a.log.Info().Str("channel", username).Str("was", cached.Username).Str("channel_id", ch.ID).Msg("channel handle updated")
		cached.Username = username
		return cached, nil
	case !errors.Is(err, store.ErrNotCached):
		return nil, fmt.Errorf("GetChannelByID: %w", err)
	}
	if err := a.store.SaveChannel(ctx, ch); err != nil {
		return nil, fmt.Errorf("SaveChannel: %w", err)
	}
	a.log.Info().Str("channel", username).Str("channel_id", ch.ID).Msg("channel cached")
	return ch, nil
}

// cachedChannel looks username up in the cache only.
func (a *Archiver) cachedChannel(ctx context.Context, username string) (*models.Channel, error) {
	ch, err := a.store.GetChannelByUsername(ctx, username)
	if errors.Is(err, store.ErrNotCached) {
		return nil, fmt.Errorf("channel %s: %w; get or sync it first", username, err)
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannelByUsername: %w", err)
	}
	return ch, nil
}

// ChannelVideos returns the channel's videos. With refresh unset a cached
// listing is returned without contacting the remote side. Fetched videos
// are saved one at a time as they arrive.
func (a *Archiver) ChannelVideos(ctx context.Context, ch *models.Channel, refresh bool) ([]models.Video, error) {
	if !refresh {
		videos, err := a.store.ListVideos(ctx, ch.ID, store.VideoFilter{})
		if err == nil {
			return videos, nil
		}
		if !errors.Is(err, store.ErrNotCached) {
			return nil, fmt.Errorf("ListVideos: %w", err)
		}
	}
	a.log.Info().Str("channel", ch.Username).Msg("retrieving videos from remote")
	var fetched []models.Video
	err := a.remote.ChannelVideos(ctx, ch.ID, func(v models.Video) error {
		if err := a.store.SaveVideo(ctx, &v); err != nil {
			return fmt.Errorf("SaveVideo: %w", err)
		}
		fetched = append(fetched, v)
		return nil
	})
	if err != nil {
		return fetched, err
	}
	a.log.Info().Str("channel", ch.Username).Int("videos", len(fetched)).Msg("videos retrieved")
	return fetched, nil
}

// ChannelPlaylists returns the channel's playlists with their items. A
// cached listing is returned as stored: items are not re-classified against
// videos cached since.
func (a *Archiver) ChannelPlaylists(ctx context.Context, ch *models.Channel) ([]models.Playlist, error) {
	playlists, err := a.store.ListPlaylists(ctx, ch.ID)
	if err == nil {
		return a.withItems(ctx, playlists)
	}
	if !errors.Is(err, store.ErrNotCached) {
		return nil, fmt.Errorf("ListPlaylists: %w", err)
	}

	known, err := a.store.AllVideoIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("AllVideoIDs: %w", err)
	}
	a.log.Info().Str("channel", ch.Username).Msg("retrieving playlists from remote")
	err = a.remote.Playlists(ctx, ch.ID, func(p models.Playlist) error {
		if err := a.store.SavePlaylist(ctx, &p); err != nil {
			return fmt.Errorf("SavePlaylist: %w", err)
		}
		items, err := a.fetchItems(ctx, p, classify.KnownVideos(known))
		p.Items = items
		playlists = append(playlists, p)
		return err
	})
	return playlists, err
}

// fetchItems pulls, classifies and saves every item of p. Owners of items
// with real ownership data are cached as channels.
func (a *Archiver) fetchItems(ctx context.Context, p models.Playlist, known classify.KnownVideos) ([]models.PlaylistItem, error) {
	log := a.log.With().Str("playlist", p.Title).Logger()
	log.Info().Msg("obtaining playlist items")
	raws, err := a.remote.PlaylistItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	items := make([]models.PlaylistItem, 0, len(raws))
	for _, raw := range raws {
		if classify.OwnerKnown(raw) {
			owner := &models.Channel{ID: raw.OwnerChannelID, Username: raw.OwnerChannelTitle}
			if owner.Username == "" {
				owner.Username = owner.ID
			}
			if err := a.store.SaveChannel(ctx, owner); err != nil {
				return items, fmt.Errorf("SaveChannel: %w", err)
			}
		}
		item := classify.Classify(raw, p.ChannelID, known)
		if err := a.store.SavePlaylistItem(ctx, p.ID, &item); err != nil {
			return items, fmt.Errorf("SavePlaylistItem: %w", err)
		}
		items = append(items, item)
	}
	log.Debug().Int("items", len(items)).Msg("playlist items saved")
	return items, nil
}

func (a *Archiver) withItems(ctx context.Context, playlists []models.Playlist) ([]models.Playlist, error) {
	for i := range playlists {
		items, err := a.store.ListPlaylistItems(ctx, playlists[i].ID)
		if err != nil {
			return nil, fmt.Errorf("ListPlaylistItems: %w", err)
		}
		playlists[i].Items = items
	}
	return playlists, nil
}

// SyncOptions tunes SyncChannels.
type SyncOptions struct {
	// Refresh re-walks each channel's remote video listing even when videos
	// are cached, so new uploads are picked up. Existing rows are kept.
	Refresh bool
}

// SyncChannels runs, for each channel in order: identity and video listing,
// playlists with their items, then downloads. A failed stage is recorded
// against its channel and the next channel always runs. The report is
// printed and saved even when everything failed.
func (a *Archiver) SyncChannels(ctx context.Context, names []string, opts SyncOptions) (*SyncReport, error) {
	report := &SyncReport{Started: a.now()}
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			a.log.Warn().Int("remaining", len(names)-i).Msg("sync cancelled")
			break
		}
		a.syncChannel(ctx, name, opts, report.channel(name))
	}
	report.Finished = a.now()
	return report, a.emit(report.String(), SyncReportFile)
}

func (a *Archiver) syncChannel(ctx context.Context, name string, opts SyncOptions, out *ChannelOutcome) {
	log := a.log.With().Str("channel", name).Logger()
	fail := func(stage string, err error) {
		log.Error().Err(err).Str("stage", stage).Msg("sync stage failed")
		out.StageErrors = append(out.StageErrors, stage+": "+err.Error())
	}

	ch, err := a.ResolveChannel(ctx, name)
	if err != nil {
		fail("channel", err)
		return
	}
	if _, err := a.ChannelVideos(ctx, ch, opts.Refresh); err != nil {
		fail("videos", err)
		return
	}
	if _, err := a.ChannelPlaylists(ctx, ch); err != nil {
		fail("playlists", err)
	}

	videos, err := a.store.ListVideos(ctx, ch.ID, store.VideoFilter{})
	if err != nil && !errors.Is(err, store.ErrNotCached) {
		fail("download", fmt.Errorf("ListVideos: %w", err))
		return
	}
	log.Info().Int("videos", len(videos)).Msg("attempting downloads")
	res := a.dl.Run(ctx, videos, nil, map[string]string{ch.ID: ch.Username})
	out.Downloaded = append(out.Downloaded, res.Downloaded...)
	out.Failed = append(out.Failed, res.Failed...)
}

// DownloadChannel downloads every cached video of a cached channel except
// those in skip.
func (a *Archiver) DownloadChannel(ctx context.Context, name string, skip []string) (*DownloadReport, error) {
	started := a.now()
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return nil, err
	}
	videos, err := a.store.ListVideos(ctx, ch.ID, store.VideoFilter{})
	if err != nil && !errors.Is(err, store.ErrNotCached) {
		return nil, fmt.Errorf("ListVideos: %w", err)
	}
	a.log.Info().Str("channel", name).Int("videos", len(videos)).Msg("attempting downloads")
	res := a.dl.Run(ctx, videos, skip, map[string]string{ch.ID: ch.Username})
	report := newDownloadReport(started, a.now(), res)
	return report, a.emit(report.String(), VideoDownloadReportFile)
}

// DownloadVideo downloads a single video. A video the cache does not know
// is fetched first and saved along with its channel; markUnlisted flags it
// unlisted on save. A video already on disk is returned without a download.
func (a *Archiver) DownloadVideo(ctx context.Context, videoID string, markUnlisted bool) (download.Result, error) {
	v, err := a.store.GetVideoByID(ctx, videoID)
	var handles map[string]string
	switch {
	case err == nil:
		if a.exists(v.SavedPath) {
			a.log.Info().Str("video_id", v.ID).Str("saved_path", v.SavedPath).Msg("already downloaded")
			return download.Result{}, nil
		}
		ch, err := a.store.GetChannelByID(ctx, v.ChannelID)
		if err != nil {
			return download.Result{}, fmt.Errorf("channel %s of video %s: %w", v.ChannelID, v.ID, err)
		}
		handles = map[string]string{ch.ID: ch.Username}
	case errors.Is(err, store.ErrNotCached):
		var ch *models.Channel
		v, ch, err = a.remote.Video(ctx, videoID)
		if err != nil {
			return download.Result{}, err
		}
		v.IsUnlisted = markUnlisted
		if err := a.store.SaveChannel(ctx, ch); err != nil {
			return download.Result{}, fmt.Errorf("SaveChannel: %w", err)
		}
		if err := a.store.SaveVideo(ctx, v); err != nil {
			return download.Result{}, fmt.Errorf("SaveVideo: %w", err)
		}
		// The channel may have been cached under another handle already.
		if cached, err := a.store.GetChannelByID(ctx, ch.ID); err == nil {
			ch = cached
		}
		handles = map[string]string{ch.ID: ch.Username}
	default:
		return download.Result{}, fmt.Errorf("GetVideoByID: %w", err)
	}

	res := a.dl.Run(ctx, []models.Video{*v}, nil, handles)
	if len(res.Failed) > 0 {
		f := res.Failed[0]
		return res, &download.DownloadError{VideoID: f.ID, Err: errors.New(f.DownloadError)}
	}
	return res, nil
}

// DownloadFromList downloads every video named in a watch-URL list.
// Entries that cannot be resolved are logged and left out.
func (a *Archiver) DownloadFromList(ctx context.Context, r io.Reader) (*DownloadReport, error) {
	started := a.now()
	ids, err := fetcher.ParseWatchList(r)
	if err != nil {
		return nil, fmt.Errorf("read watch list: %w", err)
	}
	q := newQueue()
	for _, id := range ids {
		if err := a.enqueue(ctx, q, id); err != nil {
			return nil, err
		}
	}
	return a.runQueue(ctx, q, started, ListDownloadFile)
}

// DownloadPlaylists downloads the items of a cached channel's playlists,
// or only the playlist titled title when it is non-empty.
func (a *Archiver) DownloadPlaylists(ctx context.Context, name, title string) (*DownloadReport, error) {
	started := a.now()
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return nil, err
	}
	playlists, err := a.store.ListPlaylists(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("ListPlaylists: %w", err)
	}
	if title != "" {
		var match []models.Playlist
		for _, p := range playlists {
			if p.Title == title {
				match = append(match, p)
			}
		}
		if len(match) == 0 {
			return nil, fmt.Errorf("channel %s has no playlist named %q", name, title)
		}
		playlists = match
	}
	playlists, err = a.withItems(ctx, playlists)
	if err != nil {
		return nil, err
	}

	q := newQueue()
	for _, p := range playlists {
		for _, item := range p.Items {
			if err := a.enqueue(ctx, q, item.VideoID); err != nil {
				return nil, err
			}
		}
	}
	return a.runQueue(ctx, q, started, PlaylistDownloadFile)
}

// queue collects videos to download, once each.
type queue struct {
	videos []models.Video
	seen   map[string]struct{}
}

func newQueue() *queue {
	return &queue{seen: make(map[string]struct{})}
}

// enqueue adds videoID unless it is already on disk. Videos missing from
// the cache are looked up remotely and saved with their channel; a failed
// lookup only drops that video. Only cache errors are returned.
func (a *Archiver) enqueue(ctx context.Context, q *queue, videoID string) error {
	if _, ok := q.seen[videoID]; ok {
		return nil
	}
	q.seen[videoID] = struct{}{}
	log := a.log.With().Str("video_id", videoID).Logger()

	v, err := a.store.GetVideoByID(ctx, videoID)
	if err == nil {
		if a.exists(v.SavedPath) {
			log.Info().Msg("already downloaded")
			return nil
		}
		log.Info().Msg("adding to download list")
		q.videos = append(q.videos, *v)
		return nil
	}
	if !errors.Is(err, store.ErrNotCached) {
		return fmt.Errorf("GetVideoByID: %w", err)
	}

	log.Info().Msg("not in the cache, retrieving")
	v, ch, err := a.remote.Video(ctx, videoID)
	if err != nil {
		log.Warn().Err(err).Msg("could not retrieve video, it will not be downloaded")
		return nil
	}
	if err := a.store.SaveChannel(ctx, ch); err != nil {
		return fmt.Errorf("SaveChannel: %w", err)
	}
	if err := a.store.SaveVideo(ctx, v); err != nil {
		return fmt.Errorf("SaveVideo: %w", err)
	}
	log.Info().Msg("adding to download list")
	q.videos = append(q.videos, *v)
	return nil
}

// runQueue downloads q. Videos can belong to any channel, so the whole
// handle table is loaded once after queueing has saved any new channels.
func (a *Archiver) runQueue(ctx context.Context, q *queue, started time.Time, reportFile string) (*DownloadReport, error) {
	handles, err := a.store.ChannelHandles(ctx)
	if err != nil {
		return nil, fmt.Errorf("ChannelHandles: %w", err)
	}
	res := a.dl.Run(ctx, q.videos, nil, handles)
	report := newDownloadReport(started, a.now(), res)
	return report, a.emit(report.String(), reportFile)
}

// PromotePlaylistItems returns a cached channel's playlists with items and
// saves eligible items as videos: unlisted ones that are neither private
// nor deleted when addUnlisted is set, external ones when addExternal is.
// It returns how many items were offered to the video table.
func (a *Archiver) PromotePlaylistItems(ctx context.Context, name string, addUnlisted, addExternal bool) ([]models.Playlist, int, error) {
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	playlists, err := a.store.ListPlaylists(ctx, ch.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPlaylists: %w", err)
	}
	playlists, err = a.withItems(ctx, playlists)
	if err != nil {
		return nil, 0, err
	}
	promoted := 0
	for _, p := range playlists {
		for _, item := range p.Items {
			if !classify.PromoteEligible(item, addUnlisted, addExternal) {
				continue
			}
			v := classify.Promote(item)
			// Owners of placeholder-titled items were never cached.
			owner := &models.Channel{ID: v.ChannelID, Username: v.ChannelID}
			if err := a.store.SaveChannel(ctx, owner); err != nil {
				return playlists, promoted, fmt.Errorf("SaveChannel: %w", err)
			}
			if err := a.store.SaveVideo(ctx, &v); err != nil {
				return playlists, promoted, fmt.Errorf("SaveVideo: %w", err)
			}
			promoted++
		}
	}
	if promoted > 0 {
		a.log.Info().Str("channel", name).Int("videos", promoted).Msg("playlist items promoted")
	}
	return playlists, promoted, nil
}

// GetChannel fetches the channel from the remote side and caches it.
// An already cached channel keeps its details and takes name as its handle.
func (a *Archiver) GetChannel(ctx context.Context, name string) (*models.Channel, error) {
	ch, err := a.remote.ResolveChannel(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.cacheResolved(ctx, name, ch)
}

// Channel looks a cached channel up by ID when id is set, else by username.
func (a *Archiver) Channel(ctx context.Context, username, id string) (*models.Channel, error) {
	switch {
	case id != "":
		return a.store.GetChannelByID(ctx, id)
	case username != "":
		return a.store.GetChannelByUsername(ctx, username)
	}
	return nil, fmt.Errorf("%w: a username or an id is required", store.ErrInvalidInput)
}

// Channels lists every cached channel.
func (a *Archiver) Channels(ctx context.Context) ([]models.Channel, error) {
	return a.store.ListChannels(ctx)
}

// Videos lists a cached channel's cached videos.
func (a *Archiver) Videos(ctx context.Context, name string, notDownloaded bool) ([]models.Video, error) {
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.store.ListVideos(ctx, ch.ID, store.VideoFilter{NotDownloaded: notDownloaded})
}

// UpdateChannels refreshes cached channel details from the remote side.
// Named channels stop at the first failure. With no names every cached
// channel is refreshed and failures are logged and skipped. It returns how
// many channels were updated.
func (a *Archiver) UpdateChannels(ctx context.Context, names []string) (int, error) {
	updated := 0
	for _, name := range names {
		ch, err := a.remote.ResolveChannel(ctx, name)
		if err != nil {
			return updated, err
		}
		if err := a.store.SaveUpdatedChannelDetails(ctx, ch); err != nil {
			return updated, fmt.Errorf("SaveUpdatedChannelDetails %s: %w", name, err)
		}
		updated++
	}
	if len(names) > 0 {
		return updated, nil
	}

	channels, err := a.store.ListChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("ListChannels: %w", err)
	}
	a.log.Info().Int("channels", len(channels)).Msg("updating every cached channel")
	for i, c := range channels {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		log := a.log.With().Str("channel_id", c.ID).Logger()
		log.Info().Int("n", i+1).Int("of", len(channels)).Msg("updating channel")
		ch, err := a.remote.ChannelByID(ctx, c.ID)
		if err != nil {
			log.Error().Err(err).Msg("channel update failed")
			continue
		}
		if err := a.store.SaveUpdatedChannelDetails(ctx, ch); err != nil {
			log.Error().Err(err).Msg("channel update failed")
			continue
		}
		updated++
	}
	return updated, nil
}

// Confirmer asks whether to go ahead with deleting ch, which has
// videoCount cached videos.
type Confirmer func(ch *models.Channel, videoCount int) (bool, error)

// DeleteChannel removes a cached channel with its videos and playlists once
// confirm agrees. It reports whether anything was deleted.
func (a *Archiver) DeleteChannel(ctx context.Context, name string, confirm Confirmer) (bool, error) {
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return false, err
	}
	n, err := a.store.CountVideos(ctx, ch.ID)
	if err != nil {
		return false, fmt.Errorf("CountVideos: %w", err)
	}
	ok, err := confirm(ch, n)
	if err != nil {
		return false, err
	}
	if !ok {
		a.log.Info().Str("channel", name).Msg("channel deletion cancelled")
		return false, nil
	}
	if err := a.store.DeleteChannel(ctx, ch.ID); err != nil {
		return false, fmt.Errorf("DeleteChannel: %w", err)
	}
	a.log.Info().Str("channel", name).Str("channel_id", ch.ID).Int("videos", n).Msg("channel deleted")
	return true, nil
}

// DeletePlaylists removes a cached channel's playlists and their items.
func (a *Archiver) DeletePlaylists(ctx context.Context, name string) error {
	ch, err := a.cachedChannel(ctx, name)
	if err != nil {
		return err
	}
	if err := a.store.DeletePlaylists(ctx, ch.ID); err != nil {
		return fmt.Errorf("DeletePlaylists: %w", err)
	}
	a.log.Info().Str("channel", name).Msg("playlists deleted")
	return nil
}

// emit prints a report and saves it under the report directory.
func (a *Archiver) emit(text, name string) error {
	fmt.Fprintln(a.out, text)
	path, err := writeReport(a.cfg.ReportDir, name, text)
	if err != nil {
		return err
	}
	a.log.Info().Str("path", path).Msg("report saved")
	return nil
}
