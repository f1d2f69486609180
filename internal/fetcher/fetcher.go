// Package fetcher turns the remote API's paginated list endpoints into
// complete collections, validating response shape on the way.
package fetcher

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/models"
	"google.golang.org/api/youtube/v3"
)

// API is the remote client surface the fetcher drives. Each call returns one
// page; an empty pageToken requests the first page.
type API interface {
	ChannelsByUsername(ctx context.Context, username string) (*youtube.ChannelListResponse, error)
	ChannelsByID(ctx context.Context, ids ...string) (*youtube.ChannelListResponse, error)
	SearchChannels(ctx context.Context, query string) (*youtube.SearchListResponse, error)
	SearchVideos(ctx context.Context, channelID, pageToken string) (*youtube.SearchListResponse, error)
	Videos(ctx context.Context, ids ...string) (*youtube.VideoListResponse, error)
	Playlists(ctx context.Context, channelID, pageToken string) (*youtube.PlaylistListResponse, error)
	PlaylistItems(ctx context.Context, playlistID, pageToken string) (*youtube.PlaylistItemListResponse, error)
}

// Fetcher resolves channels and walks video, playlist and playlist-item
// collections. It never consults the cache.
type Fetcher struct {
	api  API
	http *http.Client
	log  zerolog.Logger
}

// New returns a Fetcher. A nil httpClient gets a default with a timeout.
func New(api API, httpClient *http.Client, log zerolog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Fetcher{
		api:  api,
		http: httpClient,
		log:  log.With().Str("component", "fetcher").Logger(),
	}
}

// ResolveChannel looks a channel up by username, falling back to a channel
// search when the username lookup finds nothing. The returned channel keeps
// username as its local handle.
func (f *Fetcher) ResolveChannel(ctx context.Context, username string) (*models.Channel, error) {
	f.log.Info().Str("channel", username).Msg("retrieving channel information")
	resp, err := f.api.ChannelsByUsername(ctx, username)
	if err != nil {
		return nil, remoteErr("channels.list", username, err)
	}
	if resp == nil || len(resp.Items) == 0 {
		f.log.Debug().Str("channel", username).Msg("no match by username, searching")
		id, err := f.searchChannelID(ctx, username)
		if err != nil {
			return nil, err
		}
		resp, err = f.api.ChannelsByID(ctx, id)
		if err != nil {
			return nil, remoteErr("channels.list", id, err)
		}
		if resp == nil || len(resp.Items) == 0 {
			return nil, remoteErr("channels.list", id, ErrNotFound)
		}
	}
	ch, err := f.channelFrom(ctx, "channels.list", username, resp.Items[0])
	if err != nil {
		return nil, err
	}
	ch.Username = username
	return ch, nil
}

// searchChannelID resolves free text to the first matching channel ID.
func (f *Fetcher) searchChannelID(ctx context.Context, query string) (string, error) {
	resp, err := f.api.SearchChannels(ctx, query)
	if err != nil {
		return "", remoteErr("search.list", query, err)
	}
	if resp == nil || len(resp.Items) == 0 {
		return "", remoteErr("search.list", query, ErrNotFound)
	}
	item := resp.Items[0]
	switch {
	case item.Id != nil && item.Id.ChannelId != "":
		return item.Id.ChannelId, nil
	case item.Snippet != nil && item.Snippet.ChannelId != "":
		return item.Snippet.ChannelId, nil
	}
	return "", malformed("search.list", query, "result without channel id")
}

// ChannelByID fetches current channel details. Username is the channel's
// custom URL handle when it has one, else its ID.
func (f *Fetcher) ChannelByID(ctx context.Context, channelID string) (*models.Channel, error) {
	resp, err := f.api.ChannelsByID(ctx, channelID)
	if err != nil {
		return nil, remoteErr("channels.list", channelID, err)
	}
	if resp == nil || len(resp.Items) == 0 {
		return nil, remoteErr("channels.list", channelID, ErrNotFound)
	}
	ch, err := f.channelFrom(ctx, "channels.list", channelID, resp.Items[0])
	if err != nil {
		return nil, err
	}
	if ch.Username == "" {
		ch.Username = ch.ID
	}
	return ch, nil
}

func (f *Fetcher) channelFrom(ctx context.Context, op, target string, item *youtube.Channel) (*models.Channel, error) {
	if item == nil || item.Id == "" {
		return nil, malformed(op, target, "channel without id")
	}
	if item.Snippet == nil {
		return nil, malformed(op, target, "channel without snippet")
	}
	sn := item.Snippet
	ch := &models.Channel{
		ID:          item.Id,
		Username:    sn.CustomUrl,
		Title:       sn.Title,
		Description: sn.Description,
		PublishedAt: sn.PublishedAt,
	}
	if sn.Thumbnails != nil {
		ch.ThumbnailSmall = f.thumbnail(ctx, ch.ID, models.ThumbnailSmall, sn.Thumbnails.Default)
		ch.ThumbnailMedium = f.thumbnail(ctx, ch.ID, models.ThumbnailMedium, sn.Thumbnails.Medium)
		ch.ThumbnailLarge = f.thumbnail(ctx, ch.ID, models.ThumbnailLarge, sn.Thumbnails.High)
	}
	return ch, nil
}

// thumbnail downloads one channel thumbnail; failures are logged and yield nil.
func (f *Fetcher) thumbnail(ctx context.Context, channelID string, size models.ThumbnailSize, t *youtube.Thumbnail) []byte {
	if t == nil || t.Url == "" {
		return nil
	}
	data, err := FetchThumbnail(ctx, f.http, t.Url)
	if err != nil {
		f.log.Warn().Err(err).Str("channel_id", channelID).Stringer("size", size).Msg("thumbnail download failed")
		return nil
	}
	return data
}

// ChannelVideos walks the channel's video search results. Titles come from
// one videos.list call per page. Each video is handed to each as soon as
// its page is resolved.
func (f *Fetcher) ChannelVideos(ctx context.Context, channelID string, each func(models.Video) error) error {
	list := func(ctx context.Context, token string) (Page[models.Video], error) {
		resp, err := f.api.SearchVideos(ctx, channelID, token)
		if err != nil {
			return Page[models.Video]{}, remoteErr("search.list", channelID, err)
		}
		if resp == nil {
			return Page[models.Video]{}, malformed("search.list", channelID, "empty response")
		}
		ids := make([]string, 0, len(resp.Items))
		for _, item := range resp.Items {
			if item == nil || item.Id == nil || item.Id.VideoId == "" {
				return Page[models.Video]{}, malformed("search.list", channelID, "result without video id")
			}
			ids = append(ids, item.Id.VideoId)
		}
		videos, err := f.videoTitles(ctx, channelID, ids)
		if err != nil {
			return Page[models.Video]{}, err
		}
		return Page[models.Video]{Items: videos, NextPageToken: resp.NextPageToken}, nil
	}
	return Collect(ctx, list, func(v models.Video) error {
		f.log.Debug().Str("video_id", v.ID).Str("title", v.Title).Msg("retrieved video")
		return each(v)
	})
}

// videoTitles builds videos for ids in order. IDs the videos endpoint no
// longer knows are skipped.
func (f *Fetcher) videoTitles(ctx context.Context, channelID string, ids []string) ([]models.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := f.api.Videos(ctx, ids...)
	if err != nil {
		return nil, remoteErr("videos.list", channelID, err)
	}
	titles := make(map[string]string, len(ids))
	if resp != nil {
		for _, v := range resp.Items {
			if v == nil || v.Id == "" || v.Snippet == nil {
				return nil, malformed("videos.list", channelID, "video without id or snippet")
			}
			titles[v.Id] = v.Snippet.Title
		}
	}
	videos := make([]models.Video, 0, len(ids))
	for _, id := range ids {
		title, ok := titles[id]
		if !ok {
			f.log.Warn().Str("video_id", id).Msg("search result missing from videos.list, skipping")
			continue
		}
		videos = append(videos, models.Video{ID: id, ChannelID: channelID, Title: title})
	}
	return videos, nil
}

// Playlists walks every playlist the channel owns. A channel with no
// playlists yields no calls to each and no error.
func (f *Fetcher) Playlists(ctx context.Context, channelID string, each func(models.Playlist) error) error {
	list := func(ctx context.Context, token string) (Page[models.Playlist], error) {
		resp, err := f.api.Playlists(ctx, channelID, token)
		if err != nil {
			return Page[models.Playlist]{}, remoteErr("playlists.list", channelID, err)
		}
		if resp == nil {
			return Page[models.Playlist]{}, malformed("playlists.list", channelID, "empty response")
		}
		page := Page[models.Playlist]{NextPageToken: resp.NextPageToken}
		for _, p := range resp.Items {
			if p == nil || p.Id == "" || p.Snippet == nil {
				return Page[models.Playlist]{}, malformed("playlists.list", channelID, "playlist without id or snippet")
			}
			page.Items = append(page.Items, models.Playlist{ID: p.Id, ChannelID: channelID, Title: p.Snippet.Title})
		}
		return page, nil
	}
	return Collect(ctx, list, func(p models.Playlist) error {
		f.log.Info().Str("playlist", p.Title).Msg("retrieved playlist")
		return each(p)
	})
}

// PlaylistItems returns every entry of the playlist in remote order.
func (f *Fetcher) PlaylistItems(ctx context.Context, playlistID string) ([]RawPlaylistItem, error) {
	list := func(ctx context.Context, token string) (Page[RawPlaylistItem], error) {
		resp, err := f.api.PlaylistItems(ctx, playlistID, token)
		if err != nil {
			return Page[RawPlaylistItem]{}, remoteErr("playlistItems.list", playlistID, err)
		}
		if resp == nil {
			return Page[RawPlaylistItem]{}, malformed("playlistItems.list", playlistID, "empty response")
		}
		page := Page[RawPlaylistItem]{NextPageToken: resp.NextPageToken}
		for _, it := range resp.Items {
			raw, err := rawItem(playlistID, it)
			if err != nil {
				return Page[RawPlaylistItem]{}, err
			}
			page.Items = append(page.Items, raw)
		}
		return page, nil
	}
	return CollectAll(ctx, list)
}

func rawItem(playlistID string, it *youtube.PlaylistItem) (RawPlaylistItem, error) {
	if it == nil || it.Id == "" || it.Snippet == nil {
		return RawPlaylistItem{}, malformed("playlistItems.list", playlistID, "item without id or snippet")
	}
	sn := it.Snippet
	if sn.ResourceId == nil || sn.ResourceId.VideoId == "" {
		return RawPlaylistItem{}, malformed("playlistItems.list", playlistID, "item "+it.Id+" without video id")
	}
	return RawPlaylistItem{
		ID:                it.Id,
		PlaylistID:        playlistID,
		VideoID:           sn.ResourceId.VideoId,
		Title:             sn.Title,
		Position:          sn.Position,
		OwnerChannelID:    sn.VideoOwnerChannelId,
		OwnerChannelTitle: sn.VideoOwnerChannelTitle,
	}, nil
}

// Video looks up a single video and the channel that owns it.
func (f *Fetcher) Video(ctx context.Context, videoID string) (*models.Video, *models.Channel, error) {
	resp, err := f.api.Videos(ctx, videoID)
	if err != nil {
		return nil, nil, remoteErr("videos.list", videoID, err)
	}
	if resp == nil || len(resp.Items) == 0 {
		return nil, nil, remoteErr("videos.list", videoID, ErrNotFound)
	}
	item := resp.Items[0]
	if item == nil || item.Snippet == nil || item.Snippet.ChannelId == "" {
		return nil, nil, malformed("videos.list", videoID, "video without snippet or channel")
	}
	ch, err := f.ChannelByID(ctx, item.Snippet.ChannelId)
	if err != nil {
		return nil, nil, err
	}
	v := &models.Video{ID: videoID, ChannelID: ch.ID, Title: item.Snippet.Title}
	return v, ch, nil
}

// IsNotFound reports whether err is a zero-result resolution.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
