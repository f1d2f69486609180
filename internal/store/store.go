package store

import (
	"context"
	"errors"

	"github.com/voyagen/ytarchive/internal/models"
)

var (
	// ErrNotCached is returned by lookups when the entity has never been
	// synced. It tells the caller to go to the network; it is not a failure.
	ErrNotCached = errors.New("not in the local cache")
	// ErrInvalidInput is returned when a caller passes an unusable key.
	ErrInvalidInput = errors.New("invalid input")
)

// Store defines persistence for channels, videos, playlists and playlist items.
//
// Save* methods insert or ignore: a second save of an existing primary key
// leaves the first record untouched. The targeted update methods overwrite
// only the fields they name and return ErrNotCached when no row matched.
type Store interface {
	// SaveChannel inserts the channel unless its ID is already cached.
	SaveChannel(ctx context.Context, ch *models.Channel) error
	// SaveChannelUsername replaces the handle a cached channel is looked up by.
	SaveChannelUsername(ctx context.Context, channelID, username string) error
	// SaveUpdatedChannelDetails overwrites title, description, creation time and thumbnails.
	SaveUpdatedChannelDetails(ctx context.Context, ch *models.Channel) error
	// GetChannelByID returns a cached channel or ErrNotCached.
	GetChannelByID(ctx context.Context, channelID string) (*models.Channel, error)
	// GetChannelByUsername returns a cached channel by handle or ErrNotCached.
	GetChannelByUsername(ctx context.Context, username string) (*models.Channel, error)
	// ListChannels returns every cached channel with its cached video count.
	ListChannels(ctx context.Context) ([]models.Channel, error)
	// ChannelHandles returns a snapshot map of channel ID to username.
	ChannelHandles(ctx context.Context) (map[string]string, error)

	// SaveVideo inserts the video unless its ID is already cached.
	SaveVideo(ctx context.Context, v *models.Video) error
	// GetVideoByID returns a cached video or ErrNotCached.
	GetVideoByID(ctx context.Context, videoID string) (*models.Video, error)
	// ListVideos returns the channel's videos; ErrNotCached when the channel has none cached.
	ListVideos(ctx context.Context, channelID string, filter VideoFilter) ([]models.Video, error)
	// ListDownloadedVideos returns every video with a recorded saved path.
	ListDownloadedVideos(ctx context.Context) ([]models.Video, error)
	// AllVideoIDs returns the set of every cached video ID.
	AllVideoIDs(ctx context.Context) (map[string]struct{}, error)
	// CountVideos returns how many videos are cached for the channel.
	CountVideos(ctx context.Context, channelID string) (int, error)
	// SaveVideoPath sets the saved path only.
	SaveVideoPath(ctx context.Context, videoID, path string) error
	// SaveDownloadedVideoDetails sets path, duration and resolution and clears any download error.
	SaveDownloadedVideoDetails(ctx context.Context, videoID, path, duration, resolution string) error
	// SaveDownloadError records the last download failure message.
	SaveDownloadError(ctx context.Context, videoID, message string) error

	// SavePlaylist inserts the playlist unless its ID is already cached.
	SavePlaylist(ctx context.Context, p *models.Playlist) error
	// SavePlaylistItem inserts the item under playlistID unless its ID is already cached.
	SavePlaylistItem(ctx context.Context, playlistID string, item *models.PlaylistItem) error
	// ListPlaylists returns the channel's playlists without items; ErrNotCached when none.
	ListPlaylists(ctx context.Context, channelID string) ([]models.Playlist, error)
	// ListPlaylistItems returns the playlist's items in ascending position.
	ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error)
	// DeletePlaylists removes the channel's playlists and their items in one transaction.
	DeletePlaylists(ctx context.Context, channelID string) error
	// DeleteChannel removes playlist items, playlists, videos and the channel in one transaction.
	DeleteChannel(ctx context.Context, channelID string) error

	// Close releases the underlying connection pool.
	Close() error
}

// VideoFilter holds optional filters for listing a channel's videos.
type VideoFilter struct {
	NotDownloaded bool // only videos without a saved path
}
