package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/cache"
	"github.com/voyagen/ytarchive/internal/models"
)

// Cache TTLs for different entity types.
const (
	ttlChannel   = 10 * time.Minute
	ttlChannels  = 2 * time.Minute
	ttlPlaylists = 5 * time.Minute
)

// CachedStore wraps a Store with a Redis read-through layer for channel and
// playlist lookups. Misses and ErrNotCached are never cached; writes
// invalidate the keys they can make stale.
type CachedStore struct {
	inner Store
	cache *cache.Redis
	ns    string
	log   zerolog.Logger
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore creates a CachedStore that wraps inner. Keys are namespaced
// by location so two caches sharing a Redis never see each other's rows.
func NewCachedStore(inner Store, c *cache.Redis, location string, log zerolog.Logger) *CachedStore {
	h := sha256.Sum256([]byte(location))
	return &CachedStore{
		inner: inner,
		cache: c,
		ns:    fmt.Sprintf("ytarchive:%x", h[:6]),
		log:   log.With().Str("component", "store-cache").Logger(),
	}
}

func (c *CachedStore) key(parts ...string) string {
	k := c.ns
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// readThrough serves key from Redis or loads it from the inner store. A
// Redis failure degrades to the inner store.
func readThrough[T any](ctx context.Context, c *CachedStore, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	v, ok, err := cache.Lookup[T](ctx, c.cache, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	}
	if ok {
		return v, nil
	}
	v, err = load()
	if err != nil {
		return v, err
	}
	if err := cache.Save(ctx, c.cache, key, v, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache save failed")
	}
	return v, nil
}

func (c *CachedStore) GetChannelByID(ctx context.Context, channelID string) (*models.Channel, error) {
	return readThrough(ctx, c, c.key("channel", "id", channelID), ttlChannel, func() (*models.Channel, error) {
		return c.inner.GetChannelByID(ctx, channelID)
	})
}

func (c *CachedStore) GetChannelByUsername(ctx context.Context, username string) (*models.Channel, error) {
	return readThrough(ctx, c, c.key("channel", "name", username), ttlChannel, func() (*models.Channel, error) {
		return c.inner.GetChannelByUsername(ctx, username)
	})
}

func (c *CachedStore) ListChannels(ctx context.Context) ([]models.Channel, error) {
	return readThrough(ctx, c, c.key("channels", "all"), ttlChannels, func() ([]models.Channel, error) {
		return c.inner.ListChannels(ctx)
	})
}

func (c *CachedStore) ChannelHandles(ctx context.Context) (map[string]string, error) {
	return readThrough(ctx, c, c.key("channels", "handles"), ttlChannels, func() (map[string]string, error) {
		return c.inner.ChannelHandles(ctx)
	})
}

func (c *CachedStore) ListPlaylists(ctx context.Context, channelID string) ([]models.Playlist, error) {
	return readThrough(ctx, c, c.key("playlists", channelID), ttlPlaylists, func() ([]models.Playlist, error) {
		return c.inner.ListPlaylists(ctx, channelID)
	})
}

func (c *CachedStore) SaveChannel(ctx context.Context, ch *models.Channel) error {
	if err := c.inner.SaveChannel(ctx, ch); err != nil {
		return err
	}
	c.invalidateChannel(ctx, ch.ID, ch.Username)
	return nil
}

func (c *CachedStore) SaveChannelUsername(ctx context.Context, channelID, username string) error {
	if err := c.inner.SaveChannelUsername(ctx, channelID, username); err != nil {
		return err
	}
	c.invalidateChannel(ctx, channelID, username)
	c.invalidatePattern(ctx, c.key("channel", "name", "*"))
	return nil
}

func (c *CachedStore) SaveUpdatedChannelDetails(ctx context.Context, ch *models.Channel) error {
	if err := c.inner.SaveUpdatedChannelDetails(ctx, ch); err != nil {
		return err
	}
	c.invalidateChannel(ctx, ch.ID, ch.Username)
	c.invalidatePattern(ctx, c.key("channel", "name", "*"))
	return nil
}

func (c *CachedStore) SaveVideo(ctx context.Context, v *models.Video) error {
	if err := c.inner.SaveVideo(ctx, v); err != nil {
		return err
	}
	// Video counts are part of the channel list.
	c.invalidate(ctx, c.key("channels", "all"))
	return nil
}

func (c *CachedStore) SavePlaylist(ctx context.Context, p *models.Playlist) error {
	if err := c.inner.SavePlaylist(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, c.key("playlists", p.ChannelID))
	return nil
}

func (c *CachedStore) DeletePlaylists(ctx context.Context, channelID string) error {
	if err := c.inner.DeletePlaylists(ctx, channelID); err != nil {
		return err
	}
	c.invalidate(ctx, c.key("playlists", channelID))
	return nil
}

func (c *CachedStore) DeleteChannel(ctx context.Context, channelID string) error {
	if err := c.inner.DeleteChannel(ctx, channelID); err != nil {
		return err
	}
	c.invalidate(ctx, c.key("playlists", channelID))
	c.invalidateChannel(ctx, channelID, "")
	c.invalidatePattern(ctx, c.key("channel", "name", "*"))
	return nil
}

func (c *CachedStore) GetVideoByID(ctx context.Context, videoID string) (*models.Video, error) {
	return c.inner.GetVideoByID(ctx, videoID)
}

func (c *CachedStore) ListVideos(ctx context.Context, channelID string, filter VideoFilter) ([]models.Video, error) {
	return c.inner.ListVideos(ctx, channelID, filter)
}

func (c *CachedStore) ListDownloadedVideos(ctx context.Context) ([]models.Video, error) {
	return c.inner.ListDownloadedVideos(ctx)
}

func (c *CachedStore) AllVideoIDs(ctx context.Context) (map[string]struct{}, error) {
	return c.inner.AllVideoIDs(ctx)
}

func (c *CachedStore) CountVideos(ctx context.Context, channelID string) (int, error) {
	return c.inner.CountVideos(ctx, channelID)
}

func (c *CachedStore) SaveVideoPath(ctx context.Context, videoID, path string) error {
	return c.inner.SaveVideoPath(ctx, videoID, path)
}

func (c *CachedStore) SaveDownloadedVideoDetails(ctx context.Context, videoID, path, duration, resolution string) error {
	return c.inner.SaveDownloadedVideoDetails(ctx, videoID, path, duration, resolution)
}

func (c *CachedStore) SaveDownloadError(ctx context.Context, videoID, message string) error {
	return c.inner.SaveDownloadError(ctx, videoID, message)
}

func (c *CachedStore) SavePlaylistItem(ctx context.Context, playlistID string, item *models.PlaylistItem) error {
	return c.inner.SavePlaylistItem(ctx, playlistID, item)
}

func (c *CachedStore) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	return c.inner.ListPlaylistItems(ctx, playlistID)
}

// Close closes the inner store. The Redis client is owned by the caller.
func (c *CachedStore) Close() error {
	return c.inner.Close()
}

func (c *CachedStore) invalidateChannel(ctx context.Context, channelID, username string) {
	keys := []string{
		c.key("channel", "id", channelID),
		c.key("channels", "all"),
		c.key("channels", "handles"),
	}
	if username != "" {
		keys = append(keys, c.key("channel", "name", username))
	}
	c.invalidate(ctx, keys...)
}

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Forget(ctx, c.cache, keys...); err != nil {
		c.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.ForgetMatching(ctx, c.cache, p); err != nil {
			c.log.Warn().Err(err).Str("pattern", p).Msg("cache invalidation failed")
		}
	}
}
