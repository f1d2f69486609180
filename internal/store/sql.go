package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/models"
)

// Column lists shared by every query that scans a full row, so a schema
// change only has to be reflected here and in the matching scan function.
const (
	channelColumns      = `id, name, title, description, published_at, thumbnail_small, thumbnail_medium, thumbnail_large`
	videoColumns        = `id, channel_id, title, saved_path, is_unlisted, is_private, download_error, duration, resolution`
	playlistColumns     = `id, channel_id, title`
	playlistItemColumns = `id, playlist_id, video_id, channel_id, title, position, is_unlisted, is_private, is_external, is_deleted`
)

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
// Queries are written with "?" placeholders and rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	log     zerolog.Logger
}

var _ Store = (*SQLStore)(nil)

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites "?" placeholders into "$n" for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

// update runs a targeted UPDATE and maps "no row matched" to ErrNotCached.
func (s *SQLStore) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotCached)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(r rowScanner) (*models.Channel, error) {
	var ch models.Channel
	err := r.Scan(&ch.ID, &ch.Username, &ch.Title, &ch.Description, &ch.PublishedAt,
		&ch.ThumbnailSmall, &ch.ThumbnailMedium, &ch.ThumbnailLarge)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func scanVideo(r rowScanner) (*models.Video, error) {
	var v models.Video
	var savedPath, downloadErr, duration, resolution sql.NullString
	err := r.Scan(&v.ID, &v.ChannelID, &v.Title, &savedPath, &v.IsUnlisted, &v.IsPrivate,
		&downloadErr, &duration, &resolution)
	if err != nil {
		return nil, err
	}
	v.SavedPath = savedPath.String
	v.DownloadError = downloadErr.String
	v.Duration = duration.String
	v.Resolution = resolution.String
	return &v, nil
}

func scanPlaylistItem(r rowScanner) (*models.PlaylistItem, error) {
	var it models.PlaylistItem
	err := r.Scan(&it.ID, &it.PlaylistID, &it.VideoID, &it.ChannelID, &it.Title, &it.Position,
		&it.IsUnlisted, &it.IsPrivate, &it.IsExternal, &it.IsDeleted)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// nullString stores the empty string as NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullBytes stores an empty image as NULL.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// --- channels ---

// SaveChannel inserts the channel unless its ID is already cached.
func (s *SQLStore) SaveChannel(ctx context.Context, ch *models.Channel) error {
	if ch == nil || ch.ID == "" {
		return fmt.Errorf("SaveChannel: %w: empty channel id", ErrInvalidInput)
	}
	_, err := s.exec(ctx,
		`INSERT INTO channels (`+channelColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		ch.ID, ch.Username, ch.Title, ch.Description, ch.PublishedAt,
		nullBytes(ch.ThumbnailSmall), nullBytes(ch.ThumbnailMedium), nullBytes(ch.ThumbnailLarge),
	)
	if err != nil {
		return fmt.Errorf("SaveChannel: %w", err)
	}
	return nil
}

// SaveChannelUsername sets the handle of a cached channel.
func (s *SQLStore) SaveChannelUsername(ctx context.Context, channelID, username string) error {
	if channelID == "" || username == "" {
		return fmt.Errorf("SaveChannelUsername: %w: empty channel id or username", ErrInvalidInput)
	}
	return s.update(ctx, "SaveChannelUsername", `UPDATE channels SET name = ? WHERE id = ?`, username, channelID)
}

// SaveUpdatedChannelDetails overwrites the descriptive fields of a cached channel.
// The username is left alone: it is the local lookup key.
func (s *SQLStore) SaveUpdatedChannelDetails(ctx context.Context, ch *models.Channel) error {
	if ch == nil || ch.ID == "" {
		return fmt.Errorf("SaveUpdatedChannelDetails: %w: empty channel id", ErrInvalidInput)
	}
	return s.update(ctx, "SaveUpdatedChannelDetails",
		`UPDATE channels SET title = ?, description = ?, published_at = ?,
		   thumbnail_small = ?, thumbnail_medium = ?, thumbnail_large = ?
		 WHERE id = ?`,
		ch.Title, ch.Description, ch.PublishedAt,
		nullBytes(ch.ThumbnailSmall), nullBytes(ch.ThumbnailMedium), nullBytes(ch.ThumbnailLarge),
		ch.ID,
	)
}

// GetChannelByID returns a cached channel or ErrNotCached.
func (s *SQLStore) GetChannelByID(ctx context.Context, channelID string) (*models.Channel, error) {
	ch, err := scanChannel(s.queryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannelByID: %w", err)
	}
	return ch, nil
}

// GetChannelByUsername returns a cached channel by handle or ErrNotCached.
func (s *SQLStore) GetChannelByUsername(ctx context.Context, username string) (*models.Channel, error) {
	ch, err := scanChannel(s.queryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE name = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", username, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannelByUsername: %w", err)
	}
	return ch, nil
}

// ListChannels returns every cached channel ordered by username, with video counts.
func (s *SQLStore) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := s.query(ctx,
		`SELECT `+channelColumns+`, (SELECT COUNT(*) FROM videos v WHERE v.channel_id = channels.id)
		 FROM channels ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Username, &ch.Title, &ch.Description, &ch.PublishedAt,
			&ch.ThumbnailSmall, &ch.ThumbnailMedium, &ch.ThumbnailLarge, &ch.VideoCount); err != nil {
			return nil, fmt.Errorf("ListChannels: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// ChannelHandles returns a snapshot map of channel ID to username.
func (s *SQLStore) ChannelHandles(ctx context.Context) (map[string]string, error) {
	rows, err := s.query(ctx, `SELECT id, name FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("ChannelHandles: %w", err)
	}
	defer rows.Close()

	handles := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("ChannelHandles: %w", err)
		}
		handles[id] = name
	}
	return handles, rows.Err()
}

// --- videos ---

// SaveVideo inserts the video unless its ID is already cached.
func (s *SQLStore) SaveVideo(ctx context.Context, v *models.Video) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("SaveVideo: %w: empty video id", ErrInvalidInput)
	}
	_, err := s.exec(ctx,
		`INSERT INTO videos (`+videoColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		v.ID, v.ChannelID, v.Title, nullString(v.SavedPath), v.IsUnlisted, v.IsPrivate,
		nullString(v.DownloadError), nullString(v.Duration), nullString(v.Resolution),
	)
	if err != nil {
		return fmt.Errorf("SaveVideo: %w", err)
	}
	return nil
}

// GetVideoByID returns a cached video or ErrNotCached.
func (s *SQLStore) GetVideoByID(ctx context.Context, videoID string) (*models.Video, error) {
	v, err := scanVideo(s.queryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, videoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("GetVideoByID: %w", err)
	}
	return v, nil
}

// ListVideos returns the channel's videos ordered by ID. An empty result
// means ErrNotCached only when the channel has no cached videos at all; a
// filter that matches nothing yields an empty slice.
func (s *SQLStore) ListVideos(ctx context.Context, channelID string, filter VideoFilter) ([]models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE channel_id = ?`
	if filter.NotDownloaded {
		q += ` AND (saved_path IS NULL OR saved_path = '')`
	}
	q += ` ORDER BY id`

	videos, err := s.listVideos(ctx, "ListVideos", q, channelID)
	if err != nil {
		return nil, err
	}
	if len(videos) > 0 {
		return videos, nil
	}
	if filter.NotDownloaded {
		n, err := s.CountVideos(ctx, channelID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return videos, nil
		}
	}
	return nil, fmt.Errorf("videos for channel %s: %w", channelID, ErrNotCached)
}

// ListDownloadedVideos returns every video with a recorded saved path.
func (s *SQLStore) ListDownloadedVideos(ctx context.Context) ([]models.Video, error) {
	return s.listVideos(ctx, "ListDownloadedVideos",
		`SELECT `+videoColumns+` FROM videos WHERE saved_path IS NOT NULL AND saved_path <> '' ORDER BY channel_id, id`)
}

func (s *SQLStore) listVideos(ctx context.Context, op, query string, args ...any) ([]models.Video, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return videos, nil
}

// AllVideoIDs returns the set of every cached video ID.
func (s *SQLStore) AllVideoIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.query(ctx, `SELECT id FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("AllVideoIDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("AllVideoIDs: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// CountVideos returns how many videos are cached for the channel.
func (s *SQLStore) CountVideos(ctx context.Context, channelID string) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM videos WHERE channel_id = ?`, channelID).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountVideos: %w", err)
	}
	return n, nil
}

// SaveVideoPath sets the saved path only.
func (s *SQLStore) SaveVideoPath(ctx context.Context, videoID, path string) error {
	return s.update(ctx, "SaveVideoPath",
		`UPDATE videos SET saved_path = ? WHERE id = ?`, nullString(path), videoID)
}

// SaveDownloadedVideoDetails records a successful download in one statement
// and clears any earlier download error.
func (s *SQLStore) SaveDownloadedVideoDetails(ctx context.Context, videoID, path, duration, resolution string) error {
	return s.update(ctx, "SaveDownloadedVideoDetails",
		`UPDATE videos SET saved_path = ?, duration = ?, resolution = ?, download_error = NULL WHERE id = ?`,
		nullString(path), nullString(duration), nullString(resolution), videoID)
}

// SaveDownloadError records the last download failure message.
func (s *SQLStore) SaveDownloadError(ctx context.Context, videoID, message string) error {
	return s.update(ctx, "SaveDownloadError",
		`UPDATE videos SET download_error = ? WHERE id = ?`, nullString(message), videoID)
}

// --- playlists ---

// SavePlaylist inserts the playlist unless its ID is already cached.
func (s *SQLStore) SavePlaylist(ctx context.Context, p *models.Playlist) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("SavePlaylist: %w: empty playlist id", ErrInvalidInput)
	}
	_, err := s.exec(ctx,
		`INSERT INTO playlists (`+playlistColumns+`) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		p.ID, p.ChannelID, p.Title)
	if err != nil {
		return fmt.Errorf("SavePlaylist: %w", err)
	}
	return nil
}

// SavePlaylistItem inserts the item under playlistID unless its ID is already cached.
func (s *SQLStore) SavePlaylistItem(ctx context.Context, playlistID string, item *models.PlaylistItem) error {
	if item == nil || item.ID == "" || playlistID == "" {
		return fmt.Errorf("SavePlaylistItem: %w: empty item or playlist id", ErrInvalidInput)
	}
	item.PlaylistID = playlistID
	_, err := s.exec(ctx,
		`INSERT INTO playlist_items (`+playlistItemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		item.ID, playlistID, item.VideoID, item.ChannelID, item.Title, item.Position,
		item.IsUnlisted, item.IsPrivate, item.IsExternal, item.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("SavePlaylistItem: %w", err)
	}
	return nil
}

// ListPlaylists returns the channel's playlists ordered by title; ErrNotCached when none.
func (s *SQLStore) ListPlaylists(ctx context.Context, channelID string) ([]models.Playlist, error) {
	rows, err := s.query(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE channel_id = ? ORDER BY title, id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("ListPlaylists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.ChannelID, &p.Title); err != nil {
			return nil, fmt.Errorf("ListPlaylists: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPlaylists: %w", err)
	}
	if len(playlists) == 0 {
		return nil, fmt.Errorf("playlists for channel %s: %w", channelID, ErrNotCached)
	}
	return playlists, nil
}

// ListPlaylistItems returns the playlist's items in ascending position.
func (s *SQLStore) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	rows, err := s.query(ctx,
		`SELECT `+playlistItemColumns+` FROM playlist_items WHERE playlist_id = ? ORDER BY position, id`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("ListPlaylistItems: %w", err)
	}
	defer rows.Close()

	var items []models.PlaylistItem
	for rows.Next() {
		it, err := scanPlaylistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPlaylistItems: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// DeletePlaylists removes the channel's playlists and their items in one transaction.
func (s *SQLStore) DeletePlaylists(ctx context.Context, channelID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deletePlaylistsTx(ctx, tx, channelID)
	})
}

func (s *SQLStore) deletePlaylistsTx(ctx context.Context, tx *sql.Tx, channelID string) error {
	_, err := tx.ExecContext(ctx, s.rebind(
		`DELETE FROM playlist_items WHERE playlist_id IN (SELECT id FROM playlists WHERE channel_id = ?)`),
		channelID)
	if err != nil {
		return fmt.Errorf("delete playlist_items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM playlists WHERE channel_id = ?`), channelID); err != nil {
		return fmt.Errorf("delete playlists: %w", err)
	}
	return nil
}

// DeleteChannel removes playlist items, playlists, videos and the channel, in
// that order, in one transaction. Nothing is removed when any step fails or
// the channel is not cached.
func (s *SQLStore) DeleteChannel(ctx context.Context, channelID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.deletePlaylistsTx(ctx, tx, channelID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM videos WHERE channel_id = ?`), channelID); err != nil {
			return fmt.Errorf("delete videos: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM channels WHERE id = ?`), channelID)
		if err != nil {
			return fmt.Errorf("delete channel: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete channel: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("channel %s: %w", channelID, ErrNotCached)
		}
		return nil
	})
}
