package models

// Playlist is an ordered, named collection of video references owned by a channel.
// Items is populated by read queries; it is not a column.
type Playlist struct {
	ID        string         `json:"id"`
	ChannelID string         `json:"channel_id"`
	Title     string         `json:"title"`
	Items     []PlaylistItem `json:"items,omitempty"`
}

// PlaylistItem is a playlist membership record. ChannelID is the channel the
// item itself is attributed to, which may differ from the playlist's owner.
// The referenced video is not guaranteed to exist in the videos table.
type PlaylistItem struct {
	ID         string `json:"id"`
	PlaylistID string `json:"playlist_id"`
	VideoID    string `json:"video_id"`
	ChannelID  string `json:"channel_id"`
	Title      string `json:"title"`
	Position   int64  `json:"position"`
	IsUnlisted bool   `json:"is_unlisted"`
	IsPrivate  bool   `json:"is_private"`
	IsExternal bool   `json:"is_external"`
	IsDeleted  bool   `json:"is_deleted"`
}
