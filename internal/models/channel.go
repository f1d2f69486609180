package models

import "strings"

// Channel is a content owner on the remote platform, keyed by its platform ID.
type Channel struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`

	// Thumbnail images as fetched from the remote side; nil when unavailable.
	ThumbnailSmall  []byte `json:"thumbnail_small,omitempty"`
	ThumbnailMedium []byte `json:"thumbnail_medium,omitempty"`
	ThumbnailLarge  []byte `json:"thumbnail_large,omitempty"`

	// VideoCount is derived from the cache when listing; it is never stored.
	VideoCount int `json:"video_count,omitempty"`
}

// Handle returns the username without a leading "@".
func (c *Channel) Handle() string {
	return strings.TrimPrefix(c.Username, "@")
}
