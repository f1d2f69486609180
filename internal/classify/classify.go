// Package classify derives playlist-item status flags and adopts playlist
// items into the video table.
package classify

import (
	"github.com/voyagen/ytarchive/internal/fetcher"
	"github.com/voyagen/ytarchive/internal/models"
)

// KnownVideos is the set of video IDs already in the cache.
type KnownVideos map[string]struct{}

func (k KnownVideos) has(id string) bool {
	_, ok := k[id]
	return ok
}

// sentinel reports whether title is one of the placeholders the remote uses
// for content it will not describe.
func sentinel(title string) bool {
	return title == models.PrivateVideoTitle || title == models.DeletedVideoTitle
}

// OwnerKnown reports whether the item carries real ownership data, which is
// the condition for saving its owning channel. Private and deleted entries
// never do.
func OwnerKnown(raw fetcher.RawPlaylistItem) bool {
	return !sentinel(raw.Title) && raw.OwnerChannelID != ""
}

// Classify builds the cached playlist item for raw. Flags, in precedence order:
//
//	external: attributed channel differs from the playlist's owner
//	unlisted: not external and the video ID is not in known
//	private:  title is the private placeholder
//	deleted:  title is the deleted placeholder
//
// An item without owner data is attributed to the playlist's own channel,
// so it can never be external.
func Classify(raw fetcher.RawPlaylistItem, playlistChannelID string, known KnownVideos) models.PlaylistItem {
	channelID := raw.OwnerChannelID
	if channelID == "" {
		channelID = playlistChannelID
	}
	external := channelID != playlistChannelID
	return models.PlaylistItem{
		ID:         raw.ID,
		PlaylistID: raw.PlaylistID,
		VideoID:    raw.VideoID,
		ChannelID:  channelID,
		Title:      raw.Title,
		Position:   raw.Position,
		IsExternal: external,
		IsUnlisted: !external && !known.has(raw.VideoID),
		IsPrivate:  raw.Title == models.PrivateVideoTitle,
		IsDeleted:  raw.Title == models.DeletedVideoTitle,
	}
}

// Promote builds a video record from a playlist item.
func Promote(item models.PlaylistItem) models.Video {
	return models.Video{
		ID:         item.VideoID,
		ChannelID:  item.ChannelID,
		Title:      item.Title,
		IsUnlisted: item.IsUnlisted,
		IsPrivate:  item.IsPrivate,
	}
}

// PromoteEligible reports whether item should be adopted into the video
// table. Unlisted items qualify when addUnlisted is set and the item is
// neither private nor deleted; external items qualify when addExternal is set.
func PromoteEligible(item models.PlaylistItem, addUnlisted, addExternal bool) bool {
	if addUnlisted && item.IsUnlisted && !item.IsPrivate && !item.IsDeleted {
		return true
	}
	return addExternal && item.IsExternal
}
