package fetcher

// Page is one page of a paginated remote collection.
type Page[T any] struct {
	Items         []T
	NextPageToken string
}

// RawPlaylistItem is a playlist entry as the remote returns it, before
// classification. Owner fields are empty for private and deleted entries.
type RawPlaylistItem struct {
	ID                string
	PlaylistID        string
	VideoID           string
	Title             string
	Position          int64
	OwnerChannelID    string
	OwnerChannelTitle string
}
