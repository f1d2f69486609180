package models

// Titles the remote API substitutes for items whose content is unavailable.
// Such items carry no owner data.
const (
	PrivateVideoTitle = "Private video"
	DeletedVideoTitle = "Deleted video"
)

// ThumbnailSize identifies one of the three channel thumbnail resolutions.
type ThumbnailSize int16

const (
	ThumbnailSmall ThumbnailSize = iota
	ThumbnailMedium
	ThumbnailLarge
)

func (s ThumbnailSize) String() string {
	switch s {
	case ThumbnailSmall:
		return "small"
	case ThumbnailMedium:
		return "medium"
	case ThumbnailLarge:
		return "large"
	}
	return "unknown"
}
