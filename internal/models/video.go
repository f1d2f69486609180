package models

// Video is a single piece of media, keyed by its platform video ID.
//
// SavedPath is empty until a download succeeds. A non-empty SavedPath is only
// a claim: the file may have been removed since, so callers that care whether
// the video is on disk must stat the path themselves.
type Video struct {
	ID            string `json:"id"`
	ChannelID     string `json:"channel_id"`
	Title         string `json:"title"`
	SavedPath     string `json:"saved_path,omitempty"`
	IsUnlisted    bool   `json:"is_unlisted"`
	IsPrivate     bool   `json:"is_private"`
	DownloadError string `json:"download_error,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
}

// URL returns the watch page URL handed to the download tool.
func (v *Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}
