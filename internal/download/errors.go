package download

import "fmt"

// DownloadError is a failed attempt for one video. Err carries the
// collaborator's message, which is what gets recorded in the cache.
type DownloadError struct {
	VideoID string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.VideoID, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
