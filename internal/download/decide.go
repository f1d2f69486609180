package download

import "github.com/voyagen/ytarchive/internal/models"

// Decision is the outcome of the pre-download checks for one video.
type Decision int

const (
	Attempt Decision = iota
	SkipDownloaded
	SkipPrivate
	SkipListed
)

func (d Decision) String() string {
	switch d {
	case Attempt:
		return "attempt"
	case SkipDownloaded:
		return "already downloaded"
	case SkipPrivate:
		return "private"
	case SkipListed:
		return "on skip list"
	}
	return "unknown"
}

// Decide applies the checks in order, first match wins: a saved path that
// still exists on disk, the private flag, the caller's skip set. A saved
// path whose file is gone does not count as downloaded.
func Decide(v models.Video, skip map[string]struct{}, exists func(string) bool) Decision {
	if v.SavedPath != "" && exists(v.SavedPath) {
		return SkipDownloaded
	}
	if v.IsPrivate {
		return SkipPrivate
	}
	if _, ok := skip[v.ID]; ok {
		return SkipListed
	}
	return Attempt
}

// SkipSet builds a lookup set from video IDs.
func SkipSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
