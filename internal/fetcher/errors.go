package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a channel or video resolution returned zero results.
	ErrNotFound = errors.New("not found on remote")
	// ErrMalformedResponse means a response lacked a field every item must carry.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrPaginationLoop means the remote returned a continuation token it had already issued.
	ErrPaginationLoop = errors.New("continuation token repeated")
)

// RemoteAPIError wraps a failed remote call with the operation and its target.
type RemoteAPIError struct {
	Op     string // e.g. "channels.list"
	Target string // channel name, channel ID, playlist ID or video ID
	Err    error
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

func remoteErr(op, target string, err error) error {
	var re *RemoteAPIError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteAPIError{Op: op, Target: target, Err: err}
}

func malformed(op, target, what string) error {
	return &RemoteAPIError{Op: op, Target: target, Err: fmt.Errorf("%w: %s", ErrMalformedResponse, what)}
}
