// Package youtube adapts the YouTube Data API v3 service to the page-at-a-time
// surface the fetcher drives.
package youtube

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// maxResults is the largest page size the list endpoints accept.
const maxResults = 50

// DefaultRPS keeps bursts of list calls well under the API's per-user limit.
const DefaultRPS = 5

// Client implements fetcher.API on top of *youtube.Service. Calls block one
// at a time; the limiter spaces them out.
type Client struct {
	svc     *yt.Service
	limiter *rate.Limiter
}

// New creates a client authenticated with an API key.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{svc: svc, limiter: rate.NewLimiter(rate.Limit(DefaultRPS), 1)}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// ChannelsByUsername lists channels whose legacy username matches.
func (c *Client) ChannelsByUsername(ctx context.Context, username string) (*yt.ChannelListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Channels.List([]string{"snippet"}).ForUsername(username).Context(ctx).Do()
	return resp, describe(err)
}

// ChannelsByID lists channels by ID.
func (c *Client) ChannelsByID(ctx context.Context, ids ...string) (*yt.ChannelListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Channels.List([]string{"snippet"}).Id(ids...).Context(ctx).Do()
	return resp, describe(err)
}

// SearchChannels returns the best channel match for free text.
func (c *Client) SearchChannels(ctx context.Context, query string) (*yt.SearchListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	return resp, describe(err)
}

// SearchVideos returns one page of the channel's videos.
func (c *Client) SearchVideos(ctx context.Context, channelID, pageToken string) (*yt.SearchListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	call := c.svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		Type("video").
		MaxResults(maxResults).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	return resp, describe(err)
}

// Videos looks up to fifty videos by ID.
func (c *Client) Videos(ctx context.Context, ids ...string) (*yt.VideoListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Videos.List([]string{"snippet"}).Id(ids...).MaxResults(maxResults).Context(ctx).Do()
	return resp, describe(err)
}

// Playlists returns one page of the channel's playlists.
func (c *Client) Playlists(ctx context.Context, channelID, pageToken string) (*yt.PlaylistListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	call := c.svc.Playlists.List([]string{"id", "snippet"}).
		ChannelId(channelID).
		MaxResults(maxResults).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	return resp, describe(err)
}

// PlaylistItems returns one page of a playlist's entries.
func (c *Client) PlaylistItems(ctx context.Context, playlistID, pageToken string) (*yt.PlaylistItemListResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	call := c.svc.PlaylistItems.List([]string{"id", "snippet"}).
		PlaylistId(playlistID).
		MaxResults(maxResults).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	return resp, describe(err)
}

// describe folds the API's status code and reason into the error text.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := gerr.Message
		if len(gerr.Errors) > 0 && gerr.Errors[0].Reason != "" {
			reason = gerr.Errors[0].Reason + ": " + reason
		}
		return fmt.Errorf("youtube api %d %s: %w", gerr.Code, reason, err)
	}
	return err
}

// IsQuotaExceeded reports whether err is the API's daily quota rejection.
func IsQuotaExceeded(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, e := range gerr.Errors {
		if e.Reason == "quotaExceeded" {
			return true
		}
	}
	return false
}
