package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/voyagen/ytarchive/internal/models"
	"github.com/voyagen/ytarchive/internal/service"
)

// env is what every command runs against.
type env struct {
	archiver *service.Archiver
	in       io.Reader
	out      io.Writer
}

type command struct {
	group   string
	name    string
	summary string
	mutates bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"channels", "get", "fetch channels from the remote side and cache them", true, channelsGet},
	{"channels", "ls", "list cached channels", false, channelsLs},
	{"channels", "info", "show one cached channel (-username or -id)", false, channelsInfo},
	{"channels", "sync", "fetch videos and playlists, then download, per channel", true, channelsSync},
	{"channels", "update", "refresh details of the named or all cached channels", true, channelsUpdate},
	{"channels", "delete", "delete a channel and everything cached for it", true, channelsDelete},
	{"videos", "get", "cache a channel's video listing", true, videosGet},
	{"videos", "ls", "list a channel's cached videos", false, videosLs},
	{"videos", "download", "download by -channel, -id or -path", true, videosDownload},
	{"playlists", "get", "cache a channel's playlists and their items", true, playlistsGet},
	{"playlists", "ls", "list cached playlists, optionally adopting items as videos", true, playlistsLs},
	{"playlists", "delete", "delete a channel's cached playlists", true, playlistsDelete},
	{"playlists", "download", "download the videos in a channel's playlists", true, playlistsDownload},
	{"admin", "build-thumbnails", "letterbox every downloaded thumbnail of a channel", false, adminBuildThumbnails},
	{"admin", "update-video-info", "re-read duration and resolution of saved files", true, adminUpdateVideoInfo},
	{"admin", "update-root-path", "move saved paths under the configured root", true, adminUpdateRootPath},
}

func lookup(group, name string) (command, bool) {
	for _, c := range commands {
		if c.group == group && c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// newFlags returns a flag set that reports errors instead of exiting.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// oneArg parses fs and requires exactly one positional argument.
func oneArg(fs *flag.FlagSet, args []string, what string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one %s", fs.Name(), what)
	}
	return fs.Arg(0), nil
}

// splitIDs turns a comma-separated list into IDs, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

//
// channels
//

func channelsGet(ctx context.Context, e *env, args []string) error {
	fs := newFlags("channels get")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("channels get: at least one channel name is required")
	}
	for _, name := range fs.Args() {
		ch, err := e.archiver.GetChannel(ctx, name)
		if err != nil {
			return err
		}
		printChannel(e.out, ch)
	}
	return nil
}

func channelsLs(ctx context.Context, e *env, args []string) error {
	if err := newFlags("channels ls").Parse(args); err != nil {
		return err
	}
	channels, err := e.archiver.Channels(ctx)
	if err != nil {
		return err
	}
	for i := range channels {
		fmt.Fprintf(e.out, "%s: %s -- %s (%d videos)\n",
			channels[i].ID, channels[i].Username, channels[i].Title, channels[i].VideoCount)
	}
	return nil
}

func channelsInfo(ctx context.Context, e *env, args []string) error {
	fs := newFlags("channels info")
	username := fs.String("username", "", "channel username")
	id := fs.String("id", "", "channel ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ch, err := e.archiver.Channel(ctx, *username, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "ID: %s\nUsername: %s\nTitle: %s\n", ch.ID, ch.Username, ch.Title)
	if ch.PublishedAt != "" {
		fmt.Fprintf(e.out, "Created: %s\n", ch.PublishedAt)
	}
	return nil
}

func channelsSync(ctx context.Context, e *env, args []string) error {
	fs := newFlags("channels sync")
	refresh := fs.Bool("refresh", false, "re-walk remote video listings even when videos are cached")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("channels sync: at least one channel name is required")
	}
	_, err := e.archiver.SyncChannels(ctx, fs.Args(), service.SyncOptions{Refresh: *refresh})
	return err
}

func channelsUpdate(ctx context.Context, e *env, args []string) error {
	fs := newFlags("channels update")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := e.archiver.UpdateChannels(ctx, fs.Args())
	fmt.Fprintf(e.out, "Updated %d channels\n", n)
	return err
}

func channelsDelete(ctx context.Context, e *env, args []string) error {
	name, err := oneArg(newFlags("channels delete"), args, "channel name")
	if err != nil {
		return err
	}
	deleted, err := e.archiver.DeleteChannel(ctx, name, promptConfirm(e.in, e.out))
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(e.out, "Channel %s deleted\n", name)
	} else {
		fmt.Fprintln(e.out, "Channel deletion cancelled")
	}
	return nil
}

// promptConfirm asks on out and reads a y/n answer from in.
func promptConfirm(in io.Reader, out io.Writer) service.Confirmer {
	r := bufio.NewReader(in)
	return func(ch *models.Channel, videoCount int) (bool, error) {
		fmt.Fprintf(out, "Channel %s has ID %s\n", ch.Username, ch.ID)
		fmt.Fprintf(out, "This channel has %d videos in the cache\n", videoCount)
		fmt.Fprint(out, "Are you sure you want to delete? (y/n): ")
		answer, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
	}
}

func printChannel(w io.Writer, ch *models.Channel) {
	fmt.Fprintf(w, "%s: %s -- %s\n", ch.ID, ch.Username, ch.Title)
}

//
// videos
//

func videosGet(ctx context.Context, e *env, args []string) error {
	fs := newFlags("videos get")
	refresh := fs.Bool("refresh", false, "re-walk the remote listing even when videos are cached")
	name, err := oneArg(fs, args, "channel name")
	if err != nil {
		return err
	}
	ch, err := e.archiver.ResolveChannel(ctx, name)
	if err != nil {
		return err
	}
	videos, err := e.archiver.ChannelVideos(ctx, ch, *refresh)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s has %d videos\n", name, len(videos))
	return nil
}

func videosLs(ctx context.Context, e *env, args []string) error {
	fs := newFlags("videos ls")
	notDownloaded := fs.Bool("not-downloaded", false, "only videos without a saved file")
	name, err := oneArg(fs, args, "channel name")
	if err != nil {
		return err
	}
	videos, err := e.archiver.Videos(ctx, name, *notDownloaded)
	if err != nil {
		return err
	}
	for i := range videos {
		printVideo(e.out, &videos[i])
	}
	return nil
}

func videosDownload(ctx context.Context, e *env, args []string) error {
	fs := newFlags("videos download")
	channel := fs.String("channel", "", "download every cached video of this channel")
	skip := fs.String("skip", "", "comma-separated video IDs to leave out (with -channel)")
	id := fs.String("id", "", "download a single video")
	unlisted := fs.Bool("mark-unlisted", false, "flag a video fetched with -id as unlisted")
	path := fs.String("path", "", "download every watch URL listed in this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *channel != "":
		_, err := e.archiver.DownloadChannel(ctx, *channel, splitIDs(*skip))
		return err
	case *id != "":
		res, err := e.archiver.DownloadVideo(ctx, *id, *unlisted)
		for i := range res.Downloaded {
			fmt.Fprintf(e.out, "Saved %s to %s\n", res.Downloaded[i].ID, res.Downloaded[i].SavedPath)
		}
		return err
	case *path != "":
		f, err := os.Open(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = e.archiver.DownloadFromList(ctx, f)
		return err
	}
	return errors.New("videos download: one of -channel, -id or -path is required")
}

func printVideo(w io.Writer, v *models.Video) {
	var tags []string
	if v.IsUnlisted {
		tags = append(tags, "UNLISTED")
	}
	if v.IsPrivate {
		tags = append(tags, "PRIVATE")
	}
	if v.SavedPath != "" {
		tags = append(tags, "DOWNLOADED")
	}
	line := v.ID + ": " + v.Title
	for _, t := range tags {
		line += " [" + t + "]"
	}
	if v.Duration != "" {
		line += " " + v.Duration + " " + v.Resolution
	}
	fmt.Fprintln(w, line)
}

//
// playlists
//

func playlistsGet(ctx context.Context, e *env, args []string) error {
	name, err := oneArg(newFlags("playlists get"), args, "channel name")
	if err != nil {
		return err
	}
	ch, err := e.archiver.ResolveChannel(ctx, name)
	if err != nil {
		return err
	}
	playlists, err := e.archiver.ChannelPlaylists(ctx, ch)
	if err != nil {
		return err
	}
	for i := range playlists {
		fmt.Fprintf(e.out, "%s (%d items)\n", playlists[i].Title, len(playlists[i].Items))
	}
	return nil
}

func playlistsLs(ctx context.Context, e *env, args []string) error {
	fs := newFlags("playlists ls")
	addUnlisted := fs.Bool("add-unlisted", false, "save unlisted items as videos")
	addExternal := fs.Bool("add-external", false, "save external items as videos")
	name, err := oneArg(fs, args, "channel name")
	if err != nil {
		return err
	}
	playlists, n, err := e.archiver.PromotePlaylistItems(ctx, name, *addUnlisted, *addExternal)
	for i := range playlists {
		printPlaylist(e.out, &playlists[i])
	}
	if *addUnlisted || *addExternal {
		fmt.Fprintf(e.out, "Added %d playlist items to the video list\n", n)
	}
	return err
}

func printPlaylist(w io.Writer, p *models.Playlist) {
	header := fmt.Sprintf("%s (%d items)", p.Title, len(p.Items))
	bar := strings.Repeat("=", len(header))
	fmt.Fprintf(w, "%s\n%s\n%s\n", bar, header, bar)
	for _, it := range p.Items {
		switch {
		case it.IsPrivate, it.IsDeleted:
			fmt.Fprintln(w, it.Title)
		case it.IsUnlisted:
			fmt.Fprintf(w, "%s [UNLISTED]\n", it.Title)
		case it.IsExternal:
			fmt.Fprintf(w, "%s [EXTERNAL]\n", it.Title)
		default:
			fmt.Fprintln(w, it.Title)
		}
	}
}

func playlistsDelete(ctx context.Context, e *env, args []string) error {
	name, err := oneArg(newFlags("playlists delete"), args, "channel name")
	if err != nil {
		return err
	}
	if err := e.archiver.DeletePlaylists(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Deleted playlists for %s\n", name)
	return nil
}

func playlistsDownload(ctx context.Context, e *env, args []string) error {
	fs := newFlags("playlists download")
	title := fs.String("title", "", "only the playlist with this title")
	name, err := oneArg(fs, args, "channel name")
	if err != nil {
		return err
	}
	_, err = e.archiver.DownloadPlaylists(ctx, name, *title)
	return err
}

//
// admin
//

func adminBuildThumbnails(ctx context.Context, e *env, args []string) error {
	name, err := oneArg(newFlags("admin build-thumbnails"), args, "channel name")
	if err != nil {
		return err
	}
	n, err := e.archiver.BuildThumbnails(ctx, name)
	fmt.Fprintf(e.out, "Built %d thumbnails\n", n)
	return err
}

func adminUpdateVideoInfo(ctx context.Context, e *env, args []string) error {
	name, err := oneArg(newFlags("admin update-video-info"), args, "channel name")
	if err != nil {
		return err
	}
	n, err := e.archiver.UpdateVideoInfo(ctx, name)
	fmt.Fprintf(e.out, "Updated media info for %d videos\n", n)
	return err
}

func adminUpdateRootPath(ctx context.Context, e *env, args []string) error {
	if err := newFlags("admin update-root-path").Parse(args); err != nil {
		return err
	}
	n, err := e.archiver.UpdateRootPath(ctx)
	fmt.Fprintf(e.out, "Rebased %d saved paths\n", n)
	return err
}
