package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/config"
	"github.com/voyagen/ytarchive/internal/download"
	"github.com/voyagen/ytarchive/internal/fetcher"
	"github.com/voyagen/ytarchive/internal/models"
	"github.com/voyagen/ytarchive/internal/store"
)

// fakeRemote serves canned data and counts calls. Channels in fail return
// an error from ResolveChannel.
type fakeRemote struct {
	channels     map[string]*models.Channel
	videos       map[string][]models.Video
	playlists    map[string][]models.Playlist
	items        map[string][]fetcher.RawPlaylistItem
	single       map[string]*models.Video
	fail         map[string]error
	playlistsErr error
	calls        int
}

func (f *fakeRemote) ResolveChannel(_ context.Context, username string) (*models.Channel, error) {
	f.calls++
	if err := f.fail[username]; err != nil {
		return nil, err
	}
	ch, ok := f.channels[username]
	if !ok {
		return nil, &fetcher.RemoteAPIError{Op: "channels.list", Target: username, Err: fetcher.ErrNotFound}
	}
	c := *ch
	return &c, nil
}

func (f *fakeRemote) ChannelByID(_ context.Context, id string) (*models.Channel, error) {
	f.calls++
	for _, ch := range f.channels {
		if ch.ID == id {
			c := *ch
			return &c, nil
		}
	}
	return nil, &fetcher.RemoteAPIError{Op: "channels.list", Target: id, Err: fetcher.ErrNotFound}
}

func (f *fakeRemote) ChannelVideos(_ context.Context, channelID string, each func(models.Video) error) error {
	f.calls++
	for _, v := range f.videos[channelID] {
		if err := each(v); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRemote) Playlists(_ context.Context, channelID string, each func(models.Playlist) error) error {
	f.calls++
	if f.playlistsErr != nil {
		return f.playlistsErr
	}
	for _, p := range f.playlists[channelID] {
		if err := each(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRemote) PlaylistItems(_ context.Context, playlistID string) ([]fetcher.RawPlaylistItem, error) {
	f.calls++
	return f.items[playlistID], nil
}

func (f *fakeRemote) Video(_ context.Context, videoID string) (*models.Video, *models.Channel, error) {
	f.calls++
	v, ok := f.single[videoID]
	if !ok {
		return nil, nil, &fetcher.RemoteAPIError{Op: "videos.list", Target: videoID, Err: fetcher.ErrNotFound}
	}
	for _, ch := range f.channels {
		if ch.ID == v.ChannelID {
			vc, cc := *v, *ch
			return &vc, &cc, nil
		}
	}
	return nil, nil, errors.New("fake: video owner not configured")
}

// fakeDownloads marks every video downloaded unless listed in fail.
type fakeDownloads struct {
	fail    map[string]string
	batches [][]models.Video
	handles []map[string]string
}

func (d *fakeDownloads) Run(_ context.Context, videos []models.Video, skip []string, handles map[string]string) download.Result {
	d.batches = append(d.batches, videos)
	d.handles = append(d.handles, handles)
	skipSet := download.SkipSet(skip)
	var res download.Result
	for _, v := range videos {
		if _, ok := skipSet[v.ID]; ok {
			continue
		}
		if msg, ok := d.fail[v.ID]; ok {
			v.DownloadError = msg
			res.Failed = append(res.Failed, v)
			continue
		}
		v.SavedPath = "/archive/" + handles[v.ChannelID] + "/video/" + v.ID + ".mp4"
		res.Downloaded = append(res.Downloaded, v)
	}
	return res
}

type nopProbe struct{}

func (nopProbe) Inspect(context.Context, string) (string, string, error) {
	return "1m0s", "640x360", nil
}

type testEnv struct {
	a      *Archiver
	store  *store.SQLStore
	remote *fakeRemote
	dl     *fakeDownloads
	out    *bytes.Buffer
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "videos.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{RootPath: filepath.Join(dir, "archive"), ReportDir: filepath.Join(dir, "reports")}
	remote := &fakeRemote{
		channels:  map[string]*models.Channel{},
		videos:    map[string][]models.Video{},
		playlists: map[string][]models.Playlist{},
		items:     map[string][]fetcher.RawPlaylistItem{},
		single:    map[string]*models.Video{},
		fail:      map[string]error{},
	}
	dl := &fakeDownloads{fail: map[string]string{}}
	out := &bytes.Buffer{}
	a := New(s, remote, dl, nopProbe{}, cfg, out, zerolog.Nop())
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }
	return &testEnv{a: a, store: s, remote: remote, dl: dl, out: out, cfg: cfg}
}

func (e *testEnv) addRemoteChannel(name, id string, videos ...string) {
	e.remote.channels[name] = &models.Channel{ID: id, Username: name, Title: strings.ToUpper(name)}
	for _, v := range videos {
		e.remote.videos[id] = append(e.remote.videos[id], models.Video{ID: v, ChannelID: id, Title: "title " + v})
	}
}

func TestChannelVideos_CacheFirst(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ch := &models.Channel{ID: "UC1", Username: "alpha"}
	if err := e.store.SaveChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if err := e.store.SaveVideo(ctx, &models.Video{ID: "v1", ChannelID: "UC1", Title: "cached"}); err != nil {
		t.Fatal(err)
	}

	got, err := e.a.ResolveChannel(ctx, "alpha")
	if err != nil {
		t.Fatalf("ResolveChannel() error = %v", err)
	}
	videos, err := e.a.ChannelVideos(ctx, got, false)
	if err != nil {
		t.Fatalf("ChannelVideos() error = %v", err)
	}
	if e.remote.calls != 0 {
		t.Errorf("remote calls = %d, want 0", e.remote.calls)
	}
	if len(videos) != 1 || videos[0].Title != "cached" {
		t.Errorf("videos = %+v", videos)
	}
}

func TestChannelVideos_FetchesAndPersists(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("alpha", "UC1", "v1", "v2")

	ch, err := e.a.ResolveChannel(ctx, "alpha")
	if err != nil {
		t.Fatalf("ResolveChannel() error = %v", err)
	}
	videos, err := e.a.ChannelVideos(ctx, ch, false)
	if err != nil || len(videos) != 2 {
		t.Fatalf("ChannelVideos() = %v, %v", videos, err)
	}
	if n, _ := e.store.CountVideos(ctx, "UC1"); n != 2 {
		t.Errorf("cached videos = %d, want 2", n)
	}

	calls := e.remote.calls
	if _, err := e.a.ChannelVideos(ctx, ch, false); err != nil {
		t.Fatal(err)
	}
	if e.remote.calls != calls {
		t.Errorf("second listing hit the remote side")
	}

	e.remote.videos["UC1"] = append(e.remote.videos["UC1"], models.Video{ID: "v3", ChannelID: "UC1", Title: "new"})
	if _, err := e.a.ChannelVideos(ctx, ch, true); err != nil {
		t.Fatal(err)
	}
	if n, _ := e.store.CountVideos(ctx, "UC1"); n != 3 {
		t.Errorf("cached videos after refresh = %d, want 3", n)
	}
}

func TestChannelPlaylists_ClassifiesAndCaches(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("alpha", "UCA", "listed")
	e.remote.playlists["UCA"] = []models.Playlist{{ID: "PL1", ChannelID: "UCA", Title: "Favourites"}}
	e.remote.items["PL1"] = []fetcher.RawPlaylistItem{
		{ID: "i1", PlaylistID: "PL1", VideoID: "listed", Title: "title listed", Position: 0, OwnerChannelID: "UCA", OwnerChannelTitle: "alpha"},
		{ID: "i2", PlaylistID: "PL1", VideoID: "hidden", Title: "secret upload", Position: 1, OwnerChannelID: "UCA", OwnerChannelTitle: "alpha"},
		{ID: "i3", PlaylistID: "PL1", VideoID: "guest", Title: "collab", Position: 2, OwnerChannelID: "UCB", OwnerChannelTitle: "Bravo"},
		{ID: "i4", PlaylistID: "PL1", VideoID: "gone", Title: models.PrivateVideoTitle, Position: 3},
	}

	ch, err := e.a.ResolveChannel(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.a.ChannelVideos(ctx, ch, false); err != nil {
		t.Fatal(err)
	}
	playlists, err := e.a.ChannelPlaylists(ctx, ch)
	if err != nil {
		t.Fatalf("ChannelPlaylists() error = %v", err)
	}
	if len(playlists) != 1 || len(playlists[0].Items) != 4 {
		t.Fatalf("playlists = %+v", playlists)
	}
	items := playlists[0].Items
	if items[0].IsUnlisted || items[0].IsExternal {
		t.Errorf("listed item = %+v", items[0])
	}
	if !items[1].IsUnlisted || items[1].IsExternal {
		t.Errorf("unlisted item = %+v", items[1])
	}
	if !items[2].IsExternal || items[2].IsUnlisted {
		t.Errorf("external item = %+v", items[2])
	}
	if !items[3].IsPrivate || items[3].ChannelID != "UCA" || items[3].IsExternal {
		t.Errorf("private item = %+v", items[3])
	}

	bravo, err := e.store.GetChannelByID(ctx, "UCB")
	if err != nil || bravo.Username != "Bravo" {
		t.Errorf("owner channel = %+v, %v", bravo, err)
	}
	handles, _ := e.store.ChannelHandles(ctx)
	if len(handles) != 2 {
		t.Errorf("handles = %v, want alpha and Bravo only", handles)
	}

	calls := e.remote.calls
	again, err := e.a.ChannelPlaylists(ctx, ch)
	if err != nil {
		t.Fatal(err)
	}
	if e.remote.calls != calls {
		t.Errorf("cached playlists hit the remote side")
	}
	if len(again) != 1 || len(again[0].Items) != 4 || !again[0].Items[1].IsUnlisted {
		t.Errorf("cached playlists = %+v", again)
	}
}

func TestChannelPlaylists_NoneIsNotAnError(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("alpha", "UCA")
	ch, _ := e.a.ResolveChannel(ctx, "alpha")

	playlists, err := e.a.ChannelPlaylists(ctx, ch)
	if err != nil || len(playlists) != 0 {
		t.Errorf("ChannelPlaylists() = %v, %v", playlists, err)
	}
}

func TestSyncChannels_IsolatesChannelFailures(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("good", "UCG", "g1", "g2")
	e.remote.fail["broken"] = errors.New("quota exceeded")
	e.dl.fail["g2"] = "ERROR: Video unavailable"

	report, err := e.a.SyncChannels(ctx, []string{"broken", "good"}, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncChannels() error = %v", err)
	}
	if len(report.Channels) != 2 {
		t.Fatalf("channels = %+v", report.Channels)
	}
	broken, good := report.Channels[0], report.Channels[1]
	if len(broken.StageErrors) != 1 || !strings.Contains(broken.StageErrors[0], "quota exceeded") {
		t.Errorf("broken outcome = %+v", broken)
	}
	if len(good.Downloaded) != 1 || good.Downloaded[0].ID != "g1" {
		t.Errorf("good downloaded = %+v", good.Downloaded)
	}
	if len(good.Failed) != 1 || good.Failed[0].DownloadError != "ERROR: Video unavailable" {
		t.Errorf("good failed = %+v", good.Failed)
	}
	if !report.Failed() {
		t.Error("Failed() = false")
	}

	saved, err := os.ReadFile(filepath.Join(e.cfg.ReportDir, SyncReportFile))
	if err != nil {
		t.Fatalf("report not saved: %v", err)
	}
	if string(saved) != report.String() {
		t.Error("saved report differs from rendered report")
	}
	if !strings.Contains(e.out.String(), "SYNC REPORT") {
		t.Error("report not printed")
	}
}

func TestSyncChannels_PlaylistFailureStillDownloads(t *testing.T) {
	e := newTestEnv(t)
	e.addRemoteChannel("alpha", "UCA", "a1")
	e.remote.playlistsErr = errors.New("playlists.list: backend error")

	report, err := e.a.SyncChannels(context.Background(), []string{"alpha"}, SyncOptions{})
	if err != nil {
		t.Fatal(err)
	}
	out := report.Channels[0]
	if len(out.Downloaded) != 1 {
		t.Errorf("downloaded = %+v", out.Downloaded)
	}
	if len(out.StageErrors) != 1 || !strings.HasPrefix(out.StageErrors[0], "playlists:") {
		t.Errorf("stage errors = %v", out.StageErrors)
	}
	if n, _ := e.store.CountVideos(context.Background(), "UCA"); n != 1 {
		t.Errorf("videos rolled back: count = %d", n)
	}
}

func TestDeleteChannel_Confirmation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("alpha", "UCA", "a1", "a2")
	ch, _ := e.a.ResolveChannel(ctx, "alpha")
	e.a.ChannelVideos(ctx, ch, false)

	var shownID string
	var shownCount int
	decline := func(ch *models.Channel, n int) (bool, error) {
		shownID, shownCount = ch.ID, n
		return false, nil
	}
	deleted, err := e.a.DeleteChannel(ctx, "alpha", decline)
	if err != nil || deleted {
		t.Fatalf("DeleteChannel(declined) = %v, %v", deleted, err)
	}
	if shownID != "UCA" || shownCount != 2 {
		t.Errorf("confirm saw %s with %d videos", shownID, shownCount)
	}
	if n, _ := e.store.CountVideos(ctx, "UCA"); n != 2 {
		t.Errorf("declined delete removed videos: %d left", n)
	}

	accept := func(*models.Channel, int) (bool, error) { return true, nil }
	if deleted, err := e.a.DeleteChannel(ctx, "alpha", accept); err != nil || !deleted {
		t.Fatalf("DeleteChannel(accepted) = %v, %v", deleted, err)
	}
	if _, err := e.store.GetChannelByID(ctx, "UCA"); !errors.Is(err, store.ErrNotCached) {
		t.Errorf("channel still cached: %v", err)
	}
	if _, err := e.a.DeleteChannel(ctx, "alpha", accept); !errors.Is(err, store.ErrNotCached) {
		t.Errorf("second delete error = %v, want ErrNotCached", err)
	}
}

func TestDownloadVideo_UnknownVideo(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("@alpha", "UCA")
	e.remote.single["x1"] = &models.Video{ID: "x1", ChannelID: "UCA", Title: "solo"}

	res, err := e.a.DownloadVideo(ctx, "x1", true)
	if err != nil {
		t.Fatalf("DownloadVideo() error = %v", err)
	}
	if len(res.Downloaded) != 1 {
		t.Fatalf("result = %+v", res)
	}
	v, err := e.store.GetVideoByID(ctx, "x1")
	if err != nil || !v.IsUnlisted {
		t.Errorf("cached video = %+v, %v", v, err)
	}
	if h := e.dl.handles[0]["UCA"]; h != "@alpha" {
		t.Errorf("handle = %q", h)
	}
}

func TestDownloadVideo_FailureIsReturned(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SaveVideo(ctx, &models.Video{ID: "v1", ChannelID: "UCA", Title: "t"})
	e.dl.fail["v1"] = "HTTP Error 403"

	_, err := e.a.DownloadVideo(ctx, "v1", false)
	var de *download.DownloadError
	if !errors.As(err, &de) || de.VideoID != "v1" || de.Err.Error() != "HTTP Error 403" {
		t.Errorf("error = %v", err)
	}
	if e.remote.calls != 0 {
		t.Errorf("cached video looked up remotely")
	}
}

func TestDownloadFromList(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("alpha", "UCA")
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SaveVideo(ctx, &models.Video{ID: "cached", ChannelID: "UCA", Title: "c"})
	e.remote.single["fresh"] = &models.Video{ID: "fresh", ChannelID: "UCA", Title: "f"}

	list := strings.Join([]string{
		"https://www.youtube.com/watch?v=cached",
		"https://www.youtube.com/watch?v=fresh&t=10",
		"https://www.youtube.com/watch?v=missing",
		"https://www.youtube.com/watch?v=cached",
	}, "\n")
	report, err := e.a.DownloadFromList(ctx, strings.NewReader(list))
	if err != nil {
		t.Fatalf("DownloadFromList() error = %v", err)
	}
	if len(e.dl.batches) != 1 || len(e.dl.batches[0]) != 2 {
		t.Fatalf("batches = %+v", e.dl.batches)
	}
	if len(report.Downloaded) != 2 {
		t.Errorf("downloaded = %+v", report.Downloaded)
	}
	if _, err := os.Stat(filepath.Join(e.cfg.ReportDir, ListDownloadFile)); err != nil {
		t.Errorf("report not saved: %v", err)
	}
}

func TestDownloadPlaylists_UnknownTitle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SavePlaylist(ctx, &models.Playlist{ID: "PL1", ChannelID: "UCA", Title: "Mixes"})

	if _, err := e.a.DownloadPlaylists(ctx, "alpha", "Nope"); err == nil {
		t.Error("DownloadPlaylists() error = nil for unknown title")
	}
	if len(e.dl.batches) != 0 {
		t.Error("downloads ran")
	}
}

func TestDownloadPlaylists_ExternalItems(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("Bravo", "UCB")
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SaveVideo(ctx, &models.Video{ID: "own", ChannelID: "UCA", Title: "own"})
	e.store.SavePlaylist(ctx, &models.Playlist{ID: "PL1", ChannelID: "UCA", Title: "Mixes"})
	e.store.SavePlaylistItem(ctx, "PL1", &models.PlaylistItem{ID: "i1", VideoID: "own", ChannelID: "UCA", Position: 0})
	e.store.SavePlaylistItem(ctx, "PL1", &models.PlaylistItem{ID: "i2", VideoID: "guest", ChannelID: "UCB", Position: 1, IsExternal: true})
	e.remote.single["guest"] = &models.Video{ID: "guest", ChannelID: "UCB", Title: "g"}

	report, err := e.a.DownloadPlaylists(ctx, "alpha", "Mixes")
	if err != nil {
		t.Fatalf("DownloadPlaylists() error = %v", err)
	}
	if len(report.Downloaded) != 2 {
		t.Errorf("downloaded = %+v", report.Downloaded)
	}
	if e.dl.handles[0]["UCB"] != "Bravo" {
		t.Errorf("handles = %v", e.dl.handles[0])
	}
}

func TestPromotePlaylistItems(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SavePlaylist(ctx, &models.Playlist{ID: "PL1", ChannelID: "UCA", Title: "Mixes"})
	items := []models.PlaylistItem{
		{ID: "i1", VideoID: "hidden", ChannelID: "UCA", Title: "h", IsUnlisted: true},
		{ID: "i2", VideoID: "gone", ChannelID: "UCA", Title: models.DeletedVideoTitle, IsUnlisted: true, IsDeleted: true},
		{ID: "i3", VideoID: "guest", ChannelID: "UCB", Title: "g", IsExternal: true},
	}
	for i := range items {
		items[i].Position = int64(i)
		e.store.SavePlaylistItem(ctx, "PL1", &items[i])
	}

	_, n, err := e.a.PromotePlaylistItems(ctx, "alpha", true, false)
	if err != nil || n != 1 {
		t.Fatalf("PromotePlaylistItems(unlisted) = %d, %v", n, err)
	}
	v, err := e.store.GetVideoByID(ctx, "hidden")
	if err != nil || !v.IsUnlisted {
		t.Errorf("promoted video = %+v, %v", v, err)
	}
	if _, err := e.store.GetVideoByID(ctx, "gone"); !errors.Is(err, store.ErrNotCached) {
		t.Errorf("deleted item promoted: %v", err)
	}

	playlists, n, err := e.a.PromotePlaylistItems(ctx, "alpha", false, true)
	if err != nil || n != 1 || len(playlists[0].Items) != 3 {
		t.Fatalf("PromotePlaylistItems(external) = %d, %v", n, err)
	}
	if v, err := e.store.GetVideoByID(ctx, "guest"); err != nil || v.ChannelID != "UCB" {
		t.Errorf("external video = %+v, %v", v, err)
	}
}

func TestUpdateChannels_AllSkipsFailures(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCX", Username: "vanished"})
	e.addRemoteChannel("alpha", "UCA")
	e.remote.channels["alpha"].Title = "Alpha Reloaded"

	n, err := e.a.UpdateChannels(ctx, nil)
	if err != nil || n != 1 {
		t.Fatalf("UpdateChannels() = %d, %v", n, err)
	}
	ch, _ := e.store.GetChannelByID(ctx, "UCA")
	if ch.Title != "Alpha Reloaded" || ch.Username != "alpha" {
		t.Errorf("channel = %+v", ch)
	}
	if _, err := e.a.UpdateChannels(ctx, []string{"vanished"}); !fetcher.IsNotFound(err) {
		t.Errorf("named update error = %v, want not found", err)
	}
}

func TestSyncChannels_ChannelFirstSeenAsOwner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("alpha", "UCA", "a1")
	e.addRemoteChannel("beta", "UC2", "b1")
	e.remote.playlists["UCA"] = []models.Playlist{{ID: "PL1", ChannelID: "UCA", Title: "Mixes"}}
	e.remote.items["PL1"] = []fetcher.RawPlaylistItem{
		{ID: "i1", PlaylistID: "PL1", VideoID: "b1", Title: "title b1", OwnerChannelID: "UC2", OwnerChannelTitle: "Beta Title"},
	}

	if _, err := e.a.SyncChannels(ctx, []string{"alpha", "beta"}, SyncOptions{}); err != nil {
		t.Fatalf("SyncChannels() error = %v", err)
	}
	handles, err := e.store.ChannelHandles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if handles["UC2"] != "beta" {
		t.Errorf("cached handle = %q, want beta", handles["UC2"])
	}
	last := e.dl.handles[len(e.dl.handles)-1]
	if last["UC2"] != handles["UC2"] {
		t.Errorf("download handle %q differs from cached handle %q", last["UC2"], handles["UC2"])
	}

	calls := e.remote.calls
	ch, err := e.a.ResolveChannel(ctx, "beta")
	if err != nil || ch.ID != "UC2" {
		t.Fatalf("ResolveChannel(beta) = %+v, %v", ch, err)
	}
	if e.remote.calls != calls {
		t.Errorf("cached channel resolved remotely")
	}
}

func TestDownloadFromList_UncachedChannel(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addRemoteChannel("newcomer", "UCN")
	e.remote.single["solo"] = &models.Video{ID: "solo", ChannelID: "UCN", Title: "s"}

	report, err := e.a.DownloadFromList(ctx, strings.NewReader("https://www.youtube.com/watch?v=solo\n"))
	if err != nil {
		t.Fatalf("DownloadFromList() error = %v", err)
	}
	if len(report.Downloaded) != 1 {
		t.Errorf("downloaded = %+v", report.Downloaded)
	}
	if e.dl.handles[0]["UCN"] != "newcomer" {
		t.Errorf("handles = %v", e.dl.handles[0])
	}
	if _, err := e.store.GetVideoByID(ctx, "solo"); err != nil {
		t.Errorf("video not cached: %v", err)
	}
}

func TestPromotePlaylistItems_UncachedOwner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SavePlaylist(ctx, &models.Playlist{ID: "PL1", ChannelID: "UCA", Title: "Mixes"})
	// Owner data with a placeholder title: external, but the owner was never cached.
	e.store.SavePlaylistItem(ctx, "PL1", &models.PlaylistItem{
		ID: "i1", VideoID: "gone", ChannelID: "UCB", Title: models.DeletedVideoTitle, IsExternal: true, IsDeleted: true,
	})

	_, n, err := e.a.PromotePlaylistItems(ctx, "alpha", false, true)
	if err != nil || n != 1 {
		t.Fatalf("PromotePlaylistItems() = %d, %v", n, err)
	}
	owner, err := e.store.GetChannelByID(ctx, "UCB")
	if err != nil || owner.Username != "UCB" {
		t.Errorf("owner channel = %+v, %v", owner, err)
	}
	if v, err := e.store.GetVideoByID(ctx, "gone"); err != nil || v.ChannelID != "UCB" {
		t.Errorf("promoted video = %+v, %v", v, err)
	}
}
