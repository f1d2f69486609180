package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/voyagen/ytarchive/internal/models"
)

func TestUpdateRootPath(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "@alpha"})
	e.store.SaveVideo(ctx, &models.Video{ID: "moved", ChannelID: "UCA"})
	e.store.SaveVideo(ctx, &models.Video{ID: "home", ChannelID: "UCA"})
	e.store.SaveVideoPath(ctx, "moved", "/old/disk/alpha/video/moved.mp4")
	current := filepath.Join(e.cfg.RootPath, "alpha", "video", "home.mkv")
	e.store.SaveVideoPath(ctx, "home", current)

	n, err := e.a.UpdateRootPath(ctx)
	if err != nil || n != 1 {
		t.Fatalf("UpdateRootPath() = %d, %v", n, err)
	}
	v, _ := e.store.GetVideoByID(ctx, "moved")
	if want := filepath.Join(e.cfg.RootPath, "alpha", "video", "moved.mp4"); v.SavedPath != want {
		t.Errorf("moved path = %q, want %q", v.SavedPath, want)
	}
	v, _ = e.store.GetVideoByID(ctx, "home")
	if v.SavedPath != current {
		t.Errorf("home path changed to %q", v.SavedPath)
	}
}

func TestUpdateVideoInfo(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.store.SaveChannel(ctx, &models.Channel{ID: "UCA", Username: "alpha"})
	e.store.SaveVideo(ctx, &models.Video{ID: "saved", ChannelID: "UCA"})
	e.store.SaveVideo(ctx, &models.Video{ID: "pending", ChannelID: "UCA"})
	e.store.SaveVideoPath(ctx, "saved", "/a/alpha/video/saved.mp4")

	n, err := e.a.UpdateVideoInfo(ctx, "alpha")
	if err != nil || n != 1 {
		t.Fatalf("UpdateVideoInfo() = %d, %v", n, err)
	}
	v, _ := e.store.GetVideoByID(ctx, "saved")
	if v.Duration != "1m0s" || v.Resolution != "640x360" {
		t.Errorf("video = %+v", v)
	}
}

func TestBuildThumbnails(t *testing.T) {
	e := newTestEnv(t)
	dirs := e.a.layout.Channel("alpha")
	if err := os.MkdirAll(dirs.Video, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.webp", "b.jpg", "b.mp4", "c.webp", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dirs.Video, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(dirs.Thumbnail, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(dirs.ThumbnailPath("c"), []byte("done"), 0o644)

	var converted []string
	e.a.letterbox = func(src, dst string) error {
		converted = append(converted, filepath.Base(src)+">"+filepath.Base(dst))
		if filepath.Base(src) == "b.jpg" {
			return errors.New("corrupt")
		}
		return nil
	}
	n, err := e.a.BuildThumbnails(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("BuildThumbnails() error = %v", err)
	}
	if n != 1 || len(converted) != 2 || converted[0] != "a.webp>a.jpg" {
		t.Errorf("built %d, converted %v", n, converted)
	}
}

func TestBuildThumbnails_MissingDir(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.a.BuildThumbnails(context.Background(), "nobody"); err == nil {
		t.Error("BuildThumbnails() error = nil for missing directory")
	}
}
