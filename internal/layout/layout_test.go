package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestChannel_StripsAt(t *testing.T) {
	d := Layout{Root: "/archive"}.Channel("@someone")
	if d.Base != filepath.Join("/archive", "someone") {
		t.Errorf("Base = %q", d.Base)
	}
	if d.Video != filepath.Join("/archive", "someone", "video") {
		t.Errorf("Video = %q", d.Video)
	}
	if got := d.InfoPath("abc"); got != filepath.Join("/archive", "someone", "info", "abc.info.json") {
		t.Errorf("InfoPath = %q", got)
	}
	if got := d.DescriptionPath("abc"); got != filepath.Join("/archive", "someone", "description", "abc.description") {
		t.Errorf("DescriptionPath = %q", got)
	}
	if got := d.ThumbnailPath("abc"); got != filepath.Join("/archive", "someone", "thumbnail", "abc.jpg") {
		t.Errorf("ThumbnailPath = %q", got)
	}
}

func TestFindVideoFile_SkipsThumbnails(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "vid123.webp"))
	touch(t, filepath.Join(dir, "vid123.jpg"))
	touch(t, filepath.Join(dir, "vid123.mkv"))
	touch(t, filepath.Join(dir, "vid1234.mp4"))

	got, err := FindVideoFile(dir, "vid123")
	if err != nil {
		t.Fatalf("FindVideoFile() error = %v", err)
	}
	if got != filepath.Join(dir, "vid123.mkv") {
		t.Errorf("FindVideoFile() = %q", got)
	}
}

func TestFindVideoFile_OnlyThumbnail(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "vid123.webp"))
	if _, err := FindVideoFile(dir, "vid123"); !errors.Is(err, ErrNoFile) {
		t.Errorf("error = %v, want ErrNoFile", err)
	}
}

func TestFindThumbnailSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindThumbnailSource(dir, "v"); !errors.Is(err, ErrNoFile) {
		t.Fatalf("empty dir error = %v, want ErrNoFile", err)
	}
	touch(t, filepath.Join(dir, "v.jpg"))
	got, err := FindThumbnailSource(dir, "v")
	if err != nil || got != filepath.Join(dir, "v.jpg") {
		t.Fatalf("jpg only = %q, %v", got, err)
	}
	touch(t, filepath.Join(dir, "v.webp"))
	got, _ = FindThumbnailSource(dir, "v")
	if got != filepath.Join(dir, "v.webp") {
		t.Errorf("webp preferred, got %q", got)
	}
}

func TestRebase(t *testing.T) {
	l := Layout{Root: "/new"}
	got, moved := l.Rebase("/old/someone/video/abc.mp4", "@someone")
	if !moved || got != filepath.Join("/new", "someone", "video", "abc.mp4") {
		t.Errorf("Rebase() = %q, %v", got, moved)
	}
	same := filepath.Join("/new", "someone", "video", "abc.mp4")
	if got, moved := l.Rebase(same, "someone"); moved || got != same {
		t.Errorf("Rebase() under root = %q, %v", got, moved)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.mp4")
	if Exists(p) || Exists("") {
		t.Fatal("Exists() true for missing path")
	}
	touch(t, p)
	if !Exists(p) {
		t.Error("Exists() false for present file")
	}
}
