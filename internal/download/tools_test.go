package download

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/voyagen/ytarchive/internal/layout"
)

func TestYtdlpArgs(t *testing.T) {
	dirs := layout.Layout{Root: "/archive"}.Channel("@alpha")
	y := &Ytdlp{CookiesBrowser: "firefox"}
	args := y.Args("https://www.youtube.com/watch?v=abc", dirs)

	for _, want := range []string{"--continue", "--no-overwrites", "--no-part",
		"--write-description", "--write-info-json", "--write-thumbnail"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %s: %v", want, args)
		}
	}
	i := slices.Index(args, "--format")
	if i < 0 || args[i+1] != FormatSelection {
		t.Errorf("format not set: %v", args)
	}
	if !slices.Contains(args, "home:"+dirs.Video) || !slices.Contains(args, "infojson:"+dirs.Info) {
		t.Errorf("paths not set: %v", args)
	}
	j := slices.Index(args, "--cookies-from-browser")
	if j < 0 || args[j+1] != "firefox" {
		t.Errorf("cookies not set: %v", args)
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc" || args[len(args)-2] != "--" {
		t.Errorf("url not last: %v", args)
	}

	if slices.Contains((&Ytdlp{}).Args("u", dirs), "--cookies-from-browser") {
		t.Error("cookies flag set without a browser")
	}
}

func TestLastErrorLine(t *testing.T) {
	stderr := "WARNING: something\nERROR: [youtube] abc: Private video\nmore noise\n"
	if got := lastErrorLine(stderr); got != "ERROR: [youtube] abc: Private video" {
		t.Errorf("lastErrorLine() = %q", got)
	}
	if got := lastErrorLine("only line\n"); got != "only line" {
		t.Errorf("lastErrorLine() = %q", got)
	}
	if got := lastErrorLine(""); got != "" {
		t.Errorf("lastErrorLine(empty) = %q", got)
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{"streams":[{"width":1920,"height":1080}],"format":{"duration":"754.320000"}}`)
	d, r, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if d != "12m34s" || r != "1920x1080" {
		t.Errorf("parseProbe() = %q, %q", d, r)
	}
}

func TestParseProbe_StreamDurationFallback(t *testing.T) {
	out := []byte(`{"streams":[{"width":640,"height":360,"duration":"59.9"}],"format":{}}`)
	d, r, err := parseProbe(out)
	if err != nil || d != "0m59s" || r != "640x360" {
		t.Errorf("parseProbe() = %q, %q, %v", d, r, err)
	}
}

func TestParseProbe_NoVideo(t *testing.T) {
	_, _, err := parseProbe([]byte(`{"streams":[],"format":{"duration":"10"}}`))
	if !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("error = %v, want ErrNoVideoStream", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{
		0:       "0m0s",
		999:     "0m0s",
		61000:   "1m1s",
		754000:  "12m34s",
		3600000: "60m0s",
	}
	for ms, want := range tests {
		if got := FormatDuration(ms); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestLetterbox(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	wide := image.NewRGBA(image.Rect(0, 0, 300, 150))
	for y := range 150 {
		for x := range 300 {
			wide.Set(x, y, color.White)
		}
	}
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, wide); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dst := filepath.Join(dir, "thumbnail", "wide.jpg")
	if err := Letterbox(src, dst); err != nil {
		t.Fatalf("Letterbox() error = %v", err)
	}
	out, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	img, err := jpeg.Decode(out)
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != ThumbnailSize || b.Dy() != ThumbnailSize {
		t.Fatalf("size = %v", b)
	}
	// 300x150 scales to 150x75: bars above and below, image in the middle.
	if r, _, _, _ := img.At(75, 5).RGBA(); r > 0x2000 {
		t.Errorf("top bar not black: r=%#x", r)
	}
	if r, _, _, _ := img.At(75, 75).RGBA(); r < 0xd000 {
		t.Errorf("centre not white: r=%#x", r)
	}
}

func TestLetterbox_MissingSource(t *testing.T) {
	if err := Letterbox(filepath.Join(t.TempDir(), "nope.webp"), filepath.Join(t.TempDir(), "x.jpg")); err == nil {
		t.Error("Letterbox() error = nil for missing source")
	}
}
