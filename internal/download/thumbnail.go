package download

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ThumbnailSize is the edge length of the square output thumbnail.
const ThumbnailSize = 150

// Letterbox scales the image at src to fit a black ThumbnailSize square,
// keeping its aspect ratio, and writes it to dst as JPEG.
func Letterbox(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	if err := jpeg.Encode(out, LetterboxImage(img, ThumbnailSize), &jpeg.Options{Quality: 90}); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	return out.Close()
}

// LetterboxImage returns img scaled into a size×size black canvas, centred.
func LetterboxImage(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if w == 0 || h == 0 {
		return canvas
	}

	ratio := min(float64(size)/float64(w), float64(size)/float64(h))
	nw, nh := int(float64(w)*ratio), int(float64(h)*ratio)
	x0, y0 := (size-nw)/2, (size-nh)/2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+nw, y0+nh), img, b, draw.Over, nil)
	return canvas
}
