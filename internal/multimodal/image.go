package multimodal

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageWidth  = 800
	MaxImageHeight = 800
	JPEGQuality    = 85
)

// PreparedImage is an upload re-encoded as JPEG for the vision model.
type PreparedImage struct {
	Data          []byte
	Width, Height int
	SourceFormat  string
	Resized       bool
}

// PrepareImage decodes data, shrinks it to fit MaxImageWidth x MaxImageHeight
// keeping the aspect ratio, drops any alpha channel and encodes it as JPEG.
// Images already within bounds are only re-encoded.
func PrepareImage(data []byte) (*PreparedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), MaxImageWidth, MaxImageHeight)
	resized := w != b.Dx() || h != b.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// Opaque white under transparent pixels rather than black.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if resized {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &PreparedImage{
		Data:         buf.Bytes(),
		Width:        w,
		Height:       h,
		SourceFormat: format,
		Resized:      resized,
	}, nil
}

// fitWithin scales (w, h) down by the smaller of the two bound ratios.
// It never scales up.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	ratio := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	if ratio >= 1 {
		return w, h
	}
	nw, nh := int(float64(w)*ratio), int(float64(h)*ratio)
	return max(nw, 1), max(nh, 1)
}
