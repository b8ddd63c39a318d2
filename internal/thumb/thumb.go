// Package thumb renders bounded-size JPEG previews of raster images.
//
// Nothing is cached: every call decodes the source and encodes a fresh
// thumbnail, so concurrent calls share no state.
package thumb

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	// decoders beyond what imaging registers
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	DefaultMaxSize = 150
	DefaultQuality = 80
)

var ErrInvalidImage = errors.New("invalid image")

type Generator struct {
	// MaxSize bounds both output dimensions.
	MaxSize int
	// Quality is the JPEG quality, 1-100.
	Quality int
}

func New(maxSize, quality int) *Generator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Generator{MaxSize: maxSize, Quality: quality}
}

// Generate decodes the image at absPath and returns it re-encoded as JPEG,
// scaled down to fit within MaxSize x MaxSize. Images already inside the box
// keep their size.
func (g *Generator) Generate(absPath string) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidImage, absPath)
	}

	src, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrInvalidImage)
	}

	nw, nh := Fit(w, h, g.MaxSize)

	// JPEG has no alpha; flatten onto white.
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if nw == w && nh == h {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, dst, imaging.JPEG, imaging.JPEGQuality(g.Quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}

// Fit returns the size of a w x h image scaled to fit within max x max,
// preserving aspect ratio. It never upscales and never returns a zero side.
func Fit(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	nw, nh := w, h
	if w >= h {
		nw = max
		nh = int(math.Round(float64(h) * float64(max) / float64(w)))
	} else {
		nh = max
		nw = int(math.Round(float64(w) * float64(max) / float64(h)))
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
