package thumb

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decodeJPEG(t *testing.T, b []byte) image.Config {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	return cfg
}

func TestFit(t *testing.T) {
	cases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{300, 150, 150, 150, 75},
		{150, 300, 150, 75, 150},
		{1000, 1000, 150, 150, 150},
		{100, 50, 150, 100, 50},
		{3000, 1, 150, 150, 1},
		{1920, 1080, 150, 150, 84},
	}
	for _, c := range cases {
		w, h := Fit(c.w, c.h, c.max)
		assert.Equal(t, c.wantW, w, "%dx%d", c.w, c.h)
		assert.Equal(t, c.wantH, h, "%dx%d", c.w, c.h)
	}
}

func TestGenerate_Landscape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.png")
	writePNG(t, path, 400, 200)

	out, err := New(150, 80).Generate(path)
	require.NoError(t, err)

	cfg := decodeJPEG(t, out)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 75, cfg.Height)
}

func TestGenerate_NoUpscale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	out, err := New(0, 0).Generate(path)
	require.NoError(t, err)

	cfg := decodeJPEG(t, out)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestGenerate_QualityShrinksOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.png")
	writePNG(t, path, 300, 200)

	high, err := New(150, 95).Generate(path)
	require.NoError(t, err)
	low, err := New(150, 10).Generate(path)
	require.NoError(t, err)

	assert.Less(t, len(low), len(high))
	hc, lc := decodeJPEG(t, high), decodeJPEG(t, low)
	assert.Equal(t, hc.Width, lc.Width)
	assert.Equal(t, hc.Height, lc.Height)
}

func TestGenerate_Failures(t *testing.T) {
	dir := t.TempDir()
	g := New(150, 80)

	_, err := g.Generate(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	notImage := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(notImage, []byte("definitely not a png"), 0o644))
	_, err = g.Generate(notImage)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = g.Generate(dir)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestGenerate_ConcurrentSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tall.png")
	writePNG(t, path, 120, 480)
	g := New(150, 80)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Generate(path)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	cfg := decodeJPEG(t, results[0])
	assert.Equal(t, 38, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}
