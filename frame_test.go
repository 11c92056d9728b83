package capture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFrameToRGBA_RGBA8(t *testing.T) {
	f := &Frame{
		Width: 2, Height: 1, Format: FormatRGBA8,
		Pix: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	img := f.ToRGBA()
	if got := img.Bounds(); got != image.Rect(0, 0, 2, 1) {
		t.Fatalf("Bounds() = %v", got)
	}
	for i, want := range f.Pix {
		if img.Pix[i] != want {
			t.Errorf("Pix[%d] = %d, want %d", i, img.Pix[i], want)
		}
	}
}

func TestFrameToRGBA_BGRA8Swizzle(t *testing.T) {
	f := &Frame{
		Width: 1, Height: 1, Format: FormatBGRA8,
		Pix: []byte{10, 20, 30, 40}, // B G R A
	}
	img := f.ToRGBA()
	want := []byte{30, 20, 10, 40} // R G B A
	for i := range want {
		if img.Pix[i] != want[i] {
			t.Errorf("Pix[%d] = %d, want %d", i, img.Pix[i], want[i])
		}
	}
}

func TestFrameToRGBA_R8Expansion(t *testing.T) {
	f := &Frame{
		Width: 2, Height: 1, Format: FormatR8,
		Pix: []byte{0x00, 0x7f},
	}
	img := f.ToRGBA()
	want := []byte{0x00, 0x00, 0x00, 0xff, 0x7f, 0x7f, 0x7f, 0xff}
	for i := range want {
		if img.Pix[i] != want[i] {
			t.Errorf("Pix[%d] = %#x, want %#x", i, img.Pix[i], want[i])
		}
	}
}

func TestFrameImageInterface(t *testing.T) {
	var _ image.Image = (*Frame)(nil)

	f := &Frame{
		Width: 2, Height: 2, Format: FormatBGRA8,
		Pix: []byte{
			10, 20, 30, 255, 0, 0, 0, 255,
			0, 0, 0, 255, 40, 50, 60, 128,
		},
	}
	if f.ColorModel() != color.RGBAModel {
		t.Error("four-channel frame should use the RGBA color model")
	}
	got := f.At(0, 0)
	if got != (color.RGBA{R: 30, G: 20, B: 10, A: 255}) {
		t.Errorf("At(0,0) = %v", got)
	}
	if f.At(5, 5) != (color.RGBA{}) {
		t.Error("out-of-bounds At should return zero color")
	}

	gray := &Frame{Width: 1, Height: 1, Format: FormatR8, Pix: []byte{0x42}}
	if gray.ColorModel() != color.GrayModel {
		t.Error("R8 frame should use the gray color model")
	}
	if gray.At(0, 0) != (color.Gray{Y: 0x42}) {
		t.Errorf("At(0,0) = %v", gray.At(0, 0))
	}
}

func TestFrameScaled(t *testing.T) {
	// A solid-color frame stays solid through resampling.
	const w, h = 8, 8
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = 200
		pix[i+1] = 100
		pix[i+2] = 50
		pix[i+3] = 255
	}
	f := &Frame{Width: w, Height: h, Format: FormatRGBA8, Pix: pix}

	small := f.Scaled(4, 4)
	if small.Width != 4 || small.Height != 4 {
		t.Fatalf("Scaled dimensions = %dx%d, want 4x4", small.Width, small.Height)
	}
	if small.Format != FormatRGBA8 {
		t.Errorf("Scaled format = %v, want RGBA8", small.Format)
	}
	if small.Index != f.Index {
		t.Errorf("Scaled index = %d, want %d", small.Index, f.Index)
	}
	if len(small.Pix) != 4*4*4 {
		t.Fatalf("len(Pix) = %d, want 64", len(small.Pix))
	}
	for i := 0; i < len(small.Pix); i += 4 {
		if small.Pix[i] != 200 || small.Pix[i+1] != 100 || small.Pix[i+2] != 50 {
			t.Fatalf("Pix[%d:] = %v, want solid 200/100/50", i, small.Pix[i:i+4])
		}
	}
}

func TestFrameSavePNG(t *testing.T) {
	f := &Frame{
		Width: 2, Height: 2, Format: FormatRGBA8,
		Pix: make([]byte, 16),
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := f.SavePNG(path); err != nil {
		t.Fatalf("SavePNG() = %v", err)
	}

	file, err := os.Open(path) //nolint:gosec // test-controlled path
	if err != nil {
		t.Fatalf("open saved png: %v", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode saved png: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("decoded bounds = %v, want 2x2", img.Bounds())
	}
}
