package capture

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Frame is a delivered capture: tightly packed pixel data with the row
// padding already stripped. Frames are handed to the host's callback on a
// worker goroutine; the host owns the Frame from that point on.
type Frame struct {
	// Index is the capture sequence number assigned by the capturer.
	// Deliveries across snapshots are unordered, so sinks that need
	// capture-order output should sequence on Index.
	Index uint64

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int

	// Format is the pixel format of Pix.
	Format TextureFormat

	// Pix holds the packed pixel data, Width*BytesPerPixel bytes per row,
	// rows top to bottom with no padding between them.
	Pix []byte
}

// ToRGBA converts the frame to an image.RGBA, swizzling BGRA sources and
// expanding single-channel sources to opaque gray.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	switch f.Format {
	case FormatRGBA8:
		copy(img.Pix, f.Pix)
	case FormatBGRA8:
		for i := 0; i+3 < len(f.Pix); i += 4 {
			img.Pix[i+0] = f.Pix[i+2]
			img.Pix[i+1] = f.Pix[i+1]
			img.Pix[i+2] = f.Pix[i+0]
			img.Pix[i+3] = f.Pix[i+3]
		}
	case FormatR8:
		for i, v := range f.Pix {
			img.Pix[i*4+0] = v
			img.Pix[i*4+1] = v
			img.Pix[i*4+2] = v
			img.Pix[i*4+3] = 0xff
		}
	}
	return img
}

// Scaled returns a copy of the frame resampled to the given dimensions in
// RGBA8, useful for preview thumbnails without re-reading the GPU.
func (f *Frame) Scaled(width, height int) *Frame {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	src := f.ToRGBA()
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return &Frame{
		Index:  f.Index,
		Width:  width,
		Height: height,
		Format: FormatRGBA8,
		Pix:    dst.Pix,
	}
}

// SavePNG writes the frame to a PNG file.
func (f *Frame) SavePNG(path string) error {
	file, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	return png.Encode(file, f.ToRGBA())
}

// At implements the image.Image interface.
func (f *Frame) At(x, y int) color.Color {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return color.RGBA{}
	}
	switch f.Format {
	case FormatR8:
		return color.Gray{Y: f.Pix[y*f.Width+x]}
	case FormatBGRA8:
		i := (y*f.Width + x) * 4
		return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i+0], A: f.Pix[i+3]}
	default:
		i := (y*f.Width + x) * 4
		return color.RGBA{R: f.Pix[i+0], G: f.Pix[i+1], B: f.Pix[i+2], A: f.Pix[i+3]}
	}
}

// Bounds implements the image.Image interface.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// ColorModel implements the image.Image interface.
func (f *Frame) ColorModel() color.Model {
	if f.Format == FormatR8 {
		return color.GrayModel
	}
	return color.RGBAModel
}
