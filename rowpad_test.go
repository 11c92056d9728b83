package capture

import (
	"bytes"
	"errors"
	"testing"
)

func TestPaddedRowBytes(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		bpp       int
		alignment int
		want      int
	}{
		{"tiny rgba row rounds up", 3, 4, 256, 256},
		{"exact multiple unchanged", 64, 4, 256, 256},
		{"one past multiple rounds up", 65, 4, 256, 512},
		{"wide row", 1920, 4, 256, 7680},
		{"single channel", 100, 1, 256, 256},
		{"alignment one is identity", 3, 4, 1, 12},
		{"alignment zero is identity", 3, 4, 0, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PaddedRowBytes(tt.width, tt.bpp, tt.alignment)
			if got != tt.want {
				t.Errorf("PaddedRowBytes(%d, %d, %d) = %d, want %d",
					tt.width, tt.bpp, tt.alignment, got, tt.want)
			}
			if tt.alignment > 1 && got%tt.alignment != 0 {
				t.Errorf("padded row %d not a multiple of %d", got, tt.alignment)
			}
			if got < UnpaddedRowBytes(tt.width, tt.bpp) {
				t.Errorf("padded row %d smaller than unpadded %d",
					got, UnpaddedRowBytes(tt.width, tt.bpp))
			}
		})
	}
}

func TestStripPadding(t *testing.T) {
	// A 3x2 RGBA texture: 12 tight bytes per row, 256 padded.
	const (
		width       = 3
		height      = 2
		bpp         = 4
		unpaddedRow = width * bpp
	)
	paddedRow := PaddedRowBytes(width, bpp, RowAlignment)
	if paddedRow != 256 {
		t.Fatalf("paddedRow = %d, want 256", paddedRow)
	}

	raw := make([]byte, paddedRow*height)
	for y := 0; y < height; y++ {
		for i := 0; i < unpaddedRow; i++ {
			raw[y*paddedRow+i] = byte(y*unpaddedRow + i)
		}
		// Garbage in the padding region must not leak into the output.
		for i := unpaddedRow; i < paddedRow; i++ {
			raw[y*paddedRow+i] = 0xAA
		}
	}

	packed, err := StripPadding(raw, height, paddedRow, unpaddedRow)
	if err != nil {
		t.Fatalf("StripPadding() = %v", err)
	}
	if len(packed) != height*unpaddedRow {
		t.Fatalf("len(packed) = %d, want %d", len(packed), height*unpaddedRow)
	}
	for i := range packed {
		if packed[i] != byte(i) {
			t.Fatalf("packed[%d] = %#x, want %#x", i, packed[i], byte(i))
		}
	}
}

func TestStripPadding_NoPadding(t *testing.T) {
	// When padded and unpadded strides match, output equals input.
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	packed, err := StripPadding(raw, 2, 4, 4)
	if err != nil {
		t.Fatalf("StripPadding() = %v", err)
	}
	if !bytes.Equal(packed, raw) {
		t.Errorf("packed = %v, want %v", packed, raw)
	}
}

func TestStripPadding_ShortBuffer(t *testing.T) {
	raw := make([]byte, 100)
	_, err := StripPadding(raw, 2, 256, 12)
	if !errors.Is(err, ErrMalformedBuffer) {
		t.Errorf("StripPadding() = %v, want ErrMalformedBuffer", err)
	}
}

func TestRowPaddedBufferLayout(t *testing.T) {
	dev := newFakeDevice()
	desc := TextureDescriptor{Width: 3, Height: 2, Format: FormatRGBA8}

	buf, err := newRowPaddedBuffer(dev, desc)
	if err != nil {
		t.Fatalf("newRowPaddedBuffer() = %v", err)
	}
	defer buf.release()

	if got := buf.RowBytes(); got != 12 {
		t.Errorf("RowBytes() = %d, want 12", got)
	}
	if got := buf.PaddedRowBytes(); got != 256 {
		t.Errorf("PaddedRowBytes() = %d, want 256", got)
	}
	if got := buf.TotalBytes(); got != 512 {
		t.Errorf("TotalBytes() = %d, want 512", got)
	}

	layout := buf.layout()
	if layout.Offset != 0 {
		t.Errorf("layout.Offset = %d, want 0", layout.Offset)
	}
	if layout.BytesPerRow != 256 {
		t.Errorf("layout.BytesPerRow = %d, want 256", layout.BytesPerRow)
	}
	if layout.RowsPerImage != 2 {
		t.Errorf("layout.RowsPerImage = %d, want 2", layout.RowsPerImage)
	}
}

func BenchmarkStripPadding(b *testing.B) {
	const width, height, bpp = 1920, 1080, 4
	paddedRow := PaddedRowBytes(width, bpp, RowAlignment)
	raw := make([]byte, paddedRow*height)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = StripPadding(raw, height, paddedRow, width*bpp)
	}
}
