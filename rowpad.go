package capture

import "fmt"

// RowAlignment is the byte boundary every padded row must satisfy for
// texture-to-buffer copies (COPY_BYTES_PER_ROW_ALIGNMENT in WebGPU).
const RowAlignment = 256

// UnpaddedRowBytes returns the tightly packed size of one image row.
func UnpaddedRowBytes(width, bytesPerPixel int) int {
	return width * bytesPerPixel
}

// PaddedRowBytes returns the row stride a texture-to-buffer copy uses:
// the unpadded row size rounded up to the nearest multiple of alignment.
func PaddedRowBytes(width, bytesPerPixel, alignment int) int {
	row := UnpaddedRowBytes(width, bytesPerPixel)
	if alignment <= 1 {
		return row
	}
	rem := row % alignment
	if rem == 0 {
		return row
	}
	return row + alignment - rem
}

// StripPadding copies height rows out of raw, truncating each from
// paddedRow down to unpaddedRow bytes, into a new contiguous buffer.
//
// Returns ErrMalformedBuffer (wrapped with the sizes involved) if raw is
// shorter than height*paddedRow. That only happens when the driver maps a
// smaller region than the capturer computed, which is a bug upstream, not
// an operational condition.
func StripPadding(raw []byte, height, paddedRow, unpaddedRow int) ([]byte, error) {
	if need := height * paddedRow; len(raw) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d (%d rows x %d stride)",
			ErrMalformedBuffer, len(raw), need, height, paddedRow)
	}

	packed := make([]byte, height*unpaddedRow)
	for y := 0; y < height; y++ {
		src := raw[y*paddedRow : y*paddedRow+unpaddedRow]
		copy(packed[y*unpaddedRow:], src)
	}
	return packed, nil
}

// RowPaddedBuffer wraps a GPU readback buffer whose row stride is padded to
// the device's row alignment. It records the layout needed to recover the
// tightly packed image later.
//
// The buffer handle is exclusively owned: by the capturer while the copy and
// map are outstanding, then by the worker delivering the snapshot. Release
// is the final owner's responsibility.
type RowPaddedBuffer struct {
	buffer Buffer

	rowBytes       int
	paddedRowBytes int
	height         int
}

// newRowPaddedBuffer allocates a readback buffer sized for the given
// texture descriptor.
func newRowPaddedBuffer(device Device, desc TextureDescriptor) (RowPaddedBuffer, error) {
	row := UnpaddedRowBytes(desc.Width, desc.Format.BytesPerPixel())
	padded := PaddedRowBytes(desc.Width, desc.Format.BytesPerPixel(), RowAlignment)
	size := uint64(padded) * uint64(desc.Height)

	buf, err := device.CreateReadbackBuffer(size, desc.Label)
	if err != nil {
		return RowPaddedBuffer{}, err
	}

	return RowPaddedBuffer{
		buffer:         buf,
		rowBytes:       row,
		paddedRowBytes: padded,
		height:         desc.Height,
	}, nil
}

// RowBytes returns the tightly packed row size in bytes.
func (b RowPaddedBuffer) RowBytes() int { return b.rowBytes }

// PaddedRowBytes returns the padded row stride in bytes.
func (b RowPaddedBuffer) PaddedRowBytes() int { return b.paddedRowBytes }

// TotalBytes returns the full padded buffer size in bytes.
func (b RowPaddedBuffer) TotalBytes() int { return b.paddedRowBytes * b.height }

// layout returns the copy layout for the texture-to-buffer command.
func (b RowPaddedBuffer) layout() ImageCopyLayout {
	return ImageCopyLayout{
		Offset:       0,
		BytesPerRow:  uint32(b.paddedRowBytes),
		RowsPerImage: uint32(b.height),
	}
}

// packed reads the mapped buffer and returns the padding-stripped pixel
// data. The buffer must be mapped.
func (b RowPaddedBuffer) packed() ([]byte, error) {
	raw, err := b.buffer.MappedRange()
	if err != nil {
		return nil, err
	}
	return StripPadding(raw, b.height, b.paddedRowBytes, b.rowBytes)
}

// release unmaps (if mapped) and destroys the underlying buffer.
func (b RowPaddedBuffer) release() {
	if b.buffer == nil {
		return
	}
	_ = b.buffer.Unmap()
	b.buffer.Destroy()
}
